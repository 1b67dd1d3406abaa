package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/brifyai/pptx/internal/analysis"
	"github.com/brifyai/pptx/internal/app"
	"github.com/brifyai/pptx/internal/config"
	"github.com/brifyai/pptx/internal/patcher"
	mappingrepo "github.com/brifyai/pptx/internal/repository/mapping"
	"github.com/brifyai/pptx/internal/vision"
)

func main() {
	template := flag.String("template", "", "path to the template .pptx")
	contentPath := flag.String("content", "", "path to the slide content JSON")
	out := flag.String("out", "out.pptx", "output path for the cloned deck")
	inspect := flag.Bool("inspect", false, "print text locations instead of cloning")
	analyze := flag.Bool("analyze", false, "print the layout mapping instead of cloning")
	imagePath := flag.String("image", "", "optional first-slide image used by -analyze")
	flag.Parse()
	if *template == "" {
		log.Fatal("--template is required")
	}

	raw, err := os.ReadFile(*template)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	opts := analysis.Options{Mappings: mappingrepo.NewMemoryStore()}
	if *analyze {
		cfg, err := config.LoadArgs(nil)
		if err != nil {
			log.Fatal(err)
		}
		if det, err := app.NewDetector(ctx, cfg); err != nil {
			log.Printf("vision: disabled: %v", err)
		} else if det != nil {
			opts.Detector = det
		}
		if cfg.SofficePath != "" {
			opts.Renderer = vision.NewSofficeRenderer(cfg.SofficePath)
		}
		opts.Workers = cfg.Workers
	}
	svc, err := analysis.New(opts)
	if err != nil {
		log.Fatal(err)
	}

	switch {
	case *inspect:
		info, err := svc.Inspect(raw)
		if err != nil {
			log.Fatal(err)
		}
		printJSON(info)
	case *analyze:
		var img []byte
		if *imagePath != "" {
			if img, err = os.ReadFile(*imagePath); err != nil {
				log.Fatal(err)
			}
		}
		m, err := svc.AnalyzeTemplate(ctx, analysis.AnalyzeRequest{
			Template: raw,
			Image:    img,
			Name:     strings.TrimSuffix(filepath.Base(*template), filepath.Ext(*template)),
		})
		if err != nil {
			log.Fatal(err)
		}
		printJSON(m)
	default:
		var content []patcher.SlideContent
		if *contentPath != "" {
			b, err := os.ReadFile(*contentPath)
			if err != nil {
				log.Fatal(err)
			}
			if content, err = patcher.ParseContent(b); err != nil {
				log.Fatal(err)
			}
		}
		res, err := svc.Clone(ctx, raw, content)
		if err != nil {
			log.Fatal(err)
		}
		if err := os.WriteFile(*out, res.Output, 0o644); err != nil {
			log.Fatal(err)
		}
		log.Printf("cloned %d slides, %d replacements, preservation=%s -> %s",
			len(res.Report.Slides), res.Report.Replacements, res.Report.Preservation.Status, *out)
		printJSON(res.Report)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatal(err)
	}
}
