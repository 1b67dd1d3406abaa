package cloner

import (
	"log"

	"github.com/brifyai/pptx/internal/patcher"
	"github.com/brifyai/pptx/internal/placeholder"
	"github.com/brifyai/pptx/internal/pptx"
)

const previewRunes = 50

type SlideInfo struct {
	Slide string                 `json:"slide"`
	Texts []patcher.TextLocation `json:"texts"`
	Error string                 `json:"error,omitempty"`
}

// TemplateInfo describes what a template offers for patching.
type TemplateInfo struct {
	SlideCount int         `json:"slideCount"`
	Width      int64       `json:"width"`
	Height     int64       `json:"height"`
	Fonts      []string    `json:"fonts"`
	Slides     []SlideInfo `json:"slides"`
}

// Inspect lists the text runs of every slide with their role and
// placeholder verdict. Text is cut to a short preview.
func Inspect(raw []byte, c *placeholder.Classifier) (TemplateInfo, error) {
	if c == nil {
		c = placeholder.Default
	}
	pkg, err := pptx.Open(raw)
	if err != nil {
		return TemplateInfo{}, err
	}
	slides, err := pkg.Slides()
	if err != nil {
		return TemplateInfo{}, err
	}
	w, h, err := pkg.SlideSize()
	if err != nil {
		return TemplateInfo{}, err
	}
	fonts, err := pkg.Fonts()
	if err != nil {
		log.Printf("cloner: font discovery failed: %v", err)
		fonts = []string{}
	}
	info := TemplateInfo{SlideCount: len(slides), Width: w, Height: h, Fonts: fonts}
	for _, slide := range slides {
		si := SlideInfo{Slide: slide, Texts: []patcher.TextLocation{}}
		doc, err := pkg.ParsePart(slide)
		if err != nil {
			si.Error = err.Error()
			info.Slides = append(info.Slides, si)
			continue
		}
		for _, loc := range patcher.Index(doc, c) {
			loc.Text = preview(loc.Text)
			si.Texts = append(si.Texts, loc)
		}
		info.Slides = append(info.Slides, si)
	}
	return info, nil
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewRunes {
		return s
	}
	return string(r[:previewRunes])
}
