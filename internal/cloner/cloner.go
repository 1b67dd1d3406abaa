// Package cloner fills a template presentation with new content slide by
// slide and checks that patching kept every visual feature of each slide.
package cloner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/brifyai/pptx/internal/patcher"
	"github.com/brifyai/pptx/internal/placeholder"
	"github.com/brifyai/pptx/internal/pptx"
	"github.com/brifyai/pptx/internal/preservation"
)

const defaultWorkers = 4

// SlideReport is the outcome for one slide that received content.
type SlideReport struct {
	Index        int                  `json:"index"`
	Slide        string               `json:"slide"`
	Replacements int                  `json:"replacements"`
	Unconsumed   []patcher.Item       `json:"unconsumed,omitempty"`
	Preservation *preservation.Report `json:"preservation,omitempty"`
	Error        string               `json:"error,omitempty"`
}

type Report struct {
	Slides       []SlideReport        `json:"slides"`
	Replacements int                  `json:"replacements"`
	Preservation preservation.Summary `json:"preservation"`
	// Failures holds parts that could not be parsed; they are written
	// unchanged.
	Failures []*pptx.PartError `json:"-"`
}

type Cloner struct {
	patcher *patcher.Patcher
	workers int
}

// New returns a Cloner patching up to workers slides at once.
func New(c *placeholder.Classifier, workers int) *Cloner {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Cloner{patcher: patcher.New(c), workers: workers}
}

// Clone applies content[i] to the i-th slide in presentation order and
// returns the repackaged document. Slides beyond len(content) and slides
// that receive no replacement are copied byte for byte. A slide that fails
// to parse is recorded in the report and does not stop the others.
func (c *Cloner) Clone(ctx context.Context, raw []byte, content []patcher.SlideContent) ([]byte, Report, error) {
	pkg, err := pptx.Open(raw)
	if err != nil {
		return nil, Report{}, err
	}
	slides, err := pkg.Slides()
	if err != nil {
		return nil, Report{}, err
	}
	if len(slides) == 0 {
		return nil, Report{}, pptx.ErrNoSlides
	}

	n := min(len(content), len(slides))
	reports := make([]SlideReport, n)
	var (
		mu       sync.Mutex
		failures []*pptx.PartError
	)

	g := new(errgroup.Group)
	g.SetLimit(c.workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rep, perr := c.patchSlide(pkg, i, slides[i], content[i])
			reports[i] = rep
			if perr != nil {
				log.Printf("cloner: slide %d skipped: %v", i+1, perr)
				mu.Lock()
				failures = append(failures, perr)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Report{}, err
	}

	report := Report{Slides: reports, Failures: failures}
	var verified []preservation.Report
	for _, r := range reports {
		report.Replacements += r.Replacements
		if r.Preservation != nil {
			verified = append(verified, *r.Preservation)
		}
	}
	report.Preservation = preservation.Summarize(verified)

	out, err := pkg.Bytes()
	if err != nil {
		return nil, report, fmt.Errorf("repackage: %w", err)
	}
	log.Printf("cloner: done slides=%d replacements=%d status=%s", n, report.Replacements, report.Preservation.Status)
	return out, report, nil
}

func (c *Cloner) patchSlide(pkg *pptx.Package, i int, slide string, content patcher.SlideContent) (SlideReport, *pptx.PartError) {
	rep := SlideReport{Index: i, Slide: slide}
	doc, err := pkg.ParsePart(slide)
	if err != nil {
		rep.Error = err.Error()
		return rep, asPartError(slide, err)
	}
	before := preservation.Take(doc)
	res := c.patcher.Patch(doc, content.Items())
	rep.Replacements = res.Replacements
	rep.Unconsumed = res.Unconsumed

	if !doc.Modified() {
		rep.Preservation = &preservation.Report{Slide: slide, Before: before, After: before}
		return rep, nil
	}

	patched := doc.Bytes()
	after, err := preservation.TakeBytes(patched)
	if err != nil {
		rep.Replacements = 0
		rep.Error = err.Error()
		return rep, &pptx.PartError{Part: slide, Err: fmt.Errorf("patched part does not parse: %w", err)}
	}
	pr := preservation.Report{Slide: slide, Before: before, After: after, Violations: preservation.Verify(before, after)}
	for _, v := range pr.Violations {
		log.Printf("cloner: preservation warning slide=%d %s", i+1, v)
	}
	rep.Preservation = &pr
	if err := pkg.Replace(slide, patched); err != nil {
		rep.Error = err.Error()
		return rep, asPartError(slide, err)
	}
	log.Printf("cloner: slide %d patched replacements=%d", i+1, res.Replacements)
	return rep, nil
}

func asPartError(part string, err error) *pptx.PartError {
	var pe *pptx.PartError
	if errors.As(err, &pe) {
		return pe
	}
	return &pptx.PartError{Part: part, Err: err}
}
