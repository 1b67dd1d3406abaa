// Package preservation records which advanced visual features a slide part
// carries and reports any that a rewrite lost.
package preservation

import (
	"fmt"

	"github.com/brifyai/pptx/internal/pptx"
)

// Snapshot is a summary of the feature markers present in a slide.
type Snapshot struct {
	HasAnimationTiming bool `json:"hasAnimationTiming"`
	HasTransition      bool `json:"hasTransition"`
	HasGradientFill    bool `json:"hasGradientFill"`
	HasShadow          bool `json:"hasShadow"`
	Has3DEffect        bool `json:"has3DEffect"`
	HasEmbeddedDiagram bool `json:"hasEmbeddedDiagram"`
	ShapeCount         int  `json:"shapeCount"`
	PictureCount       int  `json:"pictureCount"`
}

// Take inspects a parsed part.
func Take(doc *pptx.Document) Snapshot {
	var s Snapshot
	doc.Root.Walk(func(n *pptx.Node) bool {
		switch n.Name.Space {
		case pptx.NSPresentation:
			switch n.Name.Local {
			case "timing":
				s.HasAnimationTiming = true
			case "transition":
				s.HasTransition = true
			case "sp":
				s.ShapeCount++
			case "pic":
				s.PictureCount++
			}
		case pptx.NSDrawing:
			switch n.Name.Local {
			case "gradFill":
				s.HasGradientFill = true
			case "outerShdw", "innerShdw":
				s.HasShadow = true
			case "scene3d", "sp3d":
				s.Has3DEffect = true
			}
		case pptx.NSDiagram:
			s.HasEmbeddedDiagram = true
		}
		return true
	})
	return s
}

// TakeBytes parses raw part bytes and takes a snapshot.
func TakeBytes(raw []byte) (Snapshot, error) {
	doc, err := pptx.Parse(raw)
	if err != nil {
		return Snapshot{}, err
	}
	return Take(doc), nil
}

// Violation names one feature that was present before and is gone after.
type Violation struct {
	Feature string `json:"feature"`
	Before  int    `json:"before"`
	After   int    `json:"after"`
}

func (v Violation) String() string {
	if v.Before == 1 && v.After == 0 {
		return fmt.Sprintf("%s lost", v.Feature)
	}
	return fmt.Sprintf("%s decreased from %d to %d", v.Feature, v.Before, v.After)
}

// Verify compares two snapshots. A feature flag that went from true to
// false, or a shape or picture count that decreased, is a violation. Gaining
// features is never reported.
func Verify(before, after Snapshot) []Violation {
	var out []Violation
	flags := []struct {
		name   string
		before bool
		after  bool
	}{
		{"animations", before.HasAnimationTiming, after.HasAnimationTiming},
		{"transitions", before.HasTransition, after.HasTransition},
		{"gradients", before.HasGradientFill, after.HasGradientFill},
		{"shadows", before.HasShadow, after.HasShadow},
		{"3d effects", before.Has3DEffect, after.Has3DEffect},
		{"smartart", before.HasEmbeddedDiagram, after.HasEmbeddedDiagram},
	}
	for _, f := range flags {
		if f.before && !f.after {
			out = append(out, Violation{Feature: f.name, Before: 1, After: 0})
		}
	}
	if after.ShapeCount < before.ShapeCount {
		out = append(out, Violation{Feature: "shapes", Before: before.ShapeCount, After: after.ShapeCount})
	}
	if after.PictureCount < before.PictureCount {
		out = append(out, Violation{Feature: "pictures", Before: before.PictureCount, After: after.PictureCount})
	}
	return out
}

// Report is the per-slide outcome.
type Report struct {
	Slide      string      `json:"slide"`
	Before     Snapshot    `json:"before"`
	After      Snapshot    `json:"after"`
	Violations []Violation `json:"violations,omitempty"`
}

func (r Report) Preserved() bool { return len(r.Violations) == 0 }

// Summary aggregates reports of a whole presentation.
type Summary struct {
	Status         string   `json:"status"`
	TotalSlides    int      `json:"totalSlides"`
	FullyPreserved int      `json:"fullyPreserved"`
	Issues         []Report `json:"issues,omitempty"`
}

func Summarize(reports []Report) Summary {
	s := Summary{Status: "success", TotalSlides: len(reports)}
	for _, r := range reports {
		if r.Preserved() {
			s.FullyPreserved++
			continue
		}
		s.Issues = append(s.Issues, r)
	}
	if len(s.Issues) > 0 {
		s.Status = "warning"
	}
	return s
}
