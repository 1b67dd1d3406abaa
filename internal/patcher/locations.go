package patcher

import (
	"strconv"

	"github.com/brifyai/pptx/internal/placeholder"
	"github.com/brifyai/pptx/internal/pptx"
)

// TextLocation addresses one text run of a slide.
type TextLocation struct {
	ContainerID   int    `json:"containerId"`
	ContainerName string `json:"containerName,omitempty"`
	Paragraph     int    `json:"paragraphIndex"`
	Run           int    `json:"runIndex"`
	Text          string `json:"originalText"`
	Role          Role   `json:"role"`
	Placeholder   bool   `json:"isPlaceholder"`
}

// run is an editable run together with the a:t element holding its text.
type run struct {
	loc  TextLocation
	text *pptx.Node
}

// walkRuns visits every a:r with an a:t child in document order: shapes,
// then paragraphs, then runs. Empty runs are included.
func walkRuns(doc *pptx.Document, fn func(run)) {
	for _, sp := range doc.Root.Find(pptx.NSPresentation, "sp") {
		txBody := sp.Child(pptx.NSPresentation, "txBody")
		if txBody == nil {
			continue
		}
		id, name := containerOf(sp)
		shapeRole := roleOfShape(sp)
		for pi, para := range txBody.ChildrenNamed(pptx.NSDrawing, "p") {
			role := shapeRole
			if role == RoleBody && hasBullet(para) {
				role = RoleBullet
			}
			for ri, r := range para.ChildrenNamed(pptx.NSDrawing, "r") {
				t := r.Child(pptx.NSDrawing, "t")
				if t == nil {
					continue
				}
				fn(run{
					loc: TextLocation{
						ContainerID:   id,
						ContainerName: name,
						Paragraph:     pi,
						Run:           ri,
						Text:          doc.Text(t),
						Role:          role,
					},
					text: t,
				})
			}
		}
	}
}

// Index lists the non-empty text runs of a slide.
func Index(doc *pptx.Document, c *placeholder.Classifier) []TextLocation {
	if c == nil {
		c = placeholder.Default
	}
	var out []TextLocation
	walkRuns(doc, func(r run) {
		if r.loc.Text == "" {
			return
		}
		r.loc.Placeholder = c.IsPlaceholder(r.loc.Text)
		out = append(out, r.loc)
	})
	return out
}

func containerOf(sp *pptx.Node) (int, string) {
	cnv := sp.Path(pptx.P("nvSpPr"), pptx.P("cNvPr"))
	if cnv == nil {
		return 0, ""
	}
	raw, _ := cnv.Attr("id")
	id, _ := strconv.Atoi(raw)
	name, _ := cnv.Attr("name")
	return id, name
}

// roleOfShape maps the native placeholder type. Shapes that are not
// placeholders, and placeholders without a type, behave as body.
func roleOfShape(sp *pptx.Node) Role {
	ph := sp.Path(pptx.P("nvSpPr"), pptx.P("nvPr"), pptx.P("ph"))
	if ph == nil {
		return RoleBody
	}
	typ, ok := ph.Attr("type")
	if !ok {
		return RoleBody
	}
	switch typ {
	case "title", "ctrTitle":
		return RoleTitle
	case "subTitle":
		return RoleSubtitle
	case "body", "obj":
		return RoleBody
	default:
		return RoleUnclassified
	}
}

func hasBullet(para *pptx.Node) bool {
	ppr := para.Child(pptx.NSDrawing, "pPr")
	return ppr.Child(pptx.NSDrawing, "buChar") != nil || ppr.Child(pptx.NSDrawing, "buAutoNum") != nil
}
