package pptx

import "strconv"

// Shape is a top-level drawing object of a slide with its absolute geometry
// in EMU.
type Shape struct {
	ID     int
	Name   string
	Kind   string
	Left   int64
	Top    int64
	Width  int64
	Height int64

	HasPlaceholder   bool
	PlaceholderType  string
	PlaceholderIndex string
	HasText          bool
}

var shapeKinds = map[string]bool{
	"sp":           true,
	"pic":          true,
	"graphicFrame": true,
	"grpSp":        true,
	"cxnSp":        true,
}

// ShapesOf lists the top-level shapes of a slide, layout or master document.
func ShapesOf(doc *Document) []Shape {
	tree := doc.Root.Path(P("cSld"), P("spTree"))
	if tree == nil {
		return nil
	}
	var out []Shape
	for _, n := range tree.Children {
		if n.Name.Space != NSPresentation || !shapeKinds[n.Name.Local] {
			continue
		}
		out = append(out, shapeFromNode(n))
	}
	return out
}

func shapeFromNode(n *Node) Shape {
	s := Shape{Kind: n.Name.Local}
	var nv *Node
	for _, c := range n.Children {
		if c.Name.Space == NSPresentation && len(c.Name.Local) > 2 && c.Name.Local[:2] == "nv" {
			nv = c
			break
		}
	}
	if cnv := nv.Child(NSPresentation, "cNvPr"); cnv != nil {
		if v, ok := cnv.Attr("id"); ok {
			s.ID, _ = strconv.Atoi(v)
		}
		s.Name, _ = cnv.Attr("name")
	}
	if ph := nv.Path(P("nvPr"), P("ph")); ph != nil {
		s.HasPlaceholder = true
		s.PlaceholderType, _ = ph.Attr("type")
		s.PlaceholderIndex, _ = ph.Attr("idx")
	}

	xfrm := n.Path(P("spPr"), A("xfrm"))
	if xfrm == nil {
		xfrm = n.Path(P("grpSpPr"), A("xfrm"))
	}
	if xfrm == nil {
		xfrm = n.Child(NSPresentation, "xfrm")
	}
	if xfrm != nil {
		if off := xfrm.Child(NSDrawing, "off"); off != nil {
			s.Left = attrInt(off, "x")
			s.Top = attrInt(off, "y")
		}
		if ext := xfrm.Child(NSDrawing, "ext"); ext != nil {
			s.Width = attrInt(ext, "cx")
			s.Height = attrInt(ext, "cy")
		}
	}
	s.HasText = n.First(NSDrawing, "t") != nil
	return s
}

func (s Shape) hasGeometry() bool {
	return s.Width > 0 || s.Height > 0 || s.Left > 0 || s.Top > 0
}

// SlideShapes returns the shapes of a slide. Placeholders that carry no
// geometry of their own inherit it from the matching layout placeholder,
// matched by idx first and then by type.
func (p *Package) SlideShapes(slide string) ([]Shape, error) {
	doc, err := p.ParsePart(slide)
	if err != nil {
		return nil, err
	}
	shapes := ShapesOf(doc)

	var layout []Shape
	if name, ok := p.LayoutOf(slide); ok {
		if ldoc, err := p.ParsePart(name); err == nil {
			layout = ShapesOf(ldoc)
		}
	}
	for i := range shapes {
		s := &shapes[i]
		if !s.HasPlaceholder || s.hasGeometry() {
			continue
		}
		if src, ok := matchLayoutPlaceholder(*s, layout); ok {
			s.Left, s.Top, s.Width, s.Height = src.Left, src.Top, src.Width, src.Height
		}
	}
	return shapes, nil
}

func matchLayoutPlaceholder(s Shape, layout []Shape) (Shape, bool) {
	if s.PlaceholderIndex != "" {
		for _, l := range layout {
			if l.HasPlaceholder && l.PlaceholderIndex == s.PlaceholderIndex {
				return l, true
			}
		}
	}
	typ := s.PlaceholderType
	for _, l := range layout {
		if l.HasPlaceholder && l.PlaceholderType == typ {
			return l, true
		}
	}
	return Shape{}, false
}
