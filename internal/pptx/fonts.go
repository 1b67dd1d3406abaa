package pptx

import (
	"sort"
	"strings"
)

var fontPartPrefixes = []string{
	"ppt/slides/slide",
	"ppt/slideLayouts/slideLayout",
	"ppt/slideMasters/slideMaster",
	"ppt/theme/theme",
}

// Fonts lists the typefaces referenced by slides, layouts, masters and
// themes. Theme references such as +mj-lt are skipped.
func (p *Package) Fonts() ([]string, error) {
	seen := map[string]bool{}
	for _, name := range p.PartNames() {
		if !isFontPart(name) {
			continue
		}
		doc, err := p.ParsePart(name)
		if err != nil {
			return nil, err
		}
		doc.Root.Walk(func(n *Node) bool {
			if n.Name.Space != NSDrawing {
				return true
			}
			switch n.Name.Local {
			case "latin", "ea", "cs":
				face, _ := n.Attr("typeface")
				face = strings.TrimSpace(face)
				if face != "" && !strings.HasPrefix(face, "+") {
					seen[face] = true
				}
			}
			return true
		})
	}
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out, nil
}

func isFontPart(name string) bool {
	if !strings.HasSuffix(name, ".xml") {
		return false
	}
	for _, prefix := range fontPartPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
