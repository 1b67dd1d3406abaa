package matcher

// Geometry classification thresholds, as fractions of the slide.
const (
	titleMaxTop     = 0.20
	subtitleMaxTop  = 0.35
	headerMinWidth  = 0.50
	footerMinBottom = 0.80
	footerMaxHeight = 0.15
	imageMinAspect  = 0.7
	imageMaxAspect  = 1.4
	imageMinArea    = 0.05
	bodyMinArea     = 0.10
	bodyMinTop      = 0.15
	bodyMaxTop      = 0.70
)

// ClassifyByGeometry guesses a type from position and size relative to the
// slide. The first matching rule wins.
func (m *Matcher) ClassifyByGeometry(s Shape) ElementType {
	top := float64(s.Top) / float64(m.height)
	width := float64(s.Width) / float64(m.width)
	height := float64(s.Height) / float64(m.height)
	bottom := float64(s.Top+s.Height) / float64(m.height)
	area := width * height

	switch {
	case top < titleMaxTop && width > headerMinWidth:
		return Title
	case top >= titleMaxTop && top < subtitleMaxTop && width > headerMinWidth:
		return Subtitle
	case bottom > footerMinBottom && height < footerMaxHeight:
		return Footer
	}
	if s.Height > 0 {
		aspect := float64(s.Width) / float64(s.Height)
		if aspect >= imageMinAspect && aspect <= imageMaxAspect && area > imageMinArea {
			return ImageHolder
		}
	}
	if area > bodyMinArea && top > bodyMinTop && top < bodyMaxTop {
		return Body
	}
	return Unknown
}

var nativeTypes = map[string]ElementType{
	"title":    Title,
	"ctrTitle": Title,
	"subTitle": Subtitle,
	"body":     Body,
	"obj":      Body,
	"ftr":      Footer,
	"sldNum":   Footer,
	"dt":       Footer,
	"hdr":      Footer,
	"pic":      ImageHolder,
	"chart":    ChartArea,
}

// ClassifyShape prefers the native placeholder type and falls back to
// geometry. A placeholder without a type attribute is an object placeholder.
// A picture outside any placeholder is always an image holder.
func (m *Matcher) ClassifyShape(s Shape) ElementType {
	if s.HasPlaceholder {
		typ := s.PlaceholderType
		if typ == "" {
			typ = "obj"
		}
		if t, ok := nativeTypes[typ]; ok {
			return t
		}
	}
	if s.Kind == "pic" {
		return ImageHolder
	}
	return m.ClassifyByGeometry(s)
}

// Complete adds a type for every shape no detection claimed, unless that
// type is already mapped. Shapes are visited in order and UNKNOWN is never
// added.
func (m *Matcher) Complete(mapping map[ElementType]int, shapes []Shape) map[ElementType]int {
	out := make(map[ElementType]int, len(mapping))
	claimed := map[int]bool{}
	for t, id := range mapping {
		out[t] = id
		claimed[id] = true
	}
	for _, s := range shapes {
		if claimed[s.ID] {
			continue
		}
		t := m.ClassifyShape(s)
		if t == Unknown {
			continue
		}
		if _, ok := out[t]; ok {
			continue
		}
		out[t] = s.ID
		claimed[s.ID] = true
	}
	return out
}
