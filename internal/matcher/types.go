package matcher

import "strings"

// ElementType is the semantic slot of a layout element.
type ElementType string

const (
	Title       ElementType = "TITLE"
	Subtitle    ElementType = "SUBTITLE"
	Body        ElementType = "BODY"
	Footer      ElementType = "FOOTER"
	ImageHolder ElementType = "IMAGE_HOLDER"
	ChartArea   ElementType = "CHART_AREA"
	Unknown     ElementType = "UNKNOWN"
)

var validTypes = map[ElementType]bool{
	Title: true, Subtitle: true, Body: true, Footer: true,
	ImageHolder: true, ChartArea: true, Unknown: true,
}

// ParseElementType upper-cases and trims s; anything unrecognized is Unknown.
func ParseElementType(s string) ElementType {
	t := ElementType(strings.ToUpper(strings.TrimSpace(s)))
	if validTypes[t] {
		return t
	}
	return Unknown
}

func (t ElementType) Valid() bool { return validTypes[t] }

// Rect is a box on the 0..1000 normalized grid, origin top-left.
type Rect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Style is the visual hint attached to a detection.
type Style struct {
	Color           string `json:"color"`
	Align           string `json:"align"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
}

// Detection is one element found on a rendered slide image.
type Detection struct {
	ID         string      `json:"id"`
	Type       ElementType `json:"type"`
	Rect       Rect        `json:"coordinates"`
	Style      Style       `json:"style"`
	Confidence float64     `json:"confidence"`
}

// Shape is a slide shape in native units (EMU).
type Shape struct {
	ID              int
	Left            int64
	Top             int64
	Width           int64
	Height          int64
	PlaceholderType string
	HasPlaceholder  bool
	// Kind is the shape element name: sp, pic, graphicFrame, grpSp or cxnSp.
	Kind            string
}
