// Package vision turns a rendered slide image into layout detections.
package vision

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/brifyai/pptx/internal/matcher"
)

var ErrNoJSON = errors.New("no json object in model response")

const (
	defaultAspectRatio = "16:9"
	defaultColor       = "#000000"
	defaultAlign       = "left"
	defaultConfidence  = 0.5
)

// Result is the normalized output of one slide analysis.
type Result struct {
	AspectRatio string              `json:"aspectRatio"`
	Detections  []matcher.Detection `json:"elements"`
}

// ExtractJSON returns the outermost {...} span of free-form model text.
func ExtractJSON(text string) ([]byte, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, ErrNoJSON
	}
	return []byte(text[start : end+1]), nil
}

// ParseResponse decodes model output and normalizes every element: types
// are validated, coordinates rounded and clamped to [0,1000], confidence
// clamped to [0,1]. Elements that are not objects are skipped.
func ParseResponse(text string) (Result, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return Result{}, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Result{}, fmt.Errorf("decode vision response: %w", err)
	}
	return normalize(doc), nil
}

func normalize(doc map[string]any) Result {
	res := Result{AspectRatio: defaultAspectRatio}
	if meta, ok := doc["slide_metadata"].(map[string]any); ok {
		if ar, ok := meta["aspect_ratio"].(string); ok && strings.TrimSpace(ar) != "" {
			res.AspectRatio = ar
		}
	}
	elements, _ := doc["elements"].([]any)
	var explicit []bool
	for idx, item := range elements {
		el, ok := item.(map[string]any)
		if !ok {
			continue
		}
		d := matcher.Detection{
			ID:         fmt.Sprintf("element_%d", idx+1),
			Type:       matcher.Unknown,
			Confidence: defaultConfidence,
		}
		id, ok := el["id"].(string)
		named := ok && strings.TrimSpace(id) != ""
		if named {
			d.ID = strings.TrimSpace(id)
		}
		if typ, ok := el["type"].(string); ok {
			d.Type = matcher.ParseElementType(typ)
		}
		coords, _ := el["coordinates"].(map[string]any)
		d.Rect = matcher.Rect{
			Top:    coordinate(coords["top"]),
			Left:   coordinate(coords["left"]),
			Width:  coordinate(coords["width"]),
			Height: coordinate(coords["height"]),
		}
		style, _ := el["style"].(map[string]any)
		d.Style = normalizeStyle(style)
		if c, ok := el["confidence"].(float64); ok && !math.IsNaN(c) {
			d.Confidence = math.Max(0, math.Min(1, c))
		}
		res.Detections = append(res.Detections, d)
		explicit = append(explicit, named)
	}
	uniqueIDs(res.Detections, explicit)
	return res
}

// uniqueIDs makes detection ids distinct. Ids sent by the model are reserved
// first; a generated or repeated id gets a numeric suffix.
func uniqueIDs(dets []matcher.Detection, explicit []bool) {
	taken := make(map[string]bool, len(dets))
	owner := make(map[string]int, len(dets))
	for i, d := range dets {
		if _, dup := owner[d.ID]; explicit[i] && !dup {
			owner[d.ID] = i
			taken[d.ID] = true
		}
	}
	for i := range dets {
		if j, ok := owner[dets[i].ID]; ok && j == i {
			continue
		}
		id := dets[i].ID
		for n := 2; taken[id]; n++ {
			id = fmt.Sprintf("%s_%d", dets[i].ID, n)
		}
		dets[i].ID = id
		taken[id] = true
	}
}

func coordinate(v any) int {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) {
		return 0
	}
	return int(math.Max(0, math.Min(1000, math.Round(f))))
}

func normalizeStyle(style map[string]any) matcher.Style {
	s := matcher.Style{Color: defaultColor, Align: defaultAlign}
	if c, ok := style["color"].(string); ok {
		s.Color = normalizeColor(c, defaultColor)
	}
	switch a, _ := style["align"].(string); a {
	case "left", "center", "right":
		s.Align = a
	}
	bg, ok := style["backgroundColor"].(string)
	if !ok {
		bg, ok = style["background_color"].(string)
	}
	if ok && strings.TrimSpace(bg) != "" {
		s.BackgroundColor = normalizeColor(bg, "")
	}
	return s
}

// normalizeColor returns a lower-case #rrggbb form, or fallback when the
// value is not a hex color.
func normalizeColor(v, fallback string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "#") {
		v = "#" + v
	}
	if len(v) == 4 {
		v = string([]byte{'#', v[1], v[1], v[2], v[2], v[3], v[3]})
	}
	c, err := colorful.Hex(v)
	if err != nil {
		return fallback
	}
	return c.Hex()
}
