// Package matcher ties elements detected on a slide image to the native
// shapes of the slide, and classifies shapes no detection claimed.
package matcher

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidDimensions = errors.New("slide dimensions must be positive")

// DistanceThreshold bounds the Manhattan distance between a detection and a
// shape, as a fraction of the slide width. The bound is exclusive.
const (
	DistanceThreshold = 0.10
	thresholdPercent  = 10
)

type Matcher struct {
	width  int64
	height int64
}

func New(width, height int64) (*Matcher, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	return &Matcher{width: width, height: height}, nil
}

// Normalize converts a 0..1000 grid coordinate to native units of the given
// dimension.
func Normalize(coord int, dimension int64) int64 {
	return int64(math.Round(float64(coord) / 1000 * float64(dimension)))
}

// Distance is the Manhattan distance between two top-left corners.
func Distance(l1, t1, l2, t2 int64) int64 {
	return abs(l1-l2) + abs(t1-t2)
}

// Match is one accepted detection to shape pairing.
type Match struct {
	Type      ElementType
	ShapeID   int
	Distance  int64
	Detection Detection
}

// Match pairs detections with shapes by nearest top-left corner. Pairs at
// or beyond the threshold are ignored, each type keeps its closest
// candidate, and a shape wanted by several types goes to the closest one;
// the other types are dropped, not reassigned. Ties keep the earlier input.
func (m *Matcher) Match(detections []Detection, shapes []Shape) []Match {
	best := map[ElementType]Match{}
	var order []ElementType
	for _, d := range detections {
		left := Normalize(d.Rect.Left, m.width)
		top := Normalize(d.Rect.Top, m.height)

		found := false
		var cand Match
		for _, s := range shapes {
			dist := Distance(left, top, s.Left, s.Top)
			if !m.withinThreshold(dist) {
				continue
			}
			if !found || dist < cand.Distance {
				cand = Match{Type: d.Type, ShapeID: s.ID, Distance: dist, Detection: d}
				found = true
			}
		}
		if !found {
			continue
		}
		prev, ok := best[d.Type]
		if !ok {
			order = append(order, d.Type)
			best[d.Type] = cand
			continue
		}
		if cand.Distance < prev.Distance {
			best[d.Type] = cand
		}
	}

	owner := map[int]ElementType{}
	for _, typ := range order {
		cand := best[typ]
		prevType, taken := owner[cand.ShapeID]
		if !taken {
			owner[cand.ShapeID] = typ
			continue
		}
		if cand.Distance < best[prevType].Distance {
			delete(best, prevType)
			owner[cand.ShapeID] = typ
			continue
		}
		delete(best, typ)
	}

	out := make([]Match, 0, len(best))
	for _, typ := range order {
		if mt, ok := best[typ]; ok {
			out = append(out, mt)
		}
	}
	return out
}

// MapDetections returns the type to shape id mapping of Match.
func (m *Matcher) MapDetections(detections []Detection, shapes []Shape) map[ElementType]int {
	out := map[ElementType]int{}
	for _, mt := range m.Match(detections, shapes) {
		out[mt.Type] = mt.ShapeID
	}
	return out
}

// withinThreshold compares in integers so the boundary is exact.
func (m *Matcher) withinThreshold(dist int64) bool {
	return dist*100 < m.width*thresholdPercent
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
