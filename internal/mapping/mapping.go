// Package mapping holds the persisted result of a template analysis.
package mapping

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/brifyai/pptx/internal/matcher"
)

// Source records where a returned mapping came from.
type Source string

const (
	SourceVision   Source = "vision"
	SourceGeometry Source = "geometry"
	SourceCache    Source = "cache"
)

// Element is one detected layout element. Once UserCorrected is set, only
// another correction may change Type.
type Element struct {
	ID            string              `json:"id"`
	Type          matcher.ElementType `json:"type"`
	Rect          matcher.Rect        `json:"coordinates"`
	Style         matcher.Style       `json:"style"`
	Confidence    float64             `json:"confidence"`
	ShapeID       *int                `json:"shapeId,omitempty"`
	UserCorrected bool                `json:"userCorrected"`
}

type Mapping struct {
	TemplateHash string                      `json:"templateHash"`
	TemplateID   string                      `json:"templateId"`
	Name         string                      `json:"name,omitempty"`
	Elements     []Element                   `json:"elements"`
	ShapeMapping map[matcher.ElementType]int `json:"shapeMapping"`
	AnalyzedAt   time.Time                   `json:"analyzedAt"`
	Source       Source                      `json:"source,omitempty"`
}

// Summary is the list view of a stored mapping.
type Summary struct {
	TemplateHash string    `json:"templateHash"`
	TemplateID   string    `json:"templateId"`
	Name         string    `json:"name,omitempty"`
	ElementCount int       `json:"elementCount"`
	AnalyzedAt   time.Time `json:"analyzedAt"`
}

// Hash is the hex SHA-256 of raw document bytes.
func Hash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func (m *Mapping) Summary() Summary {
	return Summary{
		TemplateHash: m.TemplateHash,
		TemplateID:   m.TemplateID,
		Name:         m.Name,
		ElementCount: len(m.Elements),
		AnalyzedAt:   m.AnalyzedAt,
	}
}

// Clone returns a deep copy so stores never share state with callers.
func (m *Mapping) Clone() *Mapping {
	if m == nil {
		return nil
	}
	out := *m
	if m.Elements != nil {
		out.Elements = make([]Element, len(m.Elements))
		for i, e := range m.Elements {
			if e.ShapeID != nil {
				id := *e.ShapeID
				e.ShapeID = &id
			}
			out.Elements[i] = e
		}
	}
	if m.ShapeMapping != nil {
		out.ShapeMapping = make(map[matcher.ElementType]int, len(m.ShapeMapping))
		for k, v := range m.ShapeMapping {
			out.ShapeMapping[k] = v
		}
	}
	return &out
}

// Element returns the index of the element with id, or -1.
func (m *Mapping) Element(id string) int {
	for i := range m.Elements {
		if m.Elements[i].ID == id {
			return i
		}
	}
	return -1
}

// ApplyCorrection sets the element's type and marks it user corrected. When
// the element is bound to a shape, that shape moves to the new type in
// ShapeMapping. It reports false when id is unknown.
func ApplyCorrection(m *Mapping, id string, t matcher.ElementType) bool {
	if m == nil {
		return false
	}
	i := m.Element(id)
	if i < 0 {
		return false
	}
	el := &m.Elements[i]
	el.Type = t
	el.UserCorrected = true
	if el.ShapeID == nil {
		return true
	}
	if m.ShapeMapping == nil {
		m.ShapeMapping = map[matcher.ElementType]int{}
	}
	for typ, sid := range m.ShapeMapping {
		if sid == *el.ShapeID {
			delete(m.ShapeMapping, typ)
		}
	}
	m.ShapeMapping[t] = *el.ShapeID
	return true
}

// MergeCorrections carries user corrections from a previously stored mapping
// into a freshly analyzed one, so automated writes never revert them.
func MergeCorrections(prev, fresh *Mapping) {
	if prev == nil || fresh == nil {
		return
	}
	for _, old := range prev.Elements {
		if !old.UserCorrected {
			continue
		}
		if fresh.Element(old.ID) < 0 {
			if old.ShapeID != nil {
				id := *old.ShapeID
				old.ShapeID = &id
			}
			fresh.Elements = append(fresh.Elements, old)
		}
		ApplyCorrection(fresh, old.ID, old.Type)
	}
}
