package patcher

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role is the semantic slot of a text run or of a content item.
type Role string

const (
	RoleTitle        Role = "title"
	RoleSubtitle     Role = "subtitle"
	RoleHeading      Role = "heading"
	RoleBody         Role = "body"
	RoleBullet       Role = "bullet"
	RoleUnclassified Role = "unclassified"
)

// Item is one piece of replacement text waiting to be placed.
type Item struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// SlideContent is the per-slide payload supplied by callers.
type SlideContent struct {
	Title    string   `json:"title,omitempty"`
	Subtitle string   `json:"subtitle,omitempty"`
	Heading  string   `json:"heading,omitempty"`
	Body     string   `json:"body,omitempty"`
	Bullets  []string `json:"bullets,omitempty"`
}

// Items flattens the content into queue order: title, subtitle, heading,
// body, then one item per bullet. Blank values are skipped.
func (c SlideContent) Items() []Item {
	var out []Item
	add := func(role Role, text string) {
		if strings.TrimSpace(text) == "" {
			return
		}
		out = append(out, Item{Role: role, Text: text})
	}
	add(RoleTitle, c.Title)
	add(RoleSubtitle, c.Subtitle)
	add(RoleHeading, c.Heading)
	add(RoleBody, c.Body)
	for _, b := range c.Bullets {
		add(RoleBullet, b)
	}
	return out
}

func (c SlideContent) Empty() bool {
	return len(c.Items()) == 0
}

// ParseContent decodes either a bare array of slides or {"slides": [...]}.
// A slide may carry its fields directly or nested under "content".
func ParseContent(raw []byte) ([]SlideContent, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil, nil
	}
	var entries []json.RawMessage
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal([]byte(trimmed), &entries); err != nil {
			return nil, fmt.Errorf("invalid content: %w", err)
		}
	} else {
		var wrapped struct {
			Slides []json.RawMessage `json:"slides"`
		}
		if err := json.Unmarshal([]byte(trimmed), &wrapped); err != nil {
			return nil, fmt.Errorf("invalid content: %w", err)
		}
		entries = wrapped.Slides
	}
	out := make([]SlideContent, 0, len(entries))
	for i, e := range entries {
		var slide struct {
			SlideContent
			Content *SlideContent `json:"content"`
		}
		if err := json.Unmarshal(e, &slide); err != nil {
			return nil, fmt.Errorf("invalid content for slide %d: %w", i+1, err)
		}
		if slide.Content != nil {
			out = append(out, *slide.Content)
			continue
		}
		out = append(out, slide.SlideContent)
	}
	return out, nil
}

// Queue hands out items in arrival order, each at most once.
type Queue struct {
	items []Item
	used  []bool
}

func NewQueue(items []Item) *Queue {
	return &Queue{items: append([]Item(nil), items...), used: make([]bool, len(items))}
}

// titleRole is the role title runs draw from: a heading stands in for the
// title only when no title item was supplied.
func (q *Queue) titleRole() Role {
	for _, it := range q.items {
		if it.Role == RoleTitle {
			return RoleTitle
		}
	}
	return RoleHeading
}

func (q *Queue) peek(role Role) (int, bool) {
	for i, it := range q.items {
		if !q.used[i] && it.Role == role {
			return i, true
		}
	}
	return -1, false
}

func (q *Queue) take(i int) Item {
	q.used[i] = true
	return q.items[i]
}

// Remaining returns the items never consumed.
func (q *Queue) Remaining() []Item {
	var out []Item
	for i, it := range q.items {
		if !q.used[i] {
			out = append(out, it)
		}
	}
	return out
}

func (q *Queue) Len() int { return len(q.items) }
