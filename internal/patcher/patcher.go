// Package patcher places caller content into the text runs of a slide
// without touching anything else in the part.
package patcher

import (
	"github.com/brifyai/pptx/internal/placeholder"
	"github.com/brifyai/pptx/internal/pptx"
)

// Replacement records one run whose text was swapped.
type Replacement struct {
	Location TextLocation `json:"location"`
	Item     Item         `json:"item"`
}

// Result of patching one part.
type Result struct {
	Replacements int           `json:"replacements"`
	Replaced     []Replacement `json:"replaced,omitempty"`
	Unconsumed   []Item        `json:"unconsumed,omitempty"`
}

type Patcher struct {
	classifier *placeholder.Classifier
}

// New returns a Patcher. A nil classifier selects placeholder.Default.
func New(c *placeholder.Classifier) *Patcher {
	if c == nil {
		c = placeholder.Default
	}
	return &Patcher{classifier: c}
}

// Patch walks the runs of doc and replaces their text from items.
//
// Title and subtitle runs take the first pending item of their role; the
// first such run in the part is replaced regardless of its current text,
// later ones only when their text is a placeholder. Body and bullet runs
// holding placeholder text take pending bullets in order, then the body
// item. Unclassified runs are never touched. Items left over are reported
// in Unconsumed and otherwise dropped.
func (p *Patcher) Patch(doc *pptx.Document, items []Item) Result {
	q := NewQueue(items)
	var res Result
	if q.Len() == 0 {
		return res
	}
	titleRole := q.titleRole()
	forced := map[Role]bool{}

	walkRuns(doc, func(r run) {
		var (
			idx int
			ok  bool
		)
		switch r.loc.Role {
		case RoleTitle, RoleSubtitle:
			want := titleRole
			if r.loc.Role == RoleSubtitle {
				want = RoleSubtitle
			}
			idx, ok = q.peek(want)
			if !ok {
				return
			}
			if forced[r.loc.Role] && !p.classifier.IsPlaceholder(r.loc.Text) {
				return
			}
			forced[r.loc.Role] = true
		case RoleBody, RoleBullet:
			if !p.classifier.IsPlaceholder(r.loc.Text) {
				return
			}
			if idx, ok = q.peek(RoleBullet); !ok {
				if idx, ok = q.peek(RoleBody); !ok {
					return
				}
			}
		default:
			return
		}

		it := q.take(idx)
		doc.SetText(r.text, it.Text)
		res.Replacements++
		res.Replaced = append(res.Replaced, Replacement{Location: r.loc, Item: it})
	})
	res.Unconsumed = q.Remaining()
	return res
}
