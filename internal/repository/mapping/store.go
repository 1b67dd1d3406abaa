package mapping

import (
	"context"
	"sort"

	"github.com/brifyai/pptx/internal/mapping"
	"github.com/brifyai/pptx/internal/matcher"
)

// Store persists one Mapping per template hash. A miss is reported through
// the found/ok results; err is reserved for storage failures.
type Store interface {
	Get(ctx context.Context, hash string) (*mapping.Mapping, bool, error)
	Save(ctx context.Context, m *mapping.Mapping) error
	// Correct sets the element's type and marks it user corrected. It
	// reports false when the hash or element is unknown.
	Correct(ctx context.Context, hash, elementID string, t matcher.ElementType) (bool, error)
	Delete(ctx context.Context, hash string) (bool, error)
	Exists(ctx context.Context, hash string) (bool, error)
	List(ctx context.Context) ([]mapping.Summary, error)
}

func sortSummaries(out []mapping.Summary) {
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].AnalyzedAt.Equal(out[j].AnalyzedAt) {
			return out[i].TemplateHash < out[j].TemplateHash
		}
		return out[i].AnalyzedAt.After(out[j].AnalyzedAt)
	})
}
