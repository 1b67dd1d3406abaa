package mapping

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/brifyai/pptx/internal/mapping"
	"github.com/brifyai/pptx/internal/matcher"
	mappingrepo "github.com/brifyai/pptx/internal/repository/mapping"
)

type Store = mappingrepo.Store

const lockStripes = 64

type CacheConfig struct {
	TTL        time.Duration
	MaxEntries int
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:        10 * time.Minute,
		MaxEntries: 256,
	}
}

type MetricsSnapshot struct {
	Hits           uint64
	Misses         uint64
	OriginReads    uint64
	OriginWrites   uint64
	OriginReadErr  uint64
	OriginWriteErr uint64
}

type Metrics struct {
	hits           atomic.Uint64
	misses         atomic.Uint64
	originReads    atomic.Uint64
	originWrites   atomic.Uint64
	originReadErr  atomic.Uint64
	originWriteErr atomic.Uint64
}

func (m *Metrics) snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		Hits:           m.hits.Load(),
		Misses:         m.misses.Load(),
		OriginReads:    m.originReads.Load(),
		OriginWrites:   m.originWrites.Load(),
		OriginReadErr:  m.originReadErr.Load(),
		OriginWriteErr: m.originWriteErr.Load(),
	}
}

// CachedStore fronts a mapping origin with an in-process LRU. Operations on
// the same hash are serialized through a striped lock; different hashes
// proceed concurrently.
type CachedStore struct {
	origin  Store
	cache   *expirable.LRU[string, *mapping.Mapping]
	locks   [lockStripes]sync.Mutex
	metrics Metrics
}

func NewCachedStore(origin Store, cfg CacheConfig) *CachedStore {
	def := DefaultCacheConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = def.MaxEntries
	}
	return &CachedStore{
		origin: origin,
		cache:  expirable.NewLRU[string, *mapping.Mapping](cfg.MaxEntries, nil, cfg.TTL),
	}
}

func (s *CachedStore) lock(hash string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(hash))
	mu := &s.locks[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

func (s *CachedStore) Get(ctx context.Context, hash string) (*mapping.Mapping, bool, error) {
	hash = strings.TrimSpace(hash)
	if m, ok := s.cache.Get(hash); ok {
		s.metrics.hits.Add(1)
		return m.Clone(), true, nil
	}
	s.metrics.misses.Add(1)

	defer s.lock(hash)()
	// a writer may have filled the entry while we waited
	if m, ok := s.cache.Get(hash); ok {
		return m.Clone(), true, nil
	}
	s.metrics.originReads.Add(1)
	m, ok, err := s.origin.Get(ctx, hash)
	if err != nil {
		s.metrics.originReadErr.Add(1)
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	s.cache.Add(hash, m.Clone())
	return m, true, nil
}

func (s *CachedStore) Save(ctx context.Context, m *mapping.Mapping) error {
	if m == nil {
		return s.origin.Save(ctx, m)
	}
	hash := strings.TrimSpace(m.TemplateHash)
	defer s.lock(hash)()

	s.metrics.originWrites.Add(1)
	if err := s.origin.Save(ctx, m); err != nil {
		s.metrics.originWriteErr.Add(1)
		s.cache.Remove(hash)
		return err
	}
	s.cache.Add(hash, m.Clone())
	return nil
}

func (s *CachedStore) Correct(ctx context.Context, hash, elementID string, t matcher.ElementType) (bool, error) {
	hash = strings.TrimSpace(hash)
	defer s.lock(hash)()

	s.metrics.originWrites.Add(1)
	ok, err := s.origin.Correct(ctx, hash, elementID, t)
	if err != nil {
		s.metrics.originWriteErr.Add(1)
	}
	if ok || err != nil {
		s.cache.Remove(hash)
	}
	return ok, err
}

func (s *CachedStore) Delete(ctx context.Context, hash string) (bool, error) {
	hash = strings.TrimSpace(hash)
	defer s.lock(hash)()
	s.cache.Remove(hash)
	s.metrics.originWrites.Add(1)
	ok, err := s.origin.Delete(ctx, hash)
	if err != nil {
		s.metrics.originWriteErr.Add(1)
	}
	return ok, err
}

func (s *CachedStore) Exists(ctx context.Context, hash string) (bool, error) {
	if s.cache.Contains(strings.TrimSpace(hash)) {
		s.metrics.hits.Add(1)
		return true, nil
	}
	s.metrics.originReads.Add(1)
	return s.origin.Exists(ctx, hash)
}

// List always reads the origin; summaries are cheap and change with every
// save.
func (s *CachedStore) List(ctx context.Context) ([]mapping.Summary, error) {
	s.metrics.originReads.Add(1)
	out, err := s.origin.List(ctx)
	if err != nil {
		s.metrics.originReadErr.Add(1)
	}
	return out, err
}

func (s *CachedStore) Metrics() MetricsSnapshot {
	if s == nil {
		return MetricsSnapshot{}
	}
	return s.metrics.snapshot()
}
