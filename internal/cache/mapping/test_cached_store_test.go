package mapping

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brifyai/pptx/internal/mapping"
	"github.com/brifyai/pptx/internal/matcher"
	mappingrepo "github.com/brifyai/pptx/internal/repository/mapping"
)

type fakeOrigin struct {
	*mappingrepo.MemoryStore

	mu          sync.Mutex
	getCalls    int
	saveCalls   int
	failSave    bool
	inCorrect   map[string]int
	maxParallel int
}

func newFakeOrigin() *fakeOrigin {
	return &fakeOrigin{MemoryStore: mappingrepo.NewMemoryStore(), inCorrect: map[string]int{}}
}

func (f *fakeOrigin) Get(ctx context.Context, hash string) (*mapping.Mapping, bool, error) {
	f.mu.Lock()
	f.getCalls++
	f.mu.Unlock()
	return f.MemoryStore.Get(ctx, hash)
}

func (f *fakeOrigin) Save(ctx context.Context, m *mapping.Mapping) error {
	f.mu.Lock()
	f.saveCalls++
	fail := f.failSave
	f.mu.Unlock()
	if fail {
		return errors.New("save failed")
	}
	return f.MemoryStore.Save(ctx, m)
}

func (f *fakeOrigin) Correct(ctx context.Context, hash, id string, t matcher.ElementType) (bool, error) {
	f.mu.Lock()
	f.inCorrect[hash]++
	if f.inCorrect[hash] > f.maxParallel {
		f.maxParallel = f.inCorrect[hash]
	}
	f.mu.Unlock()

	time.Sleep(time.Millisecond)
	ok, err := f.MemoryStore.Correct(ctx, hash, id, t)

	f.mu.Lock()
	f.inCorrect[hash]--
	f.mu.Unlock()
	return ok, err
}

func sampleMapping(hash string) *mapping.Mapping {
	shape := 4
	return &mapping.Mapping{
		TemplateHash: hash,
		TemplateID:   "tpl",
		Elements:     []mapping.Element{{ID: "element_1", Type: matcher.Body, ShapeID: &shape}},
		ShapeMapping: map[matcher.ElementType]int{matcher.Body: 4},
	}
}

func TestCachedStoreReadThroughAndMetrics(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOrigin()
	require.NoError(t, origin.MemoryStore.Save(ctx, sampleMapping("h1")))
	store := NewCachedStore(origin, CacheConfig{TTL: time.Minute, MaxEntries: 8})

	first, ok, err := store.Get(ctx, "h1")
	require.NoError(t, err)
	require.True(t, ok)
	second, ok, err := store.Get(ctx, "h1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, origin.getCalls)

	m := store.Metrics()
	assert.Equal(t, MetricsSnapshot{Hits: 1, Misses: 1, OriginReads: 1}, m)

	// callers cannot mutate the cached copy
	second.Elements[0].Type = matcher.Unknown
	third, _, _ := store.Get(ctx, "h1")
	assert.Equal(t, matcher.Body, third.Elements[0].Type)

	_, ok, err = store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCachedStoreWriteThrough(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOrigin()
	store := NewCachedStore(origin, DefaultCacheConfig())

	require.NoError(t, store.Save(ctx, sampleMapping("h1")))
	got, ok, err := store.Get(ctx, "h1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "tpl", got.TemplateID)
	assert.Equal(t, 0, origin.getCalls)

	origin.failSave = true
	assert.Error(t, store.Save(ctx, sampleMapping("h2")))
	_, ok, err = store.Get(ctx, "h2")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, uint64(1), store.Metrics().OriginWriteErr)
}

func TestCachedStoreCorrectInvalidates(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOrigin()
	store := NewCachedStore(origin, DefaultCacheConfig())
	require.NoError(t, store.Save(ctx, sampleMapping("h1")))

	ok, err := store.Correct(ctx, "h1", "element_1", matcher.Title)
	require.NoError(t, err)
	require.True(t, ok)

	got, _, err := store.Get(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, matcher.Title, got.Elements[0].Type)
	assert.True(t, got.Elements[0].UserCorrected)
	assert.Equal(t, map[matcher.ElementType]int{matcher.Title: 4}, got.ShapeMapping)

	ok, err = store.Correct(ctx, "h1", "nope", matcher.Title)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCachedStoreSerializesSameHash(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOrigin()
	store := NewCachedStore(origin, DefaultCacheConfig())
	require.NoError(t, store.Save(ctx, sampleMapping("h1")))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Correct(ctx, "h1", "element_1", matcher.Footer)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, origin.maxParallel)
}

func TestCachedStoreTTL(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOrigin()
	require.NoError(t, origin.MemoryStore.Save(ctx, sampleMapping("h1")))
	store := NewCachedStore(origin, CacheConfig{TTL: 10 * time.Millisecond, MaxEntries: 8})

	_, _, err := store.Get(ctx, "h1")
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)
	_, _, err = store.Get(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, 2, origin.getCalls)
}

func TestCachedStoreDelete(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOrigin()
	store := NewCachedStore(origin, DefaultCacheConfig())
	require.NoError(t, store.Save(ctx, sampleMapping("h1")))

	deleted, err := store.Delete(ctx, "h1")
	require.NoError(t, err)
	assert.True(t, deleted)
	exists, err := store.Exists(ctx, "h1")
	require.NoError(t, err)
	assert.False(t, exists)
	_, ok, _ := store.Get(ctx, "h1")
	assert.False(t, ok)
}
