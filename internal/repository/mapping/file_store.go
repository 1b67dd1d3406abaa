package mapping

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/brifyai/pptx/internal/cache/disk"
	"github.com/brifyai/pptx/internal/mapping"
	"github.com/brifyai/pptx/internal/matcher"
)

// FileStore keeps each mapping as a JSON blob on disk.
type FileStore struct {
	// mu serializes read-modify-write in Correct against Save.
	mu    sync.Mutex
	blobs *disk.BlobStore
}

func NewFileStore(dir string) (*FileStore, error) {
	blobs, err := disk.NewBlobStore(disk.Config{Root: dir, IndexFile: "mappings.json"})
	if err != nil {
		return nil, fmt.Errorf("open mapping dir: %w", err)
	}
	return &FileStore{blobs: blobs}, nil
}

func (s *FileStore) Get(ctx context.Context, hash string) (*mapping.Mapping, bool, error) {
	if s == nil || s.blobs == nil {
		return nil, false, fmt.Errorf("store is nil")
	}
	return s.read(ctx, strings.TrimSpace(hash))
}

func (s *FileStore) read(ctx context.Context, hash string) (*mapping.Mapping, bool, error) {
	if hash == "" {
		return nil, false, nil
	}
	raw, ok, err := s.blobs.Get(ctx, hash)
	if err != nil || !ok {
		return nil, false, err
	}
	var m mapping.Mapping
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false, fmt.Errorf("decode mapping %s: %w", hash, err)
	}
	return &m, true, nil
}

func (s *FileStore) write(ctx context.Context, m *mapping.Mapping) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return s.blobs.Set(ctx, m.TemplateHash, raw)
}

func (s *FileStore) Save(ctx context.Context, m *mapping.Mapping) error {
	if s == nil || s.blobs == nil {
		return fmt.Errorf("store is nil")
	}
	if m == nil {
		return fmt.Errorf("mapping is nil")
	}
	if strings.TrimSpace(m.TemplateHash) == "" {
		return fmt.Errorf("template hash is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(ctx, m)
}

func (s *FileStore) Correct(ctx context.Context, hash, elementID string, t matcher.ElementType) (bool, error) {
	if s == nil || s.blobs == nil {
		return false, fmt.Errorf("store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok, err := s.read(ctx, strings.TrimSpace(hash))
	if err != nil || !ok {
		return false, err
	}
	if !mapping.ApplyCorrection(m, elementID, t) {
		return false, nil
	}
	if err := s.write(ctx, m); err != nil {
		return false, err
	}
	return true, nil
}

func (s *FileStore) Delete(ctx context.Context, hash string) (bool, error) {
	if s == nil || s.blobs == nil {
		return false, fmt.Errorf("store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blobs.Delete(ctx, strings.TrimSpace(hash))
}

func (s *FileStore) Exists(ctx context.Context, hash string) (bool, error) {
	_, ok, err := s.Get(ctx, hash)
	return ok, err
}

func (s *FileStore) List(ctx context.Context) ([]mapping.Summary, error) {
	if s == nil || s.blobs == nil {
		return nil, fmt.Errorf("store is nil")
	}
	keys, err := s.blobs.Keys(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]mapping.Summary, 0, len(keys))
	for _, k := range keys {
		m, ok, err := s.read(ctx, k)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, m.Summary())
		}
	}
	sortSummaries(out)
	return out, nil
}
