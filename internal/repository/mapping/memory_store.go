package mapping

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/brifyai/pptx/internal/mapping"
	"github.com/brifyai/pptx/internal/matcher"
)

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]*mapping.Mapping
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]*mapping.Mapping)}
}

func (s *MemoryStore) Get(_ context.Context, hash string) (*mapping.Mapping, bool, error) {
	if s == nil {
		return nil, false, fmt.Errorf("store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.data[strings.TrimSpace(hash)]
	if !ok {
		return nil, false, nil
	}
	return m.Clone(), true, nil
}

func (s *MemoryStore) Save(_ context.Context, m *mapping.Mapping) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	if m == nil {
		return fmt.Errorf("mapping is nil")
	}
	hash := strings.TrimSpace(m.TemplateHash)
	if hash == "" {
		return fmt.Errorf("template hash is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[hash] = m.Clone()
	return nil
}

func (s *MemoryStore) Correct(_ context.Context, hash, elementID string, t matcher.ElementType) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.data[strings.TrimSpace(hash)]
	if !ok {
		return false, nil
	}
	return mapping.ApplyCorrection(m, elementID, t), nil
}

func (s *MemoryStore) Delete(_ context.Context, hash string) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("store is nil")
	}
	hash = strings.TrimSpace(hash)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[hash]
	delete(s.data, hash)
	return ok, nil
}

func (s *MemoryStore) Exists(_ context.Context, hash string) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[strings.TrimSpace(hash)]
	return ok, nil
}

func (s *MemoryStore) List(_ context.Context) ([]mapping.Summary, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	s.mu.RLock()
	out := make([]mapping.Summary, 0, len(s.data))
	for _, m := range s.data {
		out = append(out, m.Summary())
	}
	s.mu.RUnlock()
	sortSummaries(out)
	return out, nil
}
