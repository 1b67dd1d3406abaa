// Package disk stores keyed blobs as files under a root directory, with a
// JSON index that survives restarts.
package disk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

type Config struct {
	Root      string
	IndexFile string
	// MaxEntries and MaxBytes of zero disable the respective limit.
	MaxEntries int
	MaxBytes   int64
	// TTL of zero keeps entries until they are deleted or evicted.
	TTL time.Duration
}

type indexEntry struct {
	File       string    `json:"file"`
	Size       int64     `json:"size"`
	ExpiresAt  time.Time `json:"expires_at,omitempty"`
	AccessedAt time.Time `json:"accessed_at"`
}

type index struct {
	Entries map[string]indexEntry `json:"entries"`
}

// BlobStore is safe for concurrent use within one process.
type BlobStore struct {
	mu sync.Mutex

	dataDir   string
	indexPath string

	maxEntries int
	maxBytes   int64
	ttl        time.Duration

	totalBytes int64
	entries    map[string]indexEntry
}

func NewBlobStore(cfg Config) (*BlobStore, error) {
	root := strings.TrimSpace(cfg.Root)
	if root == "" {
		return nil, fmt.Errorf("root is required")
	}
	indexFile := strings.TrimSpace(cfg.IndexFile)
	if indexFile == "" {
		indexFile = "index.json"
	}
	s := &BlobStore{
		dataDir:    filepath.Join(root, "data"),
		indexPath:  filepath.Join(root, indexFile),
		maxEntries: max(cfg.MaxEntries, 0),
		maxBytes:   max(cfg.MaxBytes, 0),
		ttl:        max(cfg.TTL, 0),
		entries:    map[string]indexEntry{},
	}
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return nil, err
	}
	if err := s.loadIndex(); err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	if err := s.evictLocked(time.Now()); err != nil {
		return nil, err
	}
	if err := s.persistIndexLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *BlobStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if s == nil {
		return nil, false, fmt.Errorf("store is nil")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false, fmt.Errorf("key is required")
	}

	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if s.expired(ent, now) {
		s.removeLocked(key, ent)
		return nil, false, s.persistIndexLocked()
	}
	raw, err := os.ReadFile(filepath.Join(s.dataDir, ent.File))
	if err != nil {
		if os.IsNotExist(err) {
			s.removeLocked(key, ent)
			return nil, false, s.persistIndexLocked()
		}
		return nil, false, err
	}
	ent.AccessedAt = now
	s.entries[key] = ent
	if err := s.persistIndexLocked(); err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

// Set writes value atomically (temp file + rename) and may evict older
// entries to honor the configured limits.
func (s *BlobStore) Set(_ context.Context, key string, value []byte) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("key is required")
	}

	now := time.Now()
	file := fileName(key)
	path := filepath.Join(s.dataDir, file)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeAtomic(path, value); err != nil {
		return err
	}
	if old, ok := s.entries[key]; ok {
		s.totalBytes -= old.Size
	}
	ent := indexEntry{File: file, Size: int64(len(value)), AccessedAt: now}
	if s.ttl > 0 {
		ent.ExpiresAt = now.Add(s.ttl)
	}
	s.entries[key] = ent
	s.totalBytes += ent.Size

	if err := s.evictLocked(now); err != nil {
		return err
	}
	return s.persistIndexLocked()
}

// Delete reports whether key was present.
func (s *BlobStore) Delete(_ context.Context, key string) (bool, error) {
	if s == nil {
		return false, nil
	}
	key = strings.TrimSpace(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	ent, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	s.removeLocked(key, ent)
	return true, s.persistIndexLocked()
}

// Keys lists live keys in lexical order.
func (s *BlobStore) Keys(_ context.Context) ([]string, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for k, ent := range s.entries {
		if !s.expired(ent, now) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *BlobStore) expired(ent indexEntry, now time.Time) bool {
	return !ent.ExpiresAt.IsZero() && now.After(ent.ExpiresAt)
}

func (s *BlobStore) loadIndex() error {
	raw, err := os.ReadFile(s.indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var idx index
	if err := json.Unmarshal(raw, &idx); err != nil {
		return err
	}
	if idx.Entries != nil {
		s.entries = idx.Entries
	}
	for _, ent := range s.entries {
		s.totalBytes += ent.Size
	}
	return nil
}

func (s *BlobStore) evictLocked(now time.Time) error {
	for key, ent := range s.entries {
		if s.expired(ent, now) {
			s.removeLocked(key, ent)
			continue
		}
		if _, err := os.Stat(filepath.Join(s.dataDir, ent.File)); err != nil {
			if os.IsNotExist(err) {
				s.removeLocked(key, ent)
				continue
			}
			return err
		}
	}
	for s.overLimitLocked() {
		key, ent := s.oldestLocked()
		s.removeLocked(key, ent)
	}
	return nil
}

func (s *BlobStore) overLimitLocked() bool {
	if len(s.entries) == 0 {
		return false
	}
	if s.maxEntries > 0 && len(s.entries) > s.maxEntries {
		return true
	}
	return s.maxBytes > 0 && s.totalBytes > s.maxBytes
}

func (s *BlobStore) oldestLocked() (string, indexEntry) {
	var (
		oldest string
		ent    indexEntry
		first  = true
	)
	for k, e := range s.entries {
		if first || e.AccessedAt.Before(ent.AccessedAt) || (e.AccessedAt.Equal(ent.AccessedAt) && k < oldest) {
			oldest, ent, first = k, e, false
		}
	}
	return oldest, ent
}

func (s *BlobStore) removeLocked(key string, ent indexEntry) {
	delete(s.entries, key)
	s.totalBytes = max(s.totalBytes-ent.Size, 0)
	_ = os.Remove(filepath.Join(s.dataDir, ent.File))
}

func (s *BlobStore) persistIndexLocked() error {
	raw, err := json.MarshalIndent(index{Entries: s.entries}, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(s.indexPath, raw)
}

func writeAtomic(path string, raw []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func fileName(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:]) + ".bin"
}
