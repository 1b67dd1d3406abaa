// Package document stores uploaded templates and generated presentations.
package document

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/brifyai/pptx/internal/cache/disk"
)

var ErrNotFound = errors.New("document not found")

type Store interface {
	Put(ctx context.Context, key string, content []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// TemplateKey is where an uploaded template with the given hash is kept.
func TemplateKey(hash string) string { return "templates/" + hash + ".pptx" }

// OutputKey is where a generated presentation is kept.
func OutputKey(id string) string { return "outputs/" + id + ".pptx" }

func normalizeKey(key string) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return "", fmt.Errorf("key is required")
	}
	return key, nil
}

// DiskStore keeps documents under a local directory without eviction.
type DiskStore struct {
	blobs *disk.BlobStore
}

func NewDiskStore(dir string) (*DiskStore, error) {
	blobs, err := disk.NewBlobStore(disk.Config{Root: dir})
	if err != nil {
		return nil, fmt.Errorf("open document dir: %w", err)
	}
	return &DiskStore{blobs: blobs}, nil
}

func (s *DiskStore) Put(ctx context.Context, key string, content []byte) error {
	if s == nil || s.blobs == nil {
		return fmt.Errorf("store is nil")
	}
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	return s.blobs.Set(ctx, key, content)
}

func (s *DiskStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s == nil || s.blobs == nil {
		return nil, fmt.Errorf("store is nil")
	}
	key, err := normalizeKey(key)
	if err != nil {
		return nil, err
	}
	raw, ok, err := s.blobs.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return raw, nil
}

func (s *DiskStore) Delete(ctx context.Context, key string) error {
	if s == nil || s.blobs == nil {
		return fmt.Errorf("store is nil")
	}
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	_, err = s.blobs.Delete(ctx, key)
	return err
}
