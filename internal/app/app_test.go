package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brifyai/pptx/internal/config"
	"github.com/brifyai/pptx/internal/repository/document"
)

func TestNewWithConfigFallsBackToLocalStores(t *testing.T) {
	cfg := &config.Config{
		Port:     ":0",
		Mapping:  config.MappingConfig{Dir: t.TempDir()},
		Document: config.DocumentConfig{Dir: t.TempDir(), Endpoint: "minio:9000"},
	}
	a, err := NewWithConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, a.stores.db)
	_, isDisk := a.stores.documents.(*document.DiskStore)
	assert.True(t, isDisk, "incomplete s3 config uses the disk store")
	require.NoError(t, a.Shutdown(context.Background()))
}

func TestNewDetectorDisabledWithoutKey(t *testing.T) {
	det, err := NewDetector(context.Background(), &config.Config{})
	require.NoError(t, err)
	assert.Nil(t, det)
}
