package artifacts

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsToFileStore(t *testing.T) {
	dir := t.TempDir()
	store, err := New(context.Background(), Config{DataDir: dir})
	require.NoError(t, err)

	fs, ok := store.(*FileStore)
	require.True(t, ok, "got %T", store)
	assert.Equal(t, filepath.Join(dir, "snapshots"), fs.baseDir)
}

func TestNewMemory(t *testing.T) {
	store, err := New(context.Background(), Config{Type: StoreTypeMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)
}

func TestNewS3MissingBucket(t *testing.T) {
	_, err := New(context.Background(), Config{Type: StoreTypeS3})
	assert.ErrorContains(t, err, "SNAPSHOT_S3_BUCKET is required")
}

func TestNewGCSMissingBucket(t *testing.T) {
	_, err := New(context.Background(), Config{Type: StoreTypeGCS})
	require.Error(t, err)
	// Builds without the gcp tag report the backend as disabled instead.
	if strings.Contains(err.Error(), "GCS storage is not enabled") {
		return
	}
	assert.ErrorContains(t, err, "SNAPSHOT_GCS_BUCKET is required")
}

func TestNewUnsupportedType(t *testing.T) {
	_, err := New(context.Background(), Config{Type: "azure"})
	assert.ErrorContains(t, err, "unsupported snapshot storage type")
}
