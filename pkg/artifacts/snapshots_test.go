package artifacts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotsSaveAndLoad(t *testing.T) {
	store := NewMemoryStore()
	snaps := NewSnapshots(store)
	ctx := context.Background()

	snap, err := snaps.Save(ctx, map[string]any{"b": 2, "a": 1})
	require.NoError(t, err)
	assert.Equal(t, "application/json", snap.ContentType)
	assert.Equal(t, `{"a":1,"b":2}`, string(snap.Bytes))

	// Key order does not change the address.
	other, err := snaps.Save(ctx, map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, snap.Digest, other.Digest)

	data, err := snaps.Load(ctx, snap.Digest)
	require.NoError(t, err)
	assert.Equal(t, snap.Bytes, data)
}

func TestSnapshotsDetectCorruption(t *testing.T) {
	store := NewMemoryStore()
	snaps := NewSnapshots(store)
	ctx := context.Background()

	snap, err := snaps.Save(ctx, "raw generator output")
	require.NoError(t, err)

	store.blobs[snap.Digest] = []byte("tampered")
	_, err = snaps.Load(ctx, snap.Digest)
	assert.ErrorIs(t, err, ErrDigestMismatch)

	_, err = snaps.Load(ctx, missingDigest)
	assert.ErrorIs(t, err, ErrNotFound)
}
