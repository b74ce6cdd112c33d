package canonicalize

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeJSONArtifact(t *testing.T) {
	a, err := Canonicalize(map[string]any{"b": 2, "a": 1})
	require.NoError(t, err)
	b, err := Canonicalize(map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)

	assert.Equal(t, "application/json", a.ContentType)
	assert.Equal(t, `{"a":1,"b":2}`, string(a.Bytes))
	assert.Equal(t, a.Digest, b.Digest)
	assert.True(t, strings.HasPrefix(a.Digest, "sha256:"))
}

func TestCanonicalizeRawForms(t *testing.T) {
	s, err := Canonicalize("```json\n{}\n```")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", s.ContentType)

	b, err := Canonicalize([]byte{0x00, 0x01})
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", b.ContentType)

	bad, err := Canonicalize(string([]byte{0xff, 0xfe}))
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", bad.ContentType)
	assert.Equal(t, []byte{0xff, 0xfe}, bad.Bytes)
	assert.Equal(t, Digest([]byte{0xff, 0xfe}), bad.Digest)
}

func TestCanonicalizeRejectsNonJSON(t *testing.T) {
	_, err := Canonicalize(map[string]any{"score": math.NaN()})
	assert.ErrorIs(t, err, ErrNotCanonical)
}

func TestPreviewTruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("é", 100)
	s, err := Canonicalize(long)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(s.Preview, "..."))
	assert.LessOrEqual(t, len(s.Preview), maxPreviewLen+3)
	assert.True(t, strings.HasPrefix(long, strings.TrimSuffix(s.Preview, "...")))
}
