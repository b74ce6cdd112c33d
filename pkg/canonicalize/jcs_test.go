package canonicalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJCSSortsKeysAtEveryLevel(t *testing.T) {
	b, err := JCS(map[string]any{
		"primaryOpportunity": map[string]any{"title": "Clinic copilot", "reasoning": "x"},
		"keyRisks":           []any{"churn"},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"keyRisks":["churn"],"primaryOpportunity":{"reasoning":"x","title":"Clinic copilot"}}`, string(b))
}

func TestJCSDoesNotEscapeHTML(t *testing.T) {
	s, err := JCSString(map[string]string{"claim": "revenue < costs & growing"})
	require.NoError(t, err)
	assert.Equal(t, `{"claim":"revenue < costs & growing"}`, s)
}

func TestJCSNumberForms(t *testing.T) {
	s, err := JCSString(map[string]any{
		"tam":        4.2e9,
		"confidence": json.Number("0.950"),
		"score":      8,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"confidence":0.95,"score":8,"tam":4200000000}`, s)
}

func TestCanonicalHashIgnoresConstruction(t *testing.T) {
	type citation struct {
		URL        string  `json:"url"`
		Confidence float64 `json:"confidence"`
	}
	h1, err := CanonicalHash(citation{URL: "https://example.org", Confidence: 0.9})
	require.NoError(t, err)
	h2, err := CanonicalHash(map[string]any{"confidence": 0.9, "url": "https://example.org"})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestJCSRejectsUnmarshalable(t *testing.T) {
	_, err := JCS(map[string]any{"c": make(chan int)})
	assert.Error(t, err)
}

func TestDigest(t *testing.T) {
	assert.Equal(t,
		"sha256:2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		Digest([]byte("hello")))
}
