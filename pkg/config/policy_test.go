package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/plangate/pkg/contracts"
	"github.com/Mindburn-Labs/plangate/pkg/evaluator"
	"github.com/Mindburn-Labs/plangate/pkg/quality"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	require.NoError(t, p.Validate())
	assert.Equal(t, quality.DefaultWeights(), p.Weights)
	assert.Equal(t, evaluator.DefaultThresholds(), p.Thresholds)
	assert.False(t, p.EscalateOptional)

	empty, err := LoadPolicy("")
	require.NoError(t, err)
	assert.Equal(t, p, empty)
}

func TestLoadPolicyFile(t *testing.T) {
	p, err := LoadPolicy(filepath.Join("testdata", "strict.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 0.35, p.Weights.EvidenceCoverage)
	assert.Equal(t, 55, p.Thresholds.BlockBelow)
	assert.Equal(t, 90, p.Thresholds.OptionalBelow)
	// Omitted consensus cut-offs keep their defaults.
	assert.Equal(t, 0.7, p.Thresholds.ConsensusRequire)
	assert.True(t, p.EscalateOptional)
	require.Len(t, p.Rules, 1)
	assert.Equal(t, contracts.ReviewRequired, p.Rules[0].Action)

	gate, err := p.Build()
	require.NoError(t, err)
	id, ok := gate.Registry.Resolve("TAM Analysis")
	require.True(t, ok)
	assert.Equal(t, "market-research", id)
	assert.Equal(t, 55, gate.Evaluator.Thresholds().BlockBelow)
	assert.Equal(t, 0.35, gate.Scorer.Weights().EvidenceCoverage)
}

func TestParsePolicyRejects(t *testing.T) {
	tests := map[string]string{
		"weights sum": `
weights:
  evidence_coverage: 0.5
`,
		"threshold order": `
thresholds:
  block_below: 80
`,
		"unknown key": `
escalate_everything: true
`,
		"rule without name": `
rules:
  - expression: "true"
    action: required
`,
		"rule action": `
rules:
  - name: r
    expression: "true"
    action: maybe
`,
		"duplicate rule": `
rules:
  - {name: r, expression: "true", action: optional}
  - {name: r, expression: "false", action: optional}
`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePolicy([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestBuildRejectsBadPolicy(t *testing.T) {
	p := DefaultPolicy()
	p.Rules = []evaluator.Rule{{Name: "broken", Expression: "overall >", Action: contracts.ReviewRequired}}
	_, err := p.Build()
	assert.Error(t, err)

	p = DefaultPolicy()
	p.Aliases = map[string]string{"x": "no-such-phase"}
	_, err = p.Build()
	assert.Error(t, err)
}

func TestLoadPolicyMissingFile(t *testing.T) {
	_, err := LoadPolicy(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
