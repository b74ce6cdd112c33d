package evaluator

import "fmt"

// Thresholds are the score and consensus cut-offs of the review policy.
// Scores strictly below a cut-off trigger the corresponding action.
type Thresholds struct {
	BlockBelow    int `json:"block_below" yaml:"block_below"`
	RequireBelow  int `json:"require_below" yaml:"require_below"`
	OptionalBelow int `json:"optional_below" yaml:"optional_below"`

	// ConsensusBlock only blocks when the artifact also has no citations.
	ConsensusBlock    float64 `json:"consensus_block" yaml:"consensus_block"`
	ConsensusRequire  float64 `json:"consensus_require" yaml:"consensus_require"`
	ConsensusOptional float64 `json:"consensus_optional" yaml:"consensus_optional"`
}

// DefaultThresholds returns the standard 50/70/85 and 0.5/0.7/0.9 policy.
func DefaultThresholds() Thresholds {
	return Thresholds{
		BlockBelow:        50,
		RequireBelow:      70,
		OptionalBelow:     85,
		ConsensusBlock:    0.5,
		ConsensusRequire:  0.7,
		ConsensusOptional: 0.9,
	}
}

// Validate checks that the cut-offs are ordered and in range.
func (t Thresholds) Validate() error {
	if !(0 <= t.BlockBelow && t.BlockBelow < t.RequireBelow && t.RequireBelow < t.OptionalBelow && t.OptionalBelow <= 100) {
		return fmt.Errorf("score thresholds must satisfy 0 <= block(%d) < require(%d) < optional(%d) <= 100",
			t.BlockBelow, t.RequireBelow, t.OptionalBelow)
	}
	if !(0 <= t.ConsensusBlock && t.ConsensusBlock < t.ConsensusRequire && t.ConsensusRequire < t.ConsensusOptional && t.ConsensusOptional <= 1) {
		return fmt.Errorf("consensus thresholds must satisfy 0 <= block(%v) < require(%v) < optional(%v) <= 1",
			t.ConsensusBlock, t.ConsensusRequire, t.ConsensusOptional)
	}
	return nil
}
