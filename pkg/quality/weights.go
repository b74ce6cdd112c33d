package quality

import (
	"fmt"
	"math"

	"github.com/Mindburn-Labs/plangate/pkg/contracts"
)

// WeightTolerance is how far the weight sum may drift from 1.0.
const WeightTolerance = 1e-9

// Weights are the per-dimension weights of the overall score.
// A Weights value is copied into the Scorer at construction and never
// mutated afterwards.
type Weights struct {
	EvidenceCoverage float64 `json:"evidence_coverage" yaml:"evidence_coverage"`
	FactualAccuracy  float64 `json:"factual_accuracy" yaml:"factual_accuracy"`
	Completeness     float64 `json:"completeness" yaml:"completeness"`
	CitationQuality  float64 `json:"citation_quality" yaml:"citation_quality"`
	ReasoningDepth   float64 `json:"reasoning_depth" yaml:"reasoning_depth"`
}

// DefaultWeights returns the standard 0.30/0.25/0.20/0.15/0.10 split.
func DefaultWeights() Weights {
	return Weights{
		EvidenceCoverage: 0.30,
		FactualAccuracy:  0.25,
		Completeness:     0.20,
		CitationQuality:  0.15,
		ReasoningDepth:   0.10,
	}
}

// For returns the weight of the named dimension.
func (w Weights) For(name contracts.DimensionName) float64 {
	switch name {
	case contracts.DimensionEvidenceCoverage:
		return w.EvidenceCoverage
	case contracts.DimensionFactualAccuracy:
		return w.FactualAccuracy
	case contracts.DimensionCompleteness:
		return w.Completeness
	case contracts.DimensionCitationQuality:
		return w.CitationQuality
	case contracts.DimensionReasoningDepth:
		return w.ReasoningDepth
	}
	return 0
}

// Sum returns the total weight.
func (w Weights) Sum() float64 {
	return w.EvidenceCoverage + w.FactualAccuracy + w.Completeness + w.CitationQuality + w.ReasoningDepth
}

// Validate checks that every weight is in [0, 1] and that they sum to 1.
func (w Weights) Validate() error {
	for _, name := range dimensionOrder {
		v := w.For(name)
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("weight %s=%v out of range [0,1]", name, v)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1) > WeightTolerance {
		return fmt.Errorf("weights sum to %v, want 1.0", sum)
	}
	return nil
}

var dimensionOrder = []contracts.DimensionName{
	contracts.DimensionEvidenceCoverage,
	contracts.DimensionFactualAccuracy,
	contracts.DimensionCompleteness,
	contracts.DimensionCitationQuality,
	contracts.DimensionReasoningDepth,
}
