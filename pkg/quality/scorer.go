// Package quality computes the five-dimension quality score of a phase
// artifact. Scoring is a pure function of its inputs and the weights fixed
// at construction.
package quality

import (
	"math"
	"time"

	"github.com/Mindburn-Labs/plangate/pkg/canonicalize"
	"github.com/Mindburn-Labs/plangate/pkg/contracts"
	"github.com/Mindburn-Labs/plangate/pkg/schema"
)

// EvaluatorKind identifies this scorer in a QualityScore.
const EvaluatorKind = "heuristic"

// ScoringContext is everything the scorer looks at for one artifact.
type ScoringContext struct {
	Phase         string
	Artifact      any
	Orchestration *contracts.Orchestration
	// Citations overrides the citations carried by the artifact when
	// non-nil, even if empty.
	Citations []contracts.Citation
}

// Assessment bundles the score with the validation it was derived from.
type Assessment struct {
	Score      contracts.QualityScore
	Validation schema.Result
	Citations  []contracts.Citation
}

// Scorer computes QualityScores.
type Scorer struct {
	weights   Weights
	validator *schema.Validator
	clock     func() time.Time
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithWeights replaces the default weights.
func WithWeights(w Weights) Option {
	return func(s *Scorer) { s.weights = w }
}

// WithClock overrides the timestamp source for testing.
func WithClock(clock func() time.Time) Option {
	return func(s *Scorer) { s.clock = clock }
}

// NewScorer builds a scorer. validator may be nil, in which case a
// validator over the default phase registry is used.
func NewScorer(validator *schema.Validator, opts ...Option) (*Scorer, error) {
	s := &Scorer{
		weights:   DefaultWeights(),
		validator: validator,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.weights.Validate(); err != nil {
		return nil, err
	}
	if s.validator == nil {
		s.validator = schema.NewValidator(nil)
	}
	return s, nil
}

// Weights returns a copy of the scorer's weights.
func (s *Scorer) Weights() Weights {
	return s.weights
}

// Validator returns the validator used for the completeness dimension.
func (s *Scorer) Validator() *schema.Validator {
	return s.validator
}

// Score computes the QualityScore of one artifact.
func (s *Scorer) Score(ctx ScoringContext) contracts.QualityScore {
	return s.Assess(ctx).Score
}

// Assess scores the artifact and also returns the validation result and
// the citations the score was computed from.
func (s *Scorer) Assess(ctx ScoringContext) Assessment {
	decoded, decodeErr := schema.Decode(ctx.Artifact)
	data, _ := decoded.(map[string]any)

	cites := ctx.Citations
	if cites == nil {
		cites = schema.ExtractCitations(data)
	}

	var serialized string
	if decodeErr == nil {
		if b, err := canonicalize.JCS(decoded); err == nil {
			serialized = string(b)
		}
	} else if str, ok := ctx.Artifact.(string); ok {
		serialized = str
	}

	validation := s.validator.Validate(ctx.Phase, ctx.Artifact)
	phase := validation.Phase
	if phase == "" {
		phase = ctx.Phase
	}

	type dim struct {
		name     contracts.DimensionName
		score    float64
		feedback string
	}
	var dims [5]dim
	dims[0].name = contracts.DimensionEvidenceCoverage
	dims[0].score, dims[0].feedback = evidenceCoverage(cites, len(serialized))
	dims[1].name = contracts.DimensionFactualAccuracy
	dims[1].score, dims[1].feedback = factualAccuracy(ctx.Orchestration)
	dims[2].name = contracts.DimensionCompleteness
	dims[2].score, dims[2].feedback = completeness(validation)
	dims[3].name = contracts.DimensionCitationQuality
	dims[3].score, dims[3].feedback = citationQuality(cites)
	dims[4].name = contracts.DimensionReasoningDepth
	dims[4].score, dims[4].feedback = reasoningDepth(serialized, data, ctx.Orchestration)

	out := make([]contracts.QualityDimension, 0, len(dims))
	weighted := 0.0
	for _, d := range dims {
		score := clamp(d.score, 0, 10)
		w := s.weights.For(d.name)
		weighted += score * w
		out = append(out, contracts.QualityDimension{
			Name:     d.name,
			Score:    score,
			Weight:   w,
			Feedback: d.feedback,
		})
	}
	overall := int(math.Round(weighted * 10))

	return Assessment{
		Score: contracts.QualityScore{
			Phase:           phase,
			Overall:         overall,
			Tier:            contracts.TierFor(overall),
			ProductionReady: overall >= contracts.ProductionReadyThreshold,
			Dimensions:      out,
			EvaluatorKind:   EvaluatorKind,
			Timestamp:       s.clock().UTC(),
		},
		Validation: validation,
		Citations:  cites,
	}
}
