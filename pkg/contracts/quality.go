package contracts

import "time"

// Citation is a piece of evidence backing a claim in an artifact.
// Field names follow the artifact wire format produced by research tooling.
type Citation struct {
	Claim            string  `json:"claim,omitempty"`
	Passage          string  `json:"passage,omitempty"`
	URL              string  `json:"url,omitempty"`
	Confidence       float64 `json:"confidence"`
	SourceArtifactID string  `json:"sourceArtifactId,omitempty"`
}

// Orchestration is the metadata supplied by the multi-generator consensus
// aggregator. ConsensusScore is nil when only a single generator ran.
type Orchestration struct {
	ConsensusScore   *float64 `json:"consensusScore,omitempty"`
	GeneratorCount   int      `json:"generatorCount,omitempty"`
	AlternativeIdeas []string `json:"alternativeIdeas,omitempty"`
}

// Consensus returns the consensus score and whether one was supplied.
func (o *Orchestration) Consensus() (float64, bool) {
	if o == nil || o.ConsensusScore == nil {
		return 0, false
	}
	return *o.ConsensusScore, true
}

// DimensionName identifies one of the five quality dimensions.
type DimensionName string

const (
	DimensionEvidenceCoverage DimensionName = "evidence_coverage"
	DimensionFactualAccuracy  DimensionName = "factual_accuracy"
	DimensionCompleteness     DimensionName = "completeness"
	DimensionCitationQuality  DimensionName = "citation_quality"
	DimensionReasoningDepth   DimensionName = "reasoning_depth"
)

// QualityDimension is one weighted component of a QualityScore.
// Score is in [0, 10].
type QualityDimension struct {
	Name     DimensionName `json:"name"`
	Score    float64       `json:"score"`
	Weight   float64       `json:"weight"`
	Feedback string        `json:"feedback"`
}

// QualityTier buckets the overall score.
type QualityTier string

const (
	TierExcellent  QualityTier = "excellent"
	TierGood       QualityTier = "good"
	TierAcceptable QualityTier = "acceptable"
	TierPoor       QualityTier = "poor"
	TierCritical   QualityTier = "critical"
)

// TierFor maps an overall score in [0, 100] to its tier.
func TierFor(overall int) QualityTier {
	switch {
	case overall >= 90:
		return TierExcellent
	case overall >= 85:
		return TierGood
	case overall >= 70:
		return TierAcceptable
	case overall >= 50:
		return TierPoor
	default:
		return TierCritical
	}
}

// ProductionReadyThreshold is the minimum overall score of a production-ready artifact.
const ProductionReadyThreshold = 85

// QualityScore is the computed quality of one artifact.
// Overall = round(sum(score_i * weight_i * 10)).
type QualityScore struct {
	Phase           string             `json:"phase"`
	Overall         int                `json:"overall"`
	Tier            QualityTier        `json:"tier"`
	ProductionReady bool               `json:"production_ready"`
	Dimensions      []QualityDimension `json:"dimensions"`
	EvaluatorKind   string             `json:"evaluator_kind"`
	Timestamp       time.Time          `json:"timestamp"`
}

// Dimension returns the named dimension, if present.
func (q *QualityScore) Dimension(name DimensionName) (QualityDimension, bool) {
	for _, d := range q.Dimensions {
		if d.Name == name {
			return d, true
		}
	}
	return QualityDimension{}, false
}
