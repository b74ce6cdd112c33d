// Package evaluator turns a quality assessment plus pipeline signals into a
// severity-ordered review action: the admission-control policy of the gate.
package evaluator

import (
	"fmt"
	"strings"

	"github.com/Mindburn-Labs/plangate/pkg/contracts"
	"github.com/Mindburn-Labs/plangate/pkg/quality"
	"github.com/Mindburn-Labs/plangate/pkg/schema"
)

// weakDimension is the score below which a dimension gets a recommendation.
const weakDimension = 7.0

// Context is the input of one evaluation.
type Context = quality.ScoringContext

// Result is the verdict on one artifact.
type Result struct {
	Phase            string                 `json:"phase"`
	Score            contracts.QualityScore `json:"score"`
	ReviewAction     contracts.ReviewAction `json:"review_action"`
	AutoApproved     bool                   `json:"auto_approved"`
	Reasons          []string               `json:"reasons"`
	Recommendations  []string               `json:"recommendations"`
	Valid            bool                   `json:"valid"`
	ValidationErrors []string               `json:"validation_errors,omitempty"`
	CitationCount    int                    `json:"citation_count"`
	Consensus        *float64               `json:"consensus,omitempty"`
	EvidenceBearing  bool                   `json:"evidence_bearing"`
}

// BatchResult summarizes EvaluateBatch. AutoApproved, Blocked and
// FlaggedForReview always sum to Total.
type BatchResult struct {
	Total            int      `json:"total"`
	AutoApproved     int      `json:"auto_approved"`
	Blocked          int      `json:"blocked"`
	FlaggedForReview int      `json:"flagged_for_review"`
	Results          []Result `json:"results"`
}

// Evaluator applies the review policy. It is immutable after construction
// and safe for concurrent use.
type Evaluator struct {
	scorer     *quality.Scorer
	thresholds Thresholds
	rules      []compiledRule
}

// Option configures an Evaluator.
type Option func(*config)

type config struct {
	thresholds Thresholds
	rules      []Rule
}

// WithThresholds replaces the default thresholds.
func WithThresholds(t Thresholds) Option {
	return func(c *config) { c.thresholds = t }
}

// WithRules adds CEL policy rules, evaluated in order after the built-in policy.
func WithRules(rules ...Rule) Option {
	return func(c *config) { c.rules = append(c.rules, rules...) }
}

// New builds an evaluator over scorer.
func New(scorer *quality.Scorer, opts ...Option) (*Evaluator, error) {
	if scorer == nil {
		return nil, fmt.Errorf("evaluator requires a scorer")
	}
	c := &config{thresholds: DefaultThresholds()}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.thresholds.Validate(); err != nil {
		return nil, err
	}
	rules, err := compileRules(c.rules)
	if err != nil {
		return nil, err
	}
	return &Evaluator{scorer: scorer, thresholds: c.thresholds, rules: rules}, nil
}

// Thresholds returns the evaluator's thresholds.
func (e *Evaluator) Thresholds() Thresholds {
	return e.thresholds
}

type verdict struct {
	action  contracts.ReviewAction
	reasons []string
}

func (v *verdict) raise(action contracts.ReviewAction, reason string) {
	v.action = contracts.MaxReviewAction(v.action, action)
	v.reasons = append(v.reasons, reason)
}

// Evaluate scores the artifact and decides its review action. The most
// severe triggered condition wins; every triggered condition is listed in
// Reasons.
func (e *Evaluator) Evaluate(ctx Context) Result {
	a := e.scorer.Assess(ctx)
	score := a.Score
	t := e.thresholds
	registry := e.scorer.Validator().Registry()

	cons, hasCons := ctx.Orchestration.Consensus()
	cites := len(a.Citations)
	evidenceBearing := registry.IsEvidenceBearing(ctx.Phase)
	valid := a.Validation.Valid

	v := &verdict{action: contracts.ReviewNone}

	switch {
	case score.Overall < t.BlockBelow:
		v.raise(contracts.ReviewBlocked, fmt.Sprintf("overall score %d below %d", score.Overall, t.BlockBelow))
	case score.Overall < t.RequireBelow:
		v.raise(contracts.ReviewRequired, fmt.Sprintf("overall score %d below %d", score.Overall, t.RequireBelow))
	case score.Overall < t.OptionalBelow:
		v.raise(contracts.ReviewOptional, fmt.Sprintf("overall score %d below production-ready %d", score.Overall, t.OptionalBelow))
	}

	if evidenceBearing && cites == 0 {
		v.raise(contracts.ReviewBlocked, "no citations on evidence-bearing phase")
	}

	if hasCons {
		switch {
		case cons < t.ConsensusBlock && cites == 0:
			v.raise(contracts.ReviewBlocked, fmt.Sprintf("hallucination risk: low consensus (%.2f) with no citations", cons))
		case cons < t.ConsensusBlock:
			v.raise(contracts.ReviewRequired, fmt.Sprintf("very low consensus (%.2f) despite %d citations", cons, cites))
		case cons < t.ConsensusRequire:
			v.raise(contracts.ReviewRequired, fmt.Sprintf("low consensus (%.2f)", cons))
		case cons < t.ConsensusOptional:
			v.raise(contracts.ReviewOptional, fmt.Sprintf("moderate consensus (%.2f)", cons))
		}
	}

	if !valid {
		v.raise(contracts.ReviewBlocked, invalidReason(a.Validation))
	}

	if len(e.rules) > 0 {
		vars := ruleVars(score, ctx.Phase, cons, hasCons, cites, valid, evidenceBearing)
		for _, r := range e.rules {
			matched, err := r.eval(vars)
			if err != nil {
				v.raise(contracts.ReviewRequired, fmt.Sprintf("policy rule %q failed: %v", r.Name, err))
				continue
			}
			if matched {
				v.raise(r.Action, r.reason())
			}
		}
	}

	res := Result{
		Phase:            score.Phase,
		Score:            score,
		ReviewAction:     v.action,
		AutoApproved:     v.action == contracts.ReviewNone,
		Reasons:          v.reasons,
		Recommendations:  recommendations(score, a.Validation),
		Valid:            valid,
		ValidationErrors: a.Validation.Errors(),
		CitationCount:    cites,
		EvidenceBearing:  evidenceBearing,
	}
	if res.Reasons == nil {
		res.Reasons = []string{}
	}
	if hasCons {
		c := cons
		res.Consensus = &c
	}
	return res
}

// EvaluateBatch evaluates every context and partitions the results into
// auto-approved, blocked and flagged-for-review.
func (e *Evaluator) EvaluateBatch(ctxs []Context) BatchResult {
	out := BatchResult{Total: len(ctxs), Results: make([]Result, 0, len(ctxs))}
	for _, ctx := range ctxs {
		r := e.Evaluate(ctx)
		switch r.ReviewAction {
		case contracts.ReviewNone:
			out.AutoApproved++
		case contracts.ReviewBlocked:
			out.Blocked++
		}
		out.Results = append(out.Results, r)
	}
	out.FlaggedForReview = out.Total - out.AutoApproved - out.Blocked
	return out
}

func invalidReason(res schema.Result) string {
	switch {
	case res.HasKind(schema.KindUnknownPhase):
		return res.Issues[0].Message
	case res.HasKind(schema.KindGrounding):
		return "grounding failed: " + res.Issues[0].Message
	default:
		return fmt.Sprintf("%d validation errors", len(res.Issues))
	}
}

func ruleVars(score contracts.QualityScore, phase string, cons float64, hasCons bool, cites int, valid, evidence bool) map[string]any {
	dims := make(map[string]float64, len(score.Dimensions))
	for _, d := range score.Dimensions {
		dims[string(d.Name)] = d.Score
	}
	if !hasCons {
		cons = -1
	}
	if score.Phase != "" {
		phase = score.Phase
	}
	return map[string]any{
		"phase":            phase,
		"overall":          int64(score.Overall),
		"consensus":        cons,
		"has_consensus":    hasCons,
		"citations":        int64(cites),
		"valid":            valid,
		"evidence_bearing": evidence,
		"dimensions":       dims,
	}
}

func recommendations(score contracts.QualityScore, validation schema.Result) []string {
	out := []string{}
	for _, d := range score.Dimensions {
		if d.Score >= weakDimension {
			continue
		}
		switch d.Name {
		case contracts.DimensionEvidenceCoverage:
			out = append(out, "Add citations with verifiable http(s) sources for the key claims")
		case contracts.DimensionFactualAccuracy:
			out = append(out, "Cross-check facts by regenerating with additional independent generators")
		case contracts.DimensionCompleteness:
			if !validation.Valid {
				out = append(out, "Fix validation errors: "+strings.Join(firstPaths(validation, 3), ", "))
			} else {
				out = append(out, "Populate empty or placeholder fields")
			}
		case contracts.DimensionCitationQuality:
			out = append(out, "Replace low-confidence citations with primary sources")
		case contracts.DimensionReasoningDepth:
			out = append(out, "Expand the reasoning behind the primary recommendation")
		}
	}
	return out
}

func firstPaths(res schema.Result, n int) []string {
	var out []string
	for _, i := range res.Issues {
		if len(out) == n {
			break
		}
		out = append(out, i.Path)
	}
	return out
}
