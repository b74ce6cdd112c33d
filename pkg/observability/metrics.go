package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Gate attribute keys.
var (
	AttrTenant   = attribute.Key("plangate.tenant_id")
	AttrPhase    = attribute.Key("plangate.phase")
	AttrAction   = attribute.Key("plangate.review_action")
	AttrTier     = attribute.Key("plangate.quality_tier")
	AttrOutcome  = attribute.Key("plangate.outcome")
	AttrPriority = attribute.Key("plangate.priority")
	AttrStep     = attribute.Key("plangate.step")
)

// GateMetrics are the admission instruments.
type GateMetrics struct {
	evaluations metric.Int64Counter
	scores      metric.Int64Histogram
	outcomes    metric.Int64Counter
	escalations metric.Int64Counter
	unknowns    metric.Int64Counter
	failures    metric.Int64Counter
	duration    metric.Float64Histogram
}

// NewGateMetrics registers the gate instruments on meter.
func NewGateMetrics(meter metric.Meter) (*GateMetrics, error) {
	var (
		m   GateMetrics
		err error
	)
	if m.evaluations, err = meter.Int64Counter("plangate.gate.evaluations",
		metric.WithDescription("Artifacts evaluated, by phase and review action"),
		metric.WithUnit("{artifact}"),
	); err != nil {
		return nil, fmt.Errorf("evaluations counter: %w", err)
	}
	if m.scores, err = meter.Int64Histogram("plangate.gate.overall_score",
		metric.WithDescription("Overall quality score of evaluated artifacts"),
		metric.WithUnit("1"),
		metric.WithExplicitBucketBoundaries(30, 50, 70, 85, 95),
	); err != nil {
		return nil, fmt.Errorf("score histogram: %w", err)
	}
	if m.outcomes, err = meter.Int64Counter("plangate.gate.outcomes",
		metric.WithDescription("Admission outcomes: advance, pause or halt"),
		metric.WithUnit("{decision}"),
	); err != nil {
		return nil, fmt.Errorf("outcomes counter: %w", err)
	}
	if m.escalations, err = meter.Int64Counter("plangate.escalations.opened",
		metric.WithDescription("Escalations opened by the gate"),
		metric.WithUnit("{escalation}"),
	); err != nil {
		return nil, fmt.Errorf("escalations counter: %w", err)
	}
	if m.unknowns, err = meter.Int64Counter("plangate.unknowns.opened",
		metric.WithDescription("Unknowns opened from artifacts"),
		metric.WithUnit("{unknown}"),
	); err != nil {
		return nil, fmt.Errorf("unknowns counter: %w", err)
	}
	if m.failures, err = meter.Int64Counter("plangate.gate.failures",
		metric.WithDescription("Admissions aborted by a persistence failure"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, fmt.Errorf("failures counter: %w", err)
	}
	if m.duration, err = meter.Float64Histogram("plangate.gate.duration",
		metric.WithDescription("Admission latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5),
	); err != nil {
		return nil, fmt.Errorf("duration histogram: %w", err)
	}
	return &m, nil
}

// RecordEvaluation counts one evaluated artifact.
func (m *GateMetrics) RecordEvaluation(ctx context.Context, phase, action, tier string, overall int) {
	m.evaluations.Add(ctx, 1, metric.WithAttributes(AttrPhase.String(phase), AttrAction.String(action), AttrTier.String(tier)))
	m.scores.Record(ctx, int64(overall), metric.WithAttributes(AttrPhase.String(phase)))
}

// RecordOutcome counts one admission decision and its latency.
func (m *GateMetrics) RecordOutcome(ctx context.Context, phase, outcome string, elapsed time.Duration) {
	attrs := metric.WithAttributes(AttrPhase.String(phase), AttrOutcome.String(outcome))
	m.outcomes.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordEscalation counts one escalation opened by the gate.
func (m *GateMetrics) RecordEscalation(ctx context.Context, priority string) {
	m.escalations.Add(ctx, 1, metric.WithAttributes(AttrPriority.String(priority)))
}

// RecordUnknown counts one unknown opened from an artifact.
func (m *GateMetrics) RecordUnknown(ctx context.Context, priority string) {
	m.unknowns.Add(ctx, 1, metric.WithAttributes(AttrPriority.String(priority)))
}

// RecordFailure counts an admission aborted at step.
func (m *GateMetrics) RecordFailure(ctx context.Context, step string, transient bool) {
	m.failures.Add(ctx, 1, metric.WithAttributes(AttrStep.String(step), attribute.Bool("plangate.transient", transient)))
}
