// Package admission runs one phase artifact through the gate: it snapshots
// the artifact, evaluates it, records the verdict on the audit chain, opens
// the escalation and unknowns the verdict calls for, and tells the pipeline
// whether to advance, pause or halt.
package admission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Mindburn-Labs/plangate/pkg/artifacts"
	"github.com/Mindburn-Labs/plangate/pkg/canonicalize"
	"github.com/Mindburn-Labs/plangate/pkg/contracts"
	"github.com/Mindburn-Labs/plangate/pkg/escalation"
	"github.com/Mindburn-Labs/plangate/pkg/evaluator"
	"github.com/Mindburn-Labs/plangate/pkg/observability"
	"github.com/Mindburn-Labs/plangate/pkg/store"
	"github.com/Mindburn-Labs/plangate/pkg/unknowns"
)

// ErrInvalidSubmission is returned for submissions the gate cannot process.
var ErrInvalidSubmission = errors.New("admission: invalid submission")

// GateActor is the audit actor when a submission names no operator.
const GateActor = "plangate"

// Outcome tells the pipeline what to do next.
type Outcome string

const (
	OutcomeAdvance Outcome = "advance"
	OutcomePause   Outcome = "pause"
	OutcomeHalt    Outcome = "halt"
)

// Recorder appends audit events.
type Recorder interface {
	Record(ctx context.Context, tenantID, actorID string, eventType contracts.AuditEventType, data any) error
}

// Submission is one artifact offered to the gate.
type Submission struct {
	TenantID      string
	RunID         string
	Phase         string
	OperatorID    string
	Artifact      any
	Orchestration *contracts.Orchestration
	// Citations overrides the artifact's own citations when non-nil.
	Citations []contracts.Citation
}

// Decision is the gate's answer for one submission.
type Decision struct {
	ID             string                `json:"id"`
	TenantID       string                `json:"tenant_id,omitempty"`
	RunID          string                `json:"run_id"`
	Phase          string                `json:"phase"`
	SnapshotDigest string                `json:"snapshot_digest"`
	Result         evaluator.Result      `json:"result"`
	Outcome        Outcome               `json:"outcome"`
	Escalation     *contracts.Escalation `json:"escalation,omitempty"`
	Unknowns       []*contracts.Unknown  `json:"unknowns,omitempty"`
	DecidedAt      time.Time             `json:"decided_at"`
}

// Controller wires the evaluator to the gate's stateful collaborators.
// Collaborators left unset are skipped.
type Controller struct {
	evaluator        *evaluator.Evaluator
	escalations      *escalation.Manager
	unknowns         *unknowns.Tracker
	audit            Recorder
	snapshots        *artifacts.Snapshots
	metrics          *observability.GateMetrics
	tracer           trace.Tracer
	escalateOptional bool
	clock            func() time.Time
	logger           *slog.Logger
}

// NewController creates a controller around ev.
func NewController(ev *evaluator.Evaluator) *Controller {
	return &Controller{
		evaluator: ev,
		tracer:    otel.Tracer(observability.InstrumentationName),
		clock:     time.Now,
		logger:    slog.Default().With("component", "admission"),
	}
}

func (c *Controller) WithEscalations(m *escalation.Manager) *Controller {
	c.escalations = m
	return c
}

func (c *Controller) WithUnknowns(t *unknowns.Tracker) *Controller {
	c.unknowns = t
	return c
}

func (c *Controller) WithAudit(r Recorder) *Controller {
	c.audit = r
	return c
}

func (c *Controller) WithSnapshots(s *artifacts.Snapshots) *Controller {
	c.snapshots = s
	return c
}

func (c *Controller) WithMetrics(m *observability.GateMetrics) *Controller {
	c.metrics = m
	return c
}

func (c *Controller) WithTracer(t trace.Tracer) *Controller {
	c.tracer = t
	return c
}

// WithEscalateOptional opens a low-priority escalation for optional reviews.
func (c *Controller) WithEscalateOptional(on bool) *Controller {
	c.escalateOptional = on
	return c
}

// WithClock overrides the clock for deterministic testing.
func (c *Controller) WithClock(clock func() time.Time) *Controller {
	c.clock = clock
	return c
}

func (c *Controller) WithLogger(l *slog.Logger) *Controller {
	c.logger = l.With("component", "admission")
	return c
}

// escalationPriority maps a review action to the priority of the
// escalation it opens, or "" when it opens none.
func (c *Controller) escalationPriority(a contracts.ReviewAction) contracts.EscalationPriority {
	switch a {
	case contracts.ReviewBlocked:
		return contracts.EscalationPriorityUrgent
	case contracts.ReviewRequired:
		return contracts.EscalationPriorityHigh
	case contracts.ReviewOptional:
		if c.escalateOptional {
			return contracts.EscalationPriorityLow
		}
	}
	return ""
}

// Admit runs sub through the gate. A storage failure aborts admission at
// the failing step and is returned; steps after it do not run.
func (c *Controller) Admit(ctx context.Context, sub Submission) (dec *Decision, err error) {
	if sub.RunID == "" {
		return nil, fmt.Errorf("%w: run id is required", ErrInvalidSubmission)
	}
	start := c.clock()
	ctx, span := observability.StartSpan(ctx, c.tracer, "admission.admit",
		observability.AttrTenant.String(sub.TenantID),
		observability.AttrPhase.String(sub.Phase),
		attribute.String("plangate.run_id", sub.RunID),
	)
	step := "snapshot"
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, step)
			if c.metrics != nil {
				c.metrics.RecordFailure(ctx, step, store.IsTransient(err))
			}
		}
		span.End()
	}()

	dec = &Decision{
		ID:       uuid.New().String(),
		TenantID: sub.TenantID,
		RunID:    sub.RunID,
		Phase:    sub.Phase,
	}

	if dec.SnapshotDigest, err = c.snapshot(ctx, sub.Artifact); err != nil {
		return nil, err
	}

	step = "evaluate"
	res := c.evaluator.Evaluate(evaluator.Context{
		Phase:         sub.Phase,
		Artifact:      sub.Artifact,
		Orchestration: sub.Orchestration,
		Citations:     sub.Citations,
	})
	dec.Result = res
	if res.Phase != "" {
		dec.Phase = res.Phase
	}
	span.SetAttributes(
		observability.AttrAction.String(string(res.ReviewAction)),
		observability.AttrTier.String(string(res.Score.Tier)),
		attribute.Int("plangate.overall", res.Score.Overall),
	)
	if c.metrics != nil {
		c.metrics.RecordEvaluation(ctx, dec.Phase, string(res.ReviewAction), string(res.Score.Tier), res.Score.Overall)
	}

	step = "audit"
	if err = c.record(ctx, sub, dec); err != nil {
		return nil, err
	}

	step = "escalate"
	if p := c.escalationPriority(res.ReviewAction); p != "" && c.escalations != nil {
		dec.Escalation, err = c.escalations.Create(ctx, escalation.CreateInput{
			DecisionID:     dec.ID,
			TenantID:       sub.TenantID,
			RunID:          sub.RunID,
			Phase:          dec.Phase,
			FromOperatorID: actor(sub),
			Reason:         escalationReason(res),
			Priority:       p,
		})
		if err != nil {
			return nil, err
		}
		if c.metrics != nil {
			c.metrics.RecordEscalation(ctx, string(p))
		}
	}

	step = "unknowns"
	if c.unknowns != nil {
		for _, in := range extractUnknowns(sub.Artifact) {
			in.TenantID = sub.TenantID
			in.RunID = sub.RunID
			in.Phase = dec.Phase
			u, err := c.unknowns.Create(ctx, in)
			if errors.Is(err, unknowns.ErrInvalidInput) {
				c.logger.WarnContext(ctx, "skipping malformed unknown", "run_id", sub.RunID, "error", err)
				continue
			}
			if err != nil {
				return nil, err
			}
			dec.Unknowns = append(dec.Unknowns, u)
			if c.metrics != nil {
				c.metrics.RecordUnknown(ctx, string(u.Priority))
			}
		}
	}

	dec.Outcome = outcome(res.ReviewAction, dec.Escalation, dec.Unknowns)
	dec.DecidedAt = c.clock().UTC()
	span.SetAttributes(observability.AttrOutcome.String(string(dec.Outcome)))
	if c.metrics != nil {
		c.metrics.RecordOutcome(ctx, dec.Phase, string(dec.Outcome), dec.DecidedAt.Sub(start))
	}
	c.logger.InfoContext(ctx, "artifact admitted",
		"decision_id", dec.ID, "run_id", sub.RunID, "phase", dec.Phase,
		"overall", res.Score.Overall, "action", res.ReviewAction, "outcome", dec.Outcome)
	return dec, nil
}

// snapshot returns the artifact's content digest. An artifact with no
// canonical form gets an empty digest; the evaluator still grades it.
func (c *Controller) snapshot(ctx context.Context, artifact any) (string, error) {
	var (
		snap *canonicalize.Snapshot
		err  error
	)
	if c.snapshots != nil {
		snap, err = c.snapshots.Save(ctx, artifact)
	} else {
		snap, err = canonicalize.Canonicalize(artifact)
	}
	if errors.Is(err, canonicalize.ErrNotCanonical) {
		c.logger.WarnContext(ctx, "artifact not snapshotted", "error", err)
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("snapshot artifact: %w", err)
	}
	return snap.Digest, nil
}

func (c *Controller) record(ctx context.Context, sub Submission, dec *Decision) error {
	if c.audit == nil {
		return nil
	}
	res := dec.Result
	data := map[string]any{
		"decision_id": dec.ID,
		"run_id":      sub.RunID,
		"phase":       dec.Phase,
		"snapshot":    dec.SnapshotDigest,
		"overall":     res.Score.Overall,
		"tier":        res.Score.Tier,
		"action":      res.ReviewAction,
		"reasons":     res.Reasons,
	}
	if err := c.audit.Record(ctx, sub.TenantID, actor(sub), contracts.AuditEventGateEvaluated, data); err != nil {
		return fmt.Errorf("record gate decision %s: %w", dec.ID, err)
	}
	return nil
}

// CancelRun marks the open escalations and unknowns of a cancelled run as
// orphaned and records the cancellation.
func (c *Controller) CancelRun(ctx context.Context, tenantID, runID, actorID string) (orphanedEscalations, orphanedUnknowns int, err error) {
	if runID == "" {
		return 0, 0, fmt.Errorf("%w: run id is required", ErrInvalidSubmission)
	}
	ctx, span := observability.StartSpan(ctx, c.tracer, "admission.cancel_run",
		observability.AttrTenant.String(tenantID),
		attribute.String("plangate.run_id", runID),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "cancel run")
		}
		span.End()
	}()
	if c.escalations != nil {
		if orphanedEscalations, err = c.escalations.MarkRunOrphaned(ctx, runID); err != nil {
			return orphanedEscalations, 0, err
		}
	}
	if c.unknowns != nil {
		if orphanedUnknowns, err = c.unknowns.MarkRunOrphaned(ctx, runID); err != nil {
			return orphanedEscalations, orphanedUnknowns, err
		}
	}
	if c.audit != nil {
		if actorID == "" {
			actorID = GateActor
		}
		err = c.audit.Record(ctx, tenantID, actorID, contracts.AuditEventRunOrphaned, map[string]any{
			"run_id":      runID,
			"escalations": orphanedEscalations,
			"unknowns":    orphanedUnknowns,
		})
		if err != nil {
			return orphanedEscalations, orphanedUnknowns, fmt.Errorf("record run cancellation: %w", err)
		}
	}
	return orphanedEscalations, orphanedUnknowns, nil
}

func actor(sub Submission) string {
	if sub.OperatorID != "" {
		return sub.OperatorID
	}
	return GateActor
}

func escalationReason(res evaluator.Result) string {
	if len(res.Reasons) == 0 {
		return fmt.Sprintf("review %s for %s", res.ReviewAction, res.Phase)
	}
	return strings.Join(res.Reasons, "; ")
}

// outcome halts on a blocked artifact and pauses while a review escalation
// or a new critical or high unknown is open.
func outcome(action contracts.ReviewAction, esc *contracts.Escalation, opened []*contracts.Unknown) Outcome {
	if action == contracts.ReviewBlocked {
		return OutcomeHalt
	}
	if esc != nil && action.AtLeast(contracts.ReviewRequired) {
		return OutcomePause
	}
	for _, u := range opened {
		if u.Priority == contracts.UnknownPriorityCritical || u.Priority == contracts.UnknownPriorityHigh {
			return OutcomePause
		}
	}
	return OutcomeAdvance
}
