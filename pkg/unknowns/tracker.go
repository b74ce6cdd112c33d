// Package unknowns tracks open knowledge gaps discovered while a run moves
// through its phases, and the handoffs that carry work between phases.
//
// Unknowns move open -> investigating -> answered; handoffs move
// pending -> accepted -> completed. Both are retained after they finish.
package unknowns

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/plangate/pkg/contracts"
)

// Recorder appends audit events. *audit.Chain satisfies it.
type Recorder interface {
	Record(ctx context.Context, tenantID, actorID string, eventType contracts.AuditEventType, data any) error
}

// CreateInput describes a newly discovered unknown.
type CreateInput struct {
	TenantID string
	RunID    string
	Phase    string
	Category string
	Priority contracts.UnknownPriority
	Question string
	Context  string
}

// AnswerInput closes an unknown.
type AnswerInput struct {
	Answer          string
	AnsweredInPhase string
	AnsweredBy      string
	Confidence      *float64
}

// RunStatus counts a run's unknowns.
type RunStatus struct {
	RunID              string `json:"run_id"`
	Open               int    `json:"open"`
	Investigating      int    `json:"investigating"`
	Answered           int    `json:"answered"`
	Unresolved         int    `json:"unresolved"`
	UnresolvedCritical int    `json:"unresolved_critical"`
	Done               bool   `json:"done"`
}

// Tracker manages unknowns and handoffs.
type Tracker struct {
	store  Store
	audit  Recorder
	clock  func() time.Time
	logger *slog.Logger
}

// NewTracker creates a tracker over the given store. A nil store uses a fresh
// MemoryStore.
func NewTracker(store Store) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Tracker{
		store:  store,
		clock:  time.Now,
		logger: slog.Default().With("component", "unknowns"),
	}
}

// WithClock overrides the clock for deterministic testing.
func (t *Tracker) WithClock(clock func() time.Time) *Tracker {
	t.clock = clock
	return t
}

// WithAudit records unknown and handoff transitions in the given recorder.
func (t *Tracker) WithAudit(r Recorder) *Tracker {
	t.audit = r
	return t
}

// WithLogger replaces the tracker's logger.
func (t *Tracker) WithLogger(l *slog.Logger) *Tracker {
	t.logger = l.With("component", "unknowns")
	return t
}

// Store returns the underlying store.
func (t *Tracker) Store() Store {
	return t.store
}

// Create records an open unknown. Priority defaults to medium.
func (t *Tracker) Create(ctx context.Context, in CreateInput) (*contracts.Unknown, error) {
	switch {
	case in.RunID == "":
		return nil, fmt.Errorf("%w: run id is required", ErrInvalidInput)
	case in.Question == "":
		return nil, fmt.Errorf("%w: question is required", ErrInvalidInput)
	}
	if in.Priority == "" {
		in.Priority = contracts.UnknownPriorityMedium
	}
	if !in.Priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, in.Priority)
	}

	now := t.clock().UTC()
	u := &contracts.Unknown{
		ID:              uuid.New().String(),
		TenantID:        in.TenantID,
		RunID:           in.RunID,
		PhaseDiscovered: in.Phase,
		Category:        in.Category,
		Priority:        in.Priority,
		Status:          contracts.UnknownStatusOpen,
		Question:        in.Question,
		Context:         in.Context,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := t.store.CreateUnknown(ctx, u); err != nil {
		return nil, fmt.Errorf("create unknown: %w", err)
	}
	t.logger.InfoContext(ctx, "unknown created", "id", u.ID, "run_id", u.RunID, "priority", u.Priority)

	if err := t.record(ctx, u.TenantID, in.Phase, contracts.AuditEventUnknownCreated, map[string]any{
		"unknown_id": u.ID,
		"run_id":     u.RunID,
		"phase":      u.PhaseDiscovered,
		"priority":   string(u.Priority),
		"question":   u.Question,
	}); err != nil {
		return u, err
	}
	return u, nil
}

// Get returns the unknown with the given id.
func (t *Tracker) Get(ctx context.Context, id string) (*contracts.Unknown, error) {
	return t.store.GetUnknown(ctx, id)
}

// StartInvestigation moves an open unknown to investigating. Calling it on an
// unknown that is already under investigation is a no-op.
func (t *Tracker) StartInvestigation(ctx context.Context, id, investigator string) (*contracts.Unknown, error) {
	u, err := t.store.GetUnknown(ctx, id)
	if err != nil {
		return nil, err
	}
	switch u.Status {
	case contracts.UnknownStatusInvestigating:
		return u, nil
	case contracts.UnknownStatusAnswered:
		return nil, fmt.Errorf("investigate unknown %q in status %s: %w", id, u.Status, ErrInvalidTransition)
	}

	u.Status = contracts.UnknownStatusInvestigating
	u.InvestigatedBy = investigator
	u.UpdatedAt = t.clock().UTC()
	if err := t.store.UpdateUnknown(ctx, u, contracts.UnknownStatusOpen); err != nil {
		return nil, err
	}
	t.logger.InfoContext(ctx, "unknown under investigation", "id", id, "investigator", investigator)

	if err := t.record(ctx, u.TenantID, investigator, contracts.AuditEventUnknownInvestigating, map[string]any{
		"unknown_id": u.ID,
		"run_id":     u.RunID,
	}); err != nil {
		return u, err
	}
	return u, nil
}

// Answer resolves an open or investigating unknown.
func (t *Tracker) Answer(ctx context.Context, id string, in AnswerInput) (*contracts.Unknown, error) {
	if in.Answer == "" {
		return nil, fmt.Errorf("%w: answer is required", ErrInvalidInput)
	}
	if c := in.Confidence; c != nil && (*c < 0 || *c > 1) {
		return nil, fmt.Errorf("%w: confidence %v outside [0, 1]", ErrInvalidInput, *c)
	}
	u, err := t.store.GetUnknown(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Status.IsResolved() {
		return nil, fmt.Errorf("answer unknown %q in status %s: %w", id, u.Status, ErrInvalidTransition)
	}

	from := u.Status
	now := t.clock().UTC()
	u.Status = contracts.UnknownStatusAnswered
	u.Answer = in.Answer
	u.AnsweredInPhase = in.AnsweredInPhase
	u.AnsweredBy = in.AnsweredBy
	u.Confidence = in.Confidence
	u.AnsweredAt = &now
	u.UpdatedAt = now
	if err := t.store.UpdateUnknown(ctx, u, from); err != nil {
		return nil, err
	}
	t.logger.InfoContext(ctx, "unknown answered", "id", id, "phase", in.AnsweredInPhase)

	data := map[string]any{
		"unknown_id":        u.ID,
		"run_id":            u.RunID,
		"answered_in_phase": u.AnsweredInPhase,
	}
	if u.Confidence != nil {
		data["confidence"] = *u.Confidence
	}
	if err := t.record(ctx, u.TenantID, in.AnsweredBy, contracts.AuditEventUnknownAnswered, data); err != nil {
		return u, err
	}
	return u, nil
}

// GetUnresolved returns the run's open and investigating unknowns ordered
// critical > high > medium > low, then by creation time. When priorities are
// given only those priorities are returned.
func (t *Tracker) GetUnresolved(ctx context.Context, runID string, priorities ...contracts.UnknownPriority) ([]*contracts.Unknown, error) {
	list, err := t.store.ListUnknowns(ctx, UnknownFilter{
		RunID:      runID,
		Statuses:   []contracts.UnknownStatus{contracts.UnknownStatusOpen, contracts.UnknownStatusInvestigating},
		Priorities: priorities,
	})
	if err != nil {
		return nil, err
	}
	SortUnknowns(list)
	return list, nil
}

// RunStatus summarizes the unknowns of a run.
func (t *Tracker) RunStatus(ctx context.Context, runID string) (*RunStatus, error) {
	list, err := t.store.ListUnknowns(ctx, UnknownFilter{RunID: runID})
	if err != nil {
		return nil, err
	}
	s := &RunStatus{RunID: runID}
	for _, u := range list {
		switch u.Status {
		case contracts.UnknownStatusOpen:
			s.Open++
		case contracts.UnknownStatusInvestigating:
			s.Investigating++
		case contracts.UnknownStatusAnswered:
			s.Answered++
		}
		if !u.Status.IsResolved() {
			s.Unresolved++
			if u.Priority == contracts.UnknownPriorityCritical {
				s.UnresolvedCritical++
			}
		}
	}
	s.Done = s.Unresolved == 0
	return s, nil
}

// MarkRunOrphaned flags every unresolved unknown of a cancelled run without
// changing its status. It returns the number of unknowns flagged.
func (t *Tracker) MarkRunOrphaned(ctx context.Context, runID string) (int, error) {
	list, err := t.GetUnresolved(ctx, runID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, u := range list {
		if u.Orphaned {
			continue
		}
		err := t.store.MarkUnknownOrphaned(ctx, u.ID, t.clock().UTC(),
			contracts.UnknownStatusOpen, contracts.UnknownStatusInvestigating)
		if err != nil {
			if errors.Is(err, ErrConflict) {
				continue
			}
			return n, err
		}
		n++
	}
	if n > 0 {
		t.logger.WarnContext(ctx, "unknowns orphaned", "run_id", runID, "count", n)
	}
	return n, nil
}

func (t *Tracker) record(ctx context.Context, tenantID, actor string, event contracts.AuditEventType, data map[string]any) error {
	if t.audit == nil {
		return nil
	}
	if err := t.audit.Record(ctx, tenantID, actor, event, data); err != nil {
		t.logger.ErrorContext(ctx, "audit record failed", "event", event, "error", err)
		return fmt.Errorf("audit %s: %w", event, err)
	}
	return nil
}
