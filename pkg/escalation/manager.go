// Package escalation provides the Escalation Manager: the human-review queue
// for gate decisions that cannot be auto-approved.
//
// Escalations move pending -> in_review -> {resolved, rejected}. Terminal
// states are sinks and rows are never deleted, so every escalation stays
// addressable for audit after its run ends.
package escalation

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

// CreateInput describes a new escalation.
type CreateInput struct {
	DecisionID     string
	TenantID       string
	RunID          string
	Phase          string
	FromOperatorID string
	Reason         string
	Priority       contracts.EscalationPriority
}

// Manager handles the lifecycle of escalations.
type Manager struct {
	store  Store
	audit  Recorder
	clock  func() time.Time
	logger *slog.Logger
}

// NewManager creates a manager over the given store. A nil store uses a
// fresh MemoryStore.
func NewManager(store Store) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Manager{
		store:  store,
		clock:  time.Now,
		logger: slog.Default().With("component", "escalation"),
	}
}

// WithClock overrides the clock for deterministic testing.
func (m *Manager) WithClock(clock func() time.Time) *Manager {
	m.clock = clock
	return m
}

// WithAudit records every transition in the given audit recorder.
func (m *Manager) WithAudit(r Recorder) *Manager {
	m.audit = r
	return m
}

// WithLogger replaces the manager's logger.
func (m *Manager) WithLogger(l *slog.Logger) *Manager {
	m.logger = l.With("component", "escalation")
	return m
}

// Store returns the underlying store.
func (m *Manager) Store() Store {
	return m.store
}

// Create opens a pending escalation. Priority defaults to medium.
func (m *Manager) Create(ctx context.Context, in CreateInput) (*contracts.Escalation, error) {
	if in.Reason == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrInvalidInput)
	}
	if in.Priority == "" {
		in.Priority = contracts.EscalationPriorityMedium
	}
	if !in.Priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, in.Priority)
	}

	now := m.clock().UTC()
	e := &contracts.Escalation{
		ID:             uuid.New().String(),
		DecisionID:     in.DecisionID,
		TenantID:       in.TenantID,
		RunID:          in.RunID,
		Phase:          in.Phase,
		FromOperatorID: in.FromOperatorID,
		Reason:         in.Reason,
		Priority:       in.Priority,
		Status:         contracts.EscalationStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := m.store.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("create escalation: %w", err)
	}
	m.logger.InfoContext(ctx, "escalation created",
		"id", e.ID, "run_id", e.RunID, "phase", e.Phase, "priority", e.Priority)

	if err := m.record(ctx, e, in.FromOperatorID, contracts.AuditEventEscalationCreated, map[string]any{
		"decision_id": e.DecisionID,
		"phase":       e.Phase,
		"priority":    string(e.Priority),
		"reason":      e.Reason,
	}); err != nil {
		return e, err
	}
	return e, nil
}

// Get returns the escalation with the given id.
func (m *Manager) Get(ctx context.Context, id string) (*contracts.Escalation, error) {
	return m.store.Get(ctx, id)
}

// Assign binds a supervisor and moves the escalation to in_review.
//
// Assigning the current supervisor again is a no-op. Assigning a different
// supervisor to an in_review escalation reassigns it; concurrent Assign calls
// on one escalation resolve last-writer-wins.
func (m *Manager) Assign(ctx context.Context, id, supervisorID string) (*contracts.Escalation, error) {
	if supervisorID == "" {
		return nil, fmt.Errorf("%w: supervisor id is required", ErrInvalidInput)
	}
	e, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Status.IsTerminal() {
		return nil, fmt.Errorf("assign escalation %q in status %s: %w", id, e.Status, ErrInvalidTransition)
	}
	if e.Status == contracts.EscalationStatusInReview && e.ToSupervisorID == supervisorID {
		return e, nil
	}

	now := m.clock().UTC()
	e.Status = contracts.EscalationStatusInReview
	e.ToSupervisorID = supervisorID
	e.AssignedAt = &now
	e.UpdatedAt = now
	if err := m.store.Update(ctx, e, contracts.EscalationStatusPending, contracts.EscalationStatusInReview); err != nil {
		return nil, m.transitionError("assign", id, err)
	}
	m.logger.InfoContext(ctx, "escalation assigned", "id", id, "supervisor", supervisorID)

	if err := m.record(ctx, e, supervisorID, contracts.AuditEventEscalationAssigned, map[string]any{
		"supervisor_id": supervisorID,
	}); err != nil {
		return e, err
	}
	return e, nil
}

// Resolve closes a non-terminal escalation with a resolution.
func (m *Manager) Resolve(ctx context.Context, id, resolvedBy, resolution string) (*contracts.Escalation, error) {
	return m.close(ctx, id, resolvedBy, resolution, contracts.EscalationStatusResolved, contracts.AuditEventEscalationResolved)
}

// Reject closes a non-terminal escalation, recording the reason as its resolution.
func (m *Manager) Reject(ctx context.Context, id, rejectedBy, reason string) (*contracts.Escalation, error) {
	return m.close(ctx, id, rejectedBy, reason, contracts.EscalationStatusRejected, contracts.AuditEventEscalationRejected)
}

func (m *Manager) close(
	ctx context.Context,
	id, actor, resolution string,
	to contracts.EscalationStatus,
	event contracts.AuditEventType,
) (*contracts.Escalation, error) {
	e, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Status.IsTerminal() {
		return nil, fmt.Errorf("%s escalation %q in status %s: %w", to, id, e.Status, ErrInvalidTransition)
	}

	from := e.Status
	now := m.clock().UTC()
	e.Status = to
	e.Resolution = resolution
	e.ResolvedBy = actor
	e.ResolvedAt = &now
	e.UpdatedAt = now
	if err := m.store.Update(ctx, e, from); err != nil {
		return nil, m.transitionError(string(to), id, err)
	}
	m.logger.InfoContext(ctx, "escalation closed", "id", id, "status", to, "by", actor)

	if err := m.record(ctx, e, actor, event, map[string]any{
		"from":       string(from),
		"resolution": resolution,
	}); err != nil {
		return e, err
	}
	return e, nil
}

// Pending returns the tenant's pending escalations in queue order. An empty
// tenant lists every tenant.
func (m *Manager) Pending(ctx context.Context, tenantID string) ([]*contracts.Escalation, error) {
	if qs, ok := m.store.(QueueStore); ok {
		return qs.Pending(ctx, tenantID)
	}
	list, err := m.store.List(ctx, Filter{
		TenantID: tenantID,
		Statuses: []contracts.EscalationStatus{contracts.EscalationStatusPending},
	})
	if err != nil {
		return nil, err
	}
	SortQueue(list)
	return list, nil
}

// ReviewQueue returns the in_review escalations owned by a supervisor, in
// queue order.
func (m *Manager) ReviewQueue(ctx context.Context, supervisorID string) ([]*contracts.Escalation, error) {
	list, err := m.store.List(ctx, Filter{
		SupervisorID: supervisorID,
		Statuses:     []contracts.EscalationStatus{contracts.EscalationStatusInReview},
	})
	if err != nil {
		return nil, err
	}
	SortQueue(list)
	return list, nil
}

// MarkRunOrphaned flags every non-terminal escalation of a cancelled run.
// Status is left unchanged. It returns the number of escalations flagged.
func (m *Manager) MarkRunOrphaned(ctx context.Context, runID string) (int, error) {
	list, err := m.store.List(ctx, Filter{
		RunID:    runID,
		Statuses: []contracts.EscalationStatus{contracts.EscalationStatusPending, contracts.EscalationStatusInReview},
	})
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range list {
		if e.Orphaned {
			continue
		}
		err := m.store.MarkOrphaned(ctx, e.ID, m.clock().UTC(),
			contracts.EscalationStatusPending, contracts.EscalationStatusInReview)
		if err != nil {
			if errors.Is(err, ErrConflict) {
				// Closed concurrently; nothing left to orphan.
				continue
			}
			return n, err
		}
		n++
	}
	if n > 0 {
		m.logger.WarnContext(ctx, "escalations orphaned", "run_id", runID, "count", n)
	}
	return n, nil
}

func (m *Manager) transitionError(op, id string, err error) error {
	if errors.Is(err, ErrConflict) {
		return fmt.Errorf("%s escalation %q: %w", op, id, err)
	}
	return err
}

func (m *Manager) record(ctx context.Context, e *contracts.Escalation, actor string, event contracts.AuditEventType, data map[string]any) error {
	if m.audit == nil {
		return nil
	}
	data["escalation_id"] = e.ID
	data["run_id"] = e.RunID
	data["status"] = string(e.Status)
	if err := m.audit.Record(ctx, e.TenantID, actor, event, data); err != nil {
		m.logger.ErrorContext(ctx, "audit record failed", "id", e.ID, "event", event, "error", err)
		return fmt.Errorf("audit %s for escalation %q: %w", event, e.ID, err)
	}
	return nil
}
