package unknowns

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/plangate/pkg/contracts"
)

// HandoffInput describes work passed from one phase to another.
type HandoffInput struct {
	TenantID     string
	RunID        string
	FromPhase    string
	ToPhase      string
	Data         map[string]any
	Dependencies []string // ids of handoffs that must complete before this one is accepted
}

// CreateHandoff records a pending handoff. Every dependency must exist.
func (t *Tracker) CreateHandoff(ctx context.Context, in HandoffInput) (*contracts.Handoff, error) {
	if in.RunID == "" || in.FromPhase == "" || in.ToPhase == "" {
		return nil, fmt.Errorf("%w: run id, from phase and to phase are required", ErrInvalidInput)
	}
	for _, dep := range in.Dependencies {
		if _, err := t.store.GetHandoff(ctx, dep); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("%w: dependency %q does not exist", ErrInvalidInput, dep)
			}
			return nil, err
		}
	}

	now := t.clock().UTC()
	h := &contracts.Handoff{
		ID:           uuid.New().String(),
		TenantID:     in.TenantID,
		RunID:        in.RunID,
		FromPhase:    in.FromPhase,
		ToPhase:      in.ToPhase,
		Status:       contracts.HandoffStatusPending,
		Data:         in.Data,
		Dependencies: in.Dependencies,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := t.store.CreateHandoff(ctx, h); err != nil {
		return nil, fmt.Errorf("create handoff: %w", err)
	}
	if err := t.record(ctx, h.TenantID, h.FromPhase, contracts.AuditEventHandoffCreated, map[string]any{
		"handoff_id": h.ID,
		"run_id":     h.RunID,
		"from_phase": h.FromPhase,
		"to_phase":   h.ToPhase,
	}); err != nil {
		return h, err
	}
	return h, nil
}

// GetHandoff returns the handoff with the given id.
func (t *Tracker) GetHandoff(ctx context.Context, id string) (*contracts.Handoff, error) {
	return t.store.GetHandoff(ctx, id)
}

// AcceptHandoff moves a pending handoff to accepted once all of its
// dependencies have completed. Accepting an accepted or completed handoff is a
// no-op.
func (t *Tracker) AcceptHandoff(ctx context.Context, id string) (*contracts.Handoff, error) {
	h, err := t.store.GetHandoff(ctx, id)
	if err != nil {
		return nil, err
	}
	if h.Status.Stage() >= contracts.HandoffStatusAccepted.Stage() {
		return h, nil
	}
	for _, dep := range h.Dependencies {
		d, err := t.store.GetHandoff(ctx, dep)
		if err != nil {
			return nil, err
		}
		if d.Status != contracts.HandoffStatusCompleted {
			return nil, fmt.Errorf("accept handoff %q: dependency %q is %s: %w", id, dep, d.Status, ErrDependenciesUnmet)
		}
	}

	now := t.clock().UTC()
	h.Status = contracts.HandoffStatusAccepted
	h.AcceptedAt = &now
	h.UpdatedAt = now
	return t.advance(ctx, h, contracts.HandoffStatusPending)
}

// CompleteHandoff moves an accepted handoff to completed. Completing a
// completed handoff is a no-op; completing a pending one is an
// ErrInvalidTransition.
func (t *Tracker) CompleteHandoff(ctx context.Context, id string) (*contracts.Handoff, error) {
	h, err := t.store.GetHandoff(ctx, id)
	if err != nil {
		return nil, err
	}
	switch h.Status {
	case contracts.HandoffStatusCompleted:
		return h, nil
	case contracts.HandoffStatusPending:
		return nil, fmt.Errorf("complete handoff %q before accept: %w", id, ErrInvalidTransition)
	}

	now := t.clock().UTC()
	h.Status = contracts.HandoffStatusCompleted
	h.CompletedAt = &now
	h.UpdatedAt = now
	return t.advance(ctx, h, contracts.HandoffStatusAccepted)
}

// PendingHandoffs lists the run's handoffs into toPhase that have not
// completed. An empty toPhase lists every phase.
func (t *Tracker) PendingHandoffs(ctx context.Context, runID, toPhase string) ([]*contracts.Handoff, error) {
	return t.store.ListHandoffs(ctx, HandoffFilter{
		RunID:    runID,
		ToPhase:  toPhase,
		Statuses: []contracts.HandoffStatus{contracts.HandoffStatusPending, contracts.HandoffStatusAccepted},
	})
}

func (t *Tracker) advance(ctx context.Context, h *contracts.Handoff, from contracts.HandoffStatus) (*contracts.Handoff, error) {
	if err := t.store.UpdateHandoff(ctx, h, from); err != nil {
		if !errors.Is(err, ErrConflict) {
			return nil, err
		}
		// Advanced concurrently.
		cur, gerr := t.store.GetHandoff(ctx, h.ID)
		if gerr != nil {
			return nil, gerr
		}
		if cur.Status.Stage() >= h.Status.Stage() {
			return cur, nil
		}
		return nil, err
	}
	t.logger.InfoContext(ctx, "handoff advanced", "id", h.ID, "status", h.Status)

	if err := t.record(ctx, h.TenantID, h.ToPhase, contracts.AuditEventHandoffAdvanced, map[string]any{
		"handoff_id": h.ID,
		"run_id":     h.RunID,
		"status":     string(h.Status),
	}); err != nil {
		return h, err
	}
	return h, nil
}
