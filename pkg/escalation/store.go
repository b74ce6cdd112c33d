package escalation

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/Mindburn-Labs/plangate/pkg/contracts"
)

var (
	// ErrNotFound is returned when no escalation has the requested id.
	ErrNotFound = errors.New("escalation not found")
	// ErrInvalidTransition is returned for a transition the state machine forbids.
	ErrInvalidTransition = errors.New("invalid escalation transition")
	// ErrConflict is returned when a compare-and-set update lost a race.
	ErrConflict = errors.New("escalation modified concurrently")
	// ErrInvalidInput is returned by Create for incomplete input.
	ErrInvalidInput = errors.New("invalid escalation input")
)

// Filter selects escalations for List. Zero fields match everything.
type Filter struct {
	TenantID     string
	RunID        string
	SupervisorID string
	Statuses     []contracts.EscalationStatus
	CreatedAfter time.Time
}

// Matches reports whether e satisfies the filter.
func (f Filter) Matches(e *contracts.Escalation) bool {
	if f.TenantID != "" && e.TenantID != f.TenantID {
		return false
	}
	if f.RunID != "" && e.RunID != f.RunID {
		return false
	}
	if f.SupervisorID != "" && e.ToSupervisorID != f.SupervisorID {
		return false
	}
	if !f.CreatedAfter.IsZero() && e.CreatedAt.Before(f.CreatedAfter) {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if e.Status == s {
			return true
		}
	}
	return false
}

// Store persists escalations. Rows are never deleted.
//
// Update is a per-row compare-and-set: it replaces the stored row with e only
// if the stored status is one of from, and returns ErrConflict otherwise
// (ErrNotFound if the row does not exist). Update never writes the orphaned
// flag; only MarkOrphaned sets it, and nothing clears it.
//
// MarkOrphaned sets the orphaned flag and updated_at of one row, guarded the
// same way as Update, and touches no other column.
type Store interface {
	Create(ctx context.Context, e *contracts.Escalation) error
	Get(ctx context.Context, id string) (*contracts.Escalation, error)
	Update(ctx context.Context, e *contracts.Escalation, from ...contracts.EscalationStatus) error
	MarkOrphaned(ctx context.Context, id string, at time.Time, from ...contracts.EscalationStatus) error
	List(ctx context.Context, f Filter) ([]*contracts.Escalation, error)
}

// QueueStore is implemented by stores that keep their own index of
// pending escalations in queue order.
type QueueStore interface {
	Store
	Pending(ctx context.Context, tenantID string) ([]*contracts.Escalation, error)
}

// SortQueue orders escalations urgent > high > medium > low, then FIFO by
// creation time, then by id.
func SortQueue(list []*contracts.Escalation) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if ra, rb := a.Priority.Rank(), b.Priority.Rank(); ra != rb {
			return ra < rb
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
