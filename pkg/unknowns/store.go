package unknowns

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/Mindburn-Labs/plangate/pkg/contracts"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrConflict          = errors.New("modified concurrently")
	ErrInvalidInput      = errors.New("invalid input")
	// ErrDependenciesUnmet is returned by Accept while a dependency handoff
	// has not completed.
	ErrDependenciesUnmet = errors.New("handoff dependencies not completed")
)

// UnknownFilter selects unknowns for ListUnknowns. Zero fields match everything.
type UnknownFilter struct {
	RunID      string
	Statuses   []contracts.UnknownStatus
	Priorities []contracts.UnknownPriority
}

// Matches reports whether u satisfies the filter.
func (f UnknownFilter) Matches(u *contracts.Unknown) bool {
	if f.RunID != "" && u.RunID != f.RunID {
		return false
	}
	if len(f.Statuses) > 0 && !contains(f.Statuses, u.Status) {
		return false
	}
	if len(f.Priorities) > 0 && !contains(f.Priorities, u.Priority) {
		return false
	}
	return true
}

// HandoffFilter selects handoffs for ListHandoffs.
type HandoffFilter struct {
	RunID    string
	ToPhase  string
	Statuses []contracts.HandoffStatus
}

// Matches reports whether h satisfies the filter.
func (f HandoffFilter) Matches(h *contracts.Handoff) bool {
	if f.RunID != "" && h.RunID != f.RunID {
		return false
	}
	if f.ToPhase != "" && h.ToPhase != f.ToPhase {
		return false
	}
	return len(f.Statuses) == 0 || contains(f.Statuses, h.Status)
}

// Store persists unknowns and handoffs. Rows are never deleted.
//
// The Update methods are per-row compare-and-set on status: the row is
// replaced only if its stored status is one of from, otherwise ErrConflict.
// UpdateUnknown never writes the orphaned flag; MarkUnknownOrphaned sets it
// under the same guard without touching any other column.
type Store interface {
	CreateUnknown(ctx context.Context, u *contracts.Unknown) error
	GetUnknown(ctx context.Context, id string) (*contracts.Unknown, error)
	UpdateUnknown(ctx context.Context, u *contracts.Unknown, from ...contracts.UnknownStatus) error
	MarkUnknownOrphaned(ctx context.Context, id string, at time.Time, from ...contracts.UnknownStatus) error
	ListUnknowns(ctx context.Context, f UnknownFilter) ([]*contracts.Unknown, error)

	CreateHandoff(ctx context.Context, h *contracts.Handoff) error
	GetHandoff(ctx context.Context, id string) (*contracts.Handoff, error)
	UpdateHandoff(ctx context.Context, h *contracts.Handoff, from ...contracts.HandoffStatus) error
	ListHandoffs(ctx context.Context, f HandoffFilter) ([]*contracts.Handoff, error)
}

// SortUnknowns orders unknowns critical > high > medium > low, then by
// creation time, then by id.
func SortUnknowns(list []*contracts.Unknown) {
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

// SortHandoffs orders handoffs by creation time, then by id.
func SortHandoffs(list []*contracts.Handoff) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func contains[T comparable](set []T, v T) bool {
	for _, x := range set {
		if x == v {
			return true
		}
	}
	return false
}
