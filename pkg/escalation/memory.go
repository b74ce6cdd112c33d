package escalation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Mindburn-Labs/plangate/pkg/contracts"
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string]*contracts.Escalation
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]*contracts.Escalation)}
}

func (s *MemoryStore) Create(_ context.Context, e *contracts.Escalation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rows[e.ID]; exists {
		return fmt.Errorf("escalation %q already exists: %w", e.ID, ErrConflict)
	}
	s.rows[e.ID] = clone(e)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*contracts.Escalation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.rows[id]
	if !ok {
		return nil, fmt.Errorf("escalation %q: %w", id, ErrNotFound)
	}
	return clone(e), nil
}

func (s *MemoryStore) Update(_ context.Context, e *contracts.Escalation, from ...contracts.EscalationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.rows[e.ID]
	if !ok {
		return fmt.Errorf("escalation %q: %w", e.ID, ErrNotFound)
	}
	if !statusIn(cur.Status, from) {
		return fmt.Errorf("escalation %q is %s: %w", e.ID, cur.Status, ErrConflict)
	}
	next := clone(e)
	next.Orphaned = cur.Orphaned
	s.rows[e.ID] = next
	return nil
}

func (s *MemoryStore) MarkOrphaned(_ context.Context, id string, at time.Time, from ...contracts.EscalationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.rows[id]
	if !ok {
		return fmt.Errorf("escalation %q: %w", id, ErrNotFound)
	}
	if !statusIn(cur.Status, from) {
		return fmt.Errorf("escalation %q is %s: %w", id, cur.Status, ErrConflict)
	}
	cur.Orphaned = true
	cur.UpdatedAt = at
	return nil
}

func (s *MemoryStore) List(_ context.Context, f Filter) ([]*contracts.Escalation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*contracts.Escalation
	for _, e := range s.rows {
		if f.Matches(e) {
			out = append(out, clone(e))
		}
	}
	SortQueue(out)
	return out, nil
}

func statusIn(s contracts.EscalationStatus, set []contracts.EscalationStatus) bool {
	for _, x := range set {
		if s == x {
			return true
		}
	}
	return false
}

func clone(e *contracts.Escalation) *contracts.Escalation {
	c := *e
	if e.AssignedAt != nil {
		t := *e.AssignedAt
		c.AssignedAt = &t
	}
	if e.ResolvedAt != nil {
		t := *e.ResolvedAt
		c.ResolvedAt = &t
	}
	return &c
}
