package unknowns

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/Mindburn-Labs/plangate/pkg/contracts"
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu       sync.RWMutex
	unknowns map[string]*contracts.Unknown
	handoffs map[string]*contracts.Handoff
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		unknowns: make(map[string]*contracts.Unknown),
		handoffs: make(map[string]*contracts.Handoff),
	}
}

func (s *MemoryStore) CreateUnknown(_ context.Context, u *contracts.Unknown) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.unknowns[u.ID]; exists {
		return fmt.Errorf("unknown %q already exists: %w", u.ID, ErrConflict)
	}
	s.unknowns[u.ID] = cloneUnknown(u)
	return nil
}

func (s *MemoryStore) GetUnknown(_ context.Context, id string) (*contracts.Unknown, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.unknowns[id]
	if !ok {
		return nil, fmt.Errorf("unknown %q: %w", id, ErrNotFound)
	}
	return cloneUnknown(u), nil
}

func (s *MemoryStore) UpdateUnknown(_ context.Context, u *contracts.Unknown, from ...contracts.UnknownStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.unknowns[u.ID]
	if !ok {
		return fmt.Errorf("unknown %q: %w", u.ID, ErrNotFound)
	}
	if !contains(from, cur.Status) {
		return fmt.Errorf("unknown %q is %s: %w", u.ID, cur.Status, ErrConflict)
	}
	next := cloneUnknown(u)
	next.Orphaned = cur.Orphaned
	s.unknowns[u.ID] = next
	return nil
}

func (s *MemoryStore) MarkUnknownOrphaned(_ context.Context, id string, at time.Time, from ...contracts.UnknownStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.unknowns[id]
	if !ok {
		return fmt.Errorf("unknown %q: %w", id, ErrNotFound)
	}
	if !contains(from, cur.Status) {
		return fmt.Errorf("unknown %q is %s: %w", id, cur.Status, ErrConflict)
	}
	cur.Orphaned = true
	cur.UpdatedAt = at
	return nil
}

func (s *MemoryStore) ListUnknowns(_ context.Context, f UnknownFilter) ([]*contracts.Unknown, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*contracts.Unknown
	for _, u := range s.unknowns {
		if f.Matches(u) {
			out = append(out, cloneUnknown(u))
		}
	}
	SortUnknowns(out)
	return out, nil
}

func (s *MemoryStore) CreateHandoff(_ context.Context, h *contracts.Handoff) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.handoffs[h.ID]; exists {
		return fmt.Errorf("handoff %q already exists: %w", h.ID, ErrConflict)
	}
	s.handoffs[h.ID] = cloneHandoff(h)
	return nil
}

func (s *MemoryStore) GetHandoff(_ context.Context, id string) (*contracts.Handoff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handoffs[id]
	if !ok {
		return nil, fmt.Errorf("handoff %q: %w", id, ErrNotFound)
	}
	return cloneHandoff(h), nil
}

func (s *MemoryStore) UpdateHandoff(_ context.Context, h *contracts.Handoff, from ...contracts.HandoffStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.handoffs[h.ID]
	if !ok {
		return fmt.Errorf("handoff %q: %w", h.ID, ErrNotFound)
	}
	if !contains(from, cur.Status) {
		return fmt.Errorf("handoff %q is %s: %w", h.ID, cur.Status, ErrConflict)
	}
	s.handoffs[h.ID] = cloneHandoff(h)
	return nil
}

func (s *MemoryStore) ListHandoffs(_ context.Context, f HandoffFilter) ([]*contracts.Handoff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*contracts.Handoff
	for _, h := range s.handoffs {
		if f.Matches(h) {
			out = append(out, cloneHandoff(h))
		}
	}
	SortHandoffs(out)
	return out, nil
}

func cloneUnknown(u *contracts.Unknown) *contracts.Unknown {
	c := *u
	if u.Confidence != nil {
		v := *u.Confidence
		c.Confidence = &v
	}
	if u.AnsweredAt != nil {
		t := *u.AnsweredAt
		c.AnsweredAt = &t
	}
	return &c
}

func cloneHandoff(h *contracts.Handoff) *contracts.Handoff {
	c := *h
	c.Data = maps.Clone(h.Data)
	c.Dependencies = slices.Clone(h.Dependencies)
	if h.AcceptedAt != nil {
		t := *h.AcceptedAt
		c.AcceptedAt = &t
	}
	if h.CompletedAt != nil {
		t := *h.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
