package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Mindburn-Labs/plangate/pkg/contracts"
)

// Query selects entries of one tenant chain. Zero bounds are open.
type Query struct {
	TenantID string
	Since    time.Time
	Until    time.Time
	Limit    int
}

func (q Query) matches(e *contracts.AuditChainEntry) bool {
	if e.TenantID != q.TenantID {
		return false
	}
	if !q.Since.IsZero() && e.Timestamp.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && e.Timestamp.After(q.Until) {
		return false
	}
	return true
}

// Store persists audit entries. Entries are immutable once appended.
//
// Append must reject an entry whose (tenant, previous hash) pair is already
// present with ErrConflict, so two writers can never fork a chain.
type Store interface {
	Append(ctx context.Context, e *contracts.AuditChainEntry) error
	// Head returns the latest entry of the tenant chain, or nil if empty.
	Head(ctx context.Context, tenantID string) (*contracts.AuditChainEntry, error)
	// List returns matching entries in sequence order.
	List(ctx context.Context, q Query) ([]contracts.AuditChainEntry, error)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	chains map[string][]contracts.AuditChainEntry
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chains: make(map[string][]contracts.AuditChainEntry)}
}

func (s *MemoryStore) Append(_ context.Context, e *contracts.AuditChainEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	chain := s.chains[e.TenantID]
	head := contracts.GenesisHash
	if n := len(chain); n > 0 {
		head = chain[n-1].CurrentHash
	}
	if e.PreviousHash != head {
		return fmt.Errorf("tenant %q: previous hash %s is not the head: %w", e.TenantID, e.PreviousHash, ErrConflict)
	}
	s.chains[e.TenantID] = append(chain, *e)
	return nil
}

func (s *MemoryStore) Head(_ context.Context, tenantID string) (*contracts.AuditChainEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chain := s.chains[tenantID]
	if len(chain) == 0 {
		return nil, nil
	}
	e := chain[len(chain)-1]
	return &e, nil
}

func (s *MemoryStore) List(_ context.Context, q Query) ([]contracts.AuditChainEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []contracts.AuditChainEntry
	for i := range s.chains[q.TenantID] {
		e := &s.chains[q.TenantID][i]
		if !q.matches(e) {
			continue
		}
		out = append(out, *e)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}
