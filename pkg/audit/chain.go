// Package audit keeps the gate's tamper-evident ledger: one hash-linked
// chain of entries per tenant, recording every gate decision and every
// escalation, unknown and handoff transition.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/plangate/pkg/canonicalize"
	"github.com/Mindburn-Labs/plangate/pkg/contracts"
)

// DefaultTenant is used for events recorded without a tenant.
const DefaultTenant = "default"

const maxAppendAttempts = 3

// Chain appends to and verifies per-tenant hash chains.
type Chain struct {
	mu     sync.Mutex
	store  Store
	clock  func() time.Time
	logger *slog.Logger
}

// NewChain creates a chain over the given store. A nil store uses a fresh
// MemoryStore.
func NewChain(store Store) *Chain {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Chain{
		store:  store,
		clock:  time.Now,
		logger: slog.Default().With("component", "audit"),
	}
}

// WithClock overrides the clock for deterministic testing.
func (c *Chain) WithClock(clock func() time.Time) *Chain {
	c.clock = clock
	return c
}

// WithLogger replaces the chain's logger.
func (c *Chain) WithLogger(l *slog.Logger) *Chain {
	c.logger = l.With("component", "audit")
	return c
}

// Append adds an entry for eventType to the tenant's chain. data is stored
// in its RFC 8785 canonical form.
//
// Appends are serialized within the process. Across processes the store
// rejects a second entry on the same head, and Append retries on the new
// head a bounded number of times.
func (c *Chain) Append(ctx context.Context, tenantID, actorID string, eventType contracts.AuditEventType, data any) (*contracts.AuditChainEntry, error) {
	if tenantID == "" {
		tenantID = DefaultTenant
	}
	eventData, err := canonicalize.JCSString(data)
	if err != nil {
		return nil, fmt.Errorf("audit: canonicalize %s event: %w", eventType, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for attempt := 1; ; attempt++ {
		head, err := c.store.Head(ctx, tenantID)
		if err != nil {
			return nil, fmt.Errorf("audit: read chain head: %w", err)
		}
		// SQL timestamps keep microseconds.
		ts := c.clock().UTC().Truncate(time.Microsecond)
		entry := &contracts.AuditChainEntry{
			ID:           uuid.New().String(),
			TenantID:     tenantID,
			Sequence:     1,
			EventType:    eventType,
			EventData:    eventData,
			PreviousHash: contracts.GenesisHash,
			Timestamp:    ts,
			ActorID:      actorID,
		}
		if head != nil {
			entry.Sequence = head.Sequence + 1
			entry.PreviousHash = head.CurrentHash
		}
		entry.CurrentHash = EntryHash(entry)

		err = c.store.Append(ctx, entry)
		if err == nil {
			c.logger.DebugContext(ctx, "audit entry appended",
				"tenant_id", tenantID, "sequence", entry.Sequence, "event", eventType)
			return entry, nil
		}
		if !errors.Is(err, ErrConflict) || attempt >= maxAppendAttempts {
			return nil, fmt.Errorf("audit: append %s: %w", eventType, err)
		}
		c.logger.WarnContext(ctx, "audit head moved, retrying", "tenant_id", tenantID, "attempt", attempt)
	}
}

// Record appends an entry and discards it. It lets a Chain serve as the
// audit recorder of the escalation manager and unknown tracker.
func (c *Chain) Record(ctx context.Context, tenantID, actorID string, eventType contracts.AuditEventType, data any) error {
	_, err := c.Append(ctx, tenantID, actorID, eventType, data)
	return err
}

// Entries returns entries of a tenant chain in sequence order.
func (c *Chain) Entries(ctx context.Context, q Query) ([]contracts.AuditChainEntry, error) {
	if q.TenantID == "" {
		q.TenantID = DefaultTenant
	}
	return c.store.List(ctx, q)
}

// Verify reads the full chain of a tenant and checks every link and hash.
// It returns the number of entries verified.
func (c *Chain) Verify(ctx context.Context, tenantID string) (int, error) {
	entries, err := c.Entries(ctx, Query{TenantID: tenantID})
	if err != nil {
		return 0, err
	}
	if err := VerifyEntries(entries); err != nil {
		c.logger.ErrorContext(ctx, "audit chain verification failed", "tenant_id", tenantID, "error", err)
		return 0, err
	}
	return len(entries), nil
}
