package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/plangate/pkg/contracts"
)

func fixedClock() func() time.Time {
	now := time.Date(2026, 3, 2, 9, 0, 0, 123456789, time.UTC)
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func TestAppendLinksEntries(t *testing.T) {
	c := NewChain(nil).WithClock(fixedClock())
	ctx := context.Background()

	first, err := c.Append(ctx, "tenant-a", "gate", contracts.AuditEventGateEvaluated, map[string]any{
		"phase": "opportunity", "overall": 42, "action": "blocked",
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.Sequence)
	assert.Equal(t, contracts.GenesisHash, first.PreviousHash)
	assert.Equal(t, `{"action":"blocked","overall":42,"phase":"opportunity"}`, first.EventData)
	// Nanoseconds are truncated to microseconds.
	assert.Equal(t, 123456000, first.Timestamp.Nanosecond())

	sum := sha256.Sum256([]byte(first.PreviousHash + first.EventData + first.Timestamp.Format(time.RFC3339Nano) + "gate"))
	assert.Equal(t, hex.EncodeToString(sum[:]), first.CurrentHash)

	second, err := c.Append(ctx, "tenant-a", "sup-1", contracts.AuditEventEscalationAssigned, map[string]any{"id": "e1"})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.Sequence)
	assert.Equal(t, first.CurrentHash, second.PreviousHash)

	other, err := c.Append(ctx, "tenant-b", "gate", contracts.AuditEventGateEvaluated, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), other.Sequence)
	assert.Equal(t, contracts.GenesisHash, other.PreviousHash)
	assert.Equal(t, "null", other.EventData)

	n, err := c.Verify(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRecordDefaultsTenant(t *testing.T) {
	c := NewChain(nil)
	ctx := context.Background()
	require.NoError(t, c.Record(ctx, "", "gate", contracts.AuditEventRunOrphaned, map[string]string{"run_id": "r1"}))

	entries, err := c.Entries(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, DefaultTenant, entries[0].TenantID)
}

func TestAppendRejectsUnserializableData(t *testing.T) {
	c := NewChain(nil)
	_, err := c.Append(context.Background(), "t", "a", contracts.AuditEventGateEvaluated, map[string]any{"f": func() {}})
	assert.Error(t, err)
}

func TestVerifyDetectsTampering(t *testing.T) {
	store := NewMemoryStore()
	c := NewChain(store).WithClock(fixedClock())
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := c.Append(ctx, "tenant-a", "gate", contracts.AuditEventGateEvaluated, map[string]int{"i": i})
		require.NoError(t, err)
	}

	store.chains["tenant-a"][1].EventData = `{"i":99}`
	_, err := c.Verify(ctx, "tenant-a")
	assert.ErrorIs(t, err, ErrChainBroken)
	assert.ErrorContains(t, err, "entry 1 hash mismatch")
}

func TestVerifyEntries(t *testing.T) {
	c := NewChain(nil).WithClock(fixedClock())
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := c.Append(ctx, "t", fmt.Sprintf("actor-%d", i), contracts.AuditEventUnknownCreated, map[string]int{"i": i})
		require.NoError(t, err)
	}
	entries, err := c.Entries(ctx, Query{TenantID: "t"})
	require.NoError(t, err)
	require.NoError(t, VerifyEntries(entries))
	require.NoError(t, VerifyEntries(nil))

	relinked := append([]contracts.AuditChainEntry(nil), entries...)
	relinked[2].PreviousHash = relinked[0].CurrentHash
	assert.ErrorIs(t, VerifyEntries(relinked), ErrChainBroken)

	dropped := append(append([]contracts.AuditChainEntry(nil), entries[:1]...), entries[2:]...)
	assert.ErrorIs(t, VerifyEntries(dropped), ErrChainBroken)

	actor := append([]contracts.AuditChainEntry(nil), entries...)
	actor[3].ActorID = "someone-else"
	assert.ErrorIs(t, VerifyEntries(actor), ErrChainBroken)
}

func TestMemoryStoreRejectsFork(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	e := &contracts.AuditChainEntry{TenantID: "t", Sequence: 1, PreviousHash: contracts.GenesisHash, CurrentHash: "h1"}
	require.NoError(t, store.Append(ctx, e))

	fork := &contracts.AuditChainEntry{TenantID: "t", Sequence: 1, PreviousHash: contracts.GenesisHash, CurrentHash: "h2"}
	assert.ErrorIs(t, store.Append(ctx, fork), ErrConflict)
}

// headRacer simulates another process appending between Head and Append.
type headRacer struct {
	*MemoryStore
	raced bool
}

func (s *headRacer) Append(ctx context.Context, e *contracts.AuditChainEntry) error {
	if !s.raced {
		s.raced = true
		other := &contracts.AuditChainEntry{
			TenantID: e.TenantID, Sequence: e.Sequence, PreviousHash: e.PreviousHash,
			EventData: "{}", Timestamp: e.Timestamp, ActorID: "other",
		}
		other.CurrentHash = EntryHash(other)
		if err := s.MemoryStore.Append(ctx, other); err != nil {
			return err
		}
	}
	return s.MemoryStore.Append(ctx, e)
}

func TestAppendRetriesOnMovedHead(t *testing.T) {
	store := &headRacer{MemoryStore: NewMemoryStore()}
	c := NewChain(store)
	ctx := context.Background()

	e, err := c.Append(ctx, "t", "gate", contracts.AuditEventGateEvaluated, map[string]int{"n": 1})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), e.Sequence)

	n, err := c.Verify(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestConcurrentAppendsKeepChainLinear(t *testing.T) {
	c := NewChain(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.Append(ctx, "t", "gate", contracts.AuditEventGateEvaluated, map[string]int{"i": i})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	n, err := c.Verify(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, 20, n)
}
