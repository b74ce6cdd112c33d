package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/plangate/pkg/contracts"
	"github.com/Mindburn-Labs/plangate/pkg/escalation"
)

func TestQueueScoreOrdering(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	oldLow := &contracts.Escalation{Priority: contracts.EscalationPriorityLow, CreatedAt: base}
	newUrgent := &contracts.Escalation{Priority: contracts.EscalationPriorityUrgent, CreatedAt: base.Add(365 * 24 * time.Hour)}
	earlyHigh := &contracts.Escalation{Priority: contracts.EscalationPriorityHigh, CreatedAt: base}
	lateHigh := &contracts.Escalation{Priority: contracts.EscalationPriorityHigh, CreatedAt: base.Add(time.Millisecond)}

	assert.Less(t, queueScore(newUrgent), queueScore(earlyHigh))
	assert.Less(t, queueScore(earlyHigh), queueScore(lateHigh))
	assert.Less(t, queueScore(lateHigh), queueScore(oldLow))
}

// TestRedisQueue runs against a live server; set PLANGATE_TEST_REDIS or run
// Redis on localhost:6379.
func TestRedisQueue(t *testing.T) {
	addr := os.Getenv("PLANGATE_TEST_REDIS")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := NewRedisClient(addr, "", 0)
	t.Cleanup(func() { _ = client.Close() })
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available at %s: %v", addr, err)
	}

	prefix := "plangate-test:" + time.Now().Format("150405.000000")
	q := NewRedisQueue(escalation.NewMemoryStore(), client, prefix)
	t.Cleanup(func() { _ = client.Del(context.Background(), q.key("t1")).Err() })

	m := escalation.NewManager(q)
	ctx = context.Background()
	medium, err := m.Create(ctx, escalation.CreateInput{TenantID: "t1", Reason: "r", Priority: contracts.EscalationPriorityMedium})
	require.NoError(t, err)
	urgent, err := m.Create(ctx, escalation.CreateInput{TenantID: "t1", Reason: "r", Priority: contracts.EscalationPriorityUrgent})
	require.NoError(t, err)

	pending, err := m.Pending(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, urgent.ID, pending[0].ID)
	assert.Equal(t, medium.ID, pending[1].ID)

	_, err = m.Assign(ctx, urgent.ID, "sup-1")
	require.NoError(t, err)
	card, err := client.ZCard(ctx, q.key("t1")).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), card)

	// A member the store no longer holds as pending is pruned on read.
	require.NoError(t, client.ZAdd(ctx, q.key("t1"), redis.Z{Score: 0, Member: urgent.ID}).Err())
	pending, err = m.Pending(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, medium.ID, pending[0].ID)

	require.NoError(t, client.Del(ctx, q.key("t1")).Err())
	n, err := q.Rebuild(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRedisQueueFallsBackWhenUnavailable(t *testing.T) {
	// Nothing listens on port 1.
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	q := NewRedisQueue(escalation.NewMemoryStore(), client, "")
	m := escalation.NewManager(q)
	ctx := context.Background()

	low, err := m.Create(ctx, escalation.CreateInput{TenantID: "t1", Reason: "r", Priority: contracts.EscalationPriorityLow})
	require.NoError(t, err)
	high, err := m.Create(ctx, escalation.CreateInput{TenantID: "t1", Reason: "r", Priority: contracts.EscalationPriorityHigh})
	require.NoError(t, err)

	pending, err := m.Pending(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, high.ID, pending[0].ID)
	assert.Equal(t, low.ID, pending[1].ID)
}
