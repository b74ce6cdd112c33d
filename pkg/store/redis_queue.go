package store

import (
	"context"
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/Mindburn-Labs/plangate/pkg/contracts"
	"github.com/Mindburn-Labs/plangate/pkg/escalation"
)

// RedisQueue keeps a per-tenant Redis sorted set of pending escalation ids
// in front of a durable escalation.Store. The durable store stays the source
// of truth: index writes that fail are logged, and reads fall back to the
// store when Redis is unavailable.
type RedisQueue struct {
	escalation.Store
	client redis.Cmdable
	prefix string
	logger *slog.Logger
}

var _ escalation.QueueStore = (*RedisQueue)(nil)

// NewRedisQueue wraps store with a Redis index under keys
// "<prefix>:pending:<tenant>".
func NewRedisQueue(store escalation.Store, client redis.Cmdable, prefix string) *RedisQueue {
	if prefix == "" {
		prefix = "plangate:escalations"
	}
	return &RedisQueue{
		Store:  store,
		client: client,
		prefix: prefix,
		logger: slog.Default().With("component", "redis_queue"),
	}
}

// NewRedisClient connects to a Redis server.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (q *RedisQueue) key(tenantID string) string {
	return q.prefix + ":pending:" + tenantID
}

// queueScore orders by priority rank, then creation time in milliseconds.
// Ties within a millisecond fall back to member order and are re-sorted on
// read.
func queueScore(e *contracts.Escalation) float64 {
	return float64(e.Priority.Rank())*1e13 + float64(e.CreatedAt.UnixMilli())
}

func (q *RedisQueue) Create(ctx context.Context, e *contracts.Escalation) error {
	if err := q.Store.Create(ctx, e); err != nil {
		return err
	}
	q.index(ctx, e)
	return nil
}

func (q *RedisQueue) Update(ctx context.Context, e *contracts.Escalation, from ...contracts.EscalationStatus) error {
	if err := q.Store.Update(ctx, e, from...); err != nil {
		return err
	}
	q.index(ctx, e)
	return nil
}

func (q *RedisQueue) index(ctx context.Context, e *contracts.Escalation) {
	var err error
	if e.Status == contracts.EscalationStatusPending {
		err = q.client.ZAdd(ctx, q.key(e.TenantID), redis.Z{Score: queueScore(e), Member: e.ID}).Err()
	} else {
		err = q.client.ZRem(ctx, q.key(e.TenantID), e.ID).Err()
	}
	if err != nil {
		q.logger.WarnContext(ctx, "queue index update failed", "id", e.ID, "error", err)
	}
}

// Pending returns the tenant's pending escalations in queue order. Ids whose
// row is no longer pending are pruned from the index.
func (q *RedisQueue) Pending(ctx context.Context, tenantID string) ([]*contracts.Escalation, error) {
	if tenantID == "" {
		return q.fallback(ctx, tenantID)
	}
	ids, err := q.client.ZRange(ctx, q.key(tenantID), 0, -1).Result()
	if err != nil {
		q.logger.WarnContext(ctx, "queue index read failed, using store", "tenant_id", tenantID, "error", err)
		return q.fallback(ctx, tenantID)
	}

	out := make([]*contracts.Escalation, 0, len(ids))
	var stale []any
	for _, id := range ids {
		e, err := q.Store.Get(ctx, id)
		if errors.Is(err, escalation.ErrNotFound) {
			stale = append(stale, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if e.Status != contracts.EscalationStatusPending {
			stale = append(stale, id)
			continue
		}
		out = append(out, e)
	}
	if len(stale) > 0 {
		_ = q.client.ZRem(ctx, q.key(tenantID), stale...).Err()
	}
	escalation.SortQueue(out)
	return out, nil
}

// Rebuild replaces the tenant's index with the store's pending escalations.
func (q *RedisQueue) Rebuild(ctx context.Context, tenantID string) (int, error) {
	list, err := q.fallback(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	key := q.key(tenantID)
	pipe := q.client.TxPipeline()
	pipe.Del(ctx, key)
	for _, e := range list {
		pipe.ZAdd(ctx, key, redis.Z{Score: queueScore(e), Member: e.ID})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return len(list), nil
}

func (q *RedisQueue) fallback(ctx context.Context, tenantID string) ([]*contracts.Escalation, error) {
	list, err := q.Store.List(ctx, escalation.Filter{
		TenantID: tenantID,
		Statuses: []contracts.EscalationStatus{contracts.EscalationStatusPending},
	})
	if err != nil {
		return nil, err
	}
	escalation.SortQueue(list)
	return list, nil
}
