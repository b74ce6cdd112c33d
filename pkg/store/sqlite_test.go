package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/plangate/pkg/audit"
	"github.com/Mindburn-Labs/plangate/pkg/contracts"
	"github.com/Mindburn-Labs/plangate/pkg/escalation"
	"github.com/Mindburn-Labs/plangate/pkg/unknowns"
)

func openSQLite(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func tick() func() time.Time {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(1500 * time.Microsecond)
		return now
	}
}

func TestSQLiteEscalations(t *testing.T) {
	db := openSQLite(t)
	m := escalation.NewManager(NewEscalationStore(db)).WithClock(tick())
	ctx := context.Background()

	var created []*contracts.Escalation
	for _, p := range []contracts.EscalationPriority{
		contracts.EscalationPriorityMedium,
		contracts.EscalationPriorityUrgent,
		contracts.EscalationPriorityHigh,
	} {
		e, err := m.Create(ctx, escalation.CreateInput{TenantID: "t1", RunID: "run-1", Reason: "review", Priority: p})
		require.NoError(t, err)
		created = append(created, e)
	}

	pending, err := m.Pending(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, created[1].ID, pending[0].ID)
	assert.Equal(t, created[2].ID, pending[1].ID)
	assert.Equal(t, created[0].ID, pending[2].ID)
	assert.Equal(t, created[1].CreatedAt, pending[0].CreatedAt)

	assigned, err := m.Assign(ctx, created[1].ID, "sup-1")
	require.NoError(t, err)
	got, err := m.Get(ctx, created[1].ID)
	require.NoError(t, err)
	require.NotNil(t, got.AssignedAt)
	assert.Equal(t, *assigned.AssignedAt, *got.AssignedAt)
	assert.Equal(t, contracts.EscalationStatusInReview, got.Status)

	_, err = m.Resolve(ctx, created[1].ID, "sup-1", "ok")
	require.NoError(t, err)
	_, err = m.Assign(ctx, created[1].ID, "sup-2")
	assert.ErrorIs(t, err, escalation.ErrInvalidTransition)

	n, err := m.MarkRunOrphaned(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	stats, err := m.Stats(ctx, "t1", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Resolved)

	_, err = m.Get(ctx, "missing")
	assert.ErrorIs(t, err, escalation.ErrNotFound)
}

func TestSQLiteEscalationCompareAndSet(t *testing.T) {
	db := openSQLite(t)
	s := NewEscalationStore(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	e := &contracts.Escalation{
		ID: "e1", Reason: "r", Priority: contracts.EscalationPriorityLow,
		Status: contracts.EscalationStatusPending, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.Create(ctx, e))
	assert.ErrorIs(t, s.Create(ctx, e), escalation.ErrConflict)

	e.Status = contracts.EscalationStatusRejected
	require.NoError(t, s.Update(ctx, e, contracts.EscalationStatusPending))

	e.Status = contracts.EscalationStatusInReview
	assert.ErrorIs(t, s.Update(ctx, e, contracts.EscalationStatusPending), escalation.ErrConflict)

	e.ID = "nope"
	assert.ErrorIs(t, s.Update(ctx, e, contracts.EscalationStatusPending), escalation.ErrNotFound)
}

func TestSQLiteOrphanedSurvivesStaleUpdate(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	s := NewEscalationStore(db)
	e := &contracts.Escalation{
		ID: "e1", Reason: "r", Priority: contracts.EscalationPriorityHigh,
		Status: contracts.EscalationStatusInReview, ToSupervisorID: "sup-1", CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.Create(ctx, e))
	stale, err := s.Get(ctx, "e1")
	require.NoError(t, err)

	require.NoError(t, s.MarkOrphaned(ctx, "e1", now.Add(time.Second), contracts.EscalationStatusInReview))
	stale.ToSupervisorID = "sup-2"
	require.NoError(t, s.Update(ctx, stale, contracts.EscalationStatusInReview))

	got, err := s.Get(ctx, "e1")
	require.NoError(t, err)
	assert.True(t, got.Orphaned)
	assert.Equal(t, "sup-2", got.ToSupervisorID)
	assert.ErrorIs(t, s.MarkOrphaned(ctx, "e1", now, contracts.EscalationStatusPending), escalation.ErrConflict)

	us := NewUnknownStore(db)
	u := &contracts.Unknown{
		ID: "u1", RunID: "run-1", Priority: contracts.UnknownPriorityHigh,
		Status: contracts.UnknownStatusOpen, Question: "q", CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, us.CreateUnknown(ctx, u))
	require.NoError(t, us.MarkUnknownOrphaned(ctx, "u1", now, contracts.UnknownStatusOpen))
	u.Status = contracts.UnknownStatusInvestigating
	require.NoError(t, us.UpdateUnknown(ctx, u, contracts.UnknownStatusOpen))

	gotU, err := us.GetUnknown(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, gotU.Orphaned)
	assert.Equal(t, contracts.UnknownStatusInvestigating, gotU.Status)
}

func TestSQLiteUnknownsAndHandoffs(t *testing.T) {
	db := openSQLite(t)
	tr := unknowns.NewTracker(NewUnknownStore(db)).WithClock(tick())
	ctx := context.Background()

	var ids []string
	for _, p := range []contracts.UnknownPriority{
		contracts.UnknownPriorityLow,
		contracts.UnknownPriorityCritical,
		contracts.UnknownPriorityHigh,
		contracts.UnknownPriorityMedium,
	} {
		u, err := tr.Create(ctx, unknowns.CreateInput{RunID: "run-1", Priority: p, Question: "Which regulator owns this?"})
		require.NoError(t, err)
		ids = append(ids, u.ID)
	}
	list, err := tr.GetUnresolved(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, list, 4)
	assert.Equal(t, []string{ids[1], ids[2], ids[3], ids[0]},
		[]string{list[0].ID, list[1].ID, list[2].ID, list[3].ID})

	conf := 0.9
	answered, err := tr.Answer(ctx, ids[1], unknowns.AnswerInput{Answer: "HHS", AnsweredBy: "a", Confidence: &conf})
	require.NoError(t, err)
	got, err := tr.Get(ctx, ids[1])
	require.NoError(t, err)
	require.NotNil(t, got.Confidence)
	assert.Equal(t, 0.9, *got.Confidence)
	assert.Equal(t, *answered.AnsweredAt, *got.AnsweredAt)
	_, err = tr.Answer(ctx, ids[1], unknowns.AnswerInput{Answer: "again"})
	assert.ErrorIs(t, err, unknowns.ErrInvalidTransition)

	first, err := tr.CreateHandoff(ctx, unknowns.HandoffInput{
		RunID: "run-1", FromPhase: "opportunity", ToPhase: "business-model",
		Data: map[string]any{"segment": "clinics"},
	})
	require.NoError(t, err)
	second, err := tr.CreateHandoff(ctx, unknowns.HandoffInput{
		RunID: "run-1", FromPhase: "market-research", ToPhase: "business-model",
		Dependencies: []string{first.ID},
	})
	require.NoError(t, err)

	_, err = tr.AcceptHandoff(ctx, second.ID)
	assert.ErrorIs(t, err, unknowns.ErrDependenciesUnmet)
	_, err = tr.AcceptHandoff(ctx, first.ID)
	require.NoError(t, err)
	_, err = tr.CompleteHandoff(ctx, first.ID)
	require.NoError(t, err)
	_, err = tr.AcceptHandoff(ctx, second.ID)
	require.NoError(t, err)

	h, err := tr.GetHandoff(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "clinics", h.Data["segment"])
	assert.Equal(t, contracts.HandoffStatusCompleted, h.Status)

	pending, err := tr.PendingHandoffs(ctx, "run-1", "business-model")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, []string{first.ID}, pending[0].Dependencies)
}

func TestSQLiteAuditChain(t *testing.T) {
	db := openSQLite(t)
	st := NewAuditStore(db)
	c := audit.NewChain(st).WithClock(tick())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := c.Append(ctx, "t1", "gate", contracts.AuditEventGateEvaluated, map[string]int{"i": i})
		require.NoError(t, err)
	}
	n, err := c.Verify(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	head, err := st.Head(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, head)
	assert.Equal(t, uint64(5), head.Sequence)

	fork := *head
	fork.ID = "fork"
	fork.Sequence = 5
	assert.ErrorIs(t, st.Append(ctx, &fork), audit.ErrConflict)

	limited, err := st.List(ctx, audit.Query{TenantID: "t1", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	empty, err := st.Head(ctx, "t2")
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestOpenRejectsUnknownURL(t *testing.T) {
	_, err := Open(context.Background(), "mysql://localhost/gate")
	assert.ErrorContains(t, err, "unsupported database url")
}
