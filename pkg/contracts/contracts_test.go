package contracts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReviewActionOrder(t *testing.T) {
	order := []ReviewAction{ReviewNone, ReviewOptional, ReviewRequired, ReviewBlocked}
	for i, a := range order {
		assert.Equal(t, i, a.Severity())
		for j, b := range order {
			assert.Equal(t, i >= j, a.AtLeast(b), "%s >= %s", a, b)
			if i >= j {
				assert.Equal(t, a, MaxReviewAction(a, b))
				assert.Equal(t, a, MaxReviewAction(b, a))
			}
		}
	}

	got, err := ParseReviewAction("required")
	require.NoError(t, err)
	assert.Equal(t, ReviewRequired, got)
	_, err = ParseReviewAction("maybe")
	assert.Error(t, err)
	assert.Equal(t, -1, ReviewAction("maybe").Severity())
}

func TestTierFor(t *testing.T) {
	cases := map[int]QualityTier{
		100: TierExcellent, 90: TierExcellent,
		89: TierGood, 85: TierGood,
		84: TierAcceptable, 70: TierAcceptable,
		69: TierPoor, 50: TierPoor,
		49: TierCritical, 0: TierCritical,
	}
	for overall, tier := range cases {
		assert.Equal(t, tier, TierFor(overall), "overall %d", overall)
	}
}

func TestPriorityRanks(t *testing.T) {
	assert.Less(t, EscalationPriorityUrgent.Rank(), EscalationPriorityHigh.Rank())
	assert.Less(t, EscalationPriorityMedium.Rank(), EscalationPriorityLow.Rank())
	assert.False(t, EscalationPriority("asap").Valid())
	assert.Greater(t, EscalationPriority("asap").Rank(), EscalationPriorityLow.Rank())

	assert.Less(t, UnknownPriorityCritical.Rank(), UnknownPriorityHigh.Rank())
	assert.True(t, UnknownPriorityLow.Valid())
	assert.False(t, UnknownPriority("").Valid())
}

func TestStatuses(t *testing.T) {
	assert.False(t, EscalationStatusPending.IsTerminal())
	assert.False(t, EscalationStatusInReview.IsTerminal())
	assert.True(t, EscalationStatusResolved.IsTerminal())
	assert.True(t, EscalationStatusRejected.IsTerminal())

	assert.False(t, UnknownStatusInvestigating.IsResolved())
	assert.True(t, UnknownStatusAnswered.IsResolved())

	assert.Less(t, HandoffStatusPending.Stage(), HandoffStatusAccepted.Stage())
	assert.Less(t, HandoffStatusAccepted.Stage(), HandoffStatusCompleted.Stage())
	assert.Equal(t, -1, HandoffStatus("lost").Stage())
}

func TestEscalationResolutionTime(t *testing.T) {
	created := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	resolved := created.Add(90 * time.Minute)
	e := &Escalation{Status: EscalationStatusInReview, CreatedAt: created}

	_, ok := e.ResolutionTime()
	assert.False(t, ok)

	e.Status = EscalationStatusResolved
	e.ResolvedAt = &resolved
	d, ok := e.ResolutionTime()
	require.True(t, ok)
	assert.Equal(t, 90*time.Minute, d)

	e.Status = EscalationStatusRejected
	_, ok = e.ResolutionTime()
	assert.False(t, ok)
}

func TestOrchestrationConsensus(t *testing.T) {
	var none *Orchestration
	_, ok := none.Consensus()
	assert.False(t, ok)

	_, ok = (&Orchestration{GeneratorCount: 1}).Consensus()
	assert.False(t, ok)

	v := 0.72
	got, ok := (&Orchestration{ConsensusScore: &v}).Consensus()
	require.True(t, ok)
	assert.Equal(t, 0.72, got)
}

func TestAuditHashTimestamp(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	e := &AuditChainEntry{Timestamp: time.Date(2026, 3, 2, 10, 0, 0, 123456000, loc)}
	assert.Equal(t, "2026-03-02T09:00:00.123456Z", e.HashTimestamp())
}

func TestQualityScoreDimension(t *testing.T) {
	q := QualityScore{Dimensions: []QualityDimension{
		{Name: DimensionCompleteness, Score: 7.5, Weight: 0.25},
	}}
	d, ok := q.Dimension(DimensionCompleteness)
	require.True(t, ok)
	assert.Equal(t, 7.5, d.Score)
	_, ok = q.Dimension(DimensionReasoningDepth)
	assert.False(t, ok)
}
