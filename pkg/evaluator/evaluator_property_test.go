//go:build property
// +build property

package evaluator

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/Mindburn-Labs/plangate/pkg/contracts"
	"github.com/Mindburn-Labs/plangate/pkg/phases"
	"github.com/Mindburn-Labs/plangate/pkg/quality"
)

// TestBatchPartition verifies autoApproved + blocked + flagged == total.
func TestBatchPartition(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	scorer, err := quality.NewScorer(nil)
	if err != nil {
		t.Fatal(err)
	}
	e, err := New(scorer)
	if err != nil {
		t.Fatal(err)
	}
	ids := phases.Default().List()

	properties.Property("batch counts partition the total", prop.ForAll(
		func(kinds []int, cons []float64) bool {
			ctxs := make([]Context, 0, len(kinds))
			for i, k := range kinds {
				ctx := Context{Phase: ids[k%len(ids)]}
				switch k % 3 {
				case 0:
					ctx.Artifact = fullOpportunity()
					ctx.Citations = threeCitations()
				case 1:
					ctx.Artifact = emptyOpportunity()
				default:
					ctx.Artifact = "free text"
				}
				if i < len(cons) {
					c := cons[i]
					ctx.Orchestration = &contracts.Orchestration{ConsensusScore: &c}
				}
				ctxs = append(ctxs, ctx)
			}
			b := e.EvaluateBatch(ctxs)
			return b.Total == len(ctxs) &&
				b.AutoApproved+b.Blocked+b.FlaggedForReview == b.Total &&
				b.FlaggedForReview >= 0
		},
		gen.SliceOf(gen.IntRange(0, 50)),
		gen.SliceOf(gen.Float64Range(0, 1)),
	))

	properties.TestingRun(t)
}
