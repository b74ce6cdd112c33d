//go:build property
// +build property

package schema

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/Mindburn-Labs/plangate/pkg/phases"
)

// TestValidateIdempotent verifies Validate(p, x) == Validate(p, x).
func TestValidateIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	v := NewValidator(nil)
	ids := phases.Default().List()

	properties.Property("validation result is stable for identical input", prop.ForAll(
		func(phaseIdx int, keys []string, values []string, score float64) bool {
			artifact := map[string]any{}
			for i := 0; i < len(keys) && i < len(values); i++ {
				artifact[keys[i]] = values[i]
			}
			artifact["opportunities"] = []any{map[string]any{"title": values, "score": score}}
			phase := ids[phaseIdx%len(ids)]

			first := v.Validate(phase, artifact)
			second := v.Validate(phase, artifact)
			return reflect.DeepEqual(first, second)
		},
		gen.IntRange(0, 100),
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.AlphaString()),
		gen.Float64Range(-5, 15),
	))

	properties.TestingRun(t)
}
