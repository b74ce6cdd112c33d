package admission

import (
	"strings"

	"github.com/Mindburn-Labs/plangate/pkg/contracts"
	"github.com/Mindburn-Labs/plangate/pkg/schema"
	"github.com/Mindburn-Labs/plangate/pkg/unknowns"
)

// extractUnknowns reads the open questions a phase declared in its
// top-level "unknowns" array. Entries without a question are dropped and
// an unrecognized priority falls back to medium.
func extractUnknowns(artifact any) []unknowns.CreateInput {
	data, err := schema.Decode(artifact)
	if err != nil {
		return nil
	}
	obj, ok := data.(map[string]any)
	if !ok {
		return nil
	}
	list, _ := obj["unknowns"].([]any)
	var out []unknowns.CreateInput
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		q := strings.TrimSpace(str(m, "question"))
		if q == "" {
			continue
		}
		p := contracts.UnknownPriority(strings.ToLower(str(m, "priority")))
		if !p.Valid() {
			p = contracts.UnknownPriorityMedium
		}
		out = append(out, unknowns.CreateInput{
			Category: str(m, "category"),
			Priority: p,
			Question: q,
			Context:  str(m, "context"),
		})
	}
	return out
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
