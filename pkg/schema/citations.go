package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"

	"github.com/Mindburn-Labs/plangate/pkg/contracts"
)

// maxSourceDepth bounds the search for nested "sources" arrays.
const maxSourceDepth = 6

var citationURL = regexp.MustCompile(`^https?://[^\s/?#.][^\s/?#]*(?:[/?#]\S*)?$`)

// ValidCitationURL reports whether u is an absolute http(s) URL.
func ValidCitationURL(u string) bool {
	return citationURL.MatchString(u)
}

// ExtractCitations gathers the citations carried by an artifact: the
// top-level "citations" array followed by every nested "sources" array,
// visited in sorted key order. Entries that are not objects are skipped.
func ExtractCitations(artifact any) []contracts.Citation {
	obj, ok := artifact.(map[string]any)
	if !ok {
		return nil
	}
	var out []contracts.Citation
	if list, ok := obj["citations"].([]any); ok {
		out = appendCitations(out, list)
	}
	return collectSources(out, obj, 0)
}

func collectSources(out []contracts.Citation, v any, depth int) []contracts.Citation {
	if depth > maxSourceDepth {
		return out
	}
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if k == "citations" && depth == 0 {
				continue
			}
			if k == "sources" {
				if list, ok := t[k].([]any); ok {
					out = appendCitations(out, list)
					continue
				}
			}
			out = collectSources(out, t[k], depth+1)
		}
	case []any:
		for _, item := range t {
			out = collectSources(out, item, depth+1)
		}
	}
	return out
}

func appendCitations(out []contracts.Citation, list []any) []contracts.Citation {
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, contracts.Citation{
			Claim:            stringField(m, "claim"),
			Passage:          stringField(m, "passage"),
			URL:              stringField(m, "url"),
			Confidence:       numberField(m, "confidence"),
			SourceArtifactID: stringField(m, "sourceArtifactId"),
		})
	}
	return out
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func numberField(m map[string]any, key string) float64 {
	switch n := m[key].(type) {
	case json.Number:
		f, _ := n.Float64()
		return f
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}

// checkGrounding applies the grounding rule to an artifact of an
// evidence-bearing phase. Citations without a URL are allowed; citations
// whose URL is not absolute http(s) are reported.
func checkGrounding(phase string, data map[string]any) []Issue {
	cites := ExtractCitations(data)
	if len(cites) == 0 {
		return []Issue{{
			Kind:    KindGrounding,
			Path:    "citations",
			Message: fmt.Sprintf("%s requires at least one citation", phase),
		}}
	}
	bad := 0
	for _, c := range cites {
		if c.URL != "" && !ValidCitationURL(c.URL) {
			bad++
		}
	}
	if bad > 0 {
		return []Issue{{
			Kind:    KindGrounding,
			Path:    "citations",
			Message: fmt.Sprintf("%d citations with invalid URLs", bad),
		}}
	}
	return nil
}
