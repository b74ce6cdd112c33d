package quality

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/Mindburn-Labs/plangate/pkg/contracts"
	"github.com/Mindburn-Labs/plangate/pkg/schema"
)

const (
	charsPerClaim          = 200
	highConfidence         = 0.8
	longReasoningChars     = 200
	maxDensityDepth        = 5
	singleGeneratorScore   = 7.0
	validationErrorPenalty = 4.0
)

func evidenceCoverage(cites []contracts.Citation, size int) (float64, string) {
	if len(cites) == 0 {
		return 0, "No citations provided; claims are unsupported"
	}
	claims := int(math.Ceil(float64(size) / charsPerClaim))
	if claims < 1 {
		claims = 1
	}
	ratio := math.Min(float64(len(cites))/float64(claims), 1)
	avg := meanConfidence(cites)
	score := ratio*7 + avg*3
	return score, fmt.Sprintf("%d citations for ~%d claims (coverage %.0f%%, mean confidence %.2f)",
		len(cites), claims, ratio*100, avg)
}

func factualAccuracy(orch *contracts.Orchestration) (float64, string) {
	consensus, ok := orch.Consensus()
	if !ok {
		return singleGeneratorScore, "Single generator, unverified"
	}
	var score float64
	switch {
	case consensus >= 0.9:
		score = 9.5
	case consensus >= 0.8:
		score = 8.5
	case consensus >= 0.7:
		score = 7.0
	case consensus >= 0.6:
		score = 5.5
	default:
		score = 3.0
	}
	return score, fmt.Sprintf("Generator consensus %.2f", consensus)
}

func completeness(res schema.Result) (float64, string) {
	if !res.Valid {
		n := len(res.Issues)
		score := math.Max(0, 10-validationErrorPenalty*float64(n))
		return score, fmt.Sprintf("%d validation errors; first: %s", n, res.Issues[0])
	}
	populated, total := density(res.Data, 0)
	if total == 0 {
		return 0, "Artifact has no fields"
	}
	d := float64(populated) / float64(total)
	var score float64
	switch {
	case d >= 0.95:
		score = 10
	case d >= 0.85:
		score = 8.5
	case d >= 0.7:
		score = 7.0
	default:
		score = 5.0 * d / 0.7
	}
	return score, fmt.Sprintf("%d of %d fields populated (%.0f%%)", populated, total, d*100)
}

// density counts populated and total fields, descending into nested objects
// and arrays of objects up to maxDensityDepth.
func density(obj map[string]any, depth int) (populated, total int) {
	for _, v := range obj {
		total++
		if isPopulated(v) {
			populated++
		}
		if depth+1 >= maxDensityDepth {
			continue
		}
		switch child := v.(type) {
		case map[string]any:
			p, t := density(child, depth+1)
			populated += p
			total += t
		case []any:
			for _, el := range child {
				if m, ok := el.(map[string]any); ok {
					p, t := density(m, depth+1)
					populated += p
					total += t
				}
			}
		}
	}
	return populated, total
}

func isPopulated(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}

func citationQuality(cites []contracts.Citation) (float64, string) {
	if len(cites) == 0 {
		return 5.0, "No citations to assess; neutral score"
	}
	avg := meanConfidence(cites)
	high := 0
	for _, c := range cites {
		if c.Confidence > highConfidence {
			high++
		}
	}
	frac := float64(high) / float64(len(cites))
	return avg*6 + frac*4, fmt.Sprintf("Mean confidence %.2f; %d of %d above %.1f",
		avg, high, len(cites), highConfidence)
}

func reasoningDepth(serialized string, data map[string]any, orch *contracts.Orchestration) (float64, string) {
	score := 5.0
	var notes []string
	lower := strings.ToLower(serialized)
	if strings.Contains(lower, "reasoning") {
		score += 1.5
		notes = append(notes, "reasoning")
	}
	if strings.Contains(lower, "analysis") {
		score += 1.0
		notes = append(notes, "analysis")
	}
	if strings.Contains(lower, "insight") {
		score += 0.5
		notes = append(notes, "insight")
	}
	if hasLongReasoning(data, 0) {
		score += 1.0
		notes = append(notes, "long-form reasoning")
	}
	if orch != nil && len(orch.AlternativeIdeas) > 0 {
		score += 1.0
		notes = append(notes, "alternative ideas")
	}
	if len(notes) == 0 {
		return math.Min(score, 10), "No reasoning signals found"
	}
	return math.Min(score, 10), "Signals: " + strings.Join(notes, ", ")
}

func hasLongReasoning(v any, depth int) bool {
	if depth >= maxDensityDepth {
		return false
	}
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if s, ok := child.(string); ok && strings.Contains(strings.ToLower(k), "reasoning") &&
				utf8.RuneCountInString(s) > longReasoningChars {
				return true
			}
			if hasLongReasoning(child, depth+1) {
				return true
			}
		}
	case []any:
		for _, el := range t {
			if hasLongReasoning(el, depth+1) {
				return true
			}
		}
	}
	return false
}

func meanConfidence(cites []contracts.Citation) float64 {
	if len(cites) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range cites {
		sum += clamp(c.Confidence, 0, 1)
	}
	return sum / float64(len(cites))
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
