package evaluator

import (
	"fmt"
	"strings"

	"github.com/Mindburn-Labs/plangate/pkg/contracts"
)

// GenerateReport renders a reviewer-facing text report. Output depends only
// on the result, so identical results produce identical reports.
func GenerateReport(r Result) string {
	var b strings.Builder
	s := r.Score

	fmt.Fprintf(&b, "Quality report: %s\n", orDash(r.Phase))
	fmt.Fprintf(&b, "Overall score: %d/100 (%s)\n", s.Overall, s.Tier)
	if r.AutoApproved {
		fmt.Fprintf(&b, "Review action: %s (auto-approved)\n", r.ReviewAction)
	} else {
		fmt.Fprintf(&b, "Review action: %s\n", r.ReviewAction)
	}

	b.WriteString("\nDimensions:\n")
	for _, d := range s.Dimensions {
		fmt.Fprintf(&b, "  %-18s %5.2f  x %.2f  %s\n", d.Name, d.Score, d.Weight, d.Feedback)
	}

	if len(r.Reasons) > 0 {
		b.WriteString("\nReasons:\n")
		for _, reason := range r.Reasons {
			fmt.Fprintf(&b, "  - %s\n", reason)
		}
	}
	if len(r.Recommendations) > 0 {
		b.WriteString("\nRecommendations:\n")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(&b, "  - %s\n", rec)
		}
	}

	if !s.ProductionReady {
		fmt.Fprintf(&b, "\nWARNING: not production-ready (overall %d < %d)\n", s.Overall, contracts.ProductionReadyThreshold)
	}
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
