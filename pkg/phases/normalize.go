package phases

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Normalize maps a phase name as written by a caller onto the form used for
// registry lookups: NFKC, case-folded, trimmed, with underscores and spaces
// turned into single hyphens.
func Normalize(name string) string {
	s := norm.NFKC.String(name)
	s = cases.Fold().String(s)
	s = strings.TrimSpace(s)
	s = strings.Map(func(r rune) rune {
		switch r {
		case '_', ' ', '\t':
			return '-'
		}
		return r
	}, s)
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	return strings.Trim(s, "-")
}
