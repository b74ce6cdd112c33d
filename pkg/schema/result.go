// Package schema validates raw phase output against the phase's output
// contract and enforces the grounding rule for evidence-bearing phases.
//
// Nothing in this package returns a Go error for a malformed artifact:
// every problem, including an unknown phase or undecodable input, is
// reported as an itemized Issue in the Result.
package schema

import "fmt"

// RootPath is the Issue path of problems with the artifact as a whole.
const RootPath = "(root)"

// IssueKind classifies an Issue.
type IssueKind string

const (
	KindValidation   IssueKind = "validation"
	KindGrounding    IssueKind = "grounding"
	KindUnknownPhase IssueKind = "unknown_phase"
)

// Issue is a single validation finding. Path is dotted, with array
// indices as numeric segments (e.g. "opportunities.0.title").
type Issue struct {
	Kind    IssueKind `json:"kind"`
	Path    string    `json:"path"`
	Message string    `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Path, i.Message)
}

// Result is the outcome of Validate. Data holds the decoded artifact only
// when Valid is true.
type Result struct {
	Valid  bool           `json:"valid"`
	Phase  string         `json:"phase,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
	Issues []Issue        `json:"issues,omitempty"`
}

// Errors renders the issues as "path: message" strings.
func (r Result) Errors() []string {
	out := make([]string, 0, len(r.Issues))
	for _, i := range r.Issues {
		out = append(out, i.String())
	}
	return out
}

// HasKind reports whether any issue is of the given kind.
func (r Result) HasKind(kind IssueKind) bool {
	for _, i := range r.Issues {
		if i.Kind == kind {
			return true
		}
	}
	return false
}

// StructuralResult is the outcome of StructuralCheck.
type StructuralResult struct {
	Valid         bool     `json:"valid"`
	Phase         string   `json:"phase,omitempty"`
	MissingFields []string `json:"missing_fields"`
	Issues        []Issue  `json:"issues,omitempty"`
}
