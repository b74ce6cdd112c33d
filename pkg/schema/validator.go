package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Mindburn-Labs/plangate/pkg/phases"
)

// Validator checks phase output against compiled phase contracts.
// It holds no mutable state and is safe for concurrent use.
type Validator struct {
	registry *phases.Registry
}

// NewValidator creates a validator over the given registry, or over
// phases.Default() when registry is nil.
func NewValidator(registry *phases.Registry) *Validator {
	if registry == nil {
		registry = phases.Default()
	}
	return &Validator{registry: registry}
}

// Registry returns the phase registry the validator resolves against.
func (v *Validator) Registry() *phases.Registry {
	return v.registry
}

// Validate resolves phaseID, parses raw against the phase contract and,
// when the structure is sound and the phase is evidence-bearing, applies
// the grounding rule. All findings are collected and sorted by path.
func (v *Validator) Validate(phaseID string, raw any) Result {
	contract, err := v.registry.Contract(phaseID)
	if err != nil {
		return Result{Issues: []Issue{unknownPhase(phaseID)}}
	}
	res := Result{Phase: contract.ID}

	value, err := Decode(raw)
	if err != nil {
		res.Issues = []Issue{{Kind: KindValidation, Path: RootPath, Message: err.Error()}}
		return res
	}

	if err := contract.Schema().Validate(value); err != nil {
		res.Issues = flatten(err)
		return res
	}
	data := value.(map[string]any)

	if issue, ok := checkSchemaVersion(contract, data); !ok {
		res.Issues = []Issue{issue}
		return res
	}

	if contract.EvidenceBearing {
		if issues := checkGrounding(contract.ID, data); len(issues) > 0 {
			res.Issues = issues
			return res
		}
	}

	res.Valid = true
	res.Data = data
	return res
}

// StructuralCheck probes only for the presence of the contract's required
// top-level fields. A non-object output reports RootPath as missing.
func (v *Validator) StructuralCheck(phaseID string, output any) StructuralResult {
	contract, err := v.registry.Contract(phaseID)
	if err != nil {
		return StructuralResult{MissingFields: []string{}, Issues: []Issue{unknownPhase(phaseID)}}
	}
	res := StructuralResult{Phase: contract.ID, MissingFields: []string{}}

	value, err := Decode(output)
	obj, ok := value.(map[string]any)
	if err != nil || !ok {
		res.MissingFields = []string{RootPath}
		return res
	}
	for _, f := range contract.RequiredFields {
		if _, present := obj[f]; !present {
			res.MissingFields = append(res.MissingFields, f)
		}
	}
	res.Valid = len(res.MissingFields) == 0
	return res
}

func unknownPhase(phaseID string) Issue {
	return Issue{
		Kind:    KindUnknownPhase,
		Path:    "phase",
		Message: fmt.Sprintf("Unknown phase: %q", phaseID),
	}
}

func checkSchemaVersion(contract *phases.Contract, data map[string]any) (Issue, bool) {
	declared, ok := data["schemaVersion"].(string)
	if !ok {
		return Issue{}, true
	}
	ver, err := semver.NewVersion(declared)
	if err != nil {
		return Issue{
			Kind:    KindValidation,
			Path:    "schemaVersion",
			Message: fmt.Sprintf("%q is not a valid semantic version", declared),
		}, false
	}
	if !contract.Accepts(ver) {
		return Issue{
			Kind:    KindValidation,
			Path:    "schemaVersion",
			Message: fmt.Sprintf("version %s is incompatible with %s contract %s", ver, contract.ID, contract.Version),
		}, false
	}
	return Issue{}, true
}

// flatten turns the jsonschema error tree into its leaf findings.
func flatten(err error) []Issue {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []Issue{{Kind: KindValidation, Path: RootPath, Message: err.Error()}}
	}

	var out []Issue
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			out = append(out, leafIssues(e)...)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)

	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Message < out[j].Message
	})
	deduped := out[:0]
	for i, issue := range out {
		if i > 0 && issue == out[i-1] {
			continue
		}
		deduped = append(deduped, issue)
	}
	return deduped
}

const missingPrefix = "missing properties: "

// leafIssues splits a "required" failure into one issue per missing field.
func leafIssues(e *jsonschema.ValidationError) []Issue {
	parent := pointerToPath(e.InstanceLocation)
	if strings.HasSuffix(e.KeywordLocation, "/required") && strings.HasPrefix(e.Message, missingPrefix) {
		var out []Issue
		for _, name := range strings.Split(strings.TrimPrefix(e.Message, missingPrefix), ", ") {
			name = strings.TrimSuffix(strings.TrimPrefix(name, "'"), "'")
			out = append(out, Issue{Kind: KindValidation, Path: joinPath(parent, name), Message: "is required"})
		}
		return out
	}
	return []Issue{{Kind: KindValidation, Path: parent, Message: e.Message}}
}

func joinPath(parent, name string) string {
	if parent == RootPath {
		return name
	}
	return parent + "." + name
}

// pointerToPath converts a JSON pointer ("/a/0/b") to a dotted path ("a.0.b").
func pointerToPath(ptr string) string {
	if ptr == "" || ptr == "/" {
		return RootPath
	}
	segs := strings.Split(strings.TrimPrefix(ptr, "/"), "/")
	for i, s := range segs {
		s = strings.ReplaceAll(s, "~1", "/")
		segs[i] = strings.ReplaceAll(s, "~0", "~")
	}
	return strings.Join(segs, ".")
}

