package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Mindburn-Labs/plangate/pkg/evaluator"
	"github.com/Mindburn-Labs/plangate/pkg/phases"
	"github.com/Mindburn-Labs/plangate/pkg/quality"
	"github.com/Mindburn-Labs/plangate/pkg/schema"
)

// Policy is the operator-tunable part of the gate.
type Policy struct {
	Weights    quality.Weights      `yaml:"weights" json:"weights"`
	Thresholds evaluator.Thresholds `yaml:"thresholds" json:"thresholds"`
	Rules      []evaluator.Rule     `yaml:"rules,omitempty" json:"rules,omitempty"`

	// EscalateOptional opens a low-priority escalation for optional reviews.
	EscalateOptional bool `yaml:"escalate_optional" json:"escalate_optional"`

	// Aliases maps extra legacy phase names to canonical phase ids.
	Aliases map[string]string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
}

// DefaultPolicy returns the standard weights and thresholds with no rules.
func DefaultPolicy() *Policy {
	return &Policy{
		Weights:    quality.DefaultWeights(),
		Thresholds: evaluator.DefaultThresholds(),
	}
}

// LoadPolicy reads a YAML policy file. Fields the file omits keep their
// defaults. An empty path returns DefaultPolicy.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	p, err := ParsePolicy(data)
	if err != nil {
		return nil, fmt.Errorf("policy %s: %w", path, err)
	}
	return p, nil
}

// ParsePolicy decodes and validates a YAML policy. Unknown keys are errors.
func ParsePolicy(data []byte) (*Policy, error) {
	p := DefaultPolicy()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(p); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse policy: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks weights, thresholds and rule declarations. Rule
// expressions are compiled when the evaluator is built.
func (p *Policy) Validate() error {
	if err := p.Weights.Validate(); err != nil {
		return fmt.Errorf("invalid weights: %w", err)
	}
	if err := p.Thresholds.Validate(); err != nil {
		return fmt.Errorf("invalid thresholds: %w", err)
	}
	seen := make(map[string]bool, len(p.Rules))
	for i, r := range p.Rules {
		if r.Name == "" {
			return fmt.Errorf("rule %d: name is required", i)
		}
		if seen[r.Name] {
			return fmt.Errorf("rule %q: duplicate name", r.Name)
		}
		seen[r.Name] = true
		if r.Expression == "" {
			return fmt.Errorf("rule %q: expression is required", r.Name)
		}
		if r.Action.Severity() < 0 {
			return fmt.Errorf("rule %q: unknown action %q", r.Name, r.Action)
		}
	}
	return nil
}

// Gate bundles the pure components built from one policy.
type Gate struct {
	Registry  *phases.Registry
	Validator *schema.Validator
	Scorer    *quality.Scorer
	Evaluator *evaluator.Evaluator
}

// Build compiles the phase registry, scorer and evaluator for the policy.
func (p *Policy) Build() (*Gate, error) {
	reg, err := phases.NewRegistry(phases.WithAliases(p.Aliases))
	if err != nil {
		return nil, err
	}
	v := schema.NewValidator(reg)
	sc, err := quality.NewScorer(v, quality.WithWeights(p.Weights))
	if err != nil {
		return nil, err
	}
	ev, err := evaluator.New(sc, evaluator.WithThresholds(p.Thresholds), evaluator.WithRules(p.Rules...))
	if err != nil {
		return nil, err
	}
	return &Gate{Registry: reg, Validator: v, Scorer: sc, Evaluator: ev}, nil
}
