package evaluator

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/Mindburn-Labs/plangate/pkg/contracts"
)

// Rule is an operator-supplied CEL predicate. When Expression evaluates to
// true the review action is raised to at least Action. Rules never lower
// the action chosen by the built-in policy.
//
// Expressions see: phase (string), overall (int), consensus (double, -1
// when absent), has_consensus (bool), citations (int), valid (bool),
// evidence_bearing (bool) and dimensions (map<string, double>).
type Rule struct {
	Name       string                 `json:"name" yaml:"name"`
	Expression string                 `json:"expression" yaml:"expression"`
	Action     contracts.ReviewAction `json:"action" yaml:"action"`
	Reason     string                 `json:"reason,omitempty" yaml:"reason,omitempty"`
}

type compiledRule struct {
	Rule
	program cel.Program
}

func newRuleEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable("phase", cel.StringType),
		cel.Variable("overall", cel.IntType),
		cel.Variable("consensus", cel.DoubleType),
		cel.Variable("has_consensus", cel.BoolType),
		cel.Variable("citations", cel.IntType),
		cel.Variable("valid", cel.BoolType),
		cel.Variable("evidence_bearing", cel.BoolType),
		cel.Variable("dimensions", cel.MapType(cel.StringType, cel.DoubleType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return env, nil
}

func compileRules(rules []Rule) ([]compiledRule, error) {
	if len(rules) == 0 {
		return nil, nil
	}
	env, err := newRuleEnv()
	if err != nil {
		return nil, err
	}
	out := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		if r.Name == "" {
			return nil, fmt.Errorf("policy rule has no name")
		}
		if r.Action.Severity() < 0 {
			return nil, fmt.Errorf("policy rule %q: unknown action %q", r.Name, r.Action)
		}
		ast, issues := env.Compile(r.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("policy rule %q compile: %w", r.Name, issues.Err())
		}
		prg, err := env.Program(ast,
			cel.InterruptCheckFrequency(100),
			cel.CostLimit(10000),
		)
		if err != nil {
			return nil, fmt.Errorf("policy rule %q program: %w", r.Name, err)
		}
		out = append(out, compiledRule{Rule: r, program: prg})
	}
	return out, nil
}

func (r compiledRule) eval(vars map[string]any) (bool, error) {
	out, _, err := r.program.Eval(vars)
	if err != nil {
		return false, fmt.Errorf("eval: %w", err)
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("result is %T, not bool", out.Value())
	}
	return matched, nil
}

func (r compiledRule) reason() string {
	if r.Reason != "" {
		return r.Reason
	}
	return fmt.Sprintf("policy rule %q matched", r.Name)
}
