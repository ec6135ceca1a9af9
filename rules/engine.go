package rules

import (
	"fmt"
	"time"

	"github.com/google/cel-go/cel"
)

// Engine evaluates a status rule table.
// ComputeStatus walks the condition trees directly; EvaluateAll runs the
// compiled CEL program of every rule and keeps its evaluation state.
// An Engine is immutable once built and safe for concurrent use.
type Engine struct {
	env         *cel.Env
	table       []StatusRule
	expressions []string
	programs    []cel.Program
}

// RuleDescription describes one rule of an engine's table
type RuleDescription struct {
	Rank       int         `json:"rank"`
	Status     StatusLabel `json:"status"`
	Expression string      `json:"expression"`
	Condition  Condition   `json:"condition"`
}

// NewEngine creates an engine over the status rule table
func NewEngine() (*Engine, error) {
	return NewEngineWithRules(StatusRules())
}

// NewEngineWithRules creates an engine over a custom table.
// The table order is the evaluation order.
func NewEngineWithRules(table []StatusRule) (*Engine, error) {
	env, err := newCELEnv()
	if err != nil {
		return nil, err
	}

	en := &Engine{
		env:         env,
		table:       make([]StatusRule, len(table)),
		expressions: make([]string, len(table)),
		programs:    make([]cel.Program, len(table)),
	}
	copy(en.table, table)

	for i, r := range en.table {
		expr := Expression(r.Condition)
		prog, err := en.compile(expr)
		if err != nil {
			return nil, fmt.Errorf("failed to compile rule %d (%s): %w", i+1, r.Status, err)
		}
		en.expressions[i] = expr
		en.programs[i] = prog
	}

	return en, nil
}

// compile type-checks expression and builds a program with state tracking
// and a cost limit.
func (en *Engine) compile(expression string) (cel.Program, error) {
	ast, issues := en.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("expression must return bool, got %v", ast.OutputType())
	}

	prog, err := en.env.Program(ast,
		cel.EvalOptions(cel.OptTrackState),
		cel.CostLimit(1000000),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}
	return prog, nil
}

// ComputeStatus returns the status of the first rule record satisfies at
// time now, or StatusInitiee when none does.
func (en *Engine) ComputeStatus(record Record, now time.Time) StatusLabel {
	return firstMatch(en.table, mapLookup(record), now)
}

// EvaluateAll evaluates every rule against record, in priority order.
// A rule whose program fails is reported unmatched with its error and the
// remaining rules are still evaluated.
func (en *Engine) EvaluateAll(record Record, now time.Time) []*EvaluationResult {
	fields := map[string]any{}
	for k, v := range record {
		fields[k] = v
	}
	activation := map[string]any{
		"record": fields,
		"now":    now,
	}

	results := make([]*EvaluationResult, 0, len(en.table))
	for i, r := range en.table {
		result := &EvaluationResult{
			Rank:       i + 1,
			Status:     r.Status,
			Expression: en.expressions[i],
		}

		out, details, err := en.programs[i].Eval(activation)
		if err != nil {
			result.Error = err
			results = append(results, result)
			continue
		}

		if boolVal, ok := out.Value().(bool); ok {
			result.Matched = boolVal
		}
		if details != nil {
			result.Trace = details.State()
		}
		results = append(results, result)
	}

	return results
}

// Rules describes the engine's table in priority order
func (en *Engine) Rules() []RuleDescription {
	out := make([]RuleDescription, len(en.table))
	for i, r := range en.table {
		out[i] = RuleDescription{
			Rank:       i + 1,
			Status:     r.Status,
			Expression: en.expressions[i],
			Condition:  r.Condition,
		}
	}
	return out
}

// FirstMatch returns the status of the first matched result, or
// StatusInitiee when none matched.
func FirstMatch(results []*EvaluationResult) StatusLabel {
	for _, r := range results {
		if r.Matched {
			return r.Status
		}
	}
	return StatusInitiee
}
