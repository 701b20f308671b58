// Package expr evaluates the scripted return/condition expressions and log
// templates from task definitions. Expressions are parsed once at load time
// and re-evaluated per tick against a fresh variable binding; they see only
// the bound task names and a fixed whitelist of functions, never ambient
// process state.
package expr

import (
	"github.com/Knetic/govaluate"
	"github.com/pkg/errors"
)

// ExecContext binds task names to their currently valid cached values for
// one evaluation. Built fresh per tick, never retained.
type ExecContext map[string]any

// accessor is one step of a reference path: a map field or a slice index.
type accessor struct {
	field string
	index int
	isIdx bool
}

// ref is one variable reference found in an expression: a root task name,
// an optional accessor chain, and the flat name it was rewritten to.
// govaluate has no map/slice indexing, so okx_btc.last becomes the variable
// okx_btc_last and the path is walked when binding parameters.
type ref struct {
	root string
	path []accessor
	flat string
}

// Program is a compiled expression. Immutable and safe for concurrent use.
type Program struct {
	source string
	expr   *govaluate.EvaluableExpression
	refs   []ref
}

// Compile parses source, failing with *SyntaxError on malformed input so
// bad expressions are rejected at load time rather than at a random tick.
func Compile(source string) (*Program, error) {
	rewritten, refs, err := rewrite(source)
	if err != nil {
		return nil, &SyntaxError{Source: source, Err: err}
	}
	ee, err := govaluate.NewEvaluableExpressionWithFunctions(rewritten, builtins)
	if err != nil {
		return nil, &SyntaxError{Source: source, Err: err}
	}
	return &Program{source: source, expr: ee, refs: refs}, nil
}

// Source returns the original expression text.
func (p *Program) Source() string { return p.source }

// Vars returns the distinct root task names the expression references.
func (p *Program) Vars() []string {
	seen := make(map[string]struct{}, len(p.refs))
	out := make([]string, 0, len(p.refs))
	for _, r := range p.refs {
		if _, ok := seen[r.root]; ok {
			continue
		}
		seen[r.root] = struct{}{}
		out = append(out, r.root)
	}
	return out
}

// Evaluate runs the expression against ctx. A referenced task name absent
// from ctx yields *UnboundVariableError. Evaluation has no side effects.
func (p *Program) Evaluate(ctx ExecContext) (any, error) {
	params := make(map[string]any, len(p.refs))
	for _, r := range p.refs {
		rootVal, ok := ctx[r.root]
		if !ok {
			return nil, &UnboundVariableError{Name: r.root}
		}
		v, err := walk(rootVal, r.path)
		if err != nil {
			return nil, errors.Wrapf(err, "resolve %s", r.flat)
		}
		params[r.flat] = normalize(v)
	}
	result, err := p.expr.Evaluate(params)
	if err != nil {
		return nil, errors.Wrapf(err, "evaluate %q", p.source)
	}
	return result, nil
}

// EvaluateCondition runs the expression and requires a boolean result.
func (p *Program) EvaluateCondition(ctx ExecContext) (bool, error) {
	v, err := p.Evaluate(ctx)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, errors.Errorf("condition %q yielded %T, want bool", p.source, v)
	}
	return b, nil
}

// walk follows an accessor path into nested maps and slices.
func walk(v any, path []accessor) (any, error) {
	for _, acc := range path {
		if acc.isIdx {
			arr, ok := v.([]any)
			if !ok {
				return nil, errors.Errorf("cannot index %T", v)
			}
			if acc.index < 0 || acc.index >= len(arr) {
				return nil, errors.Errorf("index %d out of range (len %d)", acc.index, len(arr))
			}
			v = arr[acc.index]
			continue
		}
		switch m := v.(type) {
		case map[string]any:
			fv, ok := m[acc.field]
			if !ok {
				return nil, errors.Errorf("field %s not present", acc.field)
			}
			v = fv
		case map[any]any: // yaml.v2 decodes nested maps like this
			fv, ok := m[acc.field]
			if !ok {
				return nil, errors.Errorf("field %s not present", acc.field)
			}
			v = fv
		default:
			return nil, errors.Errorf("cannot take field %s of %T", acc.field, v)
		}
	}
	return v, nil
}

// normalize widens numeric values to float64, which is what govaluate
// operates on. Everything else passes through.
func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}
