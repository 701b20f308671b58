package expr

import (
	"fmt"
	"math"

	"github.com/Knetic/govaluate"
)

// builtins is the fixed whitelist of functions exposed to expressions.
// Expressions never see anything else of the process.
var builtins = map[string]govaluate.ExpressionFunction{
	"abs":   unary(math.Abs),
	"round": unary(math.Round),
	"floor": unary(math.Floor),
	"ceil":  unary(math.Ceil),
	"min":   fold(math.Min),
	"max":   fold(math.Max),
	"len":   length,
}

func unary(fn func(float64) float64) govaluate.ExpressionFunction {
	return func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("want 1 argument, got %d", len(args))
		}
		f, err := asFloat(args[0])
		if err != nil {
			return nil, err
		}
		return fn(f), nil
	}
}

func fold(fn func(float64, float64) float64) govaluate.ExpressionFunction {
	return func(args ...any) (any, error) {
		if len(args) < 2 {
			return nil, fmt.Errorf("want at least 2 arguments, got %d", len(args))
		}
		acc, err := asFloat(args[0])
		if err != nil {
			return nil, err
		}
		for _, a := range args[1:] {
			f, err := asFloat(a)
			if err != nil {
				return nil, err
			}
			acc = fn(acc, f)
		}
		return acc, nil
	}
}

func length(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("want 1 argument, got %d", len(args))
	}
	switch v := args[0].(type) {
	case string:
		return float64(len(v)), nil
	case []any:
		return float64(len(v)), nil
	case map[string]any:
		return float64(len(v)), nil
	default:
		return nil, fmt.Errorf("len: unsupported type %T", args[0])
	}
}

func asFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}
