package service

import (
	"context"
	"fmt"
)

// Client is the opaque exchange collaborator: one remote call keyed by a
// ccxt-style function name. Implementations may block on network I/O; the
// caller owns timeouts via ctx.
type Client interface {
	Name() string
	Call(ctx context.Context, function string, args []any, kwargs map[string]any) (any, error)
	Close() error
}

// UnknownFunctionError reports a function name the driver does not implement.
type UnknownFunctionError struct {
	Exchange string
	Function string
}

func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("exchange %s has no function %s", e.Exchange, e.Function)
}

// symbolArg extracts the instrument from positional args or the symbol kwarg.
func symbolArg(args []any, kwargs map[string]any) (string, error) {
	if len(args) > 0 {
		if s, ok := args[0].(string); ok {
			return s, nil
		}
		return "", fmt.Errorf("first argument must be an instrument id, got %T", args[0])
	}
	if v, ok := kwargs["symbol"]; ok {
		if s, ok := v.(string); ok {
			return s, nil
		}
	}
	return "", fmt.Errorf("no instrument id in args or kwargs")
}
