package expr

import "fmt"

// SyntaxError reports an expression or template that failed to parse at load
// time, before any tick runs.
type SyntaxError struct {
	Source string
	Err    error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("bad expression %q: %v", e.Source, e.Err)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// UnboundVariableError reports a referenced task name with no currently valid
// value. The scheduler treats it as skip-this-tick.
type UnboundVariableError struct {
	Name string
}

func (e *UnboundVariableError) Error() string {
	return fmt.Sprintf("variable %s has no valid value", e.Name)
}
