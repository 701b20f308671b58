package service

import "fmt"

// FetchError wraps an exchange call failure during a tick.
type FetchError struct {
	Task     string
	Exchange string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("task %s: fetch from %s: %v", e.Task, e.Exchange, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// UnknownTaskError reports a trigger request for a name the graph does not
// hold.
type UnknownTaskError struct {
	Task string
}

func (e *UnknownTaskError) Error() string {
	return fmt.Sprintf("task %s is not defined", e.Task)
}
