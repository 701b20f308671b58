package graph

import (
	"fmt"
	"strings"
)

// CycleError reports a dependency cycle; Members lists the task names on the
// cycle in dependency order.
type CycleError struct {
	Members []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Members, " -> "))
}

// UnknownDependencyError reports a dependency name that resolves to no task.
type UnknownDependencyError struct {
	Task       string
	Dependency string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("task %s depends on undefined task %s", e.Task, e.Dependency)
}

// UnreachableTaskError reports a task that has no interval of its own and no
// interval-bearing ancestor, so nothing would ever execute it.
type UnreachableTaskError struct {
	Task string
}

func (e *UnreachableTaskError) Error() string {
	return fmt.Sprintf("task %s has no interval and no scheduled ancestor", e.Task)
}

// DuplicateTaskError reports a task name declared more than once.
type DuplicateTaskError struct {
	Task string
}

func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf("task %s is declared more than once", e.Task)
}
