package models

import "time"

// Task is one unit of scheduled or dependency-triggered work. Tasks are
// immutable after load; the engine keys everything by Name.
type Task struct {
	Name string `yaml:"name"`

	// Fetch tasks: which exchange binding to call and with what.
	Exchange string         `yaml:"exchange"`
	Function string         `yaml:"function"`
	Args     []any          `yaml:"args"`
	Kwargs   map[string]any `yaml:"kwargs"`

	// Dependency-driven tasks.
	Dependencies []string `yaml:"dependencies"`

	// Interval between scheduled executions. Zero means the task has no
	// timer of its own and runs only inside a dependency cascade.
	Interval time.Duration `yaml:"-"`

	// Expressions over dependency results. Return computes the cached
	// value, Condition gates Log/Action.
	Return    string `yaml:"return"`
	Condition string `yaml:"condition"`
	Log       string `yaml:"log"`
	Action    string `yaml:"action"`

	// TTL overrides the engine-wide cache TTL for this task's entry.
	TTL time.Duration `yaml:"-"`
}

// HasInterval reports whether the task owns a timer.
func (t *Task) HasInterval() bool { return t.Interval > 0 }

// IsFetch reports whether the task calls out to an exchange.
func (t *Task) IsFetch() bool { return t.Exchange != "" && t.Function != "" }
