package graph

import (
	"cryptomon/internal/models"
)

// Graph indexes the task set and its dependency edges. An edge runs from each
// dependency to its dependent. Immutable once built.
type Graph struct {
	tasks   map[string]*models.Task
	order   []string            // declaration order
	index   map[string]int      // name -> declaration index
	deps    map[string][]string // task -> dependencies (declared order)
	depends map[string][]string // task -> immediate dependents (declared order)
}

// New indexes the given task definitions. Call Validate before using the
// graph for scheduling.
func New(tasks []*models.Task) *Graph {
	g := &Graph{
		tasks:   make(map[string]*models.Task, len(tasks)),
		index:   make(map[string]int, len(tasks)),
		deps:    make(map[string][]string, len(tasks)),
		depends: make(map[string][]string),
	}
	for i, t := range tasks {
		if _, dup := g.tasks[t.Name]; dup {
			// Recorded here, surfaced by Validate. Keep the first declaration.
			g.order = append(g.order, t.Name)
			continue
		}
		g.tasks[t.Name] = t
		g.index[t.Name] = i
		g.order = append(g.order, t.Name)
		g.deps[t.Name] = append([]string(nil), t.Dependencies...)
	}
	for _, name := range g.declared() {
		for _, dep := range g.deps[name] {
			g.depends[dep] = append(g.depends[dep], name)
		}
	}
	return g
}

// declared returns unique task names in declaration order.
func (g *Graph) declared() []string {
	seen := make(map[string]struct{}, len(g.order))
	out := make([]string, 0, len(g.tasks))
	for _, name := range g.order {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// Task returns the definition for name, or nil.
func (g *Graph) Task(name string) *models.Task { return g.tasks[name] }

// Tasks returns all task definitions in declaration order.
func (g *Graph) Tasks() []*models.Task {
	out := make([]*models.Task, 0, len(g.tasks))
	for _, name := range g.declared() {
		out = append(out, g.tasks[name])
	}
	return out
}

// Validate checks the structural invariants: unique names, every dependency
// defined, acyclic, and every task reachable from an interval-bearing root.
func (g *Graph) Validate() error {
	seen := make(map[string]int, len(g.order))
	for _, name := range g.order {
		seen[name]++
		if seen[name] > 1 {
			return &DuplicateTaskError{Task: name}
		}
	}
	for _, name := range g.declared() {
		for _, dep := range g.deps[name] {
			if _, ok := g.tasks[dep]; !ok {
				return &UnknownDependencyError{Task: name, Dependency: dep}
			}
		}
	}
	if cycle := g.findCycle(); cycle != nil {
		return &CycleError{Members: cycle}
	}
	reached := g.reachableFromScheduled()
	for _, name := range g.declared() {
		if g.tasks[name].HasInterval() {
			continue
		}
		if _, ok := reached[name]; !ok {
			return &UnreachableTaskError{Task: name}
		}
	}
	return nil
}

// findCycle runs a colored DFS over dependency edges and returns the members
// of the first cycle found, or nil.
func (g *Graph) findCycle() []string {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(g.tasks))
	var stack []string
	var cycle []string

	var visit func(name string) bool
	visit = func(name string) bool {
		color[name] = grey
		stack = append(stack, name)
		for _, dep := range g.deps[name] {
			if _, ok := g.tasks[dep]; !ok {
				continue
			}
			switch color[dep] {
			case grey:
				// Unwind the stack back to dep to name the members.
				for i := len(stack) - 1; i >= 0; i-- {
					cycle = append([]string{stack[i]}, cycle...)
					if stack[i] == dep {
						return true
					}
				}
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[name] = black
		return false
	}

	for _, name := range g.declared() {
		if color[name] == white && visit(name) {
			return cycle
		}
	}
	return nil
}

// reachableFromScheduled walks dependent edges from every interval-bearing
// task and returns the set of names visited.
func (g *Graph) reachableFromScheduled() map[string]struct{} {
	reached := make(map[string]struct{})
	var queue []string
	for _, name := range g.declared() {
		if g.tasks[name].HasInterval() {
			reached[name] = struct{}{}
			queue = append(queue, name)
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range g.depends[cur] {
			if _, ok := reached[child]; ok {
				continue
			}
			reached[child] = struct{}{}
			queue = append(queue, child)
		}
	}
	return reached
}

// TopologicalOrder returns every task name with dependencies before
// dependents. Ties are broken by declaration order, so the result is
// deterministic. Call only on a validated graph.
func (g *Graph) TopologicalOrder() []string {
	indeg := make(map[string]int, len(g.tasks))
	for _, name := range g.declared() {
		indeg[name] = len(g.deps[name])
	}
	out := make([]string, 0, len(g.tasks))
	done := make(map[string]struct{}, len(g.tasks))
	for len(out) < len(g.tasks) {
		picked := ""
		for _, name := range g.declared() {
			if _, ok := done[name]; ok {
				continue
			}
			if indeg[name] == 0 {
				picked = name
				break
			}
		}
		if picked == "" {
			break // cycle; Validate reports it
		}
		done[picked] = struct{}{}
		out = append(out, picked)
		for _, child := range g.depends[picked] {
			indeg[child]--
		}
	}
	return out
}

// DependentsOf returns the immediate children of name in declaration order.
func (g *Graph) DependentsOf(name string) []string {
	return append([]string(nil), g.depends[name]...)
}

// TransitiveDeps returns the transitive dependency set of name, excluding
// name itself.
func (g *Graph) TransitiveDeps(name string) map[string]struct{} {
	out := make(map[string]struct{})
	var walk func(n string)
	walk = func(n string) {
		for _, dep := range g.deps[n] {
			if _, ok := out[dep]; ok {
				continue
			}
			if _, defined := g.tasks[dep]; !defined {
				continue
			}
			out[dep] = struct{}{}
			walk(dep)
		}
	}
	walk(name)
	return out
}

// CascadeFrom returns the transitive dependents of name that are driven by
// cascades rather than their own timers, in topological order. Dependents
// with an interval are excluded and not traversed through: their own timer
// owns them.
func (g *Graph) CascadeFrom(name string) []string {
	member := make(map[string]struct{})
	queue := []string{name}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range g.depends[cur] {
			if g.tasks[child].HasInterval() {
				continue
			}
			if _, ok := member[child]; ok {
				continue
			}
			member[child] = struct{}{}
			queue = append(queue, child)
		}
	}
	out := make([]string, 0, len(member))
	for _, n := range g.TopologicalOrder() {
		if _, ok := member[n]; ok {
			out = append(out, n)
		}
	}
	return out
}
