// Package graph turns a flat list of step definitions into a validated
// directed acyclic dependency graph.
package graph

import (
	"github.com/veriflow-io/veriflow/pkg/models"
)

// Graph is an immutable dependency graph over the steps of one workflow.
// Nodes are keyed by step name; insertion order is preserved so planning
// results are deterministic.
type Graph struct {
	order      []string
	steps      map[string]*models.StepDefinition
	deps       map[string][]string
	dependents map[string][]string
}

// Build validates the step list and constructs the graph. It is a pure
// function: the input slice is never modified. Validation failures return
// *EmptyWorkflowError, *DuplicateStepNameError, *UnknownDependencyError
// or *CyclicDependencyError.
func Build(steps []*models.StepDefinition) (*Graph, error) {
	if len(steps) == 0 {
		return nil, &EmptyWorkflowError{}
	}

	g := &Graph{
		order:      make([]string, 0, len(steps)),
		steps:      make(map[string]*models.StepDefinition, len(steps)),
		deps:       make(map[string][]string, len(steps)),
		dependents: make(map[string][]string, len(steps)),
	}

	for _, step := range steps {
		if _, exists := g.steps[step.Name]; exists {
			return nil, &DuplicateStepNameError{StepName: step.Name}
		}

		g.order = append(g.order, step.Name)
		g.steps[step.Name] = step
	}

	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if dep == step.Name {
				return nil, &CyclicDependencyError{Cycle: []string{step.Name, step.Name}}
			}

			if _, exists := g.steps[dep]; !exists {
				return nil, &UnknownDependencyError{StepName: step.Name, Dependency: dep}
			}

			g.deps[step.Name] = append(g.deps[step.Name], dep)
			g.dependents[dep] = append(g.dependents[dep], step.Name)
		}
	}

	if cycle := g.findCycle(); cycle != nil {
		return nil, &CyclicDependencyError{Cycle: cycle}
	}

	return g, nil
}

// Steps returns the step names in insertion order.
func (g *Graph) Steps() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)

	return out
}

// Step returns the definition for the given step name.
func (g *Graph) Step(name string) (*models.StepDefinition, bool) {
	step, ok := g.steps[name]

	return step, ok
}

// Dependencies returns the names of the steps the given step depends on.
func (g *Graph) Dependencies(name string) []string {
	return g.deps[name]
}

// Dependents returns the names of the steps depending on the given step.
func (g *Graph) Dependents(name string) []string {
	return g.dependents[name]
}

// Len returns the number of steps in the graph.
func (g *Graph) Len() int {
	return len(g.order)
}

// findCycle runs a depth-first search with the classic three-colour
// marking. It returns the first cycle found as a step-name path, or nil.
func (g *Graph) findCycle() []string {
	permanent := make(map[string]bool, len(g.order))
	temporary := make(map[string]bool, len(g.order))

	var stack []string

	var visit func(name string) []string
	visit = func(name string) []string {
		if permanent[name] {
			return nil
		}

		if temporary[name] {
			// Close the loop: trim the stack down to the first
			// occurrence of this node and append it again.
			for i, onStack := range stack {
				if onStack == name {
					cycle := make([]string, 0, len(stack)-i+1)
					cycle = append(cycle, stack[i:]...)
					cycle = append(cycle, name)

					return cycle
				}
			}

			return []string{name, name}
		}

		temporary[name] = true
		stack = append(stack, name)

		for _, dep := range g.deps[name] {
			if cycle := visit(dep); cycle != nil {
				return cycle
			}
		}

		stack = stack[:len(stack)-1]
		temporary[name] = false
		permanent[name] = true

		return nil
	}

	for _, name := range g.order {
		if cycle := visit(name); cycle != nil {
			return cycle
		}
	}

	return nil
}
