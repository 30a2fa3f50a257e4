// Package plan computes the execution plan for a validated dependency
// graph: topological levels, the critical path and a parallelism estimate.
package plan

import (
	"time"

	"github.com/veriflow-io/veriflow/pkg/graph"
)

// Plan is the scheduling blueprint for one workflow graph. Plans are
// deterministic: planning the same graph twice yields identical results.
type Plan struct {
	// Levels maps level number (0-based) to the names of the steps whose
	// longest dependency chain has that length. Level 0 holds the steps
	// with no dependencies.
	Levels map[int][]string

	// LevelOf maps each step name to its level.
	LevelOf map[string]int

	// CriticalPath is the source-to-sink chain whose summed per-step
	// timeout is maximal, ties broken by insertion order.
	CriticalPath []string

	// CriticalPathDuration is the summed timeout along the critical path,
	// bounding the minimum possible execution duration.
	CriticalPathDuration time.Duration

	// MaxParallelism is the widest level, an upper bound on useful
	// concurrency.
	MaxParallelism int
}

// LevelCount returns the number of levels in the plan.
func (p *Plan) LevelCount() int {
	return len(p.Levels)
}

// Compute derives the plan for a validated graph. Steps without an
// explicit timeout weigh in with defaultTimeout on the critical path.
func Compute(g *graph.Graph, defaultTimeout time.Duration) *Plan {
	names := g.Steps()

	p := &Plan{
		Levels:  make(map[int][]string),
		LevelOf: make(map[string]int, len(names)),
	}

	// Longest-chain depth per step. Dependencies always resolve before
	// their dependents because levelFor recurses into them first; the
	// graph is known acyclic at this point.
	var levelFor func(name string) int
	levelFor = func(name string) int {
		if level, done := p.LevelOf[name]; done {
			return level
		}

		level := 0
		for _, dep := range g.Dependencies(name) {
			if depLevel := levelFor(dep) + 1; depLevel > level {
				level = depLevel
			}
		}

		p.LevelOf[name] = level

		return level
	}

	for _, name := range names {
		level := levelFor(name)
		p.Levels[level] = append(p.Levels[level], name)

		if width := len(p.Levels[level]); width > p.MaxParallelism {
			p.MaxParallelism = width
		}
	}

	p.computeCriticalPath(g, names, defaultTimeout)

	return p
}

// computeCriticalPath finds the heaviest source-to-sink chain by summed
// timeout. dist[s] is the heaviest chain ending at s; predecessors record
// which dependency contributed it. Iterating in insertion order with
// strict comparisons makes ties resolve to the earliest-inserted path.
func (p *Plan) computeCriticalPath(g *graph.Graph, names []string, defaultTimeout time.Duration) {
	dist := make(map[string]time.Duration, len(names))
	pred := make(map[string]string, len(names))

	var distFor func(name string) time.Duration
	distFor = func(name string) time.Duration {
		if d, done := dist[name]; done {
			return d
		}

		step, _ := g.Step(name)
		weight := step.EffectiveTimeout(defaultTimeout)

		best := time.Duration(-1)
		bestDep := ""

		for _, dep := range g.Dependencies(name) {
			if d := distFor(dep); d > best {
				best = d
				bestDep = dep
			}
		}

		if bestDep == "" {
			best = 0
		}

		dist[name] = weight + best
		if bestDep != "" {
			pred[name] = bestDep
		}

		return dist[name]
	}

	var sink string
	var sinkDist time.Duration

	for _, name := range names {
		d := distFor(name)

		if len(g.Dependents(name)) > 0 {
			continue // not a sink
		}

		if sink == "" || d > sinkDist {
			sink = name
			sinkDist = d
		}
	}

	if sink == "" {
		return
	}

	// Walk predecessors back to a source, then reverse.
	var reversed []string
	for at := sink; at != ""; at = pred[at] {
		reversed = append(reversed, at)
	}

	path := make([]string, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		path = append(path, reversed[i])
	}

	p.CriticalPath = path
	p.CriticalPathDuration = sinkDist
}
