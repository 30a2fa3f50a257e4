// Package execution provides the concurrency-safe shared state of one
// workflow execution.
package execution

import (
	"maps"
	"sync"
	"time"
)

// LogEntry is one appended error or warning.
type LogEntry struct {
	StepName  string    `json:"step_name,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Context is the bag of workflow-scoped variables, per-step results and
// diagnostics shared by every step of one execution. All methods are safe
// for concurrent use by sibling steps; read-after-write is only
// guaranteed across level boundaries, since siblings run concurrently.
type Context struct {
	ID          string
	WorkflowID  string
	TriggerData map[string]any

	mu          sync.RWMutex
	variables   map[string]any
	stepResults map[string]map[string]any
	errors      []LogEntry
	warnings    []LogEntry
	startedAt   time.Time
	stepTimings map[string]time.Duration
}

// NewContext creates the shared state for one execution. The initial
// variables map is copied; callers keep ownership of their argument.
func NewContext(id, workflowID string, variables, triggerData map[string]any) *Context {
	vars := make(map[string]any, len(variables))
	maps.Copy(vars, variables)

	return &Context{
		ID:          id,
		WorkflowID:  workflowID,
		TriggerData: triggerData,
		variables:   vars,
		stepResults: make(map[string]map[string]any),
		stepTimings: make(map[string]time.Duration),
		startedAt:   time.Now().UTC(),
	}
}

// SetVariable stores a workflow-scoped variable. Values written by one
// step become visible to dependency-ordered downstream steps.
func (c *Context) SetVariable(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.variables[key] = value
}

// GetVariable reads a workflow-scoped variable.
func (c *Context) GetVariable(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	value, ok := c.variables[key]

	return value, ok
}

// Variables returns a copy of all variables.
func (c *Context) Variables() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]any, len(c.variables))
	maps.Copy(out, c.variables)

	return out
}

// SetStepResult records the result payload of a completed step.
func (c *Context) SetStepResult(stepName string, result map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stepResults[stepName] = result
}

// GetStepResult reads the result payload of a step.
func (c *Context) GetStepResult(stepName string) (map[string]any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result, ok := c.stepResults[stepName]

	return result, ok
}

// StepResults returns a copy of all step results.
func (c *Context) StepResults() map[string]map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]map[string]any, len(c.stepResults))
	maps.Copy(out, c.stepResults)

	return out
}

// AppendError appends to the error log. The log is append-only.
func (c *Context) AppendError(stepName, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.errors = append(c.errors, LogEntry{
		StepName:  stepName,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// AppendWarning appends to the warning log. The log is append-only.
func (c *Context) AppendWarning(stepName, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.warnings = append(c.warnings, LogEntry{
		StepName:  stepName,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// Errors returns a copy of the appended errors.
func (c *Context) Errors() []LogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]LogEntry, len(c.errors))
	copy(out, c.errors)

	return out
}

// Warnings returns a copy of the appended warnings.
func (c *Context) Warnings() []LogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]LogEntry, len(c.warnings))
	copy(out, c.warnings)

	return out
}

// RecordStepTiming stores the elapsed duration of a finished step.
func (c *Context) RecordStepTiming(stepName string, elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stepTimings[stepName] = elapsed
}

// StepTiming reads the elapsed duration of a finished step.
func (c *Context) StepTiming(stepName string) (time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	elapsed, ok := c.stepTimings[stepName]

	return elapsed, ok
}

// Elapsed returns the time since the context was created.
func (c *Context) Elapsed() time.Duration {
	return time.Since(c.startedAt)
}
