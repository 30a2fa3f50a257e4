package models

import "time"

// ExecutionStatus represents the lifecycle state of one workflow execution.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusRetrying  ExecutionStatus = "retrying"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// IsTerminal reports whether the execution can no longer change state.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed || s == ExecutionStatusCancelled
}

// StepStatus represents the lifecycle state of one step execution.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
	StepStatusCancelled StepStatus = "cancelled"
)

// IsTerminal reports whether the step can no longer change state.
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StepStatusCompleted, StepStatusFailed, StepStatusSkipped, StepStatusCancelled:
		return true
	default:
		return false
	}
}

// WorkflowExecution is one run of an Active workflow definition. The
// definition is snapshotted at start so later versions never affect a
// running execution. Executions are never mutated after reaching a
// terminal status.
type WorkflowExecution struct {
	ID          string              `json:"id"`
	WorkflowID  string              `json:"workflow_id"`
	Snapshot    *WorkflowDefinition `json:"snapshot,omitempty"`
	Status      ExecutionStatus     `json:"status"`
	Parameters  map[string]any      `json:"parameters,omitempty"`
	Steps       []*StepExecution    `json:"steps"`
	StartedAt   *time.Time          `json:"started_at,omitempty"`
	FinishedAt  *time.Time          `json:"finished_at,omitempty"`
	Error       string              `json:"error,omitempty"`
	Metrics     ExecutionMetrics    `json:"metrics"`
	CreatedAt   time.Time           `json:"created_at"`
	CancelledBy string              `json:"cancelled_by,omitempty"`
}

// StepByName returns the step execution record for the given step name.
func (e *WorkflowExecution) StepByName(name string) (*StepExecution, bool) {
	for _, step := range e.Steps {
		if step.StepName == name {
			return step, true
		}
	}

	return nil, false
}

// Progress reports how many steps have reached a terminal status.
func (e *WorkflowExecution) Progress() (done, total int) {
	total = len(e.Steps)

	for _, step := range e.Steps {
		if step.Status.IsTerminal() {
			done++
		}
	}

	return done, total
}

// ExecutionMetrics aggregates timing information for one execution.
type ExecutionMetrics struct {
	DurationMs     int64 `json:"duration_ms"`
	StepsCompleted int   `json:"steps_completed"`
	StepsFailed    int   `json:"steps_failed"`
	StepsSkipped   int   `json:"steps_skipped"`
	LevelsRun      int   `json:"levels_run"`
	RetriesTotal   int   `json:"retries_total"`
}

// StepExecution records the outcome of one step within one execution.
type StepExecution struct {
	ID          string         `json:"id"`
	ExecutionID string         `json:"execution_id"`
	StepName    string         `json:"step_name"`
	StepType    StepType       `json:"step_type"`
	Status      StepStatus     `json:"status"`
	Attempts    int            `json:"attempts"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	FinishedAt  *time.Time     `json:"finished_at,omitempty"`
	DurationMs  int64          `json:"duration_ms"`
	Result      map[string]any `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	SkipReason  string         `json:"skip_reason,omitempty"`
}
