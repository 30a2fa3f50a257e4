// Package events defines event types for workflow execution lifecycle
// notifications consumed by monitoring collaborators.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/veriflow-io/veriflow/pkg/models"
)

type EventType string

// Topic is the channel every engine event is published on.
const Topic = "veriflow.executions"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionCancelledEvent EventType = "execution.cancelled"

	StepStartedEvent   EventType = "step.started"
	StepCompletedEvent EventType = "step.completed"
	StepFailedEvent    EventType = "step.failed"
	StepSkippedEvent   EventType = "step.skipped"
	StepRetryingEvent  EventType = "step.retrying"
)

type BaseEvent struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	WorkflowID  string         `json:"workflow_id"`
	ExecutionID string         `json:"execution_id"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, workflowID, executionID string) BaseEvent {
	return BaseEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		WorkflowID:  workflowID,
		ExecutionID: executionID,
		Metadata:    make(map[string]any),
	}
}

type ExecutionStarted struct {
	BaseEvent

	WorkflowName string         `json:"workflow_name"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	StepCount    int            `json:"step_count"`
	LevelCount   int            `json:"level_count"`
}

func (e ExecutionStarted) GetType() EventType { return ExecutionStartedEvent }

type ExecutionCompleted struct {
	BaseEvent

	DurationMs int64                   `json:"duration_ms"`
	Metrics    models.ExecutionMetrics `json:"metrics"`
}

func (e ExecutionCompleted) GetType() EventType { return ExecutionCompletedEvent }

type ExecutionFailed struct {
	BaseEvent

	DurationMs  int64                   `json:"duration_ms"`
	Error       string                  `json:"error"`
	FailedSteps []string                `json:"failed_steps,omitempty"`
	Metrics     models.ExecutionMetrics `json:"metrics"`
}

func (e ExecutionFailed) GetType() EventType { return ExecutionFailedEvent }

type ExecutionCancelled struct {
	BaseEvent

	DurationMs  int64  `json:"duration_ms"`
	Reason      string `json:"reason,omitempty"`
	CancelledBy string `json:"cancelled_by,omitempty"`
}

func (e ExecutionCancelled) GetType() EventType { return ExecutionCancelledEvent }

type StepStarted struct {
	BaseEvent

	StepName string          `json:"step_name"`
	StepType models.StepType `json:"step_type"`
	Level    int             `json:"level"`
	Attempt  int             `json:"attempt"`
}

func (e StepStarted) GetType() EventType { return StepStartedEvent }

type StepCompleted struct {
	BaseEvent

	StepName   string          `json:"step_name"`
	StepType   models.StepType `json:"step_type"`
	DurationMs int64           `json:"duration_ms"`
	Result     map[string]any  `json:"result,omitempty"`
}

func (e StepCompleted) GetType() EventType { return StepCompletedEvent }

type StepFailed struct {
	BaseEvent

	StepName   string          `json:"step_name"`
	StepType   models.StepType `json:"step_type"`
	DurationMs int64           `json:"duration_ms"`
	Error      string          `json:"error"`
	Attempts   int             `json:"attempts"`
	Critical   bool            `json:"critical"`
}

func (e StepFailed) GetType() EventType { return StepFailedEvent }

type StepSkipped struct {
	BaseEvent

	StepName string `json:"step_name"`
	Reason   string `json:"reason"`
}

func (e StepSkipped) GetType() EventType { return StepSkippedEvent }

type StepRetrying struct {
	BaseEvent

	StepName  string        `json:"step_name"`
	Attempt   int           `json:"attempt"`
	Backoff   time.Duration `json:"backoff"`
	LastError string        `json:"last_error"`
}

func (e StepRetrying) GetType() EventType { return StepRetryingEvent }
