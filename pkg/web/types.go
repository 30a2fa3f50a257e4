// Package web provides HTTP request and response types for the workflow
// API.
package web

import (
	"time"

	"github.com/veriflow-io/veriflow/pkg/models"
)

// CreateWorkflowRequest represents the request body for creating a new
// workflow draft.
type CreateWorkflowRequest struct {
	Name           string                   `json:"name"            validate:"required,min=3"`
	Description    string                   `json:"description"`
	Steps          []*models.StepDefinition `json:"steps"`
	Variables      map[string]any           `json:"variables"`
	DefaultTimeout time.Duration            `json:"default_timeout"`
	DefaultRetry   *models.RetryPolicy      `json:"default_retry"`
	Metadata       map[string]any           `json:"metadata,omitempty"`
	Owner          string                   `json:"owner"           validate:"required"`
}

// UpdateWorkflowRequest represents the request body for updating a draft.
// All fields are optional to support partial updates.
type UpdateWorkflowRequest struct {
	Name           *string                  `json:"name,omitempty"  validate:"omitempty,min=3"`
	Description    *string                  `json:"description,omitempty"`
	Steps          []*models.StepDefinition `json:"steps,omitempty"`
	Variables      map[string]any           `json:"variables,omitempty"`
	DefaultTimeout *time.Duration           `json:"default_timeout,omitempty"`
	DefaultRetry   *models.RetryPolicy      `json:"default_retry,omitempty"`
	Metadata       map[string]any           `json:"metadata,omitempty"`
}

// StartExecutionRequest represents the request body for triggering a
// workflow execution.
type StartExecutionRequest struct {
	Parameters map[string]any `json:"parameters"`
}

// StartExecutionResponse is returned when an execution has been accepted.
type StartExecutionResponse struct {
	ExecutionID string `json:"execution_id"`
	WorkflowID  string `json:"workflow_id"`
	Status      string `json:"status"`
}

// CancelExecutionRequest represents the request body for cancelling a
// running execution.
type CancelExecutionRequest struct {
	CancelledBy string `json:"cancelled_by"`
}

// PlanResponse describes the computed execution plan of a workflow.
type PlanResponse struct {
	Levels               map[int][]string `json:"levels"`
	CriticalPath         []string         `json:"critical_path"`
	CriticalPathDuration time.Duration    `json:"critical_path_duration"`
	MaxParallelism       int              `json:"max_parallelism"`
}
