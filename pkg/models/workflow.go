// Package models defines the core domain models for DAG-based workflow execution.
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow definition.
type WorkflowStatus string

const (
	WorkflowStatusDraft    WorkflowStatus = "draft"    // Editable, not executable
	WorkflowStatusActive   WorkflowStatus = "active"   // Validated, executable
	WorkflowStatusArchived WorkflowStatus = "archived" // Historical, not executable
)

// WorkflowDefinition is a declarative set of steps with dependencies.
// Once a definition becomes Active it is immutable; edits create a new
// version under the same group ID.
type WorkflowDefinition struct {
	ID              string               `json:"id"`
	Name            string               `json:"name"              validate:"required,min=3"`
	Description     string               `json:"description"`
	Status          WorkflowStatus       `json:"status"            validate:"required"`
	WorkflowGroupID string               `json:"workflow_group_id"` // Stable ID linking all versions
	Steps           []*StepDefinition    `json:"steps"              validate:"dive"`
	Triggers        []*TriggerDefinition `json:"triggers,omitempty" validate:"dive"`
	Variables       map[string]any       `json:"variables,omitempty"`
	DefaultTimeout  time.Duration        `json:"default_timeout,omitempty"`
	DefaultRetry    *RetryPolicy         `json:"default_retry,omitempty"`
	Metadata        map[string]any       `json:"metadata,omitempty"`
	Owner           string               `json:"owner"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
	ActivatedAt     *time.Time           `json:"activated_at,omitempty"`
	ArchivedAt      *time.Time           `json:"archived_at,omitempty"`
}

// TriggerDefinition attaches an execution trigger to a workflow. The
// type tag resolves against the trigger registry (schedule, queue).
type TriggerDefinition struct {
	ID            string         `json:"id"`
	Name          string         `json:"name,omitempty"`
	Type          string         `json:"type"                    validate:"required"`
	Configuration map[string]any `json:"configuration,omitempty"`
}

// StepByName returns the step definition with the given name, if present.
func (w *WorkflowDefinition) StepByName(name string) (*StepDefinition, bool) {
	for _, step := range w.Steps {
		if step.Name == name {
			return step, true
		}
	}

	return nil, false
}

// IsExecutable reports whether the definition may be triggered.
func (w *WorkflowDefinition) IsExecutable() bool {
	return w.Status == WorkflowStatusActive
}
