package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/veriflow-io/veriflow/pkg/graph"
	"github.com/veriflow-io/veriflow/pkg/models"
	"github.com/veriflow-io/veriflow/pkg/persistence"
)

// ErrWorkflowNotFound is returned when a workflow is not found.
var ErrWorkflowNotFound = persistence.ErrWorkflowNotFound

// Workflow implements the definition lifecycle: create and edit drafts,
// activate them into immutable executable versions, archive old ones.
type Workflow struct {
	persistence persistence.Persistence
	validator   *validator.Validate
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(store persistence.Persistence) *Workflow {
	return &Workflow{
		persistence: store,
		validator:   validator.New(),
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// CreateWorkflowRequest contains the fields for creating a draft.
type CreateWorkflowRequest struct {
	Name           string                   `json:"name"            validate:"required,min=3"`
	Description    string                   `json:"description"`
	Steps          []*models.StepDefinition `json:"steps"           validate:"dive"`
	Variables      map[string]any           `json:"variables"`
	DefaultTimeout time.Duration            `json:"default_timeout"`
	DefaultRetry   *models.RetryPolicy      `json:"default_retry"`
	Metadata       map[string]any           `json:"metadata"`
	Owner          string                   `json:"owner"`
}

// CreateWorkflow creates a new draft definition. Drafts are editable and
// not executable until activated.
func (w *Workflow) CreateWorkflow(ctx context.Context, req CreateWorkflowRequest) (*models.WorkflowDefinition, error) {
	if err := w.validator.Struct(req); err != nil {
		return nil, NewValidationError("CreateWorkflow", "INVALID_REQUEST", err.Error(), ErrInvalidRequest)
	}

	for _, step := range req.Steps {
		normalizeStep(step)
	}

	workflow := &models.WorkflowDefinition{
		ID:              "wf-" + uuid.New().String(),
		Name:            req.Name,
		Description:     req.Description,
		Status:          models.WorkflowStatusDraft,
		WorkflowGroupID: "wg-" + uuid.New().String(),
		Steps:           req.Steps,
		Variables:       req.Variables,
		DefaultTimeout:  req.DefaultTimeout,
		DefaultRetry:    req.DefaultRetry,
		Metadata:        req.Metadata,
		Owner:           req.Owner,
	}

	if err := w.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	return workflow, nil
}

// UpdateWorkflowRequest contains the editable fields of a draft.
type UpdateWorkflowRequest struct {
	Name           *string                  `json:"name,omitempty"  validate:"omitempty,min=3"`
	Description    *string                  `json:"description,omitempty"`
	Steps          []*models.StepDefinition `json:"steps,omitempty" validate:"omitempty,dive"`
	Variables      map[string]any           `json:"variables,omitempty"`
	DefaultTimeout *time.Duration           `json:"default_timeout,omitempty"`
	DefaultRetry   *models.RetryPolicy      `json:"default_retry,omitempty"`
	Metadata       map[string]any           `json:"metadata,omitempty"`
}

// UpdateWorkflow edits a draft. Active and archived definitions are
// immutable.
func (w *Workflow) UpdateWorkflow(ctx context.Context, id string, req UpdateWorkflowRequest) (*models.WorkflowDefinition, error) {
	if err := w.validator.Struct(req); err != nil {
		return nil, NewValidationError("UpdateWorkflow", "INVALID_REQUEST", err.Error(), ErrInvalidRequest)
	}

	workflow, err := w.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch workflow.Status {
	case models.WorkflowStatusActive:
		return nil, fmt.Errorf("update workflow %s: %w", id, ErrCannotModifyActive)
	case models.WorkflowStatusArchived:
		return nil, fmt.Errorf("update workflow %s: %w", id, ErrCannotModifyArchived)
	case models.WorkflowStatusDraft:
	}

	if req.Name != nil {
		workflow.Name = *req.Name
	}

	if req.Description != nil {
		workflow.Description = *req.Description
	}

	if req.Steps != nil {
		for _, step := range req.Steps {
			normalizeStep(step)
		}

		workflow.Steps = req.Steps
	}

	if req.Variables != nil {
		workflow.Variables = req.Variables
	}

	if req.DefaultTimeout != nil {
		workflow.DefaultTimeout = *req.DefaultTimeout
	}

	if req.DefaultRetry != nil {
		workflow.DefaultRetry = req.DefaultRetry
	}

	if req.Metadata != nil {
		workflow.Metadata = req.Metadata
	}

	if err := w.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	return workflow, nil
}

// ActivateWorkflow validates a draft and promotes it to Active. The
// dependency graph must build cleanly before the status changes; a draft
// with a cycle or an unknown dependency never becomes executable.
func (w *Workflow) ActivateWorkflow(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	workflow, err := w.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if workflow.Status != models.WorkflowStatusDraft {
		return nil, fmt.Errorf("activate workflow %s: %w", id, ErrWorkflowNotDraft)
	}

	if workflow.Name == "" {
		return nil, NewValidationError("ActivateWorkflow", "NAME_REQUIRED", "workflow name is required", ErrWorkflowNameRequired)
	}

	if len(workflow.Steps) == 0 {
		return nil, NewValidationError("ActivateWorkflow", "STEPS_REQUIRED", "workflow must have at least one step", ErrStepsRequired)
	}

	if _, err := graph.Build(workflow.Steps); err != nil {
		return nil, NewValidationError("ActivateWorkflow", "INVALID_GRAPH", err.Error(), ErrInvalidGraph)
	}

	now := time.Now().UTC()
	workflow.Status = models.WorkflowStatusActive
	workflow.ActivatedAt = &now

	if err := w.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	return workflow, nil
}

// ArchiveWorkflow retires an active definition. Archived definitions are
// kept for execution history but can no longer be triggered.
func (w *Workflow) ArchiveWorkflow(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	workflow, err := w.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if workflow.Status != models.WorkflowStatusActive {
		return nil, fmt.Errorf("archive workflow %s: %w", id, ErrWorkflowNotActive)
	}

	now := time.Now().UTC()
	workflow.Status = models.WorkflowStatusArchived
	workflow.ArchivedAt = &now

	if err := w.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	return workflow, nil
}

// GetWorkflow retrieves a workflow definition by ID.
func (w *Workflow) GetWorkflow(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	return w.persistence.WorkflowRepository().GetByID(ctx, id)
}

// ListWorkflows retrieves all workflow definitions.
func (w *Workflow) ListWorkflows(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	return w.persistence.WorkflowRepository().List(ctx)
}

// DeleteWorkflow removes a draft definition. Active definitions must be
// archived instead.
func (w *Workflow) DeleteWorkflow(ctx context.Context, id string) error {
	workflow, err := w.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return err
	}

	if workflow.Status == models.WorkflowStatusActive {
		return fmt.Errorf("delete workflow %s: %w", id, ErrCannotModifyActive)
	}

	return w.persistence.WorkflowRepository().Delete(ctx, id)
}

// normalizeStep fills the defaults omitted by most clients.
func normalizeStep(step *models.StepDefinition) {
	if step.ID == "" {
		step.ID = "st-" + uuid.New().String()
	}
}
