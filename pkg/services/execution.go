package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/veriflow-io/veriflow/pkg/models"
	"github.com/veriflow-io/veriflow/pkg/persistence"
)

// ErrExecutionNotFound is returned when an execution is not found.
var ErrExecutionNotFound = persistence.ErrExecutionNotFound

// Runner executes active workflow definitions. The engine satisfies it.
type Runner interface {
	Execute(ctx context.Context, def *models.WorkflowDefinition, parameters map[string]any) (*models.WorkflowExecution, error)
	ExecuteWithID(ctx context.Context, executionID string, def *models.WorkflowDefinition, parameters map[string]any) (*models.WorkflowExecution, error)
	Cancel(executionID, cancelledBy string) error
}

// Execution triggers workflow runs and exposes their status.
type Execution struct {
	persistence persistence.Persistence
	runner      Runner
	logger      *slog.Logger
}

// NewExecution creates a new execution service.
func NewExecution(store persistence.Persistence, runner Runner, logger *slog.Logger) *Execution {
	return &Execution{
		persistence: store,
		runner:      runner,
		logger:      logger.With("module", "execution_service"),
	}
}

// ExecuteWorkflow runs an active workflow definition to completion and
// returns the terminal execution record.
func (e *Execution) ExecuteWorkflow(ctx context.Context, workflowID string, parameters map[string]any) (*models.WorkflowExecution, error) {
	workflow, err := e.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if !workflow.IsExecutable() {
		return nil, fmt.Errorf("execute workflow %s: %w", workflowID, ErrWorkflowNotActive)
	}

	return e.runner.Execute(ctx, workflow, parameters)
}

// StartWorkflow begins an asynchronous execution and returns its ID
// immediately. The run continues in the background; callers follow it
// through GetExecution or the event stream. When the run cannot start
// at all (resource exhaustion, a definition that no longer builds), a
// Failed execution record is persisted under the returned ID so status
// queries surface the error instead of reporting not-found.
func (e *Execution) StartWorkflow(ctx context.Context, workflowID string, parameters map[string]any) (string, error) {
	workflow, err := e.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return "", err
	}

	if !workflow.IsExecutable() {
		return "", fmt.Errorf("execute workflow %s: %w", workflowID, ErrWorkflowNotActive)
	}

	executionID := "exec-" + uuid.New().String()

	// Detached from the request context: an HTTP client disconnect must
	// not cancel the run.
	go func() {
		runCtx := context.Background()

		if _, err := e.runner.ExecuteWithID(runCtx, executionID, workflow, parameters); err != nil {
			e.logger.Error("Background execution failed to start",
				"execution_id", executionID,
				"workflow_id", workflowID,
				"error", err)

			e.recordStartFailure(runCtx, executionID, workflow, parameters, err)
		}
	}()

	return executionID, nil
}

// recordStartFailure persists a terminal Failed record for an execution
// the runner rejected before any step ran.
func (e *Execution) recordStartFailure(ctx context.Context, executionID string, workflow *models.WorkflowDefinition, parameters map[string]any, execErr error) {
	now := time.Now().UTC()

	record := &models.WorkflowExecution{
		ID:         executionID,
		WorkflowID: workflow.ID,
		Snapshot:   workflow,
		Status:     models.ExecutionStatusFailed,
		Parameters: parameters,
		Error:      execErr.Error(),
		CreatedAt:  now,
		FinishedAt: &now,
	}

	if err := e.persistence.ExecutionRepository().Save(ctx, record); err != nil {
		e.logger.Error("Failed to record start failure",
			"execution_id", executionID,
			"error", err)
	}
}

// GetExecution retrieves an execution record by ID.
func (e *Execution) GetExecution(ctx context.Context, executionID string) (*models.WorkflowExecution, error) {
	return e.persistence.ExecutionRepository().GetByID(ctx, executionID)
}

// ListExecutions retrieves all execution records of a workflow.
func (e *Execution) ListExecutions(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	return e.persistence.ExecutionRepository().ListByWorkflow(ctx, workflowID)
}

// CancelExecution requests cooperative cancellation of a running
// execution.
func (e *Execution) CancelExecution(_ context.Context, executionID, cancelledBy string) error {
	if err := e.runner.Cancel(executionID, cancelledBy); err != nil {
		return fmt.Errorf("cancel execution %s: %w", executionID, ErrExecutionNotRunning)
	}

	return nil
}
