package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/veriflow-io/veriflow/pkg/models"
	"github.com/veriflow-io/veriflow/pkg/persistence"
)

// ExecutionRepository handles execution-record database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

// Save upserts an execution record.
func (r *ExecutionRepository) Save(ctx context.Context, exec *models.WorkflowExecution) error {
	snapshotJSON, err := json.Marshal(exec.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow snapshot: %w", err)
	}

	parametersJSON, err := json.Marshal(exec.Parameters)
	if err != nil {
		return fmt.Errorf("failed to marshal parameters: %w", err)
	}

	stepsJSON, err := json.Marshal(exec.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal step executions: %w", err)
	}

	metricsJSON, err := json.Marshal(exec.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	query := `
		INSERT INTO workflow_executions (
			id, workflow_id, snapshot, status, parameters, steps, error,
			metrics, cancelled_by, started_at, finished_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			steps = EXCLUDED.steps,
			error = EXCLUDED.error,
			metrics = EXCLUDED.metrics,
			cancelled_by = EXCLUDED.cancelled_by,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at
	`

	_, err = r.db.ExecContext(ctx, query,
		exec.ID,
		exec.WorkflowID,
		snapshotJSON,
		exec.Status,
		parametersJSON,
		stepsJSON,
		exec.Error,
		metricsJSON,
		exec.CancelledBy,
		exec.StartedAt,
		exec.FinishedAt,
		exec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save execution %s: %w", exec.ID, err)
	}

	return nil
}

// GetByID retrieves an execution record by its ID.
func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	query := `
		SELECT
			id
		  , workflow_id
		  , snapshot
		  , status
		  , parameters
		  , steps
		  , error
		  , metrics
		  , cancelled_by
		  , started_at
		  , finished_at
		  , created_at
		FROM workflow_executions
		WHERE id = $1
	`

	row := r.db.QueryRowContext(ctx, query, id)

	exec, err := scanExecution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("execution %s: %w", id, persistence.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to scan execution %s: %w", id, err)
	}

	return exec, nil
}

// ListByWorkflow returns all execution records for a workflow, newest
// first.
func (r *ExecutionRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	query := `
		SELECT
			id
		  , workflow_id
		  , snapshot
		  , status
		  , parameters
		  , steps
		  , error
		  , metrics
		  , cancelled_by
		  , started_at
		  , finished_at
		  , created_at
		FROM workflow_executions
		WHERE workflow_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	executions := make([]*models.WorkflowExecution, 0)

	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, exec)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

func scanExecution(row rowScanner) (*models.WorkflowExecution, error) {
	var (
		exec           models.WorkflowExecution
		snapshotJSON   []byte
		parametersJSON []byte
		stepsJSON      []byte
		metricsJSON    []byte
		errMsg         sql.NullString
		cancelledBy    sql.NullString
	)

	err := row.Scan(
		&exec.ID,
		&exec.WorkflowID,
		&snapshotJSON,
		&exec.Status,
		&parametersJSON,
		&stepsJSON,
		&errMsg,
		&metricsJSON,
		&cancelledBy,
		&exec.StartedAt,
		&exec.FinishedAt,
		&exec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	exec.Error = errMsg.String
	exec.CancelledBy = cancelledBy.String

	if err := unmarshalNullable(snapshotJSON, &exec.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow snapshot: %w", err)
	}

	if err := unmarshalNullable(parametersJSON, &exec.Parameters); err != nil {
		return nil, fmt.Errorf("failed to unmarshal parameters: %w", err)
	}

	if err := json.Unmarshal(stepsJSON, &exec.Steps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal step executions: %w", err)
	}

	if err := unmarshalNullable(metricsJSON, &exec.Metrics); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
	}

	return &exec, nil
}
