package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"

	"github.com/veriflow-io/veriflow/pkg/models"
	"github.com/veriflow-io/veriflow/pkg/persistence"
)

// ExecutionRepository stores execution records as JSON documents under
// <root>/executions. Saves are serialized because the engine writes a
// record at every state transition, concurrently across steps.
type ExecutionRepository struct {
	root string
	mu   sync.Mutex
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

// Save writes the execution record, replacing any previous snapshot of
// the same execution.
func (er *ExecutionRepository) Save(_ context.Context, exec *models.WorkflowExecution) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	err := os.MkdirAll(path.Join(er.root, "executions"), 0750)
	if err != nil {
		return fmt.Errorf("failed to create executions directory: %w", err)
	}

	data, err := json.MarshalIndent(exec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal execution %s: %w", exec.ID, err)
	}

	filePath := path.Join(er.root, "executions", exec.ID+".json")

	return os.WriteFile(filePath, data, 0600)
}

// GetByID retrieves an execution record by its ID.
func (er *ExecutionRepository) GetByID(_ context.Context, id string) (*models.WorkflowExecution, error) {
	filePath := filepath.Clean(path.Join(er.root, "executions", id+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("execution %s: %w", id, persistence.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to fetch execution %s: %w", id, err)
	}

	var exec models.WorkflowExecution

	err = json.Unmarshal(body, &exec)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution %s: %w", id, err)
	}

	return &exec, nil
}

// ListByWorkflow returns all execution records for a workflow, newest
// first.
func (er *ExecutionRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	root := os.DirFS(path.Join(er.root, "executions"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list execution files: %w", err)
	}

	executions := make([]*models.WorkflowExecution, 0)

	for _, file := range jsonFiles {
		executionID := file[:len(file)-5]

		exec, err := er.GetByID(ctx, executionID)
		if err != nil {
			if persistence.IsExecutionNotFound(err) {
				continue
			}

			return nil, fmt.Errorf("failed to load execution %s: %w", executionID, err)
		}

		if exec.WorkflowID == workflowID {
			executions = append(executions, exec)
		}
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].CreatedAt.After(executions[j].CreatedAt)
	})

	return executions, nil
}
