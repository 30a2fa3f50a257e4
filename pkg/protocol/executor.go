// Package protocol defines the contracts between the engine and its
// collaborators: step executor capabilities and execution triggers.
package protocol

import (
	"context"
	"log/slog"

	"github.com/veriflow-io/veriflow/pkg/execution"
)

// StepExecutor performs one step's actual work given its configuration
// and the shared execution context. The engine treats it as an opaque,
// potentially slow, potentially failing call; implementations must honor
// ctx cancellation so timeouts can abandon them.
type StepExecutor interface {
	Execute(ctx context.Context, executionCtx *execution.Context, logger *slog.Logger) (map[string]any, error)
}

// ExecutorFactory creates executors for one step type from a step's
// configuration payload.
type ExecutorFactory interface {
	ID() string
	Create(config map[string]any) (StepExecutor, error)
	Schema() map[string]any
}
