package transform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/veriflow-io/veriflow/pkg/execution"
	"github.com/veriflow-io/veriflow/pkg/template"
)

// ErrExpressionRequired is returned when the configuration lacks an
// expression.
var ErrExpressionRequired = errors.New("missing or invalid 'expression' in configuration")

// Executor reshapes data from previous steps with a template expression.
type Executor struct {
	Input      string
	Expression string
}

// NewExecutor creates a transform executor from configuration.
func NewExecutor(config map[string]any) (*Executor, error) {
	expression, ok := config["expression"].(string)
	if !ok || expression == "" {
		return nil, ErrExpressionRequired
	}

	input, _ := config["input"].(string)

	return &Executor{
		Input:      input,
		Expression: expression,
	}, nil
}

// Execute applies the expression to the selected input.
func (e *Executor) Execute(ctx context.Context, executionCtx *execution.Context, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("executor", "transform")
	logger.InfoContext(ctx, "Executing transform")

	data, err := e.extract(executionCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to get input data: %w", err)
	}

	result, err := template.Render(e.Expression, data)
	if err != nil {
		return nil, fmt.Errorf("transformation failed: %w", err)
	}

	logger.InfoContext(ctx, "Transform completed")

	return map[string]any{"result": result}, nil
}

func (e *Executor) extract(executionCtx *execution.Context) (any, error) {
	if e.Input == "" {
		return executionCtx.StepResults(), nil
	}

	return template.RenderWithContext(e.Input, executionCtx)
}
