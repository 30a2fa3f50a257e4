package condition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/veriflow-io/veriflow/pkg/execution"
	"github.com/veriflow-io/veriflow/pkg/models"
	"github.com/veriflow-io/veriflow/pkg/template"
)

// ErrExpressionRequired is returned when the configuration lacks an
// expression.
var ErrExpressionRequired = errors.New("missing or invalid 'expression' in configuration")

// Executor evaluates an expression to a boolean.
type Executor struct {
	Expression string
	Language   string
}

// NewExecutor creates a condition executor from configuration.
func NewExecutor(config map[string]any) (*Executor, error) {
	expression, ok := config["expression"].(string)
	if !ok || expression == "" {
		return nil, ErrExpressionRequired
	}

	language, _ := config["language"].(string)
	if language == "" {
		language = "simple"
	}

	return &Executor{
		Expression: expression,
		Language:   language,
	}, nil
}

// Execute renders the expression and interprets the outcome as a bool.
func (e *Executor) Execute(ctx context.Context, executionCtx *execution.Context, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("executor", "condition")

	rendered, err := template.RenderWithContext(e.Expression, executionCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to render expression: %w", err)
	}

	interpreter := models.GetConditional(e.Language)
	if interpreter == nil {
		return nil, fmt.Errorf("unknown conditional language %q", e.Language)
	}

	result, err := interpreter.Evaluate(rendered)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate expression: %w", err)
	}

	logger.InfoContext(ctx, "Condition evaluated", "result", result)

	return map[string]any{"result": result}, nil
}
