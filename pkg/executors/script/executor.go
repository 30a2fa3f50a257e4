package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/veriflow-io/veriflow/pkg/execution"
	"github.com/veriflow-io/veriflow/pkg/template"
)

// ErrScriptRequired is returned when the configuration lacks a script.
var ErrScriptRequired = errors.New("missing or invalid 'script' in configuration")

// Executor runs a template program against the execution context.
type Executor struct {
	Script string
}

// NewExecutor creates a custom-script executor from configuration.
func NewExecutor(config map[string]any) (*Executor, error) {
	program, ok := config["script"].(string)
	if !ok || program == "" {
		return nil, ErrScriptRequired
	}

	return &Executor{Script: program}, nil
}

// Execute renders the script and returns its output.
func (e *Executor) Execute(ctx context.Context, executionCtx *execution.Context, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("executor", "custom_script")
	logger.InfoContext(ctx, "Running custom script")

	output, err := template.RenderWithContext(e.Script, executionCtx)
	if err != nil {
		return nil, fmt.Errorf("script failed: %w", err)
	}

	if structured, ok := output.(map[string]any); ok {
		return structured, nil
	}

	return map[string]any{"output": output}, nil
}
