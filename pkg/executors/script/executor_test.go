package script

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veriflow-io/veriflow/pkg/execution"
)

func TestNewExecutor_RequiresScript(t *testing.T) {
	_, err := NewExecutor(map[string]any{})
	assert.ErrorIs(t, err, ErrScriptRequired)

	_, err = NewExecutor(map[string]any{"script": ""})
	assert.ErrorIs(t, err, ErrScriptRequired)
}

func TestExecute_PlainOutput(t *testing.T) {
	executor, err := NewExecutor(map[string]any{
		"script": "processed {{.variables.batch}}",
	})
	require.NoError(t, err)

	execCtx := execution.NewContext("exec-1", "wf-1", map[string]any{"batch": "b42"}, nil)

	result, err := executor.Execute(context.Background(), execCtx, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, "processed b42", result["output"])
}

func TestExecute_StructuredOutputPassesThrough(t *testing.T) {
	// A script producing a JSON object becomes the step result itself.
	executor, err := NewExecutor(map[string]any{
		"script": `{"rows": {{.step_results.scan.count}}, "ok": true}`,
	})
	require.NoError(t, err)

	execCtx := execution.NewContext("exec-1", "wf-1", nil, nil)
	execCtx.SetStepResult("scan", map[string]any{"count": 11})

	result, err := executor.Execute(context.Background(), execCtx, slog.Default())
	require.NoError(t, err)

	assert.Equal(t, float64(11), result["rows"])
	assert.Equal(t, true, result["ok"])
}

func TestExecute_BadScript(t *testing.T) {
	executor, err := NewExecutor(map[string]any{"script": "{{.broken"})
	require.NoError(t, err)

	_, err = executor.Execute(context.Background(), execution.NewContext("exec-1", "wf-1", nil, nil), slog.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "script failed")
}

func TestFactory(t *testing.T) {
	factory := NewFactory()

	assert.Equal(t, "custom-script", factory.ID())
	assert.NotNil(t, factory.Schema())
}
