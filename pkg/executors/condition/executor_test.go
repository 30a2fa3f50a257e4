package condition

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veriflow-io/veriflow/pkg/execution"
)

func TestNewExecutor_RequiresExpression(t *testing.T) {
	_, err := NewExecutor(map[string]any{})
	assert.ErrorIs(t, err, ErrExpressionRequired)
}

func TestNewExecutor_DefaultLanguage(t *testing.T) {
	executor, err := NewExecutor(map[string]any{"expression": "true"})
	require.NoError(t, err)
	assert.Equal(t, "simple", executor.Language)
}

func TestExecute_EvaluatesExpression(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		variables  map[string]any
		want       bool
	}{
		{name: "literal true", expression: "true", want: true},
		{name: "literal false", expression: "false", want: false},
		{name: "templated bool", expression: "{{.variables.enabled}}", variables: map[string]any{"enabled": true}, want: true},
		{name: "templated number", expression: "{{.variables.count}}", variables: map[string]any{"count": 0}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			executor, err := NewExecutor(map[string]any{"expression": tt.expression})
			require.NoError(t, err)

			execCtx := execution.NewContext("exec-1", "wf-1", tt.variables, nil)

			result, err := executor.Execute(context.Background(), execCtx, slog.Default())
			require.NoError(t, err)
			assert.Equal(t, tt.want, result["result"])
		})
	}
}

func TestExecute_UnknownLanguage(t *testing.T) {
	executor, err := NewExecutor(map[string]any{
		"expression": "true",
		"language":   "prolog",
	})
	require.NoError(t, err)

	_, err = executor.Execute(context.Background(), execution.NewContext("exec-1", "wf-1", nil, nil), slog.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown conditional language")
}

func TestExecute_UninterpretableExpression(t *testing.T) {
	executor, err := NewExecutor(map[string]any{"expression": "perhaps"})
	require.NoError(t, err)

	_, err = executor.Execute(context.Background(), execution.NewContext("exec-1", "wf-1", nil, nil), slog.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to evaluate expression")
}

func TestFactory(t *testing.T) {
	factory := NewFactory()

	assert.Equal(t, "condition", factory.ID())
	assert.NotNil(t, factory.Schema())
}
