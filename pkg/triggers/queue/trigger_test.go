package queue

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQueueTrigger(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	tests := []struct {
		name        string
		config      map[string]any
		expectError bool
		errorMsg    string
	}{
		{
			name: "valid redis config",
			config: map[string]any{
				"queue": "veriflow_jobs",
				"connection": map[string]any{
					"addr":     "localhost:6379",
					"password": "",
					"db":       "0",
				},
			},
			expectError: false,
		},
		{
			name: "queue only",
			config: map[string]any{
				"queue": "veriflow_jobs",
			},
			expectError: false,
		},
		{
			name: "missing queue",
			config: map[string]any{
				"connection": map[string]any{
					"addr": "localhost:6379",
				},
			},
			expectError: true,
			errorMsg:    "queue trigger queue name is required",
		},
		{
			name:        "empty config",
			config:      map[string]any{},
			expectError: true,
			errorMsg:    "queue trigger queue name is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trigger, err := NewTrigger(tt.config, logger)

			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
				assert.Nil(t, trigger)
			} else {
				require.NoError(t, err)
				require.NotNil(t, trigger)
				assert.Equal(t, tt.config["queue"], trigger.Queue)
			}
		})
	}
}

func TestNewQueueTrigger_ConnectionCoercion(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	trigger, err := NewTrigger(map[string]any{
		"queue": "veriflow_jobs",
		"connection": map[string]any{
			"addr": "redis.internal:6379",
			"db":   "2",
			"port": 6379, // non-string values are dropped
		},
	}, logger)
	require.NoError(t, err)

	assert.Equal(t, "redis.internal:6379", trigger.Connection["addr"])
	assert.Equal(t, "2", trigger.Connection["db"])
	assert.NotContains(t, trigger.Connection, "port")
}

func TestQueueFactory(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	factory := NewFactory()

	assert.Equal(t, "queue", factory.ID())

	trigger, err := factory.Create(map[string]any{"queue": "jobs"}, logger)
	require.NoError(t, err)
	assert.NotNil(t, trigger)

	_, err = factory.Create(nil, logger)
	require.ErrorIs(t, err, ErrConfigNil)

	_, err = factory.Create(map[string]any{}, logger)
	assert.Error(t, err)
}
