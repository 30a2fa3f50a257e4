package protocol

import (
	"context"
	"log/slog"
)

// TriggerCallback is invoked by a trigger to start a workflow execution
// with the trigger's payload.
type TriggerCallback func(ctx context.Context, data map[string]any) error

// Trigger initiates workflow executions from an external stimulus
// (schedule tick, queue message).
type Trigger interface {
	Start(ctx context.Context, callback TriggerCallback) error
	Stop(ctx context.Context) error
	Validate() error
}

// TriggerFactory creates triggers from configuration.
type TriggerFactory interface {
	ID() string
	Create(config map[string]any, logger *slog.Logger) (Trigger, error)
}
