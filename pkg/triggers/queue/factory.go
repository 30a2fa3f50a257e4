package queue

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/veriflow-io/veriflow/pkg/protocol"
)

// ErrConfigNil is returned when a trigger is created without
// configuration.
var ErrConfigNil = errors.New("config cannot be nil")

// Factory creates queue triggers.
type Factory struct{}

// NewFactory creates a new queue trigger factory.
func NewFactory() *Factory {
	return &Factory{}
}

// ID returns the trigger type tag.
func (f *Factory) ID() string {
	return "queue"
}

// Create creates a queue trigger from configuration.
func (f *Factory) Create(config map[string]any, logger *slog.Logger) (protocol.Trigger, error) {
	if config == nil {
		return nil, ErrConfigNil
	}

	trigger, err := NewTrigger(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create queue trigger: %w", err)
	}

	return trigger, nil
}
