// Package eventbus provides event-driven communication infrastructure for
// workflow execution monitoring.
package eventbus

import (
	"context"

	"github.com/veriflow-io/veriflow/pkg/events"
)

// Event is anything the engine can publish; every lifecycle event in
// pkg/events satisfies it.
type Event interface {
	GetType() events.EventType
}

// EventPublisher is the write side of the bus. The key partitions
// related events (the engine uses the workflow ID).
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// EventSubscriber is the read side. Handlers are registered per event
// type before Subscribe starts the delivery loop.
type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

// EventHandler receives a decoded event. A returned error nacks the
// underlying message.
type EventHandler func(ctx context.Context, event any) error

// EventBus combines both sides plus lifecycle and ID generation.
type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
