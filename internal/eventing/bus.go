// Package eventing carries domain events between the settlement contexts
// in-process. Producers publish concrete event values; consumers register
// typed handlers with On.
package eventing

import (
	"context"
	"errors"
	"reflect"
	"sync"
)

// EventBus is the producer side of the bus.
type EventBus interface {
	Publish(ctx context.Context, event any) error
}

// ErrNilEvent is returned when a nil event is published.
var ErrNilEvent = errors.New("eventing: nil event")

// InMemoryBus dispatches events to handlers keyed by the event's concrete
// type. Handlers run synchronously on the publisher's goroutine.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[reflect.Type][]func(ctx context.Context, event any) error
}

// NewInMemoryBus constructs an empty bus.
func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[reflect.Type][]func(ctx context.Context, event any) error),
	}
}

// Publish delivers the event to every handler registered for its type. All
// handlers run; the first error is returned.
func (b *InMemoryBus) Publish(ctx context.Context, event any) error {
	if event == nil {
		return ErrNilEvent
	}

	b.mu.RLock()
	handlers := append([]func(ctx context.Context, event any) error(nil), b.handlers[reflect.TypeOf(event)]...)
	b.mu.RUnlock()

	var firstErr error
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// On registers a handler for events of type T. Events are published and
// matched by value type, so subscribe to the value, not a pointer.
func On[T any](b *InMemoryBus, handler func(ctx context.Context, event T) error) {
	if handler == nil {
		return
	}
	key := reflect.TypeOf((*T)(nil)).Elem()

	b.mu.Lock()
	b.handlers[key] = append(b.handlers[key], func(ctx context.Context, event any) error {
		return handler(ctx, event.(T))
	})
	b.mu.Unlock()
}
