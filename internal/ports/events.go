package ports

import (
	"github.com/target/hotelease-portal/internal/domain/event"
)

// EventPublisher is the write side of an event bus.
type EventPublisher interface {
	Publish(t event.Type, payload any) event.Event
}

// EventSink accepts events that already carry an origin, e.g. from another instance.
type EventSink interface {
	PublishWithSource(t event.Type, payload any, source string) event.Event
}
