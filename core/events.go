package core

import (
	"context"
	"time"
)

type (
	// Event is a notification that something changed, sent after the change has been committed.
	Event struct {
		Name       string      `json:"name"`
		OccurredAt time.Time   `json:"occurred_at"`
		Payload    interface{} `json:"payload"`
	}

	// EventPublisher is any service that can deliver events to other subsystems.
	EventPublisher interface {
		Publish(ctx context.Context, events ...Event) error
	}
)

func NewEvent(name string, payload interface{}) Event {
	return Event{Name: name, OccurredAt: time.Now().UTC(), Payload: payload}
}
