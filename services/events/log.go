package eventsvc

import (
	"context"
	"sync"

	"github.com/trezcool/horarios/core"
)

// LogPublisher writes events to the logger and keeps them in memory.
// It stands in for a broker in development and tests.
type LogPublisher struct {
	log core.Logger

	mu     sync.Mutex
	events []core.Event
}

var _ core.EventPublisher = (*LogPublisher)(nil)

func NewLogPublisher(log core.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (pub *LogPublisher) Publish(_ context.Context, events ...core.Event) error {
	pub.mu.Lock()
	defer pub.mu.Unlock()

	for _, evt := range events {
		pub.log.Info("event "+evt.Name, map[string]interface{}{"payload": evt.Payload})
		pub.events = append(pub.events, evt)
	}
	return nil
}

// Published returns a copy of every event published so far.
func (pub *LogPublisher) Published() []core.Event {
	pub.mu.Lock()
	defer pub.mu.Unlock()
	return append([]core.Event(nil), pub.events...)
}
