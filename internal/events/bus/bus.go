// Package bus provides the event bus abstraction for Beaver: subjects
// carry dotted names (see internal/events), handlers receive typed
// envelopes, and implementations exist for NATS and in-process use.
package bus

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope carried on the bus. Data holds the event-specific
// payload; every project-scoped event also carries a "projectId" entry so
// subscribers can route without parsing the subject.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"` // component that produced the event
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// NewEvent builds an event with a fresh id and UTC timestamp.
func NewEvent(eventType, source string, data map[string]interface{}) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// EventHandler consumes one event. A returned error is logged by the bus
// implementation; it does not stop the subscription.
type EventHandler func(ctx context.Context, event *Event) error

// Subscription is an active handler registration.
type Subscription interface {
	Unsubscribe() error
	IsValid() bool
}

// EventBus publishes and subscribes events by subject. Subject patterns
// support NATS-style wildcards ("task.completed.*").
type EventBus interface {
	Publish(ctx context.Context, subject string, event *Event) error

	Subscribe(subject string, handler EventHandler) (Subscription, error)

	// QueueSubscribe delivers each event to one member of the queue
	// group, for load-balanced consumers.
	QueueSubscribe(subject, queue string, handler EventHandler) (Subscription, error)

	Close()

	IsConnected() bool
}
