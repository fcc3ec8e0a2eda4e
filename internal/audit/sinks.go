package audit

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/plangraph/internal/events"
	"github.com/alfredjeanlab/plangraph/internal/model"
)

// EventStore persists audit events. store.Store satisfies it.
type EventStore interface {
	RecordEvent(ctx context.Context, event *model.Event) error
}

// StoreSink writes entries to the audit_events table.
type StoreSink struct {
	Store EventStore
}

func (s StoreSink) Record(ctx context.Context, entry Entry) error {
	ev, err := entry.Event()
	if err != nil {
		return &Error{Sink: "store", Err: err}
	}
	if err := s.Store.RecordEvent(ctx, ev); err != nil {
		return &Error{Sink: "store", Err: err}
	}
	return nil
}

// PublisherSink publishes entries to the event bus.
type PublisherSink struct {
	Publisher events.Publisher
}

func (s PublisherSink) Record(ctx context.Context, entry Entry) error {
	topic := events.TopicFor(entry.EventType)
	if topic == "" {
		return &Error{Sink: "publisher", Err: fmt.Errorf("no topic for event type %q", entry.EventType)}
	}
	msg := events.DependencyChanged{
		EventType:  entry.EventType,
		Dependency: entry.Dependency,
		Actor:      entry.Actor,
		RequestID:  entry.RequestID,
	}
	if len(entry.Changes) > 0 {
		msg.Changes = make(map[string]any, len(entry.Changes))
		for field, c := range entry.Changes {
			msg.Changes[field] = c.New
		}
	}
	if err := s.Publisher.Publish(ctx, topic, msg); err != nil {
		return &Error{Sink: "publisher", Err: err}
	}
	return nil
}
