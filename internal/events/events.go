// Package events publishes dependency changes to the message bus and lets
// clients follow them.
package events

import (
	"context"

	"github.com/alfredjeanlab/plangraph/internal/model"
)

// Subjects carrying dependency changes.
const (
	TopicDependencyCreated = "plangraph.dependency.created"
	TopicDependencyUpdated = "plangraph.dependency.updated"
	TopicDependencyDeleted = "plangraph.dependency.deleted"

	// TopicAll matches every plangraph subject.
	TopicAll = "plangraph.>"
)

// TopicFor returns the subject for an audit event type, or "" if the event
// type is not published.
func TopicFor(eventType string) string {
	switch eventType {
	case model.EventCreateDependency:
		return TopicDependencyCreated
	case model.EventUpdateDependency:
		return TopicDependencyUpdated
	case model.EventDeleteDependency:
		return TopicDependencyDeleted
	}
	return ""
}

// DependencyChanged is the body published on every dependency subject.
type DependencyChanged struct {
	EventType  string            `json:"event_type"`
	Dependency *model.Dependency `json:"dependency"`
	Changes    map[string]any    `json:"changes,omitempty"` // field name -> new value, updates only
	Actor      string            `json:"actor,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
