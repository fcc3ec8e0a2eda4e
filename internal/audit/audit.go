// Package audit records dependency changes to one or more sinks. Recording
// is best-effort: sink failures are logged and never reach the caller.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alfredjeanlab/plangraph/internal/model"
)

// Actions recorded alongside each event type.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Change is the before and after value of one mutated field.
type Change struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// Entry describes one dependency change.
type Entry struct {
	EventType  string
	EntityType string
	EntityID   string
	Action     string
	Actor      string
	RequestID  string

	// Dependency is the edge after the change, or as it was before a delete.
	Dependency *model.Dependency
	// Changes is set for updates only.
	Changes map[string]Change
}

// Payload is the structured description stored with each audit event. It
// carries enough to reconstruct what the caller intended.
type Payload struct {
	From      model.EntityRef      `json:"from"`
	To        model.EntityRef      `json:"to"`
	Kind      model.DependencyKind `json:"kind"`
	LagDays   int                  `json:"lag_days"`
	Note      string               `json:"note,omitempty"`
	Changes   map[string]Change    `json:"changes,omitempty"`
	RequestID string               `json:"request_id,omitempty"`
}

// Payload builds the stored payload for the entry.
func (e Entry) Payload() Payload {
	p := Payload{Changes: e.Changes, RequestID: e.RequestID}
	if d := e.Dependency; d != nil {
		p.From, p.To = d.From, d.To
		p.Kind, p.LagDays, p.Note = d.Kind, d.LagDays, d.Note
	}
	return p
}

// Event converts the entry into a persisted audit record.
func (e Entry) Event() (*model.Event, error) {
	payload, err := json.Marshal(e.Payload())
	if err != nil {
		return nil, fmt.Errorf("marshal audit payload: %w", err)
	}
	return &model.Event{
		EventType:  e.EventType,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Action:     e.Action,
		Actor:      e.Actor,
		Payload:    payload,
	}, nil
}

// NewEntry fills in the fields shared by every dependency event.
func NewEntry(eventType, action string, dep *model.Dependency, actor string) Entry {
	return Entry{
		EventType:  eventType,
		EntityType: model.EntityTypeDependency,
		EntityID:   dep.ID,
		Action:     action,
		Actor:      actor,
		Dependency: dep,
	}
}

// Sink receives audit entries.
type Sink interface {
	Record(ctx context.Context, entry Entry) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, entry Entry) error

func (f SinkFunc) Record(ctx context.Context, entry Entry) error { return f(ctx, entry) }

// Error wraps a failure from a named sink.
type Error struct {
	Sink string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("audit sink %s: %v", e.Sink, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Multi fans an entry out to every sink. All sinks are tried; their errors
// are joined.
type Multi []Sink

func (m Multi) Record(ctx context.Context, entry Entry) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder is what the dependency manager calls after a write commits.
type Recorder struct {
	sink   Sink
	logger *slog.Logger
}

// NewRecorder creates a Recorder. A nil sink discards every entry.
func NewRecorder(sink Sink, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{sink: sink, logger: logger}
}

// Record hands entry to the sink. It never fails: errors are logged. The
// caller's cancellation is ignored so that an entry for a committed write
// is not lost when the request goes away.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if r == nil || r.sink == nil {
		return
	}
	if err := r.sink.Record(context.WithoutCancel(ctx), entry); err != nil {
		r.logger.Warn("failed to record audit event",
			"event_type", entry.EventType, "entity_id", entry.EntityID, "err", err)
	}
}
