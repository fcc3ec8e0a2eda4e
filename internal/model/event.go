package model

import (
	"encoding/json"
	"time"
)

// Audit event types recorded for dependency writes.
const (
	EventCreateDependency = "create_dependency"
	EventUpdateDependency = "update_dependency"
	EventDeleteDependency = "delete_dependency"
)

// EntityTypeDependency is the entity_type recorded on every audit event.
const EntityTypeDependency = "dependency"

// Event is a persisted audit record.
type Event struct {
	ID         int64           `json:"id"`
	EventType  string          `json:"event_type"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Action     string          `json:"action"`
	Actor      string          `json:"actor,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
}
