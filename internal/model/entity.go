package model

import (
	"fmt"
	"strings"
)

// EntityKind identifies the store that owns a schedulable entity.
type EntityKind string

const (
	EntityProject EntityKind = "project"
	EntityTask    EntityKind = "task"
)

// EntityKinds lists every recognised entity kind.
var EntityKinds = []EntityKind{EntityProject, EntityTask}

// String returns the string representation of the entity kind.
func (k EntityKind) String() string {
	return string(k)
}

// IsValid checks whether the entity kind is a known value.
func (k EntityKind) IsValid() bool {
	switch k {
	case EntityProject, EntityTask:
		return true
	}
	return false
}

// EntityRef points at a project or task owned by an external store.
// It is comparable and is used directly as a map key.
type EntityRef struct {
	Kind EntityKind `json:"kind"`
	ID   string     `json:"id"`
}

// Project returns a reference to the project with the given id.
func Project(id string) EntityRef { return EntityRef{Kind: EntityProject, ID: id} }

// Task returns a reference to the task with the given id.
func Task(id string) EntityRef { return EntityRef{Kind: EntityTask, ID: id} }

// String renders the reference as "kind:id". It is for display only.
func (r EntityRef) String() string {
	return string(r.Kind) + ":" + r.ID
}

// IsZero reports whether the reference is unset.
func (r EntityRef) IsZero() bool {
	return r.Kind == "" && r.ID == ""
}

// ParseEntityRef parses "kind:id" (e.g. "task:T-12"). The kind must be known;
// the id may itself contain colons.
func ParseEntityRef(s string) (EntityRef, error) {
	kind, id, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return EntityRef{}, fmt.Errorf("entity reference %q: expected kind:id", s)
	}
	ref := EntityRef{Kind: EntityKind(strings.ToLower(kind)), ID: id}
	if !ref.Kind.IsValid() {
		return EntityRef{}, fmt.Errorf("entity reference %q: unknown kind %q", s, kind)
	}
	if strings.TrimSpace(ref.ID) == "" {
		return EntityRef{}, fmt.Errorf("entity reference %q: id is required", s)
	}
	return ref, nil
}

// Less orders references by kind, then id.
func (r EntityRef) Less(o EntityRef) bool {
	if r.Kind != o.Kind {
		return r.Kind < o.Kind
	}
	return r.ID < o.ID
}
