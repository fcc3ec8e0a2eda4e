package model

import (
	"fmt"
	"strings"
	"time"
)

// Bounds enforced on every dependency.
const (
	MinLagDays    = -365
	MaxLagDays    = 365
	MaxNoteLength = 500
)

// DependencyKind says which boundary of the predecessor gates which boundary
// of the successor.
type DependencyKind string

const (
	FinishToStart  DependencyKind = "FS"
	StartToStart   DependencyKind = "SS"
	FinishToFinish DependencyKind = "FF"
	StartToFinish  DependencyKind = "SF"
)

// DependencyKinds lists the recognised kinds in display order.
var DependencyKinds = []DependencyKind{FinishToStart, StartToStart, FinishToFinish, StartToFinish}

// String returns the string representation of the dependency kind.
func (k DependencyKind) String() string {
	return string(k)
}

// IsValid checks whether the dependency kind is one of the four known values.
func (k DependencyKind) IsValid() bool {
	switch k {
	case FinishToStart, StartToStart, FinishToFinish, StartToFinish:
		return true
	}
	return false
}

// Long returns the spelled-out name, e.g. "finish_to_start".
func (k DependencyKind) Long() string {
	switch k {
	case FinishToStart:
		return "finish_to_start"
	case StartToStart:
		return "start_to_start"
	case FinishToFinish:
		return "finish_to_finish"
	case StartToFinish:
		return "start_to_finish"
	}
	return string(k)
}

// ParseDependencyKind accepts the short ("fs") or long ("finish_to_start",
// "finish-to-start") spelling, case-insensitively.
func ParseDependencyKind(s string) (DependencyKind, error) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	for _, k := range DependencyKinds {
		if norm == string(k) || norm == strings.ToUpper(k.Long()) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown dependency kind %q", s)
}

// Dependency is a directed scheduling edge between two entities.
type Dependency struct {
	ID        string         `json:"id"`
	From      EntityRef      `json:"from"`
	To        EntityRef      `json:"to"`
	Kind      DependencyKind `json:"kind"`
	LagDays   int            `json:"lag_days"`
	Note      string         `json:"note,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	CreatedBy string         `json:"created_by,omitempty"`
}

// Triple returns the (from, to, kind) key that must be unique across edges.
func (d *Dependency) Triple() Triple {
	return Triple{From: d.From, To: d.To, Kind: d.Kind}
}

// Triple identifies an edge for duplicate detection.
type Triple struct {
	From EntityRef
	To   EntityRef
	Kind DependencyKind
}

func (t Triple) String() string {
	return fmt.Sprintf("%s -%s-> %s", t.From, t.Kind, t.To)
}

// DependencyDraft is a candidate edge submitted for creation.
type DependencyDraft struct {
	From      EntityRef      `json:"from"`
	To        EntityRef      `json:"to"`
	Kind      DependencyKind `json:"kind"`
	LagDays   int            `json:"lag_days"`
	Note      string         `json:"note,omitempty"`
	CreatedBy string         `json:"created_by,omitempty"`
}

// Triple returns the draft's duplicate key.
func (d DependencyDraft) Triple() Triple {
	return Triple{From: d.From, To: d.To, Kind: d.Kind}
}

// DependencyPatch holds optional changes to an existing edge.
// Nil fields mean "don't change". From and To are never applied; they are
// carried only so that endpoint changes can be detected and rejected.
type DependencyPatch struct {
	Kind    *DependencyKind `json:"kind,omitempty"`
	LagDays *int            `json:"lag_days,omitempty"`
	Note    *string         `json:"note,omitempty"`
	From    *EntityRef      `json:"from,omitempty"`
	To      *EntityRef      `json:"to,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p DependencyPatch) IsEmpty() bool {
	return p.Kind == nil && p.LagDays == nil && p.Note == nil && p.From == nil && p.To == nil
}

// DependencyFilter selects edges for listing. Zero-valued fields are ignored.
type DependencyFilter struct {
	From      *EntityRef
	To        *EntityRef
	Involving *EntityRef // edges where the entity is either endpoint
	Kind      []DependencyKind
}
