package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when an update or delete targets a missing edge.
var ErrNotFound = errors.New("dependency not found")

// ErrEndpointChange is returned when an update tries to move an edge's endpoints.
var ErrEndpointChange = errors.New("dependency endpoints are immutable")

// NotFoundError names the edge that could not be found.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("dependency %s not found", e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ReferentialError reports endpoints that do not exist in their owning store.
type ReferentialError struct {
	Missing []EntityRef `json:"missing"`
}

func (e *ReferentialError) Error() string {
	names := make([]string, len(e.Missing))
	for i, r := range e.Missing {
		names[i] = r.String()
	}
	return "referenced entity not found: " + strings.Join(names, ", ")
}

// DuplicateError reports that an identical (from, to, kind) edge already exists.
type DuplicateError struct {
	Triple     Triple `json:"-"`
	ExistingID string `json:"existing_id,omitempty"`
}

func (e *DuplicateError) Error() string {
	if e.ExistingID != "" {
		return fmt.Sprintf("dependency %s already exists as %s", e.Triple, e.ExistingID)
	}
	return fmt.Sprintf("dependency %s already exists", e.Triple)
}

// CycleError reports that the candidate edge would close a cycle. Path lists
// the entities on the cycle with the first entity repeated at the end. The
// path is a diagnostic; it is not guaranteed to be minimal.
type CycleError struct {
	Path []EntityRef `json:"path"`
}

func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return "dependency would create a cycle"
	}
	return "dependency would create a cycle: " + FormatPath(e.Path)
}

// FormatPath renders a path as "task:A -> task:B -> task:A".
func FormatPath(path []EntityRef) string {
	parts := make([]string, len(path))
	for i, r := range path {
		parts[i] = r.String()
	}
	return strings.Join(parts, " -> ")
}
