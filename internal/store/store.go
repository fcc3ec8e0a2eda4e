package store

import (
	"context"
	"errors"

	"github.com/alfredjeanlab/plangraph/internal/model"
)

var (
	// ErrNotFound is returned when a row addressed by id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an insert or update violates the
	// (from, to, kind) uniqueness constraint.
	ErrDuplicate = errors.New("duplicate dependency")
)

// Store defines the persistence interface for dependency edges.
type Store interface {
	// Dependencies
	CreateDependency(ctx context.Context, dep *model.Dependency) error
	GetDependency(ctx context.Context, id string) (*model.Dependency, error)
	UpdateDependency(ctx context.Context, dep *model.Dependency) error
	DeleteDependency(ctx context.Context, id string) error
	ListDependencies(ctx context.Context, filter model.DependencyFilter) ([]*model.Dependency, error)
	FindDependency(ctx context.Context, t model.Triple) (*model.Dependency, error)
	CountDependencies(ctx context.Context) (int, error)

	// LockDependencies serializes writers on the whole edge set for the
	// remainder of the current transaction.
	LockDependencies(ctx context.Context) error

	// Events
	RecordEvent(ctx context.Context, event *model.Event) error
	GetEvents(ctx context.Context, entityID string) ([]*model.Event, error)

	// Entities owned by the surrounding application; point lookups only.
	EntityExists(ctx context.Context, kind model.EntityKind, id string) (bool, error)

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}

// EntityLookup answers existence queries for one entity kind against the
// store's entity tables.
type EntityLookup struct {
	Store Store
	Kind  model.EntityKind
}

// Exists reports whether the entity with the given id exists.
func (l EntityLookup) Exists(ctx context.Context, id string) (bool, error) {
	return l.Store.EntityExists(ctx, l.Kind, id)
}
