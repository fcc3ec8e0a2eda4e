package depgraph

import (
	"context"
	"errors"
	"fmt"

	"github.com/alfredjeanlab/plangraph/internal/graph"
	"github.com/alfredjeanlab/plangraph/internal/model"
	"github.com/alfredjeanlab/plangraph/internal/store"
)

// Get returns the dependency with the given id.
func (m *Manager) Get(ctx context.Context, id string) (*model.Dependency, error) {
	dep, err := m.store.GetDependency(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &model.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get dependency: %w", err)
	}
	return dep, nil
}

// List returns the dependencies matching filter.
func (m *Manager) List(ctx context.Context, filter model.DependencyFilter) ([]*model.Dependency, error) {
	deps, err := m.store.ListDependencies(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list dependencies: %w", err)
	}
	return deps, nil
}

// ListAll returns every dependency.
func (m *Manager) ListAll(ctx context.Context) ([]*model.Dependency, error) {
	return m.List(ctx, model.DependencyFilter{})
}

// ListFrom returns the dependencies whose From endpoint is ref.
func (m *Manager) ListFrom(ctx context.Context, ref model.EntityRef) ([]*model.Dependency, error) {
	return m.List(ctx, model.DependencyFilter{From: &ref})
}

// ListTo returns the dependencies whose To endpoint is ref.
func (m *Manager) ListTo(ctx context.Context, ref model.EntityRef) ([]*model.Dependency, error) {
	return m.List(ctx, model.DependencyFilter{To: &ref})
}

// ListFor returns the dependencies touching ref at either end, each once.
func (m *Manager) ListFor(ctx context.Context, ref model.EntityRef) ([]*model.Dependency, error) {
	return m.List(ctx, model.DependencyFilter{Involving: &ref})
}

// Stats aggregates the current edge set.
func (m *Manager) Stats(ctx context.Context) (*model.DependencyStats, error) {
	deps, err := m.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return model.ComputeStats(deps), nil
}

// Events returns the audit history of one dependency, oldest first.
func (m *Manager) Events(ctx context.Context, id string) ([]*model.Event, error) {
	evs, err := m.store.GetEvents(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get events: %w", err)
	}
	return evs, nil
}

// Graph returns the whole edge set as a snapshot for downstream schedulers.
func (m *Manager) Graph(ctx context.Context) (*model.GraphSnapshot, error) {
	deps, err := m.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return graph.Build(deps).Snapshot(), nil
}
