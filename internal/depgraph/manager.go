// Package depgraph is the dependency manager: the only write path for
// dependency edges. Every create, update and delete runs validation,
// endpoint existence, duplicate and cycle checks inside one store
// transaction, then records an audit entry once the write has committed.
package depgraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/plangraph/internal/audit"
	"github.com/alfredjeanlab/plangraph/internal/graph"
	"github.com/alfredjeanlab/plangraph/internal/idgen"
	"github.com/alfredjeanlab/plangraph/internal/model"
	"github.com/alfredjeanlab/plangraph/internal/store"
)

// EndpointChecker reports which entity references do not exist.
// *existence.Checker satisfies it.
type EndpointChecker interface {
	Missing(ctx context.Context, refs ...model.EntityRef) []model.EntityRef
}

// Manager owns the dependency write pipeline.
type Manager struct {
	store   store.Store
	checker EndpointChecker
	audit   *audit.Recorder
	logger  *slog.Logger
	now     func() time.Time
	newID   func() (string, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithAudit sets the recorder that receives an entry after each committed write.
func WithAudit(r *audit.Recorder) Option {
	return func(m *Manager) { m.audit = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithIDGenerator overrides dependency id generation.
func WithIDGenerator(fn func() (string, error)) Option {
	return func(m *Manager) { m.newID = fn }
}

// New creates a Manager.
func New(s store.Store, checker EndpointChecker, opts ...Option) *Manager {
	m := &Manager{
		store:   s,
		checker: checker,
		logger:  slog.Default(),
		now:     time.Now,
		newID:   idgen.Dependency,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create adds a dependency. On failure the returned error is a
// *PipelineError naming the first stage that rejected the draft.
func (m *Manager) Create(ctx context.Context, draft model.DependencyDraft) (*model.Dependency, error) {
	if err := model.ValidateDraft(draft); err != nil {
		return nil, fail(StageValidated, err)
	}

	// Entity stores are external; they are consulted before the edge-set
	// transaction is opened.
	if missing := m.checker.Missing(ctx, draft.From, draft.To); len(missing) > 0 {
		return nil, fail(StageEndpointsChecked, &model.ReferentialError{Missing: missing})
	}

	actor := draft.CreatedBy
	if actor == "" {
		actor = audit.ActorFromContext(ctx)
	}
	triple := draft.Triple()

	var dep *model.Dependency
	err := m.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.LockDependencies(ctx); err != nil {
			return fail(StageDuplicateChecked, err)
		}

		existing, err := tx.FindDependency(ctx, triple)
		switch {
		case err == nil:
			return fail(StageDuplicateChecked, &model.DuplicateError{Triple: triple, ExistingID: existing.ID})
		case !errors.Is(err, store.ErrNotFound):
			return fail(StageDuplicateChecked, fmt.Errorf("find dependency: %w", err))
		}

		all, err := tx.ListDependencies(ctx, model.DependencyFilter{})
		if err != nil {
			return fail(StageCycleChecked, err)
		}
		if cycle, path := graph.WouldCreateCycle(all, triple); cycle {
			return fail(StageCycleChecked, &model.CycleError{Path: path})
		}

		id, err := m.newID()
		if err != nil {
			return fail(StagePersisted, fmt.Errorf("generate id: %w", err))
		}
		now := m.now().UTC()
		dep = &model.Dependency{
			ID:        id,
			From:      draft.From,
			To:        draft.To,
			Kind:      draft.Kind,
			LagDays:   draft.LagDays,
			Note:      draft.Note,
			CreatedAt: now,
			UpdatedAt: now,
			CreatedBy: actor,
		}
		if err := tx.CreateDependency(ctx, dep); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return fail(StagePersisted, &model.DuplicateError{Triple: triple})
			}
			return fail(StagePersisted, fmt.Errorf("create dependency: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, asPipelineError(err, StagePersisted)
	}

	m.logger.Debug("dependency created", "id", dep.ID, "edge", triple.String())
	m.record(ctx, audit.NewEntry(model.EventCreateDependency, audit.ActionCreated, dep, actor), nil)
	return dep, nil
}

// Update changes the kind, lag or note of an existing dependency. Endpoints
// are immutable: a patch that moves either endpoint fails validation with an
// error matching model.ErrEndpointChange. Fields not set in the patch keep
// their values, as does CreatedAt.
func (m *Manager) Update(ctx context.Context, id string, patch model.DependencyPatch) (*model.Dependency, error) {
	var (
		updated *model.Dependency
		changes map[string]audit.Change
	)
	err := m.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.LockDependencies(ctx); err != nil {
			return fail(StageReceived, err)
		}

		current, err := m.load(ctx, tx, id)
		if err != nil {
			return err
		}

		// Echoing the current endpoints back is not a change.
		if patch.From != nil && *patch.From == current.From {
			patch.From = nil
		}
		if patch.To != nil && *patch.To == current.To {
			patch.To = nil
		}
		if err := model.ValidatePatch(patch); err != nil {
			if patch.From != nil || patch.To != nil {
				err = fmt.Errorf("%w: %w", model.ErrEndpointChange, err)
			}
			return fail(StageValidated, err)
		}

		next := *current
		changes = applyPatch(&next, patch)
		if len(changes) == 0 {
			updated = current
			return nil
		}

		if _, ok := changes["kind"]; ok {
			triple := next.Triple()
			other, err := tx.FindDependency(ctx, triple)
			switch {
			case err == nil && other.ID != next.ID:
				return fail(StageDuplicateChecked, &model.DuplicateError{Triple: triple, ExistingID: other.ID})
			case err != nil && !errors.Is(err, store.ErrNotFound):
				return fail(StageDuplicateChecked, fmt.Errorf("find dependency: %w", err))
			}
		}
		// Endpoints are unchanged and cycles ignore kind, so no cycle check.

		next.UpdatedAt = m.now().UTC()
		if err := tx.UpdateDependency(ctx, &next); err != nil {
			switch {
			case errors.Is(err, store.ErrDuplicate):
				return fail(StagePersisted, &model.DuplicateError{Triple: next.Triple()})
			case errors.Is(err, store.ErrNotFound):
				return fail(StagePersisted, &model.NotFoundError{ID: id})
			}
			return fail(StagePersisted, fmt.Errorf("update dependency: %w", err))
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, asPipelineError(err, StagePersisted)
	}

	if len(changes) > 0 {
		m.record(ctx, audit.NewEntry(model.EventUpdateDependency, audit.ActionUpdated, updated, audit.ActorFromContext(ctx)), changes)
	}
	return updated, nil
}

// Delete removes a dependency. Removing an edge cannot create a cycle, so no
// graph check is made.
func (m *Manager) Delete(ctx context.Context, id string) error {
	var deleted *model.Dependency
	err := m.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.LockDependencies(ctx); err != nil {
			return fail(StageReceived, err)
		}
		current, err := m.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteDependency(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fail(StagePersisted, &model.NotFoundError{ID: id})
			}
			return fail(StagePersisted, fmt.Errorf("delete dependency: %w", err))
		}
		deleted = current
		return nil
	})
	if err != nil {
		return asPipelineError(err, StagePersisted)
	}

	m.record(ctx, audit.NewEntry(model.EventDeleteDependency, audit.ActionDeleted, deleted, audit.ActorFromContext(ctx)), nil)
	return nil
}

// load fetches the edge an update or delete targets.
func (m *Manager) load(ctx context.Context, s store.Store, id string) (*model.Dependency, error) {
	dep, err := s.GetDependency(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fail(StageReceived, &model.NotFoundError{ID: id})
	}
	if err != nil {
		return nil, fail(StageReceived, fmt.Errorf("get dependency: %w", err))
	}
	return dep, nil
}

// record emits an audit entry after commit. It never fails the caller.
func (m *Manager) record(ctx context.Context, entry audit.Entry, changes map[string]audit.Change) {
	entry.Changes = changes
	entry.RequestID = audit.RequestIDFromContext(ctx)
	m.audit.Record(ctx, entry)
}

// applyPatch sets the patch's fields on d and returns what actually changed.
func applyPatch(d *model.Dependency, p model.DependencyPatch) map[string]audit.Change {
	changes := make(map[string]audit.Change)
	if p.Kind != nil && *p.Kind != d.Kind {
		changes["kind"] = audit.Change{Old: d.Kind, New: *p.Kind}
		d.Kind = *p.Kind
	}
	if p.LagDays != nil && *p.LagDays != d.LagDays {
		changes["lag_days"] = audit.Change{Old: d.LagDays, New: *p.LagDays}
		d.LagDays = *p.LagDays
	}
	if p.Note != nil && *p.Note != d.Note {
		changes["note"] = audit.Change{Old: d.Note, New: *p.Note}
		d.Note = *p.Note
	}
	return changes
}

// asPipelineError passes pipeline errors through and attributes anything
// else (begin or commit failures) to the given stage.
func asPipelineError(err error, stage Stage) error {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe
	}
	return fail(stage, err)
}
