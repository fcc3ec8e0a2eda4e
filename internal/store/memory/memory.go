// Package memory implements store.Store in process memory. It backs the
// demo server mode and the tests of packages above the store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alfredjeanlab/plangraph/internal/model"
	"github.com/alfredjeanlab/plangraph/internal/store"
)

type state struct {
	deps      map[string]*model.Dependency
	events    []*model.Event
	nextEvent int64
	entities  map[model.EntityRef]bool
}

func newState() *state {
	return &state{
		deps:     make(map[string]*model.Dependency),
		entities: make(map[model.EntityRef]bool),
	}
}

func (s *state) clone() *state {
	c := &state{
		deps:      make(map[string]*model.Dependency, len(s.deps)),
		events:    append([]*model.Event(nil), s.events...),
		nextEvent: s.nextEvent,
		entities:  make(map[model.EntityRef]bool, len(s.entities)),
	}
	for id, d := range s.deps {
		c.deps[id] = d
	}
	for ref := range s.entities {
		c.entities[ref] = true
	}
	return c
}

// Store is an in-memory store.Store. Transactions run one at a time against a
// private copy of the data that replaces the shared copy on commit.
type Store struct {
	txMu sync.Mutex // held by writers for their whole transaction

	mu sync.RWMutex
	st *state
}

var _ store.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{st: newState()}
}

// RegisterEntity marks refs as existing.
func (s *Store) RegisterEntity(_ context.Context, refs ...model.EntityRef) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ref := range refs {
		s.st.entities[ref] = true
	}
}

// RemoveEntity marks refs as no longer existing. Edges are left alone.
func (s *Store) RemoveEntity(_ context.Context, refs ...model.EntityRef) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ref := range refs {
		delete(s.st.entities, ref)
	}
}

func (s *Store) read(fn func(st *state) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.st)
}

// write applies fn as a single-statement transaction.
func (s *Store) write(fn func(st *state) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

func (s *Store) CreateDependency(_ context.Context, dep *model.Dependency) error {
	return s.write(func(st *state) error { return st.create(dep) })
}

func (s *Store) GetDependency(_ context.Context, id string) (dep *model.Dependency, err error) {
	err = s.read(func(st *state) error { dep, err = st.get(id); return err })
	return dep, err
}

func (s *Store) UpdateDependency(_ context.Context, dep *model.Dependency) error {
	return s.write(func(st *state) error { return st.update(dep) })
}

func (s *Store) DeleteDependency(_ context.Context, id string) error {
	return s.write(func(st *state) error { return st.delete(id) })
}

func (s *Store) ListDependencies(_ context.Context, filter model.DependencyFilter) (deps []*model.Dependency, err error) {
	err = s.read(func(st *state) error { deps = st.list(filter); return nil })
	return deps, err
}

func (s *Store) FindDependency(_ context.Context, t model.Triple) (dep *model.Dependency, err error) {
	err = s.read(func(st *state) error { dep, err = st.find(t); return err })
	return dep, err
}

func (s *Store) CountDependencies(_ context.Context) (n int, err error) {
	err = s.read(func(st *state) error { n = len(st.deps); return nil })
	return n, err
}

// LockDependencies is a no-op; transactions are already serialized.
func (s *Store) LockDependencies(context.Context) error { return nil }

func (s *Store) RecordEvent(_ context.Context, e *model.Event) error {
	return s.write(func(st *state) error { st.recordEvent(e); return nil })
}

func (s *Store) GetEvents(_ context.Context, entityID string) (evs []*model.Event, err error) {
	err = s.read(func(st *state) error { evs = st.getEvents(entityID); return nil })
	return evs, err
}

func (s *Store) EntityExists(_ context.Context, kind model.EntityKind, id string) (ok bool, err error) {
	err = s.read(func(st *state) error { ok = st.entities[model.EntityRef{Kind: kind, ID: id}]; return nil })
	return ok, err
}

// RunInTransaction runs fn against a copy of the data and publishes the copy
// only if fn succeeds.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	s.mu.RLock()
	work := s.st.clone()
	s.mu.RUnlock()

	if err := fn(&txStore{parent: s, st: work}); err != nil {
		return err
	}

	s.mu.Lock()
	s.st = work
	s.mu.Unlock()
	return nil
}

func (s *Store) Close() error { return nil }

// txStore operates on a transaction's private copy.
type txStore struct {
	parent *Store
	st     *state
}

var _ store.Store = (*txStore)(nil)

func (t *txStore) CreateDependency(_ context.Context, dep *model.Dependency) error {
	return t.st.create(dep)
}

func (t *txStore) GetDependency(_ context.Context, id string) (*model.Dependency, error) {
	return t.st.get(id)
}

func (t *txStore) UpdateDependency(_ context.Context, dep *model.Dependency) error {
	return t.st.update(dep)
}

func (t *txStore) DeleteDependency(_ context.Context, id string) error {
	return t.st.delete(id)
}

func (t *txStore) ListDependencies(_ context.Context, filter model.DependencyFilter) ([]*model.Dependency, error) {
	return t.st.list(filter), nil
}

func (t *txStore) FindDependency(_ context.Context, tr model.Triple) (*model.Dependency, error) {
	return t.st.find(tr)
}

func (t *txStore) CountDependencies(context.Context) (int, error) { return len(t.st.deps), nil }

func (t *txStore) LockDependencies(context.Context) error { return nil }

func (t *txStore) RecordEvent(_ context.Context, e *model.Event) error {
	t.st.recordEvent(e)
	return nil
}

func (t *txStore) GetEvents(_ context.Context, entityID string) ([]*model.Event, error) {
	return t.st.getEvents(entityID), nil
}

func (t *txStore) EntityExists(_ context.Context, kind model.EntityKind, id string) (bool, error) {
	return t.st.entities[model.EntityRef{Kind: kind, ID: id}], nil
}

func (t *txStore) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	return fn(t)
}

func (t *txStore) Close() error { return nil }

// Operations on state. Stored values are copied on the way in and out so
// callers never alias the store's data.

func (st *state) create(dep *model.Dependency) error {
	if _, ok := st.deps[dep.ID]; ok {
		return fmt.Errorf("dependency %s: id already exists", dep.ID)
	}
	if _, err := st.find(dep.Triple()); err == nil {
		return store.ErrDuplicate
	}
	d := *dep
	st.deps[dep.ID] = &d
	return nil
}

func (st *state) get(id string) (*model.Dependency, error) {
	d, ok := st.deps[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *d
	return &c, nil
}

func (st *state) update(dep *model.Dependency) error {
	cur, ok := st.deps[dep.ID]
	if !ok {
		return store.ErrNotFound
	}
	t := model.Triple{From: cur.From, To: cur.To, Kind: dep.Kind}
	if other, err := st.find(t); err == nil && other.ID != dep.ID {
		return store.ErrDuplicate
	}
	next := *cur
	next.Kind, next.LagDays, next.Note, next.UpdatedAt = dep.Kind, dep.LagDays, dep.Note, dep.UpdatedAt
	st.deps[dep.ID] = &next
	return nil
}

func (st *state) delete(id string) error {
	if _, ok := st.deps[id]; !ok {
		return store.ErrNotFound
	}
	delete(st.deps, id)
	return nil
}

func (st *state) find(t model.Triple) (*model.Dependency, error) {
	for _, d := range st.deps {
		if d.Triple() == t {
			c := *d
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (st *state) list(f model.DependencyFilter) []*model.Dependency {
	kinds := make(map[model.DependencyKind]bool, len(f.Kind))
	for _, k := range f.Kind {
		kinds[k] = true
	}
	var out []*model.Dependency
	for _, d := range st.deps {
		if f.From != nil && d.From != *f.From {
			continue
		}
		if f.To != nil && d.To != *f.To {
			continue
		}
		if f.Involving != nil && d.From != *f.Involving && d.To != *f.Involving {
			continue
		}
		if len(kinds) > 0 && !kinds[d.Kind] {
			continue
		}
		c := *d
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (st *state) recordEvent(e *model.Event) {
	st.nextEvent++
	e.ID = st.nextEvent
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	c := *e
	st.events = append(st.events, &c)
}

func (st *state) getEvents(entityID string) []*model.Event {
	var out []*model.Event
	for _, e := range st.events {
		if e.EntityID == entityID {
			c := *e
			out = append(out, &c)
		}
	}
	return out
}
