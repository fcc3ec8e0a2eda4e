// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"regexp"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/plangraph/internal/model"
	"github.com/alfredjeanlab/plangraph/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Default names of the entity tables owned by the planning application.
const (
	DefaultProjectsTable = "projects"
	DefaultTasksTable    = "tasks"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// entityTables maps entity kinds to the tables their point lookups hit.
type entityTables map[model.EntityKind]string

// Option configures a PostgresStore.
type Option func(*PostgresStore)

// WithEntityTables overrides the tables used for entity existence lookups.
// Empty names keep the defaults.
func WithEntityTables(projects, tasks string) Option {
	return func(s *PostgresStore) {
		if projects != "" {
			s.tables[model.EntityProject] = projects
		}
		if tasks != "" {
			s.tables[model.EntityTask] = tasks
		}
	}
}

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db     *sql.DB
	tables entityTables
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string, opts ...Option) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s, err := newStore(db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func newStore(db *sql.DB, opts ...Option) (*PostgresStore, error) {
	s := &PostgresStore{
		db: db,
		tables: entityTables{
			model.EntityProject: DefaultProjectsTable,
			model.EntityTask:    DefaultTasksTable,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	for kind, table := range s.tables {
		if !identRe.MatchString(table) {
			return nil, fmt.Errorf("invalid %s table name %q", kind, table)
		}
	}
	return s, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateDependency(ctx context.Context, dep *model.Dependency) error {
	return queryCreateDependency(ctx, s.db, dep)
}

func (s *PostgresStore) GetDependency(ctx context.Context, id string) (*model.Dependency, error) {
	return queryGetDependency(ctx, s.db, id)
}

func (s *PostgresStore) UpdateDependency(ctx context.Context, dep *model.Dependency) error {
	return queryUpdateDependency(ctx, s.db, dep)
}

func (s *PostgresStore) DeleteDependency(ctx context.Context, id string) error {
	return queryDeleteDependency(ctx, s.db, id)
}

func (s *PostgresStore) ListDependencies(ctx context.Context, filter model.DependencyFilter) ([]*model.Dependency, error) {
	return queryListDependencies(ctx, s.db, filter)
}

func (s *PostgresStore) FindDependency(ctx context.Context, t model.Triple) (*model.Dependency, error) {
	return queryFindDependency(ctx, s.db, t)
}

func (s *PostgresStore) CountDependencies(ctx context.Context) (int, error) {
	return queryCountDependencies(ctx, s.db)
}

func (s *PostgresStore) LockDependencies(ctx context.Context) error {
	return queryLockDependencies(ctx, s.db)
}

func (s *PostgresStore) RecordEvent(ctx context.Context, event *model.Event) error {
	return queryRecordEvent(ctx, s.db, event)
}

func (s *PostgresStore) GetEvents(ctx context.Context, entityID string) ([]*model.Event, error) {
	return queryGetEvents(ctx, s.db, entityID)
}

func (s *PostgresStore) EntityExists(ctx context.Context, kind model.EntityKind, id string) (bool, error) {
	return queryEntityExists(ctx, s.db, s.tables, kind, id)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txS := &txStore{tx: tx, tables: s.tables}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx     *sql.Tx
	tables entityTables
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) CreateDependency(ctx context.Context, dep *model.Dependency) error {
	return queryCreateDependency(ctx, s.tx, dep)
}

func (s *txStore) GetDependency(ctx context.Context, id string) (*model.Dependency, error) {
	return queryGetDependency(ctx, s.tx, id)
}

func (s *txStore) UpdateDependency(ctx context.Context, dep *model.Dependency) error {
	return queryUpdateDependency(ctx, s.tx, dep)
}

func (s *txStore) DeleteDependency(ctx context.Context, id string) error {
	return queryDeleteDependency(ctx, s.tx, id)
}

func (s *txStore) ListDependencies(ctx context.Context, filter model.DependencyFilter) ([]*model.Dependency, error) {
	return queryListDependencies(ctx, s.tx, filter)
}

func (s *txStore) FindDependency(ctx context.Context, t model.Triple) (*model.Dependency, error) {
	return queryFindDependency(ctx, s.tx, t)
}

func (s *txStore) CountDependencies(ctx context.Context) (int, error) {
	return queryCountDependencies(ctx, s.tx)
}

func (s *txStore) LockDependencies(ctx context.Context) error {
	return queryLockDependencies(ctx, s.tx)
}

func (s *txStore) RecordEvent(ctx context.Context, event *model.Event) error {
	return queryRecordEvent(ctx, s.tx, event)
}

func (s *txStore) GetEvents(ctx context.Context, entityID string) ([]*model.Event, error) {
	return queryGetEvents(ctx, s.tx, entityID)
}

func (s *txStore) EntityExists(ctx context.Context, kind model.EntityKind, id string) (bool, error) {
	return queryEntityExists(ctx, s.tx, s.tables, kind, id)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
