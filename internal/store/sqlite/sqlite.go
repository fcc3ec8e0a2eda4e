// Package sqlite implements the store.Store interface on a local SQLite
// file. It carries its own projects and tasks tables so that plangraph can
// run without the surrounding planning application.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/alfredjeanlab/plangraph/internal/model"
	"github.com/alfredjeanlab/plangraph/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements store.Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// Compile-time check that SQLiteStore implements store.Store.
var _ store.Store = (*SQLiteStore)(nil)

// Open creates or opens the database at path, applies pragmas and runs any
// pending migrations.
//
// Transactions are opened with BEGIN IMMEDIATE and the pool holds a single
// connection, so writers are serialized by SQLite itself.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_txlock=immediate"
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RegisterEntity adds a project or task to the local entity tables. It is a
// no-op if the entity already exists.
func (s *SQLiteStore) RegisterEntity(ctx context.Context, ref model.EntityRef, name string) error {
	return queryRegisterEntity(ctx, s.db, ref, name)
}

// ListEntities returns the ids of every entity of the given kind.
func (s *SQLiteStore) ListEntities(ctx context.Context, kind model.EntityKind) ([]string, error) {
	return queryListEntities(ctx, s.db, kind)
}

func (s *SQLiteStore) CreateDependency(ctx context.Context, dep *model.Dependency) error {
	return queryCreateDependency(ctx, s.db, dep)
}

func (s *SQLiteStore) GetDependency(ctx context.Context, id string) (*model.Dependency, error) {
	return queryGetDependency(ctx, s.db, id)
}

func (s *SQLiteStore) UpdateDependency(ctx context.Context, dep *model.Dependency) error {
	return queryUpdateDependency(ctx, s.db, dep)
}

func (s *SQLiteStore) DeleteDependency(ctx context.Context, id string) error {
	return queryDeleteDependency(ctx, s.db, id)
}

func (s *SQLiteStore) ListDependencies(ctx context.Context, filter model.DependencyFilter) ([]*model.Dependency, error) {
	return queryListDependencies(ctx, s.db, filter)
}

func (s *SQLiteStore) FindDependency(ctx context.Context, t model.Triple) (*model.Dependency, error) {
	return queryFindDependency(ctx, s.db, t)
}

func (s *SQLiteStore) CountDependencies(ctx context.Context) (int, error) {
	return queryCountDependencies(ctx, s.db)
}

// LockDependencies is a no-op: immediate transactions on a single connection
// already exclude other writers.
func (s *SQLiteStore) LockDependencies(context.Context) error {
	return nil
}

func (s *SQLiteStore) RecordEvent(ctx context.Context, event *model.Event) error {
	return queryRecordEvent(ctx, s.db, event)
}

func (s *SQLiteStore) GetEvents(ctx context.Context, entityID string) ([]*model.Event, error) {
	return queryGetEvents(ctx, s.db, entityID)
}

func (s *SQLiteStore) EntityExists(ctx context.Context, kind model.EntityKind, id string) (bool, error) {
	return queryEntityExists(ctx, s.db, kind, id)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *SQLiteStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&txStore{tx: tx}); err != nil {
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
	tx *sql.Tx
}

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

func (s *txStore) LockDependencies(context.Context) error {
	return nil
}

func (s *txStore) RecordEvent(ctx context.Context, event *model.Event) error {
	return queryRecordEvent(ctx, s.tx, event)
}

func (s *txStore) GetEvents(ctx context.Context, entityID string) ([]*model.Event, error) {
	return queryGetEvents(ctx, s.tx, entityID)
}

func (s *txStore) EntityExists(ctx context.Context, kind model.EntityKind, id string) (bool, error) {
	return queryEntityExists(ctx, s.tx, kind, id)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
