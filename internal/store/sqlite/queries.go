package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/alfredjeanlab/plangraph/internal/model"
	"github.com/alfredjeanlab/plangraph/internal/store"
)

const dependencyColumns = `id, from_type, from_id, to_type, to_id, kind,
	lag_days, note, created_at, updated_at, created_by`

// entityTables maps entity kinds to the local tables that hold them.
var entityTables = map[model.EntityKind]string{
	model.EntityProject: "projects",
	model.EntityTask:    "tasks",
}

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scannable interface {
	Scan(dest ...any) error
}

// mapError translates driver errors into store sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) && sqErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%w: %v", store.ErrDuplicate, sqErr)
	}
	return err
}

func queryCreateDependency(ctx context.Context, db executor, d *model.Dependency) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO dependencies (
			id, from_type, from_id, to_type, to_id, kind,
			lag_days, note, created_at, updated_at, created_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID,
		string(d.From.Kind), d.From.ID,
		string(d.To.Kind), d.To.ID,
		string(d.Kind),
		d.LagDays,
		d.Note,
		d.CreatedAt.UTC(),
		d.UpdatedAt.UTC(),
		d.CreatedBy,
	)
	return mapError(err)
}

func queryGetDependency(ctx context.Context, db executor, id string) (*model.Dependency, error) {
	row := db.QueryRowContext(ctx, `SELECT `+dependencyColumns+` FROM dependencies WHERE id = ?`, id)
	d, err := scanDependency(row)
	if err != nil {
		return nil, mapError(err)
	}
	return d, nil
}

func queryFindDependency(ctx context.Context, db executor, t model.Triple) (*model.Dependency, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+dependencyColumns+` FROM dependencies
		WHERE from_type = ? AND from_id = ? AND to_type = ? AND to_id = ? AND kind = ?`,
		string(t.From.Kind), t.From.ID, string(t.To.Kind), t.To.ID, string(t.Kind),
	)
	d, err := scanDependency(row)
	if err != nil {
		return nil, mapError(err)
	}
	return d, nil
}

func queryListDependencies(ctx context.Context, db executor, filter model.DependencyFilter) ([]*model.Dependency, error) {
	var (
		whereClauses []string
		args         []any
	)

	if filter.From != nil {
		whereClauses = append(whereClauses, "(from_type = ? AND from_id = ?)")
		args = append(args, string(filter.From.Kind), filter.From.ID)
	}
	if filter.To != nil {
		whereClauses = append(whereClauses, "(to_type = ? AND to_id = ?)")
		args = append(args, string(filter.To.Kind), filter.To.ID)
	}
	if filter.Involving != nil {
		k, id := string(filter.Involving.Kind), filter.Involving.ID
		whereClauses = append(whereClauses, "((from_type = ? AND from_id = ?) OR (to_type = ? AND to_id = ?))")
		args = append(args, k, id, k, id)
	}
	if len(filter.Kind) > 0 {
		placeholders := make([]string, len(filter.Kind))
		for i, k := range filter.Kind {
			placeholders[i] = "?"
			args = append(args, string(k))
		}
		whereClauses = append(whereClauses, "kind IN ("+strings.Join(placeholders, ", ")+")")
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	rows, err := db.QueryContext(ctx,
		"SELECT "+dependencyColumns+" FROM dependencies"+whereSQL+" ORDER BY created_at ASC, id ASC", args...)
	if err != nil {
		return nil, fmt.Errorf("list dependencies: %w", err)
	}
	defer rows.Close()

	var deps []*model.Dependency
	for rows.Next() {
		d, err := scanDependency(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dependencies: %w", err)
		}
		deps = append(deps, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan dependencies: %w", err)
	}
	return deps, nil
}

func queryUpdateDependency(ctx context.Context, db executor, d *model.Dependency) error {
	res, err := db.ExecContext(ctx, `
		UPDATE dependencies SET kind = ?, lag_days = ?, note = ?, updated_at = ?
		WHERE id = ?`,
		string(d.Kind), d.LagDays, d.Note, d.UpdatedAt.UTC(), d.ID,
	)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func queryDeleteDependency(ctx context.Context, db executor, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM dependencies WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func queryCountDependencies(ctx context.Context, db executor) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dependencies`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count dependencies: %w", err)
	}
	return n, nil
}

func queryRecordEvent(ctx context.Context, db executor, e *model.Event) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	var payload any
	if len(e.Payload) > 0 {
		payload = string(e.Payload)
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO audit_events (event_type, entity_type, entity_id, action, actor, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.EventType, e.EntityType, e.EntityID, e.Action, e.Actor, payload, e.CreatedAt,
	)
	if err != nil {
		return err
	}
	e.ID, err = res.LastInsertId()
	return err
}

func queryGetEvents(ctx context.Context, db executor, entityID string) ([]*model.Event, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, event_type, entity_type, entity_id, action, actor, payload, created_at
		FROM audit_events
		WHERE entity_id = ?
		ORDER BY id ASC`,
		entityID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*model.Event
	for rows.Next() {
		var (
			e       model.Event
			payload sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.EventType, &e.EntityType, &e.EntityID, &e.Action, &e.Actor, &payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		if payload.Valid && payload.String != "" {
			e.Payload = json.RawMessage(payload.String)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

func queryEntityExists(ctx context.Context, db executor, kind model.EntityKind, id string) (bool, error) {
	table, ok := entityTables[kind]
	if !ok {
		return false, fmt.Errorf("no table for entity kind %q", kind)
	}
	var exists bool
	err := db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = ?)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("lookup %s %s: %w", kind, id, err)
	}
	return exists, nil
}

func queryRegisterEntity(ctx context.Context, db executor, ref model.EntityRef, name string) error {
	table, ok := entityTables[ref.Kind]
	if !ok {
		return fmt.Errorf("no table for entity kind %q", ref.Kind)
	}
	if strings.TrimSpace(ref.ID) == "" {
		return errors.New("entity id is required")
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO `+table+` (id, name, created_at) VALUES (?, ?, ?) ON CONFLICT (id) DO NOTHING`,
		ref.ID, name, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("register %s: %w", ref, err)
	}
	return nil
}

func queryListEntities(ctx context.Context, db executor, kind model.EntityKind) ([]string, error) {
	table, ok := entityTables[kind]
	if !ok {
		return nil, fmt.Errorf("no table for entity kind %q", kind)
	}
	rows, err := db.QueryContext(ctx, `SELECT id FROM `+table+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanDependency(row scannable) (*model.Dependency, error) {
	var (
		d                model.Dependency
		fromType, toType string
		kind             string
	)
	err := row.Scan(
		&d.ID,
		&fromType, &d.From.ID,
		&toType, &d.To.ID,
		&kind,
		&d.LagDays,
		&d.Note,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.CreatedBy,
	)
	if err != nil {
		return nil, err
	}
	d.From.Kind = model.EntityKind(fromType)
	d.To.Kind = model.EntityKind(toType)
	d.Kind = model.DependencyKind(kind)
	return &d, nil
}
