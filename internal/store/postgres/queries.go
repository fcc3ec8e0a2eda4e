package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/plangraph/internal/model"
	"github.com/alfredjeanlab/plangraph/internal/store"
)

// dependencyColumns is the column list used for SELECT statements on the
// dependencies table.
const dependencyColumns = `id, from_type, from_id, to_type, to_id, kind,
	lag_days, note, created_at, updated_at, created_by`

// dependencyLockKey is the pg_advisory_xact_lock key that serializes writers
// on the edge set.
const dependencyLockKey int64 = 0x706c616e67726170 // "plangrap"

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// mapError translates driver errors into store sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return fmt.Errorf("%w: %s", store.ErrDuplicate, pqErr.Constraint)
	}
	return err
}

func queryCreateDependency(ctx context.Context, db executor, d *model.Dependency) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO dependencies (
			id, from_type, from_id, to_type, to_id, kind,
			lag_days, note, created_at, updated_at, created_by
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11
		)`,
		d.ID,
		string(d.From.Kind),
		d.From.ID,
		string(d.To.Kind),
		d.To.ID,
		string(d.Kind),
		d.LagDays,
		d.Note,
		d.CreatedAt,
		d.UpdatedAt,
		d.CreatedBy,
	)
	return mapError(err)
}

func queryGetDependency(ctx context.Context, db executor, id string) (*model.Dependency, error) {
	row := db.QueryRowContext(ctx, `SELECT `+dependencyColumns+` FROM dependencies WHERE id = $1`, id)
	d, err := scanDependency(row)
	if err != nil {
		return nil, mapError(err)
	}
	return d, nil
}

func queryFindDependency(ctx context.Context, db executor, t model.Triple) (*model.Dependency, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+dependencyColumns+` FROM dependencies
		WHERE from_type = $1 AND from_id = $2 AND to_type = $3 AND to_id = $4 AND kind = $5`,
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
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if filter.From != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("(from_type = %s AND from_id = %s)", nextArg(), nextArg()))
		args = append(args, string(filter.From.Kind), filter.From.ID)
	}

	if filter.To != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("(to_type = %s AND to_id = %s)", nextArg(), nextArg()))
		args = append(args, string(filter.To.Kind), filter.To.ID)
	}

	if filter.Involving != nil {
		kp, ip := nextArg(), nextArg()
		whereClauses = append(whereClauses,
			fmt.Sprintf("((from_type = %s AND from_id = %s) OR (to_type = %s AND to_id = %s))", kp, ip, kp, ip))
		args = append(args, string(filter.Involving.Kind), filter.Involving.ID)
	}

	if len(filter.Kind) > 0 {
		placeholders := make([]string, len(filter.Kind))
		for i, k := range filter.Kind {
			placeholders[i] = nextArg()
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

	deps, err := scanDependencies(rows)
	if err != nil {
		return nil, fmt.Errorf("scan dependencies: %w", err)
	}
	return deps, nil
}

func queryUpdateDependency(ctx context.Context, db executor, d *model.Dependency) error {
	res, err := db.ExecContext(ctx, `
		UPDATE dependencies SET
			kind = $2,
			lag_days = $3,
			note = $4,
			updated_at = $5
		WHERE id = $1`,
		d.ID,
		string(d.Kind),
		d.LagDays,
		d.Note,
		d.UpdatedAt,
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
	res, err := db.ExecContext(ctx, `DELETE FROM dependencies WHERE id = $1`, id)
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

// queryLockDependencies takes a transaction-scoped advisory lock. Outside a
// transaction the lock is released as soon as the statement completes.
func queryLockDependencies(ctx context.Context, db executor) error {
	if _, err := db.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, dependencyLockKey); err != nil {
		return fmt.Errorf("lock dependencies: %w", err)
	}
	return nil
}

func queryRecordEvent(ctx context.Context, db executor, e *model.Event) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO audit_events (event_type, entity_type, entity_id, action, actor, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		e.EventType, e.EntityType, e.EntityID, e.Action, e.Actor, jsonbBytes(e.Payload),
	).Scan(&e.ID, &e.CreatedAt)
}

func queryGetEvents(ctx context.Context, db executor, entityID string) ([]*model.Event, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, event_type, entity_type, entity_id, action, actor, payload, created_at
		FROM audit_events
		WHERE entity_id = $1
		ORDER BY id ASC`,
		entityID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func queryEntityExists(ctx context.Context, db executor, tables entityTables, kind model.EntityKind, id string) (bool, error) {
	table, ok := tables[kind]
	if !ok {
		return false, fmt.Errorf("no table for entity kind %q", kind)
	}
	var exists bool
	err := db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("lookup %s %s: %w", kind, id, err)
	}
	return exists, nil
}
