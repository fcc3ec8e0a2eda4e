package postgres

import (
	"database/sql"
	"encoding/json"

	"github.com/alfredjeanlab/plangraph/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanDependency scans a single row into a model.Dependency.
// The row must contain columns in the order defined by dependencyColumns.
func scanDependency(row scannable) (*model.Dependency, error) {
	var d model.Dependency
	var (
		fromType, toType string
		kind             string
		note, createdBy  sql.NullString
	)

	err := row.Scan(
		&d.ID,
		&fromType,
		&d.From.ID,
		&toType,
		&d.To.ID,
		&kind,
		&d.LagDays,
		&note,
		&d.CreatedAt,
		&d.UpdatedAt,
		&createdBy,
	)
	if err != nil {
		return nil, err
	}

	d.From.Kind = model.EntityKind(fromType)
	d.To.Kind = model.EntityKind(toType)
	d.Kind = model.DependencyKind(kind)
	d.Note = note.String
	d.CreatedBy = createdBy.String
	return &d, nil
}

// scanDependencies scans multiple rows into a slice of model.Dependency pointers.
func scanDependencies(rows *sql.Rows) ([]*model.Dependency, error) {
	var deps []*model.Dependency
	for rows.Next() {
		d, err := scanDependency(rows)
		if err != nil {
			return nil, err
		}
		deps = append(deps, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return deps, nil
}

// scanEvent scans a single row into a model.Event.
func scanEvent(row scannable) (*model.Event, error) {
	var e model.Event
	var (
		actor   sql.NullString
		payload []byte
	)
	err := row.Scan(&e.ID, &e.EventType, &e.EntityType, &e.EntityID, &e.Action, &actor, &payload, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.Actor = actor.String
	if len(payload) > 0 {
		e.Payload = json.RawMessage(payload)
	}
	return &e, nil
}

// scanEvents scans multiple rows into a slice of model.Event pointers.
func scanEvents(rows *sql.Rows) ([]*model.Event, error) {
	var events []*model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// jsonbBytes returns nil for an empty payload so the column stores NULL.
func jsonbBytes(m json.RawMessage) []byte {
	if len(m) == 0 {
		return nil
	}
	return []byte(m)
}
