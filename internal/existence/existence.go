// Package existence checks that the endpoints of a dependency exist in the
// stores that own them.
package existence

import (
	"context"
	"log/slog"

	"github.com/alfredjeanlab/plangraph/internal/model"
)

// Lookup answers point lookups against one entity store.
type Lookup interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// LookupFunc adapts a function to the Lookup interface.
type LookupFunc func(ctx context.Context, id string) (bool, error)

// Exists calls f(ctx, id).
func (f LookupFunc) Exists(ctx context.Context, id string) (bool, error) {
	return f(ctx, id)
}

// Checker routes existence queries to the lookup registered for each entity
// kind. It never reports an error: a failed lookup counts as "not found" so
// that a write is blocked rather than risk a dangling edge.
type Checker struct {
	lookups map[model.EntityKind]Lookup
	logger  *slog.Logger
}

// NewChecker creates a Checker. A nil logger falls back to slog.Default().
func NewChecker(lookups map[model.EntityKind]Lookup, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	m := make(map[model.EntityKind]Lookup, len(lookups))
	for k, l := range lookups {
		m[k] = l
	}
	return &Checker{lookups: m, logger: logger}
}

// Exists reports whether ref exists in its owning store.
func (c *Checker) Exists(ctx context.Context, ref model.EntityRef) bool {
	lookup, ok := c.lookups[ref.Kind]
	if !ok {
		c.logger.Warn("no entity lookup registered", "kind", ref.Kind, "id", ref.ID)
		return false
	}
	found, err := lookup.Exists(ctx, ref.ID)
	if err != nil {
		c.logger.Warn("entity lookup failed, treating as not found", "entity", ref.String(), "err", err)
		return false
	}
	return found
}

// Missing returns the refs that do not exist, in argument order, without
// repeating a ref that appears twice.
func (c *Checker) Missing(ctx context.Context, refs ...model.EntityRef) []model.EntityRef {
	var missing []model.EntityRef
	seen := make(map[model.EntityRef]bool, len(refs))
	for _, ref := range refs {
		if seen[ref] {
			continue
		}
		seen[ref] = true
		if !c.Exists(ctx, ref) {
			missing = append(missing, ref)
		}
	}
	return missing
}
