package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/alfredjeanlab/plangraph/internal/model"
	"github.com/alfredjeanlab/plangraph/internal/store"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version         string    `json:"version"`
	Type            string    `json:"type"`
	Timestamp       time.Time `json:"timestamp"`
	DependencyCount int       `json:"dependency_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes the whole edge set from the store as JSONL to w: a
// header, one "dependency" record per edge sorted by ID, then a "stats"
// record.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer) error {
	deps, err := s.ListDependencies(ctx, model.DependencyFilter{})
	if err != nil {
		return fmt.Errorf("list dependencies: %w", err)
	}

	sort.Slice(deps, func(i, j int) bool {
		return deps[i].ID < deps[j].ID
	})

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:         "1",
		Type:            "header",
		Timestamp:       time.Now().UTC(),
		DependencyCount: len(deps),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, d := range deps {
		if err := enc.Encode(record{Type: "dependency", Data: d}); err != nil {
			return fmt.Errorf("encode dependency %s: %w", d.ID, err)
		}
	}

	if err := enc.Encode(record{Type: "stats", Data: model.ComputeStats(deps)}); err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	return nil
}
