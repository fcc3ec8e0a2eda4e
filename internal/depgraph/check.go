package depgraph

import (
	"context"
	"errors"
	"sort"

	"github.com/alfredjeanlab/plangraph/internal/graph"
	"github.com/alfredjeanlab/plangraph/internal/model"
)

// DanglingEdge is a stored edge whose endpoints no longer exist.
type DanglingEdge struct {
	ID      string            `json:"id"`
	Missing []model.EntityRef `json:"missing"`
}

// InvalidEdge is a stored edge that fails validation.
type InvalidEdge struct {
	ID     string             `json:"id"`
	Errors []model.FieldError `json:"errors"`
}

// Report is the result of an integrity check over the stored edge set.
// Edges only enter through the manager, so a non-empty report means the
// table was written to directly or an entity was deleted underneath it.
type Report struct {
	Checked    int               `json:"checked"`
	Cycle      []model.EntityRef `json:"cycle,omitempty"`
	Duplicates [][]string        `json:"duplicates,omitempty"` // ids sharing one (from, to, kind)
	Invalid    []InvalidEdge     `json:"invalid,omitempty"`
	Dangling   []DanglingEdge    `json:"dangling,omitempty"`
}

// OK reports whether no problem was found.
func (r *Report) OK() bool {
	return len(r.Cycle) == 0 && len(r.Duplicates) == 0 && len(r.Invalid) == 0 && len(r.Dangling) == 0
}

// Check re-verifies every invariant against the stored edges.
func (m *Manager) Check(ctx context.Context) (*Report, error) {
	deps, err := m.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	r := &Report{Checked: len(deps)}

	byTriple := make(map[model.Triple][]string)
	endpoints := make(map[model.EntityRef]bool)
	for _, d := range deps {
		byTriple[d.Triple()] = append(byTriple[d.Triple()], d.ID)
		endpoints[d.From] = true
		endpoints[d.To] = true

		err := model.ValidateDraft(model.DependencyDraft{
			From: d.From, To: d.To, Kind: d.Kind, LagDays: d.LagDays, Note: d.Note,
		})
		var ve *model.ValidationError
		if errors.As(err, &ve) {
			r.Invalid = append(r.Invalid, InvalidEdge{ID: d.ID, Errors: ve.Errors})
		}
	}

	for _, ids := range byTriple {
		if len(ids) > 1 {
			sort.Strings(ids)
			r.Duplicates = append(r.Duplicates, ids)
		}
	}
	sort.Slice(r.Duplicates, func(i, j int) bool { return r.Duplicates[i][0] < r.Duplicates[j][0] })

	r.Cycle = graph.FindCycle(deps)

	refs := make([]model.EntityRef, 0, len(endpoints))
	for ref := range endpoints {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Less(refs[j]) })
	missing := make(map[model.EntityRef]bool)
	for _, ref := range m.checker.Missing(ctx, refs...) {
		missing[ref] = true
	}
	if len(missing) > 0 {
		for _, d := range deps {
			var gone []model.EntityRef
			for _, ref := range []model.EntityRef{d.From, d.To} {
				if missing[ref] {
					gone = append(gone, ref)
				}
			}
			if len(gone) > 0 {
				r.Dangling = append(r.Dangling, DanglingEdge{ID: d.ID, Missing: gone})
			}
		}
	}

	if !r.OK() {
		m.logger.Warn("dependency integrity check found problems",
			"checked", r.Checked, "duplicates", len(r.Duplicates), "invalid", len(r.Invalid),
			"dangling", len(r.Dangling), "cycle", len(r.Cycle) > 0)
	}
	return r, nil
}
