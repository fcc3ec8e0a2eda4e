package depgraph

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfredjeanlab/plangraph/internal/audit"
	"github.com/alfredjeanlab/plangraph/internal/existence"
	"github.com/alfredjeanlab/plangraph/internal/model"
	"github.com/alfredjeanlab/plangraph/internal/store"
	"github.com/alfredjeanlab/plangraph/internal/store/sqlite"
)

// newSQLiteManager runs the manager against a real database file so that
// transactions, constraints and the audit table are exercised end to end.
func newSQLiteManager(t *testing.T) (*Manager, *sqlite.SQLiteStore) {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "plangraph.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	for _, ref := range []model.EntityRef{taskA, taskB, taskC, projectP} {
		require.NoError(t, s.RegisterEntity(ctx, ref, ref.ID))
	}

	checker := existence.NewChecker(map[model.EntityKind]existence.Lookup{
		model.EntityProject: store.EntityLookup{Store: s, Kind: model.EntityProject},
		model.EntityTask:    store.EntityLookup{Store: s, Kind: model.EntityTask},
	}, nil)
	return New(s, checker, WithAudit(audit.NewRecorder(audit.StoreSink{Store: s}, nil))), s
}

func TestSQLite_Scenarios(t *testing.T) {
	mgr, s := newSQLiteManager(t)
	ctx := audit.WithActor(context.Background(), "planner")

	ab, err := mgr.Create(ctx, draft(taskA, taskB, model.FinishToStart))
	require.NoError(t, err)
	_, err = mgr.Create(ctx, draft(taskB, taskC, model.FinishToStart))
	require.NoError(t, err)

	_, err = mgr.Create(ctx, draft(taskC, taskA, model.FinishToStart))
	require.True(t, IsCycle(err), "expected cycle, got %v", err)

	_, err = mgr.Create(ctx, draft(projectP, model.Task("T"), model.FinishToStart))
	require.True(t, IsReferential(err), "expected referential error, got %v", err)

	_, err = mgr.Create(ctx, draft(taskA, taskB, model.FinishToStart))
	require.True(t, IsDuplicate(err), "expected duplicate, got %v", err)

	n, err := s.CountDependencies(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ss := model.StartToStart
	updated, err := mgr.Update(ctx, ab.ID, model.DependencyPatch{Kind: &ss})
	require.NoError(t, err)
	assert.Equal(t, model.StartToStart, updated.Kind)
	assert.True(t, updated.CreatedAt.Equal(ab.CreatedAt))

	stored, err := mgr.Get(ctx, ab.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StartToStart, stored.Kind)
	assert.Equal(t, "planner", stored.CreatedBy)

	require.NoError(t, mgr.Delete(ctx, ab.ID))
	_, err = mgr.Get(ctx, ab.ID)
	assert.True(t, IsNotFound(err))

	evs, err := mgr.Events(ctx, ab.ID)
	require.NoError(t, err)
	require.Len(t, evs, 3)
	assert.Equal(t, model.EventCreateDependency, evs[0].EventType)
	assert.Equal(t, model.EventUpdateDependency, evs[1].EventType)
	assert.Equal(t, model.EventDeleteDependency, evs[2].EventType)
	assert.Equal(t, "planner", evs[0].Actor)

	report, err := mgr.Check(ctx)
	require.NoError(t, err)
	assert.True(t, report.OK(), "report: %+v", report)
	assert.Equal(t, 1, report.Checked)
}

func TestSQLite_ListFor(t *testing.T) {
	mgr, _ := newSQLiteManager(t)
	ctx := context.Background()

	_, err := mgr.Create(ctx, draft(taskA, taskB, model.FinishToStart))
	require.NoError(t, err)
	_, err = mgr.Create(ctx, draft(taskB, taskC, model.FinishToStart))
	require.NoError(t, err)
	_, err = mgr.Create(ctx, draft(projectP, taskC, model.FinishToFinish))
	require.NoError(t, err)

	forB, err := mgr.ListFor(ctx, taskB)
	require.NoError(t, err)
	fromB, _ := mgr.ListFrom(ctx, taskB)
	toB, _ := mgr.ListTo(ctx, taskB)
	assert.ElementsMatch(t, depIDs(forB), depIDs(append(fromB, toB...)))
	assert.Len(t, forB, 2)
}
