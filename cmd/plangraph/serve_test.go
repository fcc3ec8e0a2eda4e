package main

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfredjeanlab/plangraph/internal/client"
	"github.com/alfredjeanlab/plangraph/internal/config"
	"github.com/alfredjeanlab/plangraph/internal/model"
	"github.com/alfredjeanlab/plangraph/internal/store/sqlite"
)

func TestNewApp_SQLite(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	hookLog := filepath.Join(dir, "hooks.log")
	cfg := &config.Config{
		SQLitePath: filepath.Join(dir, "plangraph.db"),
		AuthToken:  "secret",
		Hooks: []config.Hook{{
			Command: `echo "$PLANGRAPH_ACTION $PLANGRAPH_FROM $PLANGRAPH_TO" >> ` + hookLog,
			Actions: []string{"created"},
		}},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := newApp(ctx, cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() {
		a.stream.Close()
		a.grpc.Stop()
		a.close()
	})
	assert.Nil(t, a.scheduler, "scheduler must stay off without an interval")

	st, ok := a.store.(*sqlite.SQLiteStore)
	require.True(t, ok, "store = %T", a.store)
	for _, id := range []string{"A", "B"} {
		require.NoError(t, st.RegisterEntity(ctx, task(id), "task "+id))
	}

	ts := httptest.NewServer(a.http)
	t.Cleanup(ts.Close)
	c := client.NewHTTPClient(ts.URL, cfg.AuthToken)
	c.SetActor("dana")

	dep, err := c.CreateDependency(ctx, model.DependencyDraft{From: task("A"), To: task("B"), Kind: model.FinishToStart})
	require.NoError(t, err)
	assert.Equal(t, "dana", dep.CreatedBy)

	_, err = c.CreateDependency(ctx, model.DependencyDraft{From: task("B"), To: task("A"), Kind: model.FinishToStart})
	var ce *model.CycleError
	require.ErrorAs(t, err, &ce)

	evs, err := c.GetEvents(ctx, dep.ID)
	require.NoError(t, err)
	assert.Len(t, evs, 1)

	actors, err := c.ListActors(ctx)
	require.NoError(t, err)
	require.Len(t, actors, 1)
	assert.Equal(t, "dana", actors[0].Actor)
	assert.EqualValues(t, 1, actors[0].Created)

	data, err := os.ReadFile(hookLog)
	require.NoError(t, err)
	assert.Equal(t, "created task:A task:B\n", string(data))
}
