package client

import (
	"context"
	"io"
	"log/slog"

	"github.com/alfredjeanlab/plangraph/internal/audit"
	"github.com/alfredjeanlab/plangraph/internal/depgraph"
	"github.com/alfredjeanlab/plangraph/internal/existence"
	"github.com/alfredjeanlab/plangraph/internal/model"
	"github.com/alfredjeanlab/plangraph/internal/presence"
	"github.com/alfredjeanlab/plangraph/internal/server"
	"github.com/alfredjeanlab/plangraph/internal/store"
	"github.com/alfredjeanlab/plangraph/internal/store/memory"
)

// newDependencyServer builds a real server over an in-memory store holding
// project P and tasks A through D.
func newDependencyServer() *server.DependencyServer {
	ms := memory.New()
	ms.RegisterEntity(context.Background(),
		model.Project("P"), model.Task("A"), model.Task("B"), model.Task("C"), model.Task("D"))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	checker := existence.NewChecker(map[model.EntityKind]existence.Lookup{
		model.EntityProject: store.EntityLookup{Store: ms, Kind: model.EntityProject},
		model.EntityTask:    store.EntityLookup{Store: ms, Kind: model.EntityTask},
	}, logger)

	tracker := presence.New()
	recorder := audit.NewRecorder(audit.Multi{audit.StoreSink{Store: ms}, tracker}, logger)
	mgr := depgraph.New(ms, checker, depgraph.WithAudit(recorder), depgraph.WithLogger(logger))
	return server.NewDependencyServer(mgr, nil, tracker)
}

func draft(from, to string, kind model.DependencyKind) model.DependencyDraft {
	f, _ := model.ParseEntityRef(from)
	t, _ := model.ParseEntityRef(to)
	return model.DependencyDraft{From: f, To: t, Kind: kind}
}
