// Package client provides a transport-agnostic interface for the plangraph
// service, with HTTP/JSON and gRPC implementations.
package client

import (
	"context"

	"github.com/alfredjeanlab/plangraph/internal/depgraph"
	"github.com/alfredjeanlab/plangraph/internal/model"
	"github.com/alfredjeanlab/plangraph/internal/presence"
)

// DependencyClient is the interface the plangraph CLI uses to talk to the
// server. It is implemented by HTTPClient (default) and GRPCClient.
//
// Errors the server classifies come back wrapped so that errors.As finds the
// typed model error (*model.CycleError, *model.DuplicateError, ...).
type DependencyClient interface {
	CreateDependency(ctx context.Context, draft model.DependencyDraft) (*model.Dependency, error)
	GetDependency(ctx context.Context, id string) (*model.Dependency, error)
	UpdateDependency(ctx context.Context, id string, patch model.DependencyPatch) (*model.Dependency, error)
	DeleteDependency(ctx context.Context, id string) error
	ListDependencies(ctx context.Context, req *ListRequest) ([]*model.Dependency, error)

	GetEvents(ctx context.Context, id string) ([]*model.Event, error)
	GetStats(ctx context.Context) (*model.DependencyStats, error)
	GetGraph(ctx context.Context) (*model.GraphSnapshot, error)
	GetGraphDOT(ctx context.Context) (string, error)
	Check(ctx context.Context) (*depgraph.Report, error)
	ListActors(ctx context.Context) ([]*presence.Entry, error)

	Health(ctx context.Context) (string, error)

	Close() error
}

// ListRequest selects edges. Entity references use the "kind:id" form; empty
// fields do not filter.
type ListRequest struct {
	From string   `json:"from,omitempty"`
	To   string   `json:"to,omitempty"`
	For  string   `json:"for,omitempty"`
	Kind []string `json:"kind,omitempty"`
}

// ActorHeader names the acting user on every request.
const ActorHeader = "X-Plangraph-Actor"
