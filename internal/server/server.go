package server

import (
	"bytes"
	"context"
	"log/slog"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/plangraph/internal/depgraph"
	"github.com/alfredjeanlab/plangraph/internal/graph"
	"github.com/alfredjeanlab/plangraph/internal/model"
	"github.com/alfredjeanlab/plangraph/internal/presence"
)

// DependencyServer exposes the dependency manager over HTTP and gRPC.
// It implements DependencyServiceServer.
type DependencyServer struct {
	manager  *depgraph.Manager
	stream   *StreamHub
	Presence *presence.Tracker
}

// NewDependencyServer returns a server backed by the given manager. stream
// and tracker may be nil, which disables the event stream and the actor
// roster respectively. They only see writes when they are also registered
// as audit sinks on the manager.
func NewDependencyServer(m *depgraph.Manager, stream *StreamHub, tracker *presence.Tracker) *DependencyServer {
	return &DependencyServer{
		manager:  m,
		stream:   stream,
		Presence: tracker,
	}
}

// idRequest is the request shape of every call that targets one edge.
type idRequest struct {
	ID string `json:"id"`
}

func (r idRequest) validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return inputError("id is required")
	}
	return nil
}

// updateRequest is an edge id plus the patch to apply.
type updateRequest struct {
	ID string `json:"id"`
	model.DependencyPatch
}

// listRequest selects edges. Entity references use the "kind:id" form.
type listRequest struct {
	From string   `json:"from,omitempty"`
	To   string   `json:"to,omitempty"`
	For  string   `json:"for,omitempty"`
	Kind []string `json:"kind,omitempty"`
}

// filter parses the request into a model.DependencyFilter.
func (r listRequest) filter() (model.DependencyFilter, error) {
	var f model.DependencyFilter
	for _, p := range []struct {
		name string
		raw  string
		dst  **model.EntityRef
	}{
		{"from", r.From, &f.From},
		{"to", r.To, &f.To},
		{"for", r.For, &f.Involving},
	} {
		if p.raw == "" {
			continue
		}
		ref, err := model.ParseEntityRef(p.raw)
		if err != nil {
			return f, inputError(p.name + ": " + err.Error())
		}
		*p.dst = &ref
	}
	for _, k := range r.Kind {
		kind, err := model.ParseDependencyKind(k)
		if err != nil {
			return f, inputError("kind: " + err.Error())
		}
		f.Kind = append(f.Kind, kind)
	}
	return f, nil
}

func (s *DependencyServer) CreateDependency(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var draft model.DependencyDraft
	if err := fromStruct(req, &draft); err != nil {
		return nil, grpcError(err)
	}
	dep, err := s.manager.Create(ctx, draft)
	if err != nil {
		return nil, grpcError(err)
	}
	return reply(dep)
}

func (s *DependencyServer) GetDependency(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var r idRequest
	if err := decodeValid(req, &r); err != nil {
		return nil, grpcError(err)
	}
	dep, err := s.manager.Get(ctx, r.ID)
	if err != nil {
		return nil, grpcError(err)
	}
	return reply(dep)
}

func (s *DependencyServer) UpdateDependency(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var r updateRequest
	if err := fromStruct(req, &r); err != nil {
		return nil, grpcError(err)
	}
	if err := (idRequest{ID: r.ID}).validate(); err != nil {
		return nil, grpcError(err)
	}
	dep, err := s.manager.Update(ctx, r.ID, r.DependencyPatch)
	if err != nil {
		return nil, grpcError(err)
	}
	return reply(dep)
}

func (s *DependencyServer) DeleteDependency(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var r idRequest
	if err := decodeValid(req, &r); err != nil {
		return nil, grpcError(err)
	}
	if err := s.manager.Delete(ctx, r.ID); err != nil {
		return nil, grpcError(err)
	}
	return &structpb.Struct{}, nil
}

func (s *DependencyServer) ListDependencies(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var r listRequest
	if err := fromStruct(req, &r); err != nil {
		return nil, grpcError(err)
	}
	f, err := r.filter()
	if err != nil {
		return nil, grpcError(err)
	}
	deps, err := s.manager.List(ctx, f)
	if err != nil {
		return nil, grpcError(err)
	}
	return reply(wrapList("dependencies", deps))
}

func (s *DependencyServer) GetEvents(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var r idRequest
	if err := decodeValid(req, &r); err != nil {
		return nil, grpcError(err)
	}
	evs, err := s.manager.Events(ctx, r.ID)
	if err != nil {
		return nil, grpcError(err)
	}
	return reply(wrapList("events", evs))
}

func (s *DependencyServer) GetStats(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	stats, err := s.manager.Stats(ctx)
	if err != nil {
		return nil, grpcError(err)
	}
	return reply(stats)
}

// GetGraph returns the graph snapshot, or {"dot": "..."} when the request
// sets "format" to "dot".
func (s *DependencyServer) GetGraph(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var r struct {
		Format string `json:"format"`
	}
	if err := fromStruct(req, &r); err != nil {
		return nil, grpcError(err)
	}
	if r.Format == "dot" {
		deps, err := s.manager.ListAll(ctx)
		if err != nil {
			return nil, grpcError(err)
		}
		var buf bytes.Buffer
		if err := graph.RenderDOT(&buf, deps); err != nil {
			return nil, grpcError(err)
		}
		return reply(map[string]string{"dot": buf.String()})
	}
	snap, err := s.manager.Graph(ctx)
	if err != nil {
		return nil, grpcError(err)
	}
	return reply(snap)
}

func (s *DependencyServer) Check(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	report, err := s.manager.Check(ctx)
	if err != nil {
		return nil, grpcError(err)
	}
	return reply(report)
}

func (s *DependencyServer) Health(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return reply(map[string]string{"status": "ok"})
}

// decodeValid decodes an id request and checks that the id is present.
func decodeValid(req *structpb.Struct, r *idRequest) error {
	if err := fromStruct(req, r); err != nil {
		return err
	}
	return r.validate()
}

func reply(v any) (*structpb.Struct, error) {
	s, err := toStruct(v)
	if err != nil {
		slog.Error("failed to encode response", "err", err)
		return nil, grpcError(err)
	}
	return s, nil
}
