package server

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/plangraph/internal/model"
)

// testCtx creates a fresh DependencyServer with an in-memory store and background context.
func testCtx(t *testing.T) (*DependencyServer, context.Context) {
	t.Helper()
	srv, _, _ := newTestServer()
	return srv, context.Background()
}

// requireCode asserts that err is a gRPC error with the given status code.
func requireCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected gRPC error with code %v, got nil", code)
	}
	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("expected gRPC status error, got %v", err)
	}
	if st.Code() != code {
		t.Fatalf("expected code=%v, got %v (%s)", code, st.Code(), st.Message())
	}
}

func mustStruct(t *testing.T, v any) *structpb.Struct {
	t.Helper()
	s, err := toStruct(v)
	if err != nil {
		t.Fatalf("toStruct: %v", err)
	}
	return s
}

func grpcCreate(t *testing.T, s *DependencyServer, ctx context.Context, from, to string) *model.Dependency {
	t.Helper()
	resp, err := s.CreateDependency(ctx, mustStruct(t, edge(from, to, model.FinishToStart)))
	if err != nil {
		t.Fatalf("CreateDependency(%s -> %s): %v", from, to, err)
	}
	var dep model.Dependency
	if err := fromStruct(resp, &dep); err != nil {
		t.Fatal(err)
	}
	return &dep
}

func TestGRPCErrorCodes(t *testing.T) {
	srv, ctx := testCtx(t)
	grpcCreate(t, srv, ctx, "task:A", "task:B")
	grpcCreate(t, srv, ctx, "task:B", "task:C")

	for _, tc := range []struct {
		name string
		call func(*DependencyServer, context.Context) error
		code codes.Code
	}{
		{"Create/SelfLoop", func(s *DependencyServer, ctx context.Context) error {
			_, err := s.CreateDependency(ctx, mustStruct(t, edge("task:A", "task:A", model.FinishToStart)))
			return err
		}, codes.InvalidArgument},
		{"Create/MissingEntity", func(s *DependencyServer, ctx context.Context) error {
			_, err := s.CreateDependency(ctx, mustStruct(t, edge("project:P", "task:T", model.FinishToStart)))
			return err
		}, codes.FailedPrecondition},
		{"Create/Duplicate", func(s *DependencyServer, ctx context.Context) error {
			_, err := s.CreateDependency(ctx, mustStruct(t, edge("task:A", "task:B", model.FinishToStart)))
			return err
		}, codes.AlreadyExists},
		{"Create/Cycle", func(s *DependencyServer, ctx context.Context) error {
			_, err := s.CreateDependency(ctx, mustStruct(t, edge("task:C", "task:A", model.FinishToStart)))
			return err
		}, codes.FailedPrecondition},
		{"Get/MissingID", func(s *DependencyServer, ctx context.Context) error {
			_, err := s.GetDependency(ctx, mustStruct(t, map[string]any{}))
			return err
		}, codes.InvalidArgument},
		{"Get/NotFound", func(s *DependencyServer, ctx context.Context) error {
			_, err := s.GetDependency(ctx, mustStruct(t, map[string]any{"id": "dep-nope"}))
			return err
		}, codes.NotFound},
		{"Update/NotFound", func(s *DependencyServer, ctx context.Context) error {
			_, err := s.UpdateDependency(ctx, mustStruct(t, map[string]any{"id": "dep-nope", "lag_days": 1}))
			return err
		}, codes.NotFound},
		{"Delete/NotFound", func(s *DependencyServer, ctx context.Context) error {
			_, err := s.DeleteDependency(ctx, mustStruct(t, map[string]any{"id": "dep-nope"}))
			return err
		}, codes.NotFound},
		{"List/BadRef", func(s *DependencyServer, ctx context.Context) error {
			_, err := s.ListDependencies(ctx, mustStruct(t, map[string]any{"for": "nope"}))
			return err
		}, codes.InvalidArgument},
	} {
		t.Run(tc.name, func(t *testing.T) {
			requireCode(t, tc.call(srv, ctx), tc.code)
		})
	}
}

func TestGRPCCycleDetail(t *testing.T) {
	srv, ctx := testCtx(t)
	grpcCreate(t, srv, ctx, "task:A", "task:B")
	grpcCreate(t, srv, ctx, "task:B", "task:C")

	_, err := srv.CreateDependency(ctx, mustStruct(t, edge("task:C", "task:A", model.FinishToStart)))
	st, _ := status.FromError(err)
	details := st.Details()
	if len(details) != 1 {
		t.Fatalf("expected 1 detail, got %d", len(details))
	}
	detail, ok := details[0].(*structpb.Struct)
	if !ok {
		t.Fatalf("detail is %T", details[0])
	}
	var body model.ErrorBody
	if err := fromStruct(detail, &body); err != nil {
		t.Fatal(err)
	}
	if body.Code != model.CodeCycle || model.FormatPath(body.Path) != "task:A -> task:B -> task:C -> task:A" {
		t.Errorf("body = %+v", body)
	}
}

func TestGRPCUpdateAndList(t *testing.T) {
	srv, ctx := testCtx(t)
	dep := grpcCreate(t, srv, ctx, "task:A", "task:B")
	grpcCreate(t, srv, ctx, "task:C", "task:D")

	resp, err := srv.UpdateDependency(ctx, mustStruct(t, map[string]any{"id": dep.ID, "kind": "FF", "note": "n"}))
	if err != nil {
		t.Fatalf("UpdateDependency: %v", err)
	}
	var updated model.Dependency
	fromStruct(resp, &updated)
	if updated.Kind != model.FinishToFinish || updated.Note != "n" {
		t.Errorf("updated = %+v", updated)
	}

	resp, err = srv.ListDependencies(ctx, mustStruct(t, map[string]any{"for": "task:B"}))
	if err != nil {
		t.Fatalf("ListDependencies: %v", err)
	}
	var list struct {
		Dependencies []*model.Dependency `json:"dependencies"`
	}
	fromStruct(resp, &list)
	if len(list.Dependencies) != 1 || list.Dependencies[0].ID != dep.ID {
		t.Errorf("list = %+v", list.Dependencies)
	}

	resp, err = srv.GetGraph(ctx, mustStruct(t, map[string]any{"format": "dot"}))
	if err != nil {
		t.Fatalf("GetGraph: %v", err)
	}
	if dot := resp.Fields["dot"].GetStringValue(); dot == "" {
		t.Error("expected dot source")
	}
}

// startBufconn serves srv over an in-memory listener and returns a client connection.
func startBufconn(t *testing.T, srv *DependencyServer, token string) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := NewGRPCServer(srv, token)
	go gs.Serve(lis)
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestGRPCServer_EndToEnd(t *testing.T) {
	srv, _, _ := newTestServer()
	conn := startBufconn(t, srv, "secret")

	ctx := context.Background()
	health := new(structpb.Struct)
	if err := conn.Invoke(ctx, "/"+ServiceName+"/Health", &structpb.Struct{}, health); err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Fields["status"].GetStringValue() != "ok" {
		t.Errorf("health = %v", health)
	}

	req := mustStruct(t, edge("task:A", "task:B", model.FinishToStart))
	err := conn.Invoke(ctx, "/"+ServiceName+"/CreateDependency", req, new(structpb.Struct))
	requireCode(t, err, codes.Unauthenticated)

	authed := metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer secret", "x-plangraph-actor", "dana")
	out := new(structpb.Struct)
	if err := conn.Invoke(authed, "/"+ServiceName+"/CreateDependency", req, out); err != nil {
		t.Fatalf("CreateDependency: %v", err)
	}
	var dep model.Dependency
	fromStruct(out, &dep)
	if dep.CreatedBy != "dana" {
		t.Errorf("created_by = %q, want dana", dep.CreatedBy)
	}

	stats := new(structpb.Struct)
	if err := conn.Invoke(authed, "/"+ServiceName+"/GetStats", &structpb.Struct{}, stats); err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.Fields["total"].GetNumberValue() != 1 {
		t.Errorf("stats = %v", stats)
	}
}
