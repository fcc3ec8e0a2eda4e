package client

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/alfredjeanlab/plangraph/internal/model"
	"github.com/alfredjeanlab/plangraph/internal/server"
)

// newBufconnClient serves a fresh DependencyServer over an in-memory listener.
func newBufconnClient(t *testing.T, token string) *GRPCClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := server.NewGRPCServer(newDependencyServer(), token)
	go gs.Serve(lis)
	t.Cleanup(gs.Stop)

	c, err := NewGRPCClient("passthrough:///bufnet", token,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestGRPCClient_RoundTrip(t *testing.T) {
	c := newBufconnClient(t, "secret")
	c.SetActor("erin")
	ctx := context.Background()

	health, err := c.Health(ctx)
	if err != nil || health != "ok" {
		t.Fatalf("Health = %q, %v", health, err)
	}

	ab, err := c.CreateDependency(ctx, draft("task:A", "task:B", model.FinishToStart))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ab.CreatedBy != "erin" || ab.ID == "" {
		t.Errorf("created = %+v", ab)
	}

	got, err := c.GetDependency(ctx, ab.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.From != model.Task("A") || got.To != model.Task("B") {
		t.Errorf("got = %+v", got)
	}

	note := "waiting on review"
	updated, err := c.UpdateDependency(ctx, ab.ID, model.DependencyPatch{Note: &note})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Note != note {
		t.Errorf("note = %q", updated.Note)
	}

	deps, err := c.ListDependencies(ctx, &ListRequest{From: "task:A"})
	if err != nil {
		t.Fatal(err)
	}
	if len(deps) != 1 {
		t.Errorf("list = %d", len(deps))
	}

	snap, err := c.GetGraph(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Edges) != 1 || len(snap.Order) != 2 {
		t.Errorf("snapshot = %+v", snap)
	}

	dot, err := c.GetGraphDOT(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(dot, "digraph") {
		t.Errorf("dot = %q", dot)
	}

	if err := c.DeleteDependency(ctx, ab.ID); err != nil {
		t.Fatal(err)
	}
	evs, err := c.GetEvents(ctx, ab.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 3 {
		t.Errorf("events = %d, want 3", len(evs))
	}
}

func TestGRPCClient_TypedErrors(t *testing.T) {
	c := newBufconnClient(t, "")
	ctx := context.Background()

	if _, err := c.CreateDependency(ctx, draft("task:A", "task:B", model.FinishToStart)); err != nil {
		t.Fatal(err)
	}
	if _, err := c.CreateDependency(ctx, draft("task:B", "task:C", model.FinishToStart)); err != nil {
		t.Fatal(err)
	}

	_, err := c.CreateDependency(ctx, draft("task:C", "task:A", model.FinishToStart))
	var ce *model.CycleError
	if !errors.As(err, &ce) {
		t.Fatalf("expected cycle error, got %v", err)
	}
	if model.FormatPath(ce.Path) != "task:A -> task:B -> task:C -> task:A" {
		t.Errorf("path = %s", model.FormatPath(ce.Path))
	}
	if status.Code(err) != codes.FailedPrecondition {
		t.Errorf("code = %v", status.Code(err))
	}

	_, err = c.CreateDependency(ctx, draft("task:A", "task:A", model.FinishToStart))
	var ve *model.ValidationError
	if !errors.As(err, &ve) || len(ve.Errors) == 0 {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = c.GetDependency(ctx, "dep-missing")
	var nf *model.NotFoundError
	if !errors.As(err, &nf) || nf.ID != "dep-missing" {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGRPCClient_Unauthenticated(t *testing.T) {
	c := newBufconnClient(t, "secret")
	c.token = "wrong"

	_, err := c.GetStats(context.Background())
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected *RPCError, got %T %v", err, err)
	}
	if rpcErr.Status.Code() != codes.Unauthenticated || rpcErr.Body != nil {
		t.Errorf("rpcErr = %v", rpcErr)
	}
}

func TestGRPCClient_ActorsUnavailable(t *testing.T) {
	c := newBufconnClient(t, "")
	if _, err := c.ListActors(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
