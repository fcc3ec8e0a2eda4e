package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/plangraph/internal/depgraph"
	"github.com/alfredjeanlab/plangraph/internal/model"
	"github.com/alfredjeanlab/plangraph/internal/presence"
)

// serviceName is the fully qualified gRPC service served by plangraph.
const serviceName = "plangraph.v1.DependencyService"

// GRPCClient implements DependencyClient using the gRPC transport. Messages
// travel as google.protobuf.Struct documents with the same shape as the
// HTTP API's JSON bodies.
type GRPCClient struct {
	conn  *grpc.ClientConn
	token string
	actor string
}

// NewGRPCClient connects to the given gRPC address and returns a client.
func NewGRPCClient(addr, token string, opts ...grpc.DialOption) (*GRPCClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &GRPCClient{conn: conn, token: token}, nil
}

// SetActor sets the actor recorded against every write made by c.
func (c *GRPCClient) SetActor(actor string) { c.actor = actor }

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func (c *GRPCClient) CreateDependency(ctx context.Context, draft model.DependencyDraft) (*model.Dependency, error) {
	var dep model.Dependency
	if err := c.invoke(ctx, "CreateDependency", draft, &dep); err != nil {
		return nil, err
	}
	return &dep, nil
}

func (c *GRPCClient) GetDependency(ctx context.Context, id string) (*model.Dependency, error) {
	var dep model.Dependency
	if err := c.invoke(ctx, "GetDependency", map[string]string{"id": id}, &dep); err != nil {
		return nil, err
	}
	return &dep, nil
}

func (c *GRPCClient) UpdateDependency(ctx context.Context, id string, patch model.DependencyPatch) (*model.Dependency, error) {
	req := struct {
		ID string `json:"id"`
		model.DependencyPatch
	}{ID: id, DependencyPatch: patch}
	var dep model.Dependency
	if err := c.invoke(ctx, "UpdateDependency", req, &dep); err != nil {
		return nil, err
	}
	return &dep, nil
}

func (c *GRPCClient) DeleteDependency(ctx context.Context, id string) error {
	return c.invoke(ctx, "DeleteDependency", map[string]string{"id": id}, nil)
}

func (c *GRPCClient) ListDependencies(ctx context.Context, req *ListRequest) ([]*model.Dependency, error) {
	if req == nil {
		req = &ListRequest{}
	}
	var resp struct {
		Dependencies []*model.Dependency `json:"dependencies"`
	}
	if err := c.invoke(ctx, "ListDependencies", req, &resp); err != nil {
		return nil, err
	}
	return resp.Dependencies, nil
}

func (c *GRPCClient) GetEvents(ctx context.Context, id string) ([]*model.Event, error) {
	var resp struct {
		Events []*model.Event `json:"events"`
	}
	if err := c.invoke(ctx, "GetEvents", map[string]string{"id": id}, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

func (c *GRPCClient) GetStats(ctx context.Context) (*model.DependencyStats, error) {
	var stats model.DependencyStats
	if err := c.invoke(ctx, "GetStats", struct{}{}, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *GRPCClient) GetGraph(ctx context.Context) (*model.GraphSnapshot, error) {
	var snap model.GraphSnapshot
	if err := c.invoke(ctx, "GetGraph", struct{}{}, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *GRPCClient) GetGraphDOT(ctx context.Context) (string, error) {
	var resp struct {
		DOT string `json:"dot"`
	}
	if err := c.invoke(ctx, "GetGraph", map[string]string{"format": "dot"}, &resp); err != nil {
		return "", err
	}
	return resp.DOT, nil
}

func (c *GRPCClient) Check(ctx context.Context) (*depgraph.Report, error) {
	var report depgraph.Report
	if err := c.invoke(ctx, "Check", struct{}{}, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// ListActors is only served over HTTP.
func (c *GRPCClient) ListActors(context.Context) ([]*presence.Entry, error) {
	return nil, errors.New("actor roster is not available over gRPC; use --transport http")
}

func (c *GRPCClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.invoke(ctx, "Health", struct{}{}, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

// RPCError is a gRPC status returned by the server. Body holds the error
// document attached as a status detail, when present.
type RPCError struct {
	Status *status.Status
	Body   *model.ErrorBody
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc %s: %s", e.Status.Code(), e.Status.Message())
}

// GRPCStatus lets status.FromError and status.Code see through RPCError.
func (e *RPCError) GRPCStatus() *status.Status { return e.Status }

// Unwrap exposes the typed model error named by the body's code.
func (e *RPCError) Unwrap() error {
	if e.Body == nil {
		return nil
	}
	return e.Body.Cause()
}

// invoke calls method with req encoded as a Struct and decodes the reply
// into result when result is non-nil.
func (c *GRPCClient) invoke(ctx context.Context, method string, req, result any) error {
	in, err := encodeStruct(req)
	if err != nil {
		return err
	}

	var pairs []string
	if c.token != "" {
		pairs = append(pairs, "authorization", "Bearer "+c.token)
	}
	if c.actor != "" {
		pairs = append(pairs, strings.ToLower(ActorHeader), c.actor)
	}
	if len(pairs) > 0 {
		ctx = metadata.AppendToOutgoingContext(ctx, pairs...)
	}

	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/"+method, in, out); err != nil {
		return rpcError(err)
	}
	if result == nil {
		return nil
	}
	data, err := json.Marshal(out.AsMap())
	if err != nil {
		return fmt.Errorf("encoding reply: %w", err)
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("decoding reply: %w", err)
	}
	return nil
}

func encodeStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("request is not an object: %w", err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	return s, nil
}

// rpcError rebuilds the server's error document from the status details.
func rpcError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	rerr := &RPCError{Status: st}
	for _, d := range st.Details() {
		s, ok := d.(*structpb.Struct)
		if !ok {
			continue
		}
		data, merr := json.Marshal(s.AsMap())
		if merr != nil {
			continue
		}
		var body model.ErrorBody
		if json.Unmarshal(data, &body) == nil && body.Code != "" {
			rerr.Body = &body
			break
		}
	}
	return rerr
}
