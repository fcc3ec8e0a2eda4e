package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/alfredjeanlab/plangraph/internal/depgraph"
	"github.com/alfredjeanlab/plangraph/internal/model"
	"github.com/alfredjeanlab/plangraph/internal/presence"
)

// HTTPClient implements DependencyClient using the plangraph HTTP/JSON API.
type HTTPClient struct {
	baseURL    string
	token      string
	actor      string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// SetActor sets the actor recorded against every write made by c.
func (c *HTTPClient) SetActor(actor string) { c.actor = actor }

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

func (c *HTTPClient) CreateDependency(ctx context.Context, draft model.DependencyDraft) (*model.Dependency, error) {
	var dep model.Dependency
	if err := c.doJSON(ctx, http.MethodPost, "/v1/dependencies", draft, &dep); err != nil {
		return nil, err
	}
	return &dep, nil
}

func (c *HTTPClient) GetDependency(ctx context.Context, id string) (*model.Dependency, error) {
	var dep model.Dependency
	if err := c.doJSON(ctx, http.MethodGet, "/v1/dependencies/"+url.PathEscape(id), nil, &dep); err != nil {
		return nil, err
	}
	return &dep, nil
}

func (c *HTTPClient) UpdateDependency(ctx context.Context, id string, patch model.DependencyPatch) (*model.Dependency, error) {
	var dep model.Dependency
	if err := c.doJSON(ctx, http.MethodPatch, "/v1/dependencies/"+url.PathEscape(id), patch, &dep); err != nil {
		return nil, err
	}
	return &dep, nil
}

func (c *HTTPClient) DeleteDependency(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/dependencies/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPClient) ListDependencies(ctx context.Context, req *ListRequest) ([]*model.Dependency, error) {
	q := url.Values{}
	if req != nil {
		if req.From != "" {
			q.Set("from", req.From)
		}
		if req.To != "" {
			q.Set("to", req.To)
		}
		if req.For != "" {
			q.Set("for", req.For)
		}
		if len(req.Kind) > 0 {
			q.Set("kind", strings.Join(req.Kind, ","))
		}
	}

	path := "/v1/dependencies"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp struct {
		Dependencies []*model.Dependency `json:"dependencies"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Dependencies, nil
}

func (c *HTTPClient) GetEvents(ctx context.Context, id string) ([]*model.Event, error) {
	var resp struct {
		Events []*model.Event `json:"events"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/dependencies/"+url.PathEscape(id)+"/events", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

func (c *HTTPClient) GetStats(ctx context.Context) (*model.DependencyStats, error) {
	var stats model.DependencyStats
	if err := c.doJSON(ctx, http.MethodGet, "/v1/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *HTTPClient) GetGraph(ctx context.Context) (*model.GraphSnapshot, error) {
	var snap model.GraphSnapshot
	if err := c.doJSON(ctx, http.MethodGet, "/v1/graph", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *HTTPClient) GetGraphDOT(ctx context.Context) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/graph?format=dot", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", newAPIError(resp.StatusCode, data)
	}
	return string(data), nil
}

func (c *HTTPClient) Check(ctx context.Context) (*depgraph.Report, error) {
	var report depgraph.Report
	if err := c.doJSON(ctx, http.MethodGet, "/v1/check", nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *HTTPClient) ListActors(ctx context.Context) ([]*presence.Entry, error) {
	var resp struct {
		Actors []*presence.Entry `json:"actors"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/actors", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Actors, nil
}

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

// APIError represents an error response from the server. Body holds the
// decoded error document when the server sent one.
type APIError struct {
	StatusCode int
	Message    string
	Body       *model.ErrorBody
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Unwrap exposes the typed model error named by the body's code.
func (e *APIError) Unwrap() error {
	if e.Body == nil {
		return nil
	}
	return e.Body.Cause()
}

func newAPIError(statusCode int, data []byte) *APIError {
	var body model.ErrorBody
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		return &APIError{StatusCode: statusCode, Message: body.Error, Body: &body}
	}
	return &APIError{StatusCode: statusCode, Message: strings.TrimSpace(string(data))}
}

// do sends a request with an optional JSON body and the auth and actor headers.
func (c *HTTPClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.actor != "" {
		req.Header.Set(ActorHeader, c.actor)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	return resp, nil
}

// doJSON performs an HTTP request and decodes the JSON response.
// If result is nil, the response body is discarded (for DELETE/204 responses).
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return newAPIError(resp.StatusCode, respBody)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
