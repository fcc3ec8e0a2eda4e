package server

import (
	"encoding/json"
	"net/http"

	"github.com/alfredjeanlab/plangraph/internal/model"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
func (s *DependencyServer) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/dependencies", s.handleCreateDependency)
	mux.HandleFunc("GET /v1/dependencies", s.handleListDependencies)
	mux.HandleFunc("GET /v1/dependencies/{id}", s.handleGetDependency)
	mux.HandleFunc("PATCH /v1/dependencies/{id}", s.handleUpdateDependency)
	mux.HandleFunc("DELETE /v1/dependencies/{id}", s.handleDeleteDependency)
	mux.HandleFunc("GET /v1/dependencies/{id}/events", s.handleGetEvents)
	mux.HandleFunc("GET /v1/stats", s.handleGetStats)
	mux.HandleFunc("GET /v1/graph", s.handleGetGraph)
	mux.HandleFunc("GET /v1/check", s.handleCheck)
	mux.HandleFunc("GET /v1/actors", s.handleActors)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	mux.HandleFunc("GET /v1/health", s.handleHealth)

	return RecoveryMiddleware(RequestContextMiddleware(LoggingMiddleware(AuthMiddleware(authToken, mux))))
}

// handleHealth handles GET /v1/health.
func (s *DependencyServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response for failures outside the manager.
func writeError(w http.ResponseWriter, status int, message string) {
	body := &model.ErrorBody{Error: message}
	switch status {
	case http.StatusBadRequest:
		body.Code = model.CodeBadRequest
	case http.StatusUnauthorized:
		body.Code = model.CodeUnauthorized
	case http.StatusNotFound:
		body.Code = model.CodeNotFound
	case http.StatusInternalServerError:
		body.Code = model.CodeInternal
	}
	writeJSON(w, status, body)
}
