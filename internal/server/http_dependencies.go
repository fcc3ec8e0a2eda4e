package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/alfredjeanlab/plangraph/internal/model"
)

// handleCreateDependency handles POST /v1/dependencies.
func (s *DependencyServer) handleCreateDependency(w http.ResponseWriter, r *http.Request) {
	var draft model.DependencyDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	dep, err := s.manager.Create(r.Context(), draft)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dep)
}

// handleListDependencies handles GET /v1/dependencies.
// Filters: ?from=task:A, ?to=task:B, ?for=project:P (either end), ?kind=FS,SS.
func (s *DependencyServer) handleListDependencies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := listRequest{
		From: q.Get("from"),
		To:   q.Get("to"),
		For:  q.Get("for"),
	}
	for _, v := range q["kind"] {
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				req.Kind = append(req.Kind, k)
			}
		}
	}

	filter, err := req.filter()
	if err != nil {
		writeAPIError(w, err)
		return
	}
	deps, err := s.manager.List(r.Context(), filter)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wrapList("dependencies", deps))
}

// handleGetDependency handles GET /v1/dependencies/{id}.
func (s *DependencyServer) handleGetDependency(w http.ResponseWriter, r *http.Request) {
	dep, err := s.manager.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dep)
}

// handleUpdateDependency handles PATCH /v1/dependencies/{id}.
func (s *DependencyServer) handleUpdateDependency(w http.ResponseWriter, r *http.Request) {
	var patch model.DependencyPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	dep, err := s.manager.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dep)
}

// handleDeleteDependency handles DELETE /v1/dependencies/{id}.
func (s *DependencyServer) handleDeleteDependency(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeAPIError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetEvents handles GET /v1/dependencies/{id}/events.
// History outlives the edge, so a deleted id still returns its events.
func (s *DependencyServer) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	evs, err := s.manager.Events(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wrapList("events", evs))
}
