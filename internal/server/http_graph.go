package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/alfredjeanlab/plangraph/internal/graph"
)

// handleGetStats handles GET /v1/stats.
func (s *DependencyServer) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.manager.Stats(r.Context())
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleGetGraph handles GET /v1/graph.
// Returns the snapshot (nodes, edges, topological order, stats) as JSON, or
// Graphviz source with ?format=dot.
func (s *DependencyServer) handleGetGraph(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("format") {
	case "", "json":
		snap, err := s.manager.Graph(r.Context())
		if err != nil {
			writeAPIError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	case "dot":
		deps, err := s.manager.ListAll(r.Context())
		if err != nil {
			writeAPIError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/vnd.graphviz")
		w.WriteHeader(http.StatusOK)
		_ = graph.RenderDOT(w, deps)
	default:
		writeError(w, http.StatusBadRequest, "format must be json or dot")
	}
}

// handleCheck handles GET /v1/check.
// The integrity report is returned with 200 whether or not it found problems.
func (s *DependencyServer) handleCheck(w http.ResponseWriter, r *http.Request) {
	report, err := s.manager.Check(r.Context())
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleActors handles GET /v1/actors.
// ?stale=30m hides actors idle for longer than the given duration.
func (s *DependencyServer) handleActors(w http.ResponseWriter, r *http.Request) {
	if s.Presence == nil {
		writeError(w, http.StatusNotFound, "actor roster disabled")
		return
	}
	var stale time.Duration
	if v := r.URL.Query().Get("stale"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			if secs, aerr := strconv.Atoi(v); aerr == nil {
				d = time.Duration(secs) * time.Second
			} else {
				writeError(w, http.StatusBadRequest, "stale must be a duration")
				return
			}
		}
		stale = d
	}
	writeJSON(w, http.StatusOK, wrapList("actors", s.Presence.Roster(stale)))
}
