package model

// DependencyStats holds aggregate edge counts. It is always derived from the
// current edge set and never stored.
type DependencyStats struct {
	Total       int                    `json:"total"`
	ByKind      map[DependencyKind]int `json:"by_kind"`
	ByEndpoints map[string]int         `json:"by_endpoints"` // "project->task" -> count
}

// EndpointKey returns the ByEndpoints key for an edge's endpoint kinds.
func EndpointKey(from, to EntityKind) string {
	return string(from) + "->" + string(to)
}

// ComputeStats counts edges by kind and by endpoint-kind combination.
// Every known kind and combination is present, with zero counts included.
func ComputeStats(deps []*Dependency) *DependencyStats {
	stats := &DependencyStats{
		ByKind:      make(map[DependencyKind]int, len(DependencyKinds)),
		ByEndpoints: make(map[string]int, len(EntityKinds)*len(EntityKinds)),
	}
	for _, k := range DependencyKinds {
		stats.ByKind[k] = 0
	}
	for _, f := range EntityKinds {
		for _, t := range EntityKinds {
			stats.ByEndpoints[EndpointKey(f, t)] = 0
		}
	}
	for _, d := range deps {
		stats.Total++
		stats.ByKind[d.Kind]++
		stats.ByEndpoints[EndpointKey(d.From.Kind, d.To.Kind)]++
	}
	return stats
}

// GraphEdge is an edge in the graph snapshot handed to downstream consumers.
type GraphEdge struct {
	ID      string         `json:"id"`
	Source  EntityRef      `json:"source"`
	Target  EntityRef      `json:"target"`
	Kind    DependencyKind `json:"kind"`
	LagDays int            `json:"lag_days"`
}

// GraphSnapshot is the whole dependency graph with its derived stats.
type GraphSnapshot struct {
	Nodes []EntityRef      `json:"nodes"`
	Edges []*GraphEdge     `json:"edges"`
	Order []EntityRef      `json:"order,omitempty"` // topological order when acyclic
	Stats *DependencyStats `json:"stats"`
}
