// Package graph holds the dependency-graph algorithms: cycle detection for
// candidate edges, topological ordering and DOT rendering of the edge set.
//
// Every dependency is a precedence arc from its From entity to its To entity
// regardless of its kind; FS, SS, FF and SF all order the two entities.
package graph
