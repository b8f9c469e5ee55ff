// Package graph implements the session's resource dependency graph.
//
// The graph accumulates nodes in arrival order as registration requests
// come in from the executing program. Every insertion validates that the
// declared dependencies would not close a cycle; a rejected insertion
// leaves the graph unchanged and the caller's registration fails with
// CyclicDependencyError.
//
// Forward references are allowed: a node may declare a dependency on a
// URN that has no node yet. The edge is recorded immediately; the
// scheduler ensures the dependency resolves before the dependent's
// registration completes.
//
// Concurrency: insertions from unrelated subtrees do not serialize on
// one another beyond a shared read snapshot for the cycle check.
// Per-node adjacency is guarded by the node's own mutex; the graph-wide
// RWMutex is held exclusively only for the node-map insert itself.
package graph
