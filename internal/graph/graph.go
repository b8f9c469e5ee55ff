package graph

import (
	"sort"
	"sync"

	"github.com/capstan-io/capstan/internal/urn"
)

// node is one resource in the dependency graph.
//
// A node exists in one of two forms: declared (AddNode was called for
// its URN) or placeholder (only referenced as a dependency so far - a
// forward reference). Placeholders are promoted in place when their
// AddNode arrives.
type node struct {
	mu         sync.Mutex
	dependsOn  map[urn.URN]struct{}
	dependents map[urn.URN]struct{}
	declared   bool
}

func newNode() *node {
	return &node{
		dependsOn:  make(map[urn.URN]struct{}),
		dependents: make(map[urn.URN]struct{}),
	}
}

// Graph is the session-wide resource dependency graph.
type Graph struct {
	mu    sync.RWMutex
	nodes map[urn.URN]*node
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[urn.URN]*node)}
}

// AddNode declares a resource node with its dependency set.
//
// The insertion is atomic: if any edge would close a cycle, the graph
// is left exactly as it was and CyclicDependencyError is returned.
// Dependencies on URNs not yet declared are recorded as forward
// references (placeholder nodes).
//
// The cycle check and insert hold the graph lock exclusively, but the
// section is a pure in-memory reachability walk - registrations for
// unrelated subtrees queue behind it only briefly and never behind any
// provider call.
func (g *Graph) AddNode(u urn.URN, dependsOn []urn.URN) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	existing := g.nodes[u]
	if existing != nil && existing.declared {
		return &NodeExistsError{URN: u}
	}

	// Reject self-dependency and check reachability before mutating.
	for _, dep := range dependsOn {
		if dep == u {
			return &CyclicDependencyError{URN: u, Through: dep}
		}
		if g.reachesLocked(dep, u, make(map[urn.URN]struct{})) {
			return &CyclicDependencyError{URN: u, Through: dep}
		}
	}

	n := existing
	if n == nil {
		n = newNode()
		g.nodes[u] = n
	}
	n.declared = true

	for _, dep := range dependsOn {
		dn := g.nodes[dep]
		if dn == nil {
			dn = newNode() // forward reference
			g.nodes[dep] = dn
		}

		n.mu.Lock()
		n.dependsOn[dep] = struct{}{}
		n.mu.Unlock()

		dn.mu.Lock()
		dn.dependents[u] = struct{}{}
		dn.mu.Unlock()
	}

	return nil
}

// reachesLocked reports whether target is reachable from start by
// following depends-on edges. Caller holds g.mu.
func (g *Graph) reachesLocked(start, target urn.URN, seen map[urn.URN]struct{}) bool {
	if start == target {
		return true
	}
	if _, ok := seen[start]; ok {
		return false
	}
	seen[start] = struct{}{}

	n := g.nodes[start]
	if n == nil {
		return false
	}

	n.mu.Lock()
	deps := make([]urn.URN, 0, len(n.dependsOn))
	for d := range n.dependsOn {
		deps = append(deps, d)
	}
	n.mu.Unlock()

	for _, d := range deps {
		if g.reachesLocked(d, target, seen) {
			return true
		}
	}
	return false
}

// Has reports whether the URN has a declared node.
// Placeholder nodes (forward references) do not count.
func (g *Graph) Has(u urn.URN) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := g.nodes[u]
	return n != nil && n.declared
}

// Len returns the number of declared nodes.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	count := 0
	for _, n := range g.nodes {
		if n.declared {
			count++
		}
	}
	return count
}

// DependenciesOf returns the declared dependency set of a node, sorted.
func (g *Graph) DependenciesOf(u urn.URN) []urn.URN {
	g.mu.RLock()
	n := g.nodes[u]
	g.mu.RUnlock()
	if n == nil {
		return nil
	}

	n.mu.Lock()
	out := make([]urn.URN, 0, len(n.dependsOn))
	for d := range n.dependsOn {
		out = append(out, d)
	}
	n.mu.Unlock()

	sortURNs(out)
	return out
}

// DependentsOf returns the direct dependents of a node, sorted.
func (g *Graph) DependentsOf(u urn.URN) []urn.URN {
	g.mu.RLock()
	n := g.nodes[u]
	g.mu.RUnlock()
	if n == nil {
		return nil
	}

	n.mu.Lock()
	out := make([]urn.URN, 0, len(n.dependents))
	for d := range n.dependents {
		out = append(out, d)
	}
	n.mu.Unlock()

	sortURNs(out)
	return out
}

// TransitiveDependentsOf returns every node that depends on u directly
// or transitively, sorted. Used for cascading failure: when u fails,
// each returned node fails without a provider call.
func (g *Graph) TransitiveDependentsOf(u urn.URN) []urn.URN {
	seen := make(map[urn.URN]struct{})
	queue := []urn.URN{u}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dep := range g.DependentsOf(cur) {
			if _, ok := seen[dep]; ok {
				continue
			}
			seen[dep] = struct{}{}
			queue = append(queue, dep)
		}
	}

	out := make([]urn.URN, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sortURNs(out)
	return out
}

func sortURNs(urns []urn.URN) {
	sort.Slice(urns, func(i, j int) bool { return urns[i] < urns[j] })
}
