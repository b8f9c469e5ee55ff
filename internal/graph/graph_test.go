package graph

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capstan-io/capstan/internal/urn"
)

func u(name string) urn.URN {
	return urn.URN("urn:capstan:test::proj::pkg:mod:Res::" + name)
}

func TestGraph_AddNode(t *testing.T) {
	g := New()

	require.NoError(t, g.AddNode(u("a"), nil))
	require.NoError(t, g.AddNode(u("b"), []urn.URN{u("a")}))

	assert.True(t, g.Has(u("a")))
	assert.True(t, g.Has(u("b")))
	assert.Equal(t, 2, g.Len())
	assert.Equal(t, []urn.URN{u("a")}, g.DependenciesOf(u("b")))
	assert.Equal(t, []urn.URN{u("b")}, g.DependentsOf(u("a")))
}

func TestGraph_DuplicateDeclaration(t *testing.T) {
	g := New()
	require.NoError(t, g.AddNode(u("a"), nil))

	err := g.AddNode(u("a"), nil)
	assert.True(t, IsNodeExists(err))
}

func TestGraph_ForwardReference(t *testing.T) {
	g := New()

	// b depends on a before a is declared.
	require.NoError(t, g.AddNode(u("b"), []urn.URN{u("a")}))
	assert.False(t, g.Has(u("a")), "placeholder is not a declared node")

	// Declaring a later promotes the placeholder.
	require.NoError(t, g.AddNode(u("a"), nil))
	assert.True(t, g.Has(u("a")))
	assert.Equal(t, []urn.URN{u("b")}, g.DependentsOf(u("a")))
}

func TestGraph_SelfCycle(t *testing.T) {
	g := New()
	err := g.AddNode(u("a"), []urn.URN{u("a")})
	assert.True(t, IsCyclicDependency(err))
	assert.False(t, g.Has(u("a")), "rejected node must not be inserted")
}

func TestGraph_DirectCycle(t *testing.T) {
	g := New()
	require.NoError(t, g.AddNode(u("a"), nil))
	require.NoError(t, g.AddNode(u("b"), []urn.URN{u("a")}))

	// a was declared without deps; redeclaration is a different error.
	// A cycle needs a forward reference: c -> d declared first, then
	// d -> c would close the loop.
	require.NoError(t, g.AddNode(u("c"), []urn.URN{u("d")}))
	err := g.AddNode(u("d"), []urn.URN{u("c")})
	assert.True(t, IsCyclicDependency(err))

	// The graph must be unchanged: d stays a placeholder.
	assert.False(t, g.Has(u("d")))
	assert.Equal(t, []urn.URN{u("d")}, g.DependenciesOf(u("c")))
}

func TestGraph_TransitiveCycle(t *testing.T) {
	g := New()

	// x -> y -> z chain via forward references, then z -> x closes it.
	require.NoError(t, g.AddNode(u("x"), []urn.URN{u("y")}))
	require.NoError(t, g.AddNode(u("y"), []urn.URN{u("z")}))

	err := g.AddNode(u("z"), []urn.URN{u("x")})
	assert.True(t, IsCyclicDependency(err))
	assert.Equal(t, 2, g.Len())
}

func TestGraph_TransitiveDependents(t *testing.T) {
	g := New()
	require.NoError(t, g.AddNode(u("base"), nil))
	require.NoError(t, g.AddNode(u("mid1"), []urn.URN{u("base")}))
	require.NoError(t, g.AddNode(u("mid2"), []urn.URN{u("base")}))
	require.NoError(t, g.AddNode(u("leaf"), []urn.URN{u("mid1"), u("mid2")}))
	require.NoError(t, g.AddNode(u("island"), nil))

	deps := g.TransitiveDependentsOf(u("base"))
	assert.Equal(t, []urn.URN{u("leaf"), u("mid1"), u("mid2")}, deps)
	assert.Empty(t, g.TransitiveDependentsOf(u("leaf")))
	assert.Empty(t, g.TransitiveDependentsOf(u("island")))
}

func TestGraph_ConcurrentInsertion(t *testing.T) {
	g := New()
	require.NoError(t, g.AddNode(u("root"), nil))

	// Many unrelated subtrees inserted concurrently.
	var wg sync.WaitGroup
	errs := make([]error, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			child := urn.URN(fmt.Sprintf("urn:capstan:test::proj::pkg:mod:Res::child-%d", i))
			errs[i] = g.AddNode(child, []urn.URN{u("root")})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "insert %d", i)
	}
	assert.Equal(t, 101, g.Len())
	assert.Len(t, g.DependentsOf(u("root")), 100)
}

func TestGraph_ConcurrentCycleAttempts(t *testing.T) {
	g := New()
	require.NoError(t, g.AddNode(u("a"), []urn.URN{u("b")}))

	// Concurrent attempts to declare b depending back on a: every
	// attempt must fail and the graph must stay acyclic.
	var wg sync.WaitGroup
	errs := make([]error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = g.AddNode(u("b"), []urn.URN{u("a")})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.True(t, IsCyclicDependency(err))
	}
	assert.False(t, g.Has(u("b")))
}
