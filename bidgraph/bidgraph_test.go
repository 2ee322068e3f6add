package bidgraph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buildonomy/noet-core/ident"
	"github.com/buildonomy/noet-core/weight"
)

func bid(n uint64) ident.Bid {
	return ident.NewInNamespace(ident.Bref(n), constSrc(n))
}

type constSrc uint64

func (c constSrc) Next() uint64 { return uint64(c) }

func TestAddEdgeRegistersEndpoints(t *testing.T) {
	g := New()
	a, b := bid(1), bid(2)
	g.AddEdge(a, b, weight.Set{weight.Section: weight.NewWeight()})

	require.True(t, g.HasNode(a))
	require.True(t, g.HasNode(b))
	require.Equal(t, 1, g.EdgeCount())
}

func TestOutInEdgesKindFilter(t *testing.T) {
	g := New()
	a, b := bid(1), bid(2)
	g.AddEdge(a, b, weight.Set{weight.Section: weight.NewWeight(), weight.Epistemic: weight.NewWeight()})

	sect := weight.Section
	out := g.OutEdges(a, &sect)
	require.Len(t, out, 1)

	epi := weight.Epistemic
	in := g.InEdges(b, &epi)
	require.Len(t, in, 1)

	prag := weight.Pragmatic
	require.Empty(t, g.OutEdges(a, &prag))
}

func TestRemoveNodeRemovesIncidentEdges(t *testing.T) {
	g := New()
	a, b := bid(1), bid(2)
	g.AddEdge(a, b, weight.Set{weight.Section: weight.NewWeight()})
	g.RemoveNode(b)

	require.False(t, g.HasNode(b))
	require.Equal(t, 0, g.EdgeCount())
}

func TestProjectionFiltersByKind(t *testing.T) {
	g := New()
	a, b, c := bid(1), bid(2), bid(3)
	g.AddEdge(a, b, weight.Set{weight.Section: weight.NewWeight()})
	g.AddEdge(b, c, weight.Set{weight.Epistemic: weight.NewWeight()})

	sectionOnly := g.Projection(weight.Section, false)
	require.Equal(t, 1, sectionOnly.EdgeCount())
	require.True(t, sectionOnly.HasNode(c)) // node set preserved even if isolated
}

func TestProjectionReversed(t *testing.T) {
	g := New()
	a, b := bid(1), bid(2)
	g.AddEdge(a, b, weight.Set{weight.Section: weight.NewWeight()})

	rev := g.Projection(weight.Section, true)
	e, ok := rev.FindEdge(b, a)
	require.True(t, ok)
	require.Equal(t, b, e.From)
	require.Equal(t, a, e.To)
}

func TestIsAcyclicDetectsCycle(t *testing.T) {
	g := New()
	a, b, c := bid(1), bid(2), bid(3)
	g.AddEdge(a, b, weight.Set{weight.Epistemic: weight.NewWeight()})
	g.AddEdge(b, c, weight.Set{weight.Epistemic: weight.NewWeight()})
	require.True(t, g.IsAcyclic())

	g.AddEdge(c, a, weight.Set{weight.Epistemic: weight.NewWeight()})
	ok, cyc := g.FindCycle()
	require.False(t, ok)
	require.NotEmpty(t, cyc)
}

func TestCloneIsIndependent(t *testing.T) {
	g := New()
	a, b := bid(1), bid(2)
	g.AddEdge(a, b, weight.Set{weight.Section: weight.NewWeight()})

	clone := g.Clone()
	clone.RemoveNode(b)

	require.True(t, g.HasNode(b))
	require.False(t, clone.HasNode(b))
}
