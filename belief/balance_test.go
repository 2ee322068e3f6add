package belief

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buildonomy/noet-core/event"
	"github.com/buildonomy/noet-core/ident"
	"github.com/buildonomy/noet-core/weight"
)

// fakeExternalSource answers EvalTrace/EvalUnbalanced from a backing *Base,
// standing in for a remote source.BeliefSource in these tests.
type fakeExternalSource struct{ b *Base }

func (f fakeExternalSource) EvalUnbalanced(expr Expression) []Node {
	return f.b.EvaluateNodes(expr)
}

func (f fakeExternalSource) EvalTrace(expr Expression, kindFilter *weight.Kind) []Node {
	g := f.b.EvaluateTrace(expr, kindFilter)
	out := make([]Node, 0, len(g.States))
	for _, n := range g.States {
		out = append(out, n)
	}
	return out
}

func TestBalanceResolvesExternalSinkOnce(t *testing.T) {
	remote := New()
	net := bid(1)
	doc := bid(2)
	remote.ProcessEvent(event.NewNodeUpdate([]ident.NodeKey{ident.KeyFromBid(net)}, mustTOML(t, Node{Bid: net, Kind: KindNetwork, Title: "docs"}), event.Remote))
	remote.ProcessEvent(event.NewNodeUpdate([]ident.NodeKey{ident.KeyFromBid(doc)}, mustTOML(t, Node{Bid: doc, Kind: KindDocument, ID: "guide"}), event.Remote))
	remote.ProcessEvent(event.NewRelationUpdate(doc, net, weight.Set{weight.Section: weight.NewWeight().WithSortKey(0)}, event.Remote))

	// local only knows net as a placeholder: it has seen the edge but never
	// loaded the network node's own relations (hence KindTrace), mirroring a
	// session BeliefBase that parsed doc but not the network root it lives in.
	local := New()
	local.ProcessEvent(event.NewNodeUpdate([]ident.NodeKey{ident.KeyFromBid(net)}, mustTOML(t, Node{Bid: net, Kind: KindNetwork | KindTrace, Title: "docs"}), event.Remote))
	local.ProcessEvent(event.NewNodeUpdate([]ident.NodeKey{ident.KeyFromBid(doc)}, mustTOML(t, Node{Bid: doc, Kind: KindDocument, ID: "guide"}), event.Remote))
	local.ProcessEvent(event.NewRelationUpdate(doc, net, weight.Set{weight.Section: weight.NewWeight().WithSortKey(0)}, event.Remote))

	g := local.Evaluate(StateIn(StatePred{Bid: []ident.Bid{doc}}))
	netNode, hasNet := g.States[net]
	require.True(t, hasNet, "net is pulled in as Trace by projectRelations before balancing")
	require.True(t, netNode.Kind.Has(KindTrace))

	balanced := Balance(g, fakeExternalSource{b: remote})
	netNode, ok := balanced.States[net]
	require.True(t, ok, "Balance should have resolved net via the external source")
	require.True(t, netNode.Kind.Has(KindTrace), "net arrives via EvalTrace, so it stays Trace")
}

func TestBalanceTerminatesWhenSourceHasNothingMore(t *testing.T) {
	remote := New()
	g := NewBeliefGraph()
	ghost := bid(99)
	g.Relations.AddEdge(ghost, ghost, weight.Set{weight.Section: weight.NewWeight()})

	balanced := Balance(g, fakeExternalSource{b: remote})
	require.Empty(t, balanced.States, "an external source with nothing to offer must not spin forever")
}
