package belief

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buildonomy/noet-core/event"
	"github.com/buildonomy/noet-core/ident"
	"github.com/buildonomy/noet-core/weight"
)

func seedDocNetwork(t *testing.T, b *Base) (net, doc, sec ident.Bid) {
	t.Helper()
	net = bid(1)
	doc = bid(2)
	sec = bid(3)

	for _, n := range []Node{
		{Bid: net, Kind: KindNetwork, Title: "docs"},
		{Bid: doc, Kind: KindDocument, ID: "guide"},
		{Bid: sec, Kind: KindSection, Title: "Intro"},
	} {
		b.ProcessEvent(event.NewNodeUpdate([]ident.NodeKey{ident.KeyFromBid(n.Bid)}, mustTOML(t, n), event.Remote))
	}
	b.ProcessEvent(event.NewRelationUpdate(doc, net, weight.Set{weight.Section: weight.NewWeight().WithSortKey(0)}, event.Remote))
	b.ProcessEvent(event.NewRelationUpdate(sec, doc, weight.Set{weight.Section: weight.NewWeight().WithSortKey(0)}, event.Remote))
	return net, doc, sec
}

func TestStatePredKindMatches(t *testing.T) {
	b := New()
	_, doc, sec := seedDocNetwork(t, b)

	results := b.Evaluate(StateIn(StatePred{Kind: KindSection}))
	secNode, hasSec := results.States[sec]
	docNode, hasDoc := results.States[doc]
	require.True(t, hasSec)
	require.True(t, secNode.Complete())
	// doc does not match; it is present only as the Trace endpoint of sec's
	// Section edge, pulled in by projectRelations.
	require.True(t, hasDoc)
	require.False(t, docNode.Complete())
}

func TestStatePredTitleRegex(t *testing.T) {
	b := New()
	net, _, sec := seedDocNetwork(t, b)

	results := b.Evaluate(StateIn(StatePred{Net: net.Namespace(), Title: regexp.MustCompile("intro")}))
	_, ok := results.States[sec]
	require.True(t, ok)
}

func TestStatePredPathMatches(t *testing.T) {
	b := New()
	net, doc, _ := seedDocNetwork(t, b)

	results := b.Evaluate(StateIn(StatePred{Net: net.Namespace(), Path: "guide"}))
	_, ok := results.States[doc]
	require.True(t, ok)
}

func TestRelationInSelectsIncidentNodes(t *testing.T) {
	b := New()
	net, doc, _ := seedDocNetwork(t, b)

	results := b.Evaluate(RelationIn(RelationPred{SinkIn: []ident.Bid{net}}))
	_, ok := results.States[doc]
	require.True(t, ok)
	_, okNet := results.States[net]
	require.True(t, okNet)
}

func TestRelationNotInExcludesIncidentNodes(t *testing.T) {
	b := New()
	net, doc, sec := seedDocNetwork(t, b)

	results := b.Evaluate(RelationNotIn(RelationPred{SinkIn: []ident.Bid{doc}}))
	_, hasSec := results.States[sec]
	require.False(t, hasSec, "sec has an edge into doc and should be excluded")
	_, hasNet := results.States[net]
	require.True(t, hasNet)
}

func TestDyadIntersectionAndDifference(t *testing.T) {
	b := New()
	_, doc, sec := seedDocNetwork(t, b)

	all := StateIn(StatePred{Any: true})
	onlySections := StateIn(StatePred{Kind: KindSection})

	inter := b.Evaluate(Dyad(all, Intersection, onlySections))
	_, ok := inter.States[sec]
	require.True(t, ok)
	_, hasDoc := inter.States[doc]
	require.False(t, hasDoc)

	diff := b.Evaluate(Dyad(all, Difference, onlySections))
	_, hasSecInDiff := diff.States[sec]
	require.False(t, hasSecInDiff)
	_, hasDocInDiff := diff.States[doc]
	require.True(t, hasDocInDiff)
}

func TestDyadSymmetricDifference(t *testing.T) {
	b := New()
	_, doc, sec := seedDocNetwork(t, b)

	lhs := StateIn(StatePred{Bid: []ident.Bid{doc, sec}})
	rhs := StateIn(StatePred{Bid: []ident.Bid{sec}})

	out := b.Evaluate(Dyad(lhs, SymmetricDifference, rhs))
	require.Len(t, out.States, 1)
	_, ok := out.States[doc]
	require.True(t, ok)
}

func TestFromKeyBuildsCanonicalExpression(t *testing.T) {
	b := New()
	_, doc, _ := seedDocNetwork(t, b)

	results := b.Evaluate(FromKey(ident.KeyFromID(doc.ParentNamespace(), "guide")))
	_, ok := results.States[doc]
	require.True(t, ok)
}

func TestEvaluateNodesResolvesToNodes(t *testing.T) {
	b := New()
	_, doc, _ := seedDocNetwork(t, b)

	nodes := b.EvaluateNodes(StateIn(StatePred{ID: []string{"guide"}}))
	require.Len(t, nodes, 1)
	require.Equal(t, doc, nodes[0].Bid)
}
