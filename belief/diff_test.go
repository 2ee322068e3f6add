package belief

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buildonomy/noet-core/event"
	"github.com/buildonomy/noet-core/ident"
	"github.com/buildonomy/noet-core/weight"
)

func snapshot(t *testing.T, nodes []Node, edges []struct {
	source, sink ident.Bid
	kind         weight.Kind
	sortKey      uint16
}) *Base {
	t.Helper()
	b := New()
	for _, n := range nodes {
		b.ProcessEvent(event.NewNodeUpdate([]ident.NodeKey{ident.KeyFromBid(n.Bid)}, mustTOML(t, n), event.Remote))
	}
	for _, e := range edges {
		ws := weight.Set{e.kind: weight.NewWeight().WithSortKey(e.sortKey)}
		b.ProcessEvent(event.NewRelationUpdate(e.source, e.sink, ws, event.Remote))
	}
	return b
}

func TestComputeDiffReportsNewNode(t *testing.T) {
	net := bid(1)
	doc := bid(2)

	old := snapshot(t, []Node{{Bid: net, Kind: KindNetwork, Title: "docs"}}, nil)
	newb := snapshot(t, []Node{
		{Bid: net, Kind: KindNetwork, Title: "docs"},
		{Bid: doc, Kind: KindDocument, ID: "guide"},
	}, []struct {
		source, sink ident.Bid
		kind         weight.Kind
		sortKey      uint16
	}{{doc, net, weight.Section, 0}})

	parsed := map[ident.Bid]struct{}{doc: {}}
	events := ComputeDiff(old, newb, parsed)

	var sawNodeUpdate, sawRelationUpdate bool
	for _, e := range events {
		switch ev := e.(type) {
		case event.NodeUpdate:
			for _, k := range ev.Keys {
				if k.Tag == ident.KeyBid && k.Bid == doc {
					sawNodeUpdate = true
				}
			}
		case event.RelationUpdate:
			if ev.Source == doc && ev.Sink == net {
				sawRelationUpdate = true
			}
		}
	}
	require.True(t, sawNodeUpdate, "expected a NodeUpdate for the newly parsed document")
	require.True(t, sawRelationUpdate, "expected a RelationUpdate for the document's new Section edge")
}

func TestComputeDiffReportsRemovedDescendant(t *testing.T) {
	net := bid(1)
	doc := bid(2)
	sec := bid(3)

	old := snapshot(t,
		[]Node{
			{Bid: net, Kind: KindNetwork, Title: "docs"},
			{Bid: doc, Kind: KindDocument, ID: "guide"},
			{Bid: sec, Kind: KindSection, Title: "Gone"},
		},
		[]struct {
			source, sink ident.Bid
			kind         weight.Kind
			sortKey      uint16
		}{
			{doc, net, weight.Section, 0},
			{sec, doc, weight.Section, 0},
		},
	)
	newb := snapshot(t,
		[]Node{
			{Bid: net, Kind: KindNetwork, Title: "docs"},
			{Bid: doc, Kind: KindDocument, ID: "guide"},
		},
		[]struct {
			source, sink ident.Bid
			kind         weight.Kind
			sortKey      uint16
		}{
			{doc, net, weight.Section, 0},
		},
	)

	parsed := map[ident.Bid]struct{}{doc: {}}
	events := ComputeDiff(old, newb, parsed)

	var sawRemoved bool
	for _, e := range events {
		if nr, ok := e.(event.NodesRemoved); ok {
			for _, b := range nr.Bids {
				if b == sec {
					sawRemoved = true
				}
			}
		}
	}
	require.True(t, sawRemoved, "expected sec's removal to be reported since it is no longer reachable from doc")
}

func TestComputeDiffReportsRelationChangeOnWeightDelta(t *testing.T) {
	net := bid(1)
	doc := bid(2)

	old := snapshot(t,
		[]Node{
			{Bid: net, Kind: KindNetwork, Title: "docs"},
			{Bid: doc, Kind: KindDocument, ID: "guide"},
		},
		[]struct {
			source, sink ident.Bid
			kind         weight.Kind
			sortKey      uint16
		}{{doc, net, weight.Section, 0}},
	)
	newb := snapshot(t,
		[]Node{
			{Bid: net, Kind: KindNetwork, Title: "docs"},
			{Bid: doc, Kind: KindDocument, ID: "guide"},
		},
		[]struct {
			source, sink ident.Bid
			kind         weight.Kind
			sortKey      uint16
		}{{doc, net, weight.Section, 3}},
	)

	parsed := map[ident.Bid]struct{}{doc: {}}
	events := ComputeDiff(old, newb, parsed)

	var sawChange bool
	for _, e := range events {
		if rc, ok := e.(event.RelationChange); ok {
			if rc.Source == doc && rc.Sink == net && rc.Kind == weight.Section {
				sk, ok := rc.Weight.SortKey()
				require.True(t, ok)
				require.Equal(t, uint16(3), sk)
				sawChange = true
			}
		}
	}
	require.True(t, sawChange, "expected a RelationChange reporting the sort_key delta")
}
