package belief

import (
	"sort"

	"github.com/buildonomy/noet-core/bidgraph"
	"github.com/buildonomy/noet-core/event"
	"github.com/buildonomy/noet-core/ident"
	"github.com/buildonomy/noet-core/weight"
)

// edgeKey identifies one (source, sink) pair for the edge-set comparisons
// ComputeDiff performs.
type edgeKey struct{ source, sink ident.Bid }

// ComputeDiff reconciles old against newb for the subset of nodes reparsed
// this pass (parsedContent), producing the Remote event sequence a
// DocumentCompiler would need to replay to bring old up to date with newb
// (spec.md §4.1.e, "compute_diff").
//
// Nodes reachable (via Section) from parsedContent in old but absent from
// newb are reported as removed; edges incident to parsedContent are diffed
// by presence and, for survivors, by weight equality.
func ComputeDiff(old, newb *Base, parsedContent map[ident.Bid]struct{}) []event.Event {
	old.mu.RLock()
	defer old.mu.RUnlock()
	newb.mu.RLock()
	defer newb.mu.RUnlock()

	var events []event.Event

	oldSection := old.relations.Projection(weight.Section, true)
	removed := map[ident.Bid]struct{}{}
	for bid := range parsedContent {
		collectDescendants(oldSection, bid, newb, removed)
	}
	var removedList []ident.Bid
	for bid := range removed {
		if _, stillParsed := parsedContent[bid]; !stillParsed {
			removedList = append(removedList, bid)
		}
	}
	if len(removedList) > 0 {
		sort.Slice(removedList, func(i, j int) bool { return removedList[i].String() < removedList[j].String() })
		events = append(events, event.NewNodesRemoved(removedList, event.Remote))
	}

	for bid := range parsedContent {
		newNode, ok := newb.states[bid]
		if !ok {
			continue
		}
		oldNode, hadOld := old.states[bid]
		shouldUpdate := !hadOld
		if hadOld {
			newTOML, _ := ToTOML(newNode)
			oldTOML, _ := ToTOML(oldNode)
			shouldUpdate = newTOML != oldTOML
		}
		if shouldUpdate {
			toml, err := ToTOML(newNode)
			if err == nil {
				events = append(events, event.NewNodeUpdate([]ident.NodeKey{ident.KeyFromBid(bid)}, toml, event.Remote))
			}
		}
	}

	removedSet := map[ident.Bid]struct{}{}
	for _, b := range removedList {
		removedSet[b] = struct{}{}
	}
	relevant := func(bid ident.Bid) bool {
		if _, ok := parsedContent[bid]; ok {
			return true
		}
		_, ok := removedSet[bid]
		return ok
	}

	// filterOwned drops every non-Section kind whose owned_by endpoint
	// falls outside parsedContent ∪ removed: this pass has no authority to
	// report on a kind some other, unreparsed document declared (spec.md
	// §4.1.e step 3, "minimal event stream").
	filterOwned := func(ws weight.Set, k edgeKey) weight.Set {
		out := weight.NewSet()
		for kind, w := range ws {
			if kind == weight.Section {
				out[kind] = w
				continue
			}
			owner := k.sink
			if w.OwnedBy() == weight.OwnedBySource {
				owner = k.source
			}
			if relevant(owner) {
				out[kind] = w
			}
		}
		return out
	}

	oldEdges := map[edgeKey]weight.Set{}
	for _, e := range old.relations.Edges() {
		if !relevant(e.From) && !relevant(e.To) {
			continue
		}
		k := edgeKey{e.From, e.To}
		if ws := filterOwned(e.Weights, k); !ws.Empty() {
			oldEdges[k] = ws
		}
	}
	newEdges := map[edgeKey]weight.Set{}
	for _, e := range newb.relations.Edges() {
		if !relevant(e.From) && !relevant(e.To) {
			continue
		}
		k := edgeKey{e.From, e.To}
		if ws := filterOwned(e.Weights, k); !ws.Empty() {
			newEdges[k] = ws
		}
	}

	var removedEdgeKeys []edgeKey
	for k := range oldEdges {
		if _, ok := newEdges[k]; ok {
			continue
		}
		removedEdgeKeys = append(removedEdgeKeys, k)
	}
	sort.Slice(removedEdgeKeys, func(i, j int) bool { return removedEdgeKeys[i].source.String() < removedEdgeKeys[j].source.String() })
	for _, k := range removedEdgeKeys {
		sinkNode, ok := old.states[k.sink]
		if ok && sinkNode.Complete() {
			events = append(events, event.NewRelationRemoved(k.source, k.sink, event.Remote))
		}
	}

	type orderedEdge struct {
		key   edgeKey
		order []uint16
	}
	var added []orderedEdge
	for k := range newEdges {
		if _, ok := oldEdges[k]; ok {
			continue
		}
		var order []uint16
		if pm, ok := newb.paths.ForNet(k.sink.Namespace()); ok {
			if entry, ok := pm.IndexedPath(k.sink); ok {
				order = entry.Order
			}
		}
		added = append(added, orderedEdge{key: k, order: order})
	}
	sort.Slice(added, func(i, j int) bool {
		return compareOrderUint16(added[i].order, added[j].order) < 0
	})
	for _, a := range added {
		events = append(events, event.NewRelationUpdate(a.key.source, a.key.sink, newEdges[a.key], event.Remote))
	}

	var changedKeys []edgeKey
	for k := range newEdges {
		if _, ok := oldEdges[k]; ok {
			changedKeys = append(changedKeys, k)
		}
	}
	sort.Slice(changedKeys, func(i, j int) bool { return changedKeys[i].source.String() < changedKeys[j].source.String() })
	for _, k := range changedKeys {
		newWS := newEdges[k]
		oldWS := oldEdges[k]
		for _, kind := range weight.AllKinds() {
			nw, hasNew := newWS[kind]
			if !hasNew {
				continue
			}
			ow, hasOld := oldWS[kind]
			if hasOld && ow.Equal(nw) {
				continue
			}
			w := nw
			events = append(events, event.NewRelationChange(k.source, k.sink, kind, &w, event.Remote))
		}
	}

	return events
}

// collectDescendants walks g (the Section projection reversed so that
// OutEdges(parent) yields its children) from root via DFS, recording every
// visited Bid that newb no longer has a state for. It prunes at any Bid
// newb still recognizes, mirroring the original's "no sense in following
// traces" pruning rule.
func collectDescendants(g *bidgraph.Graph, root ident.Bid, newb *Base, out map[ident.Bid]struct{}) {
	visited := map[ident.Bid]bool{}
	var visit func(b ident.Bid)
	visit = func(b ident.Bid) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, e := range g.OutEdges(b, nil) {
			child := e.To
			if visited[child] {
				continue
			}
			if _, stillKnown := newb.states[child]; stillKnown {
				continue
			}
			out[child] = struct{}{}
			visit(child)
		}
	}
	visit(root)
}

func compareOrderUint16(a, b []uint16) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}
