package belief

import (
	"fmt"
	"sort"
	"sync"

	"github.com/buildonomy/noet-core/bidgraph"
	"github.com/buildonomy/noet-core/event"
	"github.com/buildonomy/noet-core/ident"
	"github.com/buildonomy/noet-core/pathmap"
	"github.com/buildonomy/noet-core/weight"
)

// Base is the BeliefBase: the single mutable store of every known Node, the
// BidGraph relating them, and the derived PathMapMap — mutated exclusively
// through ProcessEvent (spec.md §4.1).
type Base struct {
	mu sync.RWMutex

	states map[ident.Bid]Node
	brefs  map[ident.Bref]ident.Bid

	relations *bidgraph.Graph
	paths     *pathmap.Map

	api    Node
	errors []string
}

// New returns an empty Base seeded with the API root node, plus the
// reserved href and asset networks (SPEC_FULL.md §D.1, §D.2).
func New() *Base {
	api := newAPINode()
	b := &Base{
		states:    make(map[ident.Bid]Node),
		brefs:     make(map[ident.Bref]ident.Bid),
		relations: bidgraph.New(),
		paths:     pathmap.NewMap(),
		api:       api,
	}
	b.states[api.Bid] = api
	b.relations.AddNode(api.Bid)

	for _, net := range []Node{hrefNetworkNode(), assetNetworkNode()} {
		b.states[net.Bid] = net
		b.relations.AddNode(net.Bid)
		b.paths.EnsureNet(net.Bid)
	}
	return b
}

// API returns the unique API root node.
func (b *Base) API() Node {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.api
}

// State returns the node currently recorded for bid.
func (b *Base) State(bid ident.Bid) (Node, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n, ok := b.states[bid]
	return n, ok
}

// States returns every recorded node, in no particular order.
func (b *Base) States() []Node {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Node, 0, len(b.states))
	for _, n := range b.states {
		out = append(out, n)
	}
	return out
}

// Relations exposes the underlying BidGraph for read access by callers that
// need direct graph algorithms (e.g. GraphBuilder).
func (b *Base) Relations() *bidgraph.Graph { return b.relations }

// Paths exposes the PathMapMap for read access.
func (b *Base) Paths() *pathmap.Map { return b.paths }

// Errors returns the accumulated built-in-test failure descriptions.
func (b *Base) Errors() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]string(nil), b.errors...)
}

// Get resolves a NodeKey to a Node, trying each index in turn.
func (b *Base) Get(key ident.NodeKey) (Node, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.getLocked(key)
}

// getLocked is Get's body, callable by methods that already hold b.mu.
func (b *Base) getLocked(key ident.NodeKey) (Node, bool) {
	switch key.Tag {
	case ident.KeyBid:
		n, ok := b.states[key.Bid]
		return n, ok
	case ident.KeyBref:
		bid, ok := b.brefs[key.Bref]
		if !ok {
			return Node{}, false
		}
		n, ok := b.states[bid]
		return n, ok
	case ident.KeyID:
		if pm, ok := b.paths.ForNet(key.Net); ok {
			if bid, ok := pm.GetFromID(key.ID); ok {
				n, ok := b.states[bid]
				return n, ok
			}
		}
	case ident.KeyPath:
		if pm, ok := b.paths.ForNet(key.Net); ok {
			if bid, ok := pm.Get(key.Path); ok {
				n, ok := b.states[bid]
				return n, ok
			}
		}
	}
	return Node{}, false
}

// lookupView adapts Base's state map into a pathmap.NodeLookup.
func (b *Base) lookupView(bid ident.Bid) (pathmap.NodeView, bool) {
	n, ok := b.states[bid]
	if !ok {
		return pathmap.NodeView{}, false
	}
	return pathmap.NodeView{
		ID:        n.ID,
		Title:     n.Title,
		IsNetwork: n.Kind.Has(KindNetwork),
		IsSection: n.Kind.Has(KindSection),
	}, true
}

// ProcessEvent is the single mutator: it validates and applies ev (unless ev
// already carries event.Local origin, in which case it is assumed already
// applied, nothing is done and no derivatives are returned), then returns every
// derivative event generated — including the PathAdded/PathUpdate/
// PathsRemoved events PathMapMap produces in response (spec.md §4.1).
func (b *Base) ProcessEvent(ev event.Event) []event.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	var derivatives []event.Event

	if origin, hasOrigin := ev.Origin(); hasOrigin && origin == event.Local {
		// Already applied by whoever emitted it; nothing left to do.
		return nil
	}

	switch e := ev.(type) {
	case event.NodeUpdate:
		n, err := FromTOML(e.TOML)
		if err != nil {
			b.errors = append(b.errors, err.Error())
			break
		}
		derivatives = append(derivatives, b.insertState(n, e.Keys)...)
		if n.Kind.Has(KindNetwork) {
			// First sight of a network root seeds its PathMap so later
			// Section edges into it have somewhere to land.
			b.paths.EnsureNet(n.Bid)
		}

	case event.NodesRemoved:
		derivatives = append(derivatives, b.removeNodes(e.Bids)...)

	case event.NodeRenamed:
		// Atomic renames are handled by insertState/replaceBid; a bare
		// NodeRenamed arriving on its own is bookkeeping-only.

	case event.RelationUpdate:
		derivatives = append(derivatives, b.updateRelation(e.Source, e.Sink, e.Weights)...)

	case event.RelationChange:
		if upd, ok := b.generateEdgeUpdate(e); ok {
			derivatives = append(derivatives, upd)
			derivatives = append(derivatives, b.updateRelation(upd.Source, upd.Sink, upd.Weights)...)
		}

	case event.RelationRemoved:
		derivatives = append(derivatives, b.updateRelation(e.Source, e.Sink, weight.NewSet())...)

	case event.BalanceCheck:
		b.runBuiltInTest(false)

	case event.BuiltInTest:
		b.runBuiltInTest(true)

	case event.FileParsed:
		// Metadata-only passthrough; no base state to mutate.
	}

	queue := append([]event.Event{ev}, derivatives...)
	for _, qe := range queue {
		derivatives = append(derivatives, b.paths.Dispatch(b.relations, b.lookupView, qe)...)
	}

	return derivatives
}

// insertState replaces any node matched by merge (other than node.Bid
// itself), then records node, returning NodeRenamed+NodesRemoved
// derivatives for whatever got replaced (spec.md §4.1, "insert_state").
func (b *Base) insertState(n Node, merge []ident.NodeKey) []event.Event {
	var events []event.Event

	toReplace := map[ident.Bid]struct{}{}
	for _, key := range merge {
		if existing, ok := b.getLocked(key); ok && existing.Bid != n.Bid {
			toReplace[existing.Bid] = struct{}{}
		}
	}

	old, existed := b.states[n.Bid]
	updated := !existed || !nodeEqual(old, n)
	if updated {
		b.states[n.Bid] = n
		b.brefs[n.Bid.Namespace()] = n.Bid
		b.paths.NoteKind(n.Bid, n.Kind.Has(KindNetwork), n.Kind.Has(KindDocument), n.Kind.Has(KindAPI))
		b.paths.NoteTitle(n.Bid, n.Title)
		b.paths.NoteID(n.Bid, n.ID)
	}

	removed := make([]ident.Bid, 0, len(toReplace))
	for replaced := range toReplace {
		events = append(events, event.NewNodeRenamed(replaced, n.Bid, event.Local))
		events = append(events, b.replaceBid(replaced, n.Bid)...)
		delete(b.states, replaced)
		delete(b.brefs, replaced.Namespace())
		b.paths.Forget(replaced)
		removed = append(removed, replaced)
	}
	if len(removed) > 0 {
		sort.Slice(removed, func(i, j int) bool { return removed[i].String() < removed[j].String() })
		events = append(events, event.NewNodesRemoved(removed, event.Local))
	}
	return events
}

func nodeEqual(a, b Node) bool {
	return a.Bid == b.Bid && a.Kind == b.Kind && a.Title == b.Title &&
		a.Schema == b.Schema && a.ID == b.ID
}

// removeNodes deletes each bid from states and the graph, then reindexes
// every sink that lost an incoming edge so sort indices stay contiguous.
func (b *Base) removeNodes(bids []ident.Bid) []event.Event {
	if len(bids) == 0 {
		return nil
	}
	sinkKinds := map[ident.Bid]map[weight.Kind]struct{}{}
	for _, bid := range bids {
		for _, e := range b.relations.OutEdges(bid, nil) {
			if _, ok := sinkKinds[e.To]; !ok {
				sinkKinds[e.To] = map[weight.Kind]struct{}{}
			}
			for k := range e.Weights {
				sinkKinds[e.To][k] = struct{}{}
			}
		}
	}

	for _, bid := range bids {
		delete(b.states, bid)
		delete(b.brefs, bid.Namespace())
		b.relations.RemoveNode(bid)
		b.paths.Forget(bid)
	}

	var derivatives []event.Event
	for sink, kinds := range sinkKinds {
		ks := make([]weight.Kind, 0, len(kinds))
		for k := range kinds {
			ks = append(ks, k)
		}
		derivatives = append(derivatives, b.reindexSinkEdges(sink, ks)...)
	}
	return derivatives
}

// generateEdgeUpdate folds a RelationChange into an equivalent
// RelationUpdate, merging doc_paths, assigning a fresh contiguous sort_key
// when the change introduces a new edge, and reporting ok=false when the
// change is a no-op (spec.md §4.1, Open Question #1).
func (b *Base) generateEdgeUpdate(e event.RelationChange) (event.RelationUpdate, bool) {
	existing, hasEdge := b.relations.FindEdge(e.Source, e.Sink)
	var present weight.Set
	if hasEdge {
		present = existing.Weights.Clone()
	} else {
		present = weight.NewSet()
	}
	changed := false

	if e.Weight == nil {
		if _, had := present[e.Kind]; had {
			delete(present, e.Kind)
			changed = true
		}
	} else {
		w, had := present[e.Kind]
		if !had {
			w = weight.NewWeight()
			changed = true
		}
		for k, v := range *e.Weight {
			if k == weight.KeyDocPaths {
				merged := mergeDocPaths(w.DocPaths(), (*e.Weight).DocPaths())
				if _, hadPaths := w[weight.KeyDocPaths]; hadPaths && len(merged) == len(w.DocPaths()) {
					continue
				}
				w = w.Clone()
				w[weight.KeyDocPaths] = merged
				changed = true
				continue
			}
			if old, ok := w[k]; !ok || old != v {
				w = w.Clone()
				w[k] = v
				changed = true
			}
		}
		if _, hasSort := w.SortKey(); !hasSort {
			w = w.WithSortKey(b.nextSortKey(e.Sink, e.Kind, e.Source))
			changed = true
		}
		present[e.Kind] = w
	}

	if !changed {
		return event.RelationUpdate{}, false
	}
	origin, _ := e.Origin()
	return event.NewRelationUpdate(e.Source, e.Sink, present, origin), true
}

func mergeDocPaths(existing, incoming []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, p := range existing {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	for _, p := range incoming {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

// isNetworkSink reports whether bid is currently recorded as a network node.
func (b *Base) isNetworkSink(bid ident.Bid) bool {
	return b.states[bid].Kind.Has(KindNetwork)
}

// sortKeyCohort partitions a sink's incoming edges into the independent
// contiguous sort_key range source belongs to. Network sinks split
// document-child sources from anchor/section-child sources into two
// ranges (spec.md §4.1.a step 3, §8's "documents get [doc_idx], headings
// get [u16::MAX, head_idx]" scenario); every other
// sink has a single cohort, so all of its incoming edges share one range.
func (b *Base) sortKeyCohort(sink, source ident.Bid) bool {
	if !b.isNetworkSink(sink) {
		return true
	}
	return b.states[source].Kind.Has(KindDocument)
}

// nextSortKey returns the next contiguous sort_key for a new edge of kind
// from source into sink, considering only the other edges sharing
// source's sort-key cohort at sink.
func (b *Base) nextSortKey(sink ident.Bid, kind weight.Kind, source ident.Bid) uint16 {
	cohort := b.sortKeyCohort(sink, source)
	var max int
	found := false
	for _, e := range b.relations.InEdges(sink, &kind) {
		if b.sortKeyCohort(sink, e.From) != cohort {
			continue
		}
		if sk, ok := e.Weights[kind].SortKey(); ok {
			if !found || int(sk) > max {
				max = int(sk)
				found = true
			}
		}
	}
	if !found {
		return 0
	}
	return uint16(max + 1)
}

// updateRelation sets (or clears, if ws is empty) the edge source->sink, then
// reindexes the sink's affected WeightKinds back to a contiguous [0..N)
// range, returning RelationUpdate derivatives for every edge whose index
// moved (spec.md §4.1.a).
func (b *Base) updateRelation(source, sink ident.Bid, ws weight.Set) []event.Event {
	if !b.hasState(source) || !b.hasState(sink) {
		return nil
	}

	existing, hasEdge := b.relations.FindEdge(source, sink)
	var old weight.Set
	if hasEdge {
		old = existing.Weights
	} else {
		old = weight.NewSet()
	}
	affected := old.Difference(ws)

	switch {
	case ws.Empty():
		if hasEdge {
			_ = b.relations.RemoveEdge(existing.ID)
		}
	case hasEdge:
		_ = b.relations.SetEdgeWeights(existing.ID, ws)
	default:
		b.relations.AddEdge(source, sink, ws)
	}

	kinds := make([]weight.Kind, 0, len(affected))
	for k := range affected {
		kinds = append(kinds, k)
	}
	return b.reindexSinkEdges(sink, kinds)
}

func (b *Base) hasState(bid ident.Bid) bool {
	_, ok := b.states[bid]
	return ok
}

// reindexSinkEdges collapses each kind's incoming-edge sort_keys on sink
// back to a contiguous [0..N) range, returning a RelationUpdate for every
// edge whose sort_key actually moved. Network sinks reindex their two
// sort-key cohorts (documents, anchors) independently, so removing a
// document never shifts a heading's index and vice versa (spec.md §4.1.a
// step 3).
func (b *Base) reindexSinkEdges(sink ident.Bid, kinds []weight.Kind) []event.Event {
	if len(kinds) == 0 {
		return nil
	}
	var derivatives []event.Event
	for _, kind := range kinds {
		k := kind
		edges := b.relations.InEdges(sink, &k)
		cohorts := map[bool][]*bidgraph.Edge{}
		for _, e := range edges {
			c := b.sortKeyCohort(sink, e.From)
			cohorts[c] = append(cohorts[c], e)
		}
		for _, group := range cohorts {
			sort.Slice(group, func(i, j int) bool {
				si, _ := group[i].Weights[k].SortKey()
				sj, _ := group[j].Weights[k].SortKey()
				return si < sj
			})
			for i, e := range group {
				cur, _ := e.Weights[k].SortKey()
				if int(cur) == i {
					continue
				}
				newWeights := e.Weights.Clone()
				newWeights[k] = newWeights[k].WithSortKey(uint16(i))
				_ = b.relations.SetEdgeWeights(e.ID, newWeights)
				derivatives = append(derivatives, event.NewRelationUpdate(e.From, e.To, newWeights, event.Local))
			}
		}
	}
	return derivatives
}

// replaceBid migrates every edge incident to replaced onto newBid (dropping
// the Section kind, since renames never change structural placement on their
// own), emitting RelationRemoved for each original edge.
func (b *Base) replaceBid(replaced, newBid ident.Bid) []event.Event {
	var derivatives []event.Event
	b.relations.AddNode(newBid)

	for _, e := range b.relations.OutEdges(replaced, nil) {
		w := e.Weights.Clone()
		delete(w, weight.Section)
		_ = b.relations.RemoveEdge(e.ID)
		derivatives = append(derivatives, event.NewRelationRemoved(replaced, e.To, event.Local))
		if !w.Empty() {
			if existing, ok := b.relations.FindEdge(newBid, e.To); ok {
				_ = b.relations.SetEdgeWeights(existing.ID, existing.Weights.Union(w))
			} else {
				b.relations.AddEdge(newBid, e.To, w)
			}
		}
	}
	for _, e := range b.relations.InEdges(replaced, nil) {
		w := e.Weights.Clone()
		delete(w, weight.Section)
		_ = b.relations.RemoveEdge(e.ID)
		derivatives = append(derivatives, event.NewRelationRemoved(e.From, replaced, event.Local))
		if !w.Empty() {
			if existing, ok := b.relations.FindEdge(e.From, newBid); ok {
				_ = b.relations.SetEdgeWeights(existing.ID, existing.Weights.Union(w))
			} else {
				b.relations.AddEdge(e.From, newBid, w)
			}
		}
	}
	b.relations.RemoveNode(replaced)
	return derivatives
}

// runBuiltInTest checks acyclicity, API-node reachability, and sort_key
// contiguity across every WeightKind sub-graph, and when full is true,
// stores any violation descriptions in b.errors (spec.md §4.1.b, §8).
func (b *Base) runBuiltInTest(full bool) {
	var errs []string

	for _, kind := range weight.AllKinds() {
		sub := b.relations.Projection(kind, false)
		if !sub.IsAcyclic() {
			errs = append(errs, fmt.Sprintf("acyclicity violated: %s sub-graph contains a cycle", kind))
		}
	}

	if full {
		sect := b.relations.Projection(weight.Section, false)
		for bid := range b.states {
			if bid == b.api.Bid {
				continue
			}
			if !reaches(sect, bid, b.api.Bid) {
				errs = append(errs, fmt.Sprintf("reachability violated: %s cannot reach the API node via Section", bid))
				break
			}
		}
	}

	for _, kind := range weight.AllKinds() {
		for _, sinkBid := range b.relations.Nodes() {
			k := kind
			edges := b.relations.InEdges(sinkBid, &k)
			cohorts := map[bool][]*bidgraph.Edge{}
			for _, e := range edges {
				c := b.sortKeyCohort(sinkBid, e.From)
				cohorts[c] = append(cohorts[c], e)
			}
			for _, group := range cohorts {
				seen := map[uint16]int{}
				for _, e := range group {
					if sk, ok := e.Weights[k].SortKey(); ok {
						seen[sk]++
					}
				}
				for i := 0; i < len(group); i++ {
					if seen[uint16(i)] != 1 {
						errs = append(errs, fmt.Sprintf("sort_key contiguity violated: %s incoming %s sort_keys not contiguous at %s", sinkBid, kind, sinkBid))
						break
					}
				}
			}
		}
	}

	if full {
		b.errors = errs
	}
}

// reaches is a bounded BFS reachability check used by the API-node
// reachability invariant test.
func reaches(g *bidgraph.Graph, from, to ident.Bid) bool {
	if from == to {
		return true
	}
	visited := map[ident.Bid]bool{from: true}
	queue := []ident.Bid{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range g.OutEdges(cur, nil) {
			if e.To == to {
				return true
			}
			if !visited[e.To] {
				visited[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}
	return false
}
