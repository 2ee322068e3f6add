// Package pathmap implements PathMap and PathMapMap: the per-network,
// contiguously-indexed path-address derivation from the Section sub-graph
// (spec.md §4.2).
//
// To avoid an import cycle with belief (which owns a PathMapMap and feeds
// it events), pathmap never imports belief; callers supply a NodeLookup
// closure instead of a *belief.Node.
package pathmap

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/buildonomy/noet-core/bidgraph"
	"github.com/buildonomy/noet-core/event"
	"github.com/buildonomy/noet-core/ident"
	"github.com/buildonomy/noet-core/weight"
)

// NodeView is the minimal projection of a node's state pathmap needs to
// compute terminal path components: its id/title, and whether it is itself
// a network (a subnet, listed but not recursed into) or a section (an
// anchor, nested under the gateway slot when a direct child of a network).
type NodeView struct {
	ID        string
	Title     string
	IsNetwork bool
	IsSection bool
}

// NodeLookup resolves a Bid to its NodeView. ok is false if the base has no
// record of b (the DFS treats that source as absent and skips it).
type NodeLookup func(b ident.Bid) (NodeView, bool)

// Entry is one (path, bid, order) tuple in a PathMap.
type Entry struct {
	Path  string
	Bid   ident.Bid
	Order []uint16
}

// anchorPattern matches runs of characters that are not lowercase
// alphanumerics, for Anchorize.
var anchorPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Anchorize turns an arbitrary title string into a URL-fragment-safe
// identifier: lowercased, with runs of non-alphanumerics collapsed to a
// single hyphen, and leading/trailing hyphens trimmed.
func Anchorize(title string) string {
	lower := strings.ToLower(title)
	slug := anchorPattern.ReplaceAllString(lower, "-")
	return strings.Trim(slug, "-")
}

// PathMap holds, for a single network root, the ordered list of
// (path, bid, order) tuples derived by DFS over the Section sub-graph
// rooted at that network, plus the supporting indices described in
// spec.md §3.
type PathMap struct {
	net     ident.Bid
	entries []Entry

	bidIdx   map[ident.Bid][]int
	pathIdx  map[string]int
	idIdx    map[string]ident.Bid
	titleIdx map[string]ident.Bid

	// backEdges records Section edges that would have introduced a cycle
	// during DFS; they are skipped rather than followed (spec.md §4.2,
	// "Cycles are recorded").
	backEdges []bidgraph.EdgeID
}

// Net returns the network Bid this PathMap was built for.
func (pm *PathMap) Net() ident.Bid { return pm.net }

// New returns an empty PathMap for net, containing only the two canonical
// entries (empty-path document-root anchor, and the index.md gateway).
func New(net ident.Bid) *PathMap {
	pm := &PathMap{net: net, idIdx: map[string]ident.Bid{}, titleIdx: map[string]ident.Bid{}}
	pm.rebuildIndices([]Entry{
		{Path: "", Bid: net, Order: []uint16{}},
		{Path: "index.md", Bid: net, Order: []uint16{weight.GatewaySortKey}},
	})
	return pm
}

// Build constructs a PathMap for net from scratch by reverse DFS over g's
// Section sub-graph: starting at net as sink, it walks sources, resolving
// one or more terminal path components per source via the priority rule in
// spec.md §4.2 (doc_paths, id, anchorized title, sort index, Bref fallback).
func Build(net ident.Bid, g *bidgraph.Graph, lookup NodeLookup) *PathMap {
	b := &builder{
		g:         g,
		lookup:    lookup,
		net:       net,
		usedPaths: map[string]ident.Bid{},
		idIdx:     map[string]ident.Bid{},
		titleIdx:  map[string]ident.Bid{},
	}
	b.entries = append(b.entries,
		Entry{Path: "", Bid: net, Order: []uint16{}},
		Entry{Path: "index.md", Bid: net, Order: []uint16{weight.GatewaySortKey}},
	)
	b.usedPaths[""] = net
	b.usedPaths["index.md"] = net

	onStack := map[ident.Bid]bool{net: true}
	b.walk(net, nil, "index.md", onStack, true)

	pm := &PathMap{net: net, backEdges: b.backEdges}
	pm.rebuildIndices(b.entries)
	pm.idIdx = b.idIdx
	pm.titleIdx = b.titleIdx
	return pm
}

type builder struct {
	g         *bidgraph.Graph
	lookup    NodeLookup
	net       ident.Bid
	entries   []Entry
	usedPaths map[string]ident.Bid
	backEdges []bidgraph.EdgeID
	idIdx     map[string]ident.Bid
	titleIdx  map[string]ident.Bid
}

func (b *builder) walk(sink ident.Bid, sinkOrder []uint16, sinkPath string, onStack map[ident.Bid]bool, atRoot bool) {
	section := weight.Section
	edges := b.g.InEdges(sink, &section)
	for _, e := range edges {
		source := e.From
		if onStack[source] {
			b.backEdges = append(b.backEdges, e.ID)
			continue
		}
		view, ok := b.lookup(source)
		if !ok {
			continue
		}
		w := e.Weights[weight.Section]
		sortKey, _ := w.SortKey()

		var order []uint16
		order = append(order, sinkOrder...)
		if atRoot && view.IsSection {
			order = append(order, weight.GatewaySortKey, sortKey)
		} else {
			order = append(order, sortKey)
		}

		for _, path := range b.candidatePaths(w, view, sortKey, sinkPath, atRoot) {
			if existing, collide := b.usedPaths[path]; collide && existing != source {
				path = "~" + source.Namespace().String()
			}
			b.usedPaths[path] = source
			b.entries = append(b.entries, Entry{Path: path, Bid: source, Order: append([]uint16(nil), order...)})
		}
		if view.ID != "" {
			b.idIdx[view.ID] = source
		}
		if view.IsSection && view.Title != "" {
			b.titleIdx[Anchorize(view.Title)] = source
		}

		if view.IsNetwork && source != b.net {
			continue // subnets are listed but never recursed into
		}

		nextPath := sinkPath
		if len(b.bestPath(source)) > 0 {
			nextPath = b.bestPath(source)
		}
		onStack[source] = true
		b.walk(source, order, nextPath, onStack, false)
		delete(onStack, source)
	}
}

// bestPath returns the most recently assigned path for source, used as the
// DFS continuation point for its own children.
func (b *builder) bestPath(source ident.Bid) string {
	for i := len(b.entries) - 1; i >= 0; i-- {
		if b.entries[i].Bid == source {
			return b.entries[i].Path
		}
	}
	return ""
}

// candidatePaths computes the terminal path component(s) for source
// relative to sink, honoring doc_paths (possibly plural), id, anchorized
// title (sections only), and a last-resort stringified sort index.
func (b *builder) candidatePaths(w weight.Weight, view NodeView, sortKey uint16, sinkPath string, atRoot bool) []string {
	var components []string
	if dp := w.DocPaths(); len(dp) > 0 {
		components = dp
	} else if view.ID != "" {
		components = []string{view.ID}
	} else if view.IsSection && view.Title != "" {
		components = []string{Anchorize(view.Title)}
	} else {
		components = []string{strconv.Itoa(int(sortKey))}
	}

	out := make([]string, 0, len(components))
	for _, c := range components {
		if view.IsSection {
			out = append(out, joinAnchor(sinkPath, c))
		} else if atRoot {
			out = append(out, c)
		} else {
			out = append(out, sinkPath+"/"+c)
		}
	}
	return out
}

// joinAnchor appends an anchor component to a document path, using '#' for
// the first level of nesting and '-' for deeper subsection nesting so
// fragments stay flat and unique within a document.
func joinAnchor(path, component string) string {
	if strings.Contains(path, "#") {
		return path + "-" + component
	}
	return path + "#" + component
}

// rebuildIndices stable-sorts entries by (order, bid) and rebuilds the
// bid/path/id/title supporting indices from scratch (spec.md §4.2).
func (pm *PathMap) rebuildIndices(entries []Entry) {
	sorted := append([]Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		c := compareOrder(sorted[i].Order, sorted[j].Order)
		if c != 0 {
			return c < 0
		}
		return sorted[i].Bid.String() < sorted[j].Bid.String()
	})

	pm.entries = sorted
	pm.bidIdx = make(map[ident.Bid][]int, len(sorted))
	pm.pathIdx = make(map[string]int, len(sorted))
	for i, e := range sorted {
		pm.bidIdx[e.Bid] = append(pm.bidIdx[e.Bid], i)
		pm.pathIdx[e.Path] = i
	}
}

func compareOrder(a, b []uint16) int {
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

// Path returns the canonical (first) path entry for b, if any.
func (pm *PathMap) Path(b ident.Bid) (string, bool) {
	idxs, ok := pm.bidIdx[b]
	if !ok || len(idxs) == 0 {
		return "", false
	}
	return pm.entries[idxs[0]].Path, true
}

// AllPathsForBid returns every path entry for b (there may be several when
// doc_paths names more than one alias).
func (pm *PathMap) AllPathsForBid(b ident.Bid) []string {
	idxs := pm.bidIdx[b]
	out := make([]string, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, pm.entries[i].Path)
	}
	return out
}

// Get resolves a path to its Bid.
func (pm *PathMap) Get(path string) (ident.Bid, bool) {
	i, ok := pm.pathIdx[path]
	if !ok {
		return ident.Nil, false
	}
	return pm.entries[i].Bid, true
}

// GetFromID resolves an explicit node id to its Bid.
func (pm *PathMap) GetFromID(id string) (ident.Bid, bool) {
	b, ok := pm.idIdx[id]
	return b, ok
}

// GetFromTitle resolves an anchorized title to its Bid. re is matched
// against every indexed anchor; the first match (in entry order) wins.
func (pm *PathMap) GetFromTitle(re *regexp.Regexp) (ident.Bid, bool) {
	for _, e := range pm.entries {
		if anchor, ok := pm.anchorFor(e.Bid); ok && re.MatchString(anchor) {
			return e.Bid, true
		}
	}
	return ident.Nil, false
}

func (pm *PathMap) anchorFor(b ident.Bid) (string, bool) {
	for anchor, bid := range pm.titleIdx {
		if bid == b {
			return anchor, true
		}
	}
	return "", false
}

// IndexedPath returns the full Entry (path, bid, order) for b's canonical
// entry.
func (pm *PathMap) IndexedPath(b ident.Bid) (Entry, bool) {
	idxs, ok := pm.bidIdx[b]
	if !ok || len(idxs) == 0 {
		return Entry{}, false
	}
	return pm.entries[idxs[0]], true
}

// AllPaths returns every path string in the map, in order.
func (pm *PathMap) AllPaths() []string {
	out := make([]string, len(pm.entries))
	for i, e := range pm.entries {
		out[i] = e.Path
	}
	return out
}

// AllPathsWithBids returns every (path, bid) pair in the map, in order.
func (pm *PathMap) AllPathsWithBids() []Entry {
	return append([]Entry(nil), pm.entries...)
}

// BackEdges returns the Section edges that were skipped as cycle-forming
// during the most recent Build.
func (pm *PathMap) BackEdges() []bidgraph.EdgeID {
	return append([]bidgraph.EdgeID(nil), pm.backEdges...)
}

// Process consumes NodeRenamed, RelationUpdate, and RelationRemoved events
// (spec.md §4.2); every other event type is a no-op and returns nil.
//
// Rather than patch entries in place, Process recomputes the whole network
// from g/lookup and diffs the result against the prior entry set to produce
// PathAdded/PathUpdate/PathsRemoved derivatives. g and lookup must already
// reflect the post-event state. This keeps the incremental-update surface
// correct by construction (it's just Build plus a diff) at the cost of
// doing full-network work per event; for the per-document reconciliation
// sizes this package is built for, that cost is negligible next to parsing.
func (pm *PathMap) Process(g *bidgraph.Graph, lookup NodeLookup, ev event.Event) []event.Event {
	switch ev.(type) {
	case event.NodeRenamed, event.RelationUpdate, event.RelationRemoved:
	default:
		return nil
	}

	old := pm.entries
	fresh := Build(pm.net, g, lookup)
	derivatives := diffEntries(pm.net, old, fresh.entries)

	pm.entries = fresh.entries
	pm.bidIdx = fresh.bidIdx
	pm.pathIdx = fresh.pathIdx
	pm.idIdx = fresh.idIdx
	pm.titleIdx = fresh.titleIdx
	pm.backEdges = fresh.backEdges

	return derivatives
}

// diffEntries compares an old and new entry set by path key and emits the
// PathAdded/PathUpdate/PathsRemoved events that explain the difference.
func diffEntries(net ident.Bid, old, fresh []Entry) []event.Event {
	oldByPath := make(map[string]Entry, len(old))
	for _, e := range old {
		oldByPath[e.Path] = e
	}
	newByPath := make(map[string]Entry, len(fresh))
	for _, e := range fresh {
		newByPath[e.Path] = e
	}

	var derivatives []event.Event
	var removed []string
	for path, oe := range oldByPath {
		ne, ok := newByPath[path]
		if !ok {
			removed = append(removed, path)
			continue
		}
		if !equalOrder(oe.Order, ne.Order) || oe.Bid != ne.Bid {
			derivatives = append(derivatives, event.PathUpdate{
				Net: net.Namespace(), Path: path, Bid: ne.Bid, Order: ne.Order,
			}.WithOrigin(event.Local).(event.PathUpdate))
		}
	}
	for path, ne := range newByPath {
		if _, ok := oldByPath[path]; !ok {
			derivatives = append(derivatives, event.PathAdded{
				Net: net.Namespace(), Path: path, Bid: ne.Bid, Order: ne.Order,
			}.WithOrigin(event.Local).(event.PathAdded))
		}
	}
	if len(removed) > 0 {
		sort.Strings(removed)
		derivatives = append(derivatives, event.PathsRemoved{
			Net: net.Namespace(), Paths: removed,
		}.WithOrigin(event.Local).(event.PathsRemoved))
	}

	return derivatives
}

func equalOrder(a, b []uint16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// SpeculativePath computes what the path for a not-yet-created node would
// be, given an assumed parent path and title/id, with full collision
// detection against current siblings (spec.md §4.2, used by GraphBuilder
// phase 1 to produce deterministic pre-Bid lookups).
func (pm *PathMap) SpeculativePath(parentPath, id, title string, sortKey uint16) string {
	var component string
	switch {
	case id != "":
		component = id
	case title != "":
		component = Anchorize(title)
	default:
		component = strconv.Itoa(int(sortKey))
	}

	path := joinAnchor(parentPath, component)
	if _, collide := pm.pathIdx[path]; collide {
		path = joinAnchor(parentPath, component+"-"+strconv.Itoa(int(sortKey)))
	}
	return path
}
