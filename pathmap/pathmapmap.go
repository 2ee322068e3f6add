package pathmap

import (
	"sync"

	"github.com/buildonomy/noet-core/bidgraph"
	"github.com/buildonomy/noet-core/event"
	"github.com/buildonomy/noet-core/ident"
)

// Map is PathMapMap: a collection of PathMaps keyed by each network's Bref,
// plus global network/document/api/title/id indices (spec.md §3). There is
// no asset index.
type Map struct {
	mu   sync.RWMutex
	maps map[ident.Bref]*PathMap

	nets   map[ident.Bid]struct{}
	docs   map[ident.Bid]struct{}
	apis   map[ident.Bid]struct{}
	titles map[ident.Bid]string
	ids    map[ident.Bid]string
}

// NewMap returns an empty PathMapMap.
func NewMap() *Map {
	return &Map{
		maps:   make(map[ident.Bref]*PathMap),
		nets:   make(map[ident.Bid]struct{}),
		docs:   make(map[ident.Bid]struct{}),
		apis:   make(map[ident.Bid]struct{}),
		titles: make(map[ident.Bid]string),
		ids:    make(map[ident.Bid]string),
	}
}

// ForNet returns the PathMap registered for the network whose Namespace is
// net, if any.
func (m *Map) ForNet(net ident.Bref) (*PathMap, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pm, ok := m.maps[net]
	return pm, ok
}

// EnsureNet returns the PathMap for net, creating an empty one if this is
// the first time this network Bid has been seen (spec.md §4.2: "On
// receiving a NodeUpdate for a node whose kind is Network and which it has
// never seen, it creates a new empty PathMap for that Bid").
func (m *Map) EnsureNet(net ident.Bid) *PathMap {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref := net.Namespace()
	pm, ok := m.maps[ref]
	if !ok {
		pm = New(net)
		m.maps[ref] = pm
	}
	m.nets[net] = struct{}{}
	return pm
}

// SetNetwork replaces the PathMap for a network outright (used after a full
// Build, e.g. from BalanceCheck's from-scratch recomputation).
func (m *Map) SetNetwork(pm *PathMap) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maps[pm.Net().Namespace()] = pm
	m.nets[pm.Net()] = struct{}{}
}

// Networks returns every network Bid registered.
func (m *Map) Networks() []ident.Bid {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ident.Bid, 0, len(m.nets))
	for b := range m.nets {
		out = append(out, b)
	}
	return out
}

// Documents returns every document Bid registered.
func (m *Map) Documents() []ident.Bid {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ident.Bid, 0, len(m.docs))
	for b := range m.docs {
		out = append(out, b)
	}
	return out
}

// NoteKind updates the nets/docs/apis membership sets for b given its
// belief.Kind bits, expressed here as three booleans to avoid importing
// belief.
func (m *Map) NoteKind(b ident.Bid, isNetwork, isDocument, isAPI bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if isNetwork {
		m.nets[b] = struct{}{}
	}
	if isDocument {
		m.docs[b] = struct{}{}
	}
	if isAPI {
		m.apis[b] = struct{}{}
	}
}

// NoteTitle records b's title for the global Bid->title index.
func (m *Map) NoteTitle(b ident.Bid, title string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.titles[b] = title
}

// NoteID records b's id for the global Bid->id index.
func (m *Map) NoteID(b ident.Bid, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == "" {
		delete(m.ids, b)
		return
	}
	m.ids[b] = id
}

// Forget removes b from every global index (used on NodesRemoved).
func (m *Map) Forget(b ident.Bid) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.nets, b)
	delete(m.docs, b)
	delete(m.apis, b)
	delete(m.titles, b)
	delete(m.ids, b)
	delete(m.maps, b.Namespace())
}

// Title returns the recorded title for b.
func (m *Map) Title(b ident.Bid) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.titles[b]
	return t, ok
}

// ID returns the recorded id for b.
func (m *Map) ID(b ident.Bid) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.ids[b]
	return id, ok
}

// Dispatch forwards ev to every PathMap it's relevant to, rebuilding each
// from g/lookup as needed, and returns the combined derivative events
// (spec.md §4.2, "PathMapMap dispatches events to each per-network
// PathMap").
func (m *Map) Dispatch(g *bidgraph.Graph, lookup NodeLookup, ev event.Event) []event.Event {
	m.mu.Lock()
	nets := make([]*PathMap, 0, len(m.maps))
	for _, pm := range m.maps {
		nets = append(nets, pm)
	}
	m.mu.Unlock()

	var derivatives []event.Event
	for _, pm := range nets {
		derivatives = append(derivatives, pm.Process(g, lookup, ev)...)
	}
	return derivatives
}

// HomePath returns the path within b's own home network, regardless of
// which PathMap the caller holds — PathMaps chain transparently into
// subnets by simply looking b up in whichever PathMap currently knows it.
func (m *Map) HomePath(b ident.Bid) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, pm := range m.maps {
		if p, ok := pm.Path(b); ok {
			return p, ok
		}
	}
	return "", false
}
