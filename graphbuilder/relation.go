package graphbuilder

import (
	"path"
	"sort"
	"strings"

	"github.com/buildonomy/noet-core/belief"
	"github.com/buildonomy/noet-core/event"
	"github.com/buildonomy/noet-core/ident"
	"github.com/buildonomy/noet-core/weight"
)

// constHrefSelf is the href network's self-half, matching belief.Base's own
// seeding of the reserved href network node (belief/types.go's
// hrefNetworkNode) so the two always agree on its Bid.
type constHrefSelf struct{}

func (constHrefSelf) Next() uint64 { return 1 }

// hrefNetworkBid returns the deterministic Bid belief.New seeds for the
// reserved href network, recomputed here rather than exposed by belief so
// graphbuilder doesn't need a second accessor just for this one constant.
func hrefNetworkBid() ident.Bid {
	return ident.NewInNamespace(ident.HrefNamespace(), constHrefSelf{})
}

// sectionKind is a reusable pointer to weight.Section, for calls that take a
// *weight.Kind filter.
var sectionKind = func() *weight.Kind { k := weight.Section; return &k }()

// regularizeKey resolves a relation's other_key against the owner's
// context: a Path or ID key with no Net set is given the owner's own
// network, and such a Path key that is not absolute is also read as
// relative to the owner's home directory; any other key is returned
// unchanged.
func (gb *GraphBuilder) regularizeKey(key ident.NodeKey, ownerBid ident.Bid) ident.NodeKey {
	if key.Tag != ident.KeyPath && key.Tag != ident.KeyID {
		return key
	}
	if key.Net != 0 {
		return key
	}
	netBid := gb.networkFromStack()
	out := key
	out.Net = netBid.Namespace()
	if key.Tag == ident.KeyPath && !strings.HasPrefix(key.Path, "/") {
		if _, homePath := gb.homePath(ownerBid); homePath != "" {
			out.Path = path.Clean(path.Join(path.Dir(homePath), key.Path))
		}
	}
	return out
}

// homePath returns the (network, path) pair the current document scope
// resolves bid to, scanning every registered network since doc_bb doesn't
// track which network owns which Bid directly.
func (gb *GraphBuilder) homePath(bid ident.Bid) (ident.Bref, string) {
	for _, net := range gb.docBB.Paths().Networks() {
		pm, ok := gb.docBB.Paths().ForNet(net.Namespace())
		if !ok {
			continue
		}
		if p, ok := pm.Path(bid); ok {
			return net.Namespace(), p
		}
	}
	return 0, ""
}

// ensureHrefNode wraps an external href:// URL in an External|Trace node
// under the reserved href network, so it can be addressed like any other
// node (spec.md §4.3 Phase 2, "external-scheme links synthesize a wrapper
// node under the reserved href network on the fly").
func (gb *GraphBuilder) ensureHrefNode(url string) (belief.Node, error) {
	netBid := hrefNetworkBid()
	wrapper := belief.Node{
		Bid:     ident.New(netBid, gb.cfg.rand),
		Kind:    belief.KindExternal | belief.KindTrace,
		ID:      url,
		Payload: map[string]any{},
	}
	toml, err := belief.ToTOML(wrapper)
	if err != nil {
		return belief.Node{}, builderErrorf("ensureHrefNode", ErrMalformedDocument, "%s: %v", url, err)
	}
	gb.docBB.ProcessEvent(event.NewNodeUpdate(
		[]ident.NodeKey{ident.KeyFromID(netBid.Namespace(), url)}, toml, event.Remote))
	w := weight.NewWeight()
	gb.docBB.ProcessEvent(event.NewRelationChange(wrapper.Bid, netBid, weight.Section, &w, event.Remote))
	return wrapper, nil
}

// pushRelation is Phase 2's per-relation step (spec.md §4.3): regularize and
// resolve other_key, install the edge with a sort_key derived from its
// position in the proto's upstream/downstream list, and report an
// UnresolvedReference diagnostic when the target cannot be found anywhere.
func (gb *GraphBuilder) pushRelation(ownerBid ident.Bid, rel RelationSpec, direction Direction, index int) (Diagnostic, error) {
	otherKey := gb.regularizeKey(rel.OtherKey, ownerBid)

	w := weight.NewWeight()
	if rel.Weight != nil {
		w = rel.Weight.Clone()
	}
	w = w.WithSortKey(uint16(index))
	owner := weight.OwnedBySink
	if direction == Outgoing {
		owner = weight.OwnedBySource
	}
	w = w.WithOwnedBy(owner)

	found, src, hit := gb.cacheFetch([]ident.NodeKey{otherKey})
	var otherNode belief.Node
	if hit {
		otherNode = found
		otherNode.Kind = otherNode.Kind.With(belief.KindTrace)
	} else if otherKey.Tag == ident.KeyID && otherKey.Net == ident.HrefNamespace() {
		var err error
		otherNode, err = gb.ensureHrefNode(otherKey.ID)
		if err != nil {
			return nil, err
		}
		src = Generated
	} else {
		homeNet, homePath := gb.homePath(ownerBid)
		return UnresolvedReference{
			OtherKeys: []ident.NodeKey{otherKey},
			SelfBid:   ownerBid,
			SelfNet:   homeNet,
			SelfPath:  homePath,
			Direction: direction,
			Kind:      rel.Kind,
			Index:     index,
		}, nil
	}

	if src != SourceFile {
		toml, err := belief.ToTOML(otherNode)
		if err != nil {
			return nil, builderErrorf("pushRelation", ErrMalformedDocument, "%v: %v", otherKey, err)
		}
		gb.docBB.ProcessEvent(event.NewNodeUpdate([]ident.NodeKey{otherKey}, toml, event.Remote))
	}
	if src == StackCache {
		// Pull the session cache's own substructure for this node into doc_bb
		// so the edge installed below attaches to a node doc_bb recognizes
		// as fully present, not just a bare Trace stub.
		for _, e := range gb.sessionBB.Relations().OutEdges(otherNode.Bid, nil) {
			for kind, kw := range e.Weights {
				kwCopy := kw
				gb.docBB.ProcessEvent(event.NewRelationChange(e.From, e.To, kind, &kwCopy, event.Remote))
			}
		}
	}

	sourceBid, sinkBid := otherNode.Bid, ownerBid
	if direction == Outgoing {
		sourceBid, sinkBid = ownerBid, otherNode.Bid
	}
	gb.docBB.ProcessEvent(event.NewRelationChange(sourceBid, sinkBid, rel.Kind, &w, event.Remote))
	return nil, nil
}

// affectedDocuments is Phase 3 (spec.md §4.3): for every Bid whose key set
// changed this pass, walk outgoing Section edges from it up to its home
// document(s), and return the distinct set of document
// home paths that should be scheduled for reparse (excluding the document
// currently being parsed).
func (gb *GraphBuilder) affectedDocuments(checkSinks map[ident.Bid]struct{}, homePath string) []string {
	seen := map[string]struct{}{}
	var out []string
	for bid := range checkSinks {
		for _, home := range gb.walkToDocumentHomes(bid) {
			if home == "" || home == homePath {
				continue
			}
			if _, ok := seen[home]; ok {
				continue
			}
			seen[home] = struct{}{}
			out = append(out, home)
		}
	}
	sort.Strings(out)
	return out
}

// walkToDocumentHomes follows outgoing Section edges from bid up to every
// reachable document-root home path.
func (gb *GraphBuilder) walkToDocumentHomes(bid ident.Bid) []string {
	var homes []string
	visited := map[ident.Bid]bool{}
	var walk func(ident.Bid)
	walk = func(b ident.Bid) {
		if visited[b] {
			return
		}
		visited[b] = true
		if n, ok := gb.docBB.State(b); ok && n.Kind.Has(belief.KindDocument) {
			if home, ok := gb.docBB.Paths().HomePath(b); ok {
				homes = append(homes, home)
			}
			return
		}
		for _, e := range gb.docBB.Relations().OutEdges(b, sectionKind) {
			walk(e.To)
		}
	}
	walk(bid)
	return homes
}
