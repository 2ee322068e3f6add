package graphbuilder

import (
	"github.com/sirupsen/logrus"

	"github.com/buildonomy/noet-core/belief"
	"github.com/buildonomy/noet-core/event"
	"github.com/buildonomy/noet-core/ident"
	"github.com/buildonomy/noet-core/weight"
)

// nodeKeys builds the NodeKey list a node can currently be found or
// addressed by: Bid (if assigned), (net, id) (if ID is set), and (net,
// path) (if a path is known).
func nodeKeys(n belief.Node, net ident.Bref, path string) []ident.NodeKey {
	var keys []ident.NodeKey
	if !n.Bid.IsNil() {
		keys = append(keys, ident.KeyFromBid(n.Bid))
	}
	if n.ID != "" {
		keys = append(keys, ident.KeyFromID(net, n.ID))
	}
	if path != "" {
		keys = append(keys, ident.KeyFromPath(net, path))
	}
	return keys
}

// mergeNode folds parsed onto found: parsed is the source of truth for
// title, schema, id, and payload (the document currently being parsed is
// what the author actually wrote), while found's Bid is kept unless parsed
// pins an explicit one (callers overwrite found.Bid before calling merge in
// that case). Kind is unioned rather than replaced, since a cached node may
// carry Trace or External bits the freshly parsed content doesn't know to
// repeat.
func mergeNode(found, parsed belief.Node) belief.Node {
	out := found
	out.Bid = parsed.Bid
	out.Kind = found.Kind.With(parsed.Kind)
	if parsed.Title != "" {
		out.Title = parsed.Title
	}
	if parsed.Schema != "" {
		out.Schema = parsed.Schema
	}
	if parsed.ID != "" {
		out.ID = parsed.ID
	}
	if len(parsed.Payload) > 0 {
		merged := make(map[string]any, len(found.Payload)+len(parsed.Payload))
		for k, v := range found.Payload {
			merged[k] = v
		}
		for k, v := range parsed.Payload {
			merged[k] = v
		}
		out.Payload = merged
	}
	return out
}

// push is Phase 1's per-proto-node step (spec.md §4.3): resolve a parent via
// the stack, consult doc_bb -> session cache -> the external source in turn
// for an existing node at any of the proto's keys, adopt or generate a Bid,
// and install the node plus its Section edge to its parent. It returns the
// resolved Bid, where it came from, and — if the proto's explicit Bid
// overrode a cache hit's Bid — the displaced old Bid, so the caller can
// track it as a rename needing Phase 3 notification.
func (gb *GraphBuilder) push(proto ProtoNode) (ident.Bid, NodeSource, ident.Bid, error) {
	parentBid, pathInfo := gb.parentFromStack(proto)

	payload := proto.Document
	if payload == nil {
		payload = map[string]any{}
	}
	parsedNode := belief.Node{
		Bid: proto.Bid, Kind: proto.Kind, Title: proto.Title,
		Schema: proto.Schema, ID: proto.ID, Payload: payload,
	}

	var keys []ident.NodeKey
	if proto.Heading > 2 && proto.Bid.IsNil() {
		netBid := gb.networkFromStack()
		pm := gb.docBB.Paths().EnsureNet(netBid)
		parentPath, _ := pm.Path(parentBid)
		spec := pm.SpeculativePath(parentPath, proto.ID, proto.Title, 0)
		keys = []ident.NodeKey{ident.KeyFromPath(netBid.Namespace(), spec)}
	} else {
		netBid := gb.networkFromStack()
		keys = nodeKeys(parsedNode, netBid.Namespace(), proto.Path)
	}

	found, src, hit := gb.cacheFetch(keys)
	var node belief.Node
	var renamedFrom ident.Bid
	if hit {
		if !proto.Bid.IsNil() && proto.Bid != found.Bid {
			renamedFrom = found.Bid
			src = Merged
			found.Bid = proto.Bid
		}
		parsedNode.Bid = found.Bid
		node = mergeNode(found, parsedNode)
	} else if !proto.Bid.IsNil() {
		node = parsedNode
		src = SourceFile
	} else {
		parsedNode.Bid = ident.New(parentBid, gb.cfg.rand)
		node = parsedNode
		src = Generated
	}
	bid := node.Bid

	// The content being parsed now is authoritative for everything it sinks;
	// drop whatever this node previously sank so Phase 2 rebuilds it fresh.
	for _, e := range gb.docBB.Relations().InEdges(bid, nil) {
		gb.docBB.ProcessEvent(event.NewRelationRemoved(e.From, bid, event.Remote))
	}

	toml, err := belief.ToTOML(node)
	if err != nil {
		return ident.Nil, Generated, ident.Nil, builderErrorf("push", ErrMalformedDocument, "%s: %v", proto.Path, err)
	}
	gb.docBB.ProcessEvent(event.NewNodeUpdate(keys, toml, event.Remote))

	w := weight.NewWeight()
	if pathInfo != "" {
		w = w.Clone()
		w[weight.KeyDocPaths] = []string{pathInfo}
	}
	owner := weight.OwnedBySink
	if parentBid == gb.docBB.API().Bid {
		owner = weight.OwnedBySource
	}
	w = w.WithOwnedBy(owner)
	gb.docBB.ProcessEvent(event.NewRelationChange(bid, parentBid, weight.Section, &w, event.Remote))

	gb.stack = append(gb.stack, stackFrame{bid: bid, path: proto.Path, heading: proto.Heading})

	if node.Kind.Has(belief.KindNetwork) {
		if gb.repoRoot.IsNil() && parentBid == gb.docBB.API().Bid {
			gb.log.WithFields(logrus.Fields{"bid": bid.String()}).Debug("repo root established")
			gb.repoRoot = bid
		}
		if parentBid != gb.docBB.API().Bid {
			apiW := weight.NewWeight().WithOwnedBy(weight.OwnedBySource)
			gb.docBB.ProcessEvent(event.NewRelationChange(bid, gb.docBB.API().Bid, weight.Section, &apiW, event.Remote))
		}
	}

	return bid, src, renamedFrom, nil
}
