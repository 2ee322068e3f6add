// Package graphbuilder implements the per-document reconciliation procedure
// that turns a codec's parsed proto-nodes into BeliefBase events: resolve or
// mint a Bid for each node, wire its declared relations, and diff the
// result against the accumulated session state to produce the minimal event
// sequence a persistence layer needs to replay (spec.md §4.3).
package graphbuilder

import (
	"github.com/sirupsen/logrus"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/buildonomy/noet-core/belief"
	"github.com/buildonomy/noet-core/event"
	"github.com/buildonomy/noet-core/ident"
)

// GraphBuilder drives one parse session: doc_bb holds only the node and
// relation state for the document currently being reconciled, session_bb
// accumulates structural context across every document parsed this session,
// and the stack tracks the §4.3.a parent-from-stack state between pushes.
type GraphBuilder struct {
	cfg       *builderConfig
	docBB     *belief.Base
	sessionBB *belief.Base
	repoRoot  ident.Bid
	stack     []stackFrame
	cache     *lru.Cache[ident.NodeKey, lookupEntry]
	log       *logrus.Entry
}

// New constructs a GraphBuilder with a fresh document scope and session
// scope, applying opts over the defaults.
func New(opts ...Option) *GraphBuilder {
	cfg := newBuilderConfig(opts...)
	return &GraphBuilder{
		cfg:       cfg,
		docBB:     belief.New(),
		sessionBB: belief.New(),
		cache:     newSessionCache(cfg),
		log:       cfg.log.WithField("component", "graphbuilder"),
	}
}

// API returns the API node every Bid this session knows about must reach
// via a Section path.
func (gb *GraphBuilder) API() belief.Node { return gb.docBB.API() }

// Repo returns the Bid of the first root network parsed this session, or
// ident.Nil if none has been established yet.
func (gb *GraphBuilder) Repo() ident.Bid { return gb.repoRoot }

// DocBase exposes the current document-scope BeliefBase, valid only for the
// duration of the ParseContent call that built it.
func (gb *GraphBuilder) DocBase() *belief.Base { return gb.docBB }

// SessionBase exposes the accumulated session-scope BeliefBase.
func (gb *GraphBuilder) SessionBase() *belief.Base { return gb.sessionBB }

// ParseResult is what ParseContent returns: the authoritative event
// sequence a persistence layer should replay, the non-fatal diagnostics
// raised along the way, and the set of other documents that should be
// scheduled for reparse because a node they reference changed identity.
type ParseResult struct {
	Events            []event.Event
	Diagnostics       []Diagnostic
	AffectedDocuments []string
}

// NodeContext is the read-only view a Codec's InjectContext/Finalize hooks
// get into one node's resolved state after Phase 2 (spec.md §4.3 Phase 4,
// §6's "context injection").
type NodeContext struct {
	Node belief.Node
	Path string
}

// Codec is the narrow interface ParseContent needs from a document codec
// for Phase 4: a chance to rewrite a proto-node's payload now that its Bid,
// path, and relations are resolved, and a final cross-node cleanup pass.
// Parsing itself (turning raw bytes into []ProtoNode) is the caller's
// concern, not GraphBuilder's — it happens before ParseContent is called.
type Codec interface {
	// InjectContext offers proto back to the codec with ctx resolved; a
	// true second return means updated should replace proto's node.
	InjectContext(proto ProtoNode, ctx NodeContext) (updated ProtoNode, changed bool)
	// Finalize gives the codec one last chance to emit cross-node updates
	// once every proto-node in the document has been context-injected.
	Finalize() (updated []ProtoNode, changed bool)
}

type pushedNode struct {
	proto ProtoNode
	bid   ident.Bid
}

// ParseContent runs the five-phase reconciliation (spec.md §4.3) for one
// document: ancestors are the already-decoded proto-nodes for every network/
// document config enclosing homePath (root-first; Phase 0), nodes are the
// document's own proto-nodes in encounter order (Phase 1 and 2), and codec,
// if non-nil, gets the Phase 4 context-injection callback.
func (gb *GraphBuilder) ParseContent(homePath string, ancestors, nodes []ProtoNode, codec Codec) (ParseResult, error) {
	if err := gb.initializeStack(homePath, ancestors); err != nil {
		return ParseResult{}, err
	}

	parsedBids := map[ident.Bid]struct{}{}
	checkSinks := map[ident.Bid]struct{}{}
	renames := map[ident.Bid]ident.Bid{}
	var diags []Diagnostic
	var pushed []pushedNode

	// Phase 1: create nodes.
	for _, proto := range nodes {
		if proto.Path == "" {
			return ParseResult{}, builderErrorf("ParseContent", ErrEmptyPath, "heading %d in %s", proto.Heading, homePath)
		}
		bid, _, renamedFrom, err := gb.push(proto)
		if err != nil {
			return ParseResult{}, err
		}
		parsedBids[bid] = struct{}{}
		if !renamedFrom.IsNil() {
			renames[renamedFrom] = bid
			checkSinks[renamedFrom] = struct{}{}
		}
		pushed = append(pushed, pushedNode{proto: proto, bid: bid})
	}

	// Phase 2: process relations.
	for _, pn := range pushed {
		for i, rel := range pn.proto.Upstream {
			d, err := gb.pushRelation(pn.bid, rel, Incoming, i)
			if err != nil {
				return ParseResult{}, err
			}
			if d != nil {
				diags = append(diags, d)
			}
		}
		for i, rel := range pn.proto.Downstream {
			d, err := gb.pushRelation(pn.bid, rel, Outgoing, i)
			if err != nil {
				return ParseResult{}, err
			}
			if d != nil {
				diags = append(diags, d)
			}
		}
	}

	// Phase 3: inform external sinks.
	affected := gb.affectedDocuments(checkSinks, homePath)

	// Phase 4: context injection.
	if codec != nil {
		for _, pn := range pushed {
			n, ok := gb.docBB.State(pn.bid)
			if !ok {
				continue
			}
			path, _ := gb.docBB.Paths().HomePath(pn.bid)
			if updated, changed := codec.InjectContext(pn.proto, NodeContext{Node: n, Path: path}); changed {
				gb.applyCodecUpdate(pn.bid, updated)
			}
		}
		if finals, changed := codec.Finalize(); changed {
			for _, updated := range finals {
				if updated.Bid.IsNil() {
					continue
				}
				gb.applyCodecUpdate(updated.Bid, updated)
			}
		}
	}

	// Phase 5: terminate stack.
	events := gb.terminateStack(renames, parsedBids)

	gb.log.WithFields(logrus.Fields{
		"path": homePath, "nodes": len(nodes), "events": len(events), "diagnostics": len(diags),
	}).Debug("parsed content")

	return ParseResult{Events: events, Diagnostics: diags, AffectedDocuments: affected}, nil
}

// applyCodecUpdate merges a Phase 4 codec rewrite back onto bid's current
// state and re-installs it in doc_bb.
func (gb *GraphBuilder) applyCodecUpdate(bid ident.Bid, updated ProtoNode) {
	n, ok := gb.docBB.State(bid)
	if !ok {
		return
	}
	if updated.Title != "" {
		n.Title = updated.Title
	}
	if updated.Document != nil {
		n.Payload = updated.Document
	}
	toml, err := belief.ToTOML(n)
	if err != nil {
		gb.log.WithError(err).Warn("dropping malformed codec rewrite")
		return
	}
	gb.docBB.ProcessEvent(event.NewNodeUpdate([]ident.NodeKey{ident.KeyFromBid(bid)}, toml, event.Remote))
}
