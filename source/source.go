// Package source defines BeliefSource, the contract a GraphBuilder uses to
// consult a persistent or remote belief store for nodes this parse session
// has not itself produced (spec.md §4.5).
package source

import (
	"github.com/buildonomy/noet-core/belief"
	"github.com/buildonomy/noet-core/ident"
	"github.com/buildonomy/noet-core/weight"
)

// BeliefSource is the external backing store a GraphBuilder falls back to
// when a key is not present in the current document or session scope.
// Implementations may be a persisted BeliefBase, a networked peer, or (for
// tests) a bare wrapper over an in-memory *belief.Base.
type BeliefSource interface {
	// EvalUnbalanced evaluates expr against the store without attempting to
	// pull in the surrounding structure of any match (spec.md "eval_unbalanced").
	EvalUnbalanced(expr belief.Expression) []belief.Node

	// EvalTrace evaluates expr with the relations consulted restricted to
	// kindFilter when non-nil, and returns the resulting nodes (spec.md
	// "eval_trace"). The incident edges themselves are not returned.
	EvalTrace(expr belief.Expression, kindFilter *weight.Kind) []belief.Node

	// NetworkPaths lists every network root path known to the store.
	NetworkPaths(net ident.Bref) []string

	// DocumentPaths lists every document path within net known to the store.
	DocumentPaths(net ident.Bref) []string

	// ExportBeliefGraph returns a full snapshot of the store's belief graph.
	ExportBeliefGraph() *belief.Base
}

// Lookup is a convenience used by GraphBuilder's cache-fetch step: it
// resolves a single NodeKey against src and returns the first match, if any.
func Lookup(src BeliefSource, key ident.NodeKey) (belief.Node, bool) {
	if src == nil {
		return belief.Node{}, false
	}
	nodes := src.EvalUnbalanced(belief.FromKey(key))
	if len(nodes) == 0 {
		return belief.Node{}, false
	}
	return nodes[0], true
}

// BaseSource adapts a plain *belief.Base into a BeliefSource, the shape used
// in tests and for a single-process deployment with no remote peer.
type BaseSource struct {
	Base *belief.Base
}

// NewBaseSource wraps b as a BeliefSource.
func NewBaseSource(b *belief.Base) *BaseSource { return &BaseSource{Base: b} }

func (s *BaseSource) EvalUnbalanced(expr belief.Expression) []belief.Node {
	return s.Base.EvaluateNodes(expr)
}

// EvalTrace marks every directly-matched state Trace and restricts the
// relations consulted to kindFilter, per belief.Base.EvaluateTrace.
func (s *BaseSource) EvalTrace(expr belief.Expression, kindFilter *weight.Kind) []belief.Node {
	g := s.Base.EvaluateTrace(expr, kindFilter)
	out := make([]belief.Node, 0, len(g.States))
	for _, n := range g.States {
		out = append(out, n)
	}
	return out
}

func (s *BaseSource) NetworkPaths(net ident.Bref) []string {
	pm, ok := s.Base.Paths().ForNet(net)
	if !ok {
		return nil
	}
	return pm.AllPaths()
}

func (s *BaseSource) DocumentPaths(net ident.Bref) []string {
	return s.NetworkPaths(net)
}

func (s *BaseSource) ExportBeliefGraph() *belief.Base { return s.Base }
