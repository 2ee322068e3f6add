package belief

import (
	"github.com/buildonomy/noet-core/ident"
	"github.com/buildonomy/noet-core/weight"
)

// ExternalSource is the minimal backing-store surface Balance needs to
// resolve a Bid it only knows about through an edge endpoint.
// source.BeliefSource satisfies this interface by construction (it is
// defined here, rather than imported, so belief does not import source).
type ExternalSource interface {
	EvalUnbalanced(expr Expression) []Node
	EvalTrace(expr Expression, kindFilter *weight.Kind) []Node
}

// BalanceCutoff bounds how many externals-resolution rounds Balance runs
// before giving up and returning whatever it has resolved so far (spec.md
// §4.1.d, "Balancer termination").
const BalanceCutoff = 10

// externals returns every Bid g.Relations references, restricted to edges
// carrying a kind in kinds, that g.States either does not carry at all or
// carries only as Trace — the set the balancer still owes a direct query
// (spec.md §4.1.d).
func externals(g BeliefGraph, kinds []weight.Kind) []ident.Bid {
	kindSet := map[weight.Kind]struct{}{}
	for _, k := range kinds {
		kindSet[k] = struct{}{}
	}
	seen := map[ident.Bid]struct{}{}
	var out []ident.Bid
	add := func(bid ident.Bid) {
		if n, ok := g.States[bid]; ok && n.Complete() {
			return
		}
		if _, ok := seen[bid]; ok {
			return
		}
		seen[bid] = struct{}{}
		out = append(out, bid)
	}
	for _, e := range g.Relations.Edges() {
		relevant := false
		for k := range e.Weights {
			if _, ok := kindSet[k]; ok {
				relevant = true
				break
			}
		}
		if !relevant {
			continue
		}
		add(e.From)
		add(e.To)
	}
	return out
}

// Balance resolves g against src, round by round, until every edge endpoint
// g.Relations references has a complete state or the external set stops
// shrinking. The first round considers externals across every WeightKind
// (so epistemic/pragmatic edges picked up incidentally by the seed query
// get resolved too); every later round restricts the externals search to
// Section, which guarantees the structural spine toward an API node
// eventually balances even when other kinds never fully do. Every round's
// actual fetch is itself Section-only (via EvalTrace), matching the
// original's choice to walk outward one structural layer at a time rather
// than pull a remote peer's entire incident-edge set per round.
func Balance(g BeliefGraph, src ExternalSource) BeliefGraph {
	kinds := weight.AllKinds()
	var lastExternals []ident.Bid
	for round := 0; round < BalanceCutoff; round++ {
		ext := externals(g, kinds)
		if len(ext) == 0 {
			return g
		}
		if round > 0 && sameBidSet(ext, lastExternals) {
			return g
		}
		lastExternals = ext

		sectionOnly := weight.Section
		found := src.EvalTrace(StateIn(StatePred{Bid: ext}), &sectionOnly)
		if len(found) == 0 {
			return g
		}
		for _, n := range found {
			mergeExternal(g, n)
		}
		kinds = []weight.Kind{weight.Section}
	}
	return g
}

// mergeExternal folds a resolved Node into g, leaving an existing complete
// entry untouched.
func mergeExternal(g BeliefGraph, n Node) {
	if existing, ok := g.States[n.Bid]; ok && existing.Complete() {
		return
	}
	g.States[n.Bid] = n
	g.Relations.AddNode(n.Bid)
}

func sameBidSet(a, b []ident.Bid) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[ident.Bid]struct{}, len(a))
	for _, x := range a {
		set[x] = struct{}{}
	}
	for _, x := range b {
		if _, ok := set[x]; !ok {
			return false
		}
	}
	return true
}
