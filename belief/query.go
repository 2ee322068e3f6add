package belief

import (
	"regexp"

	"github.com/buildonomy/noet-core/bidgraph"
	"github.com/buildonomy/noet-core/ident"
	"github.com/buildonomy/noet-core/weight"
)

// StatePred is a predicate over a single Node, used by Expression.StateIn /
// Expression.StateNotIn (spec.md §4.1.c).
type StatePred struct {
	// Exactly one of the following selectors should be set; zero value means
	// "unset" for that selector. Any, when true, matches every node.
	Any         bool
	InNamespace []ident.Bref
	Bid         []ident.Bid
	Bref        []ident.Bref
	Schema      string
	ID          []string
	Kind        Kind
	Net         ident.Bref
	Path        string
	Title       *regexp.Regexp
	PayloadKey  string
	PayloadVal  *regexp.Regexp
}

// Match reports whether n satisfies p, resolving n's path via paths when the
// predicate needs it (NetPath, Title).
func (p StatePred) Match(n Node, paths *pathmapLookup) bool {
	switch {
	case p.Any:
		return true
	case p.InNamespace != nil:
		return containsBref(p.InNamespace, n.Bid.ParentNamespace())
	case p.Bid != nil:
		return containsBid(p.Bid, n.Bid)
	case p.Bref != nil:
		return containsBref(p.Bref, n.Bid.Namespace())
	case p.Schema != "":
		return n.Schema == p.Schema
	case p.ID != nil:
		for _, id := range p.ID {
			if id == n.ID {
				return true
			}
		}
		return false
	case p.Kind != 0:
		return n.Kind.Has(p.Kind)
	case p.Path != "" && paths != nil:
		path, ok := paths.pathFor(p.Net, n.Bid)
		return ok && path == p.Path
	case p.Title != nil && paths != nil:
		anchor, ok := paths.anchorFor(p.Net, n.Bid)
		return ok && p.Title.MatchString(anchor)
	case p.PayloadKey != "":
		v, ok := n.Payload[p.PayloadKey]
		if !ok {
			return false
		}
		s, ok := v.(string)
		return ok && p.PayloadVal != nil && p.PayloadVal.MatchString(s)
	default:
		return false
	}
}

func containsBid(set []ident.Bid, b ident.Bid) bool {
	for _, s := range set {
		if s == b {
			return true
		}
	}
	return false
}

func containsBref(set []ident.Bref, b ident.Bref) bool {
	for _, s := range set {
		if s == b {
			return true
		}
	}
	return false
}

// pathmapLookup narrows *Base to just the path-lookup surface StatePred
// needs, keeping query.go decoupled from Base's locking.
type pathmapLookup struct{ b *Base }

func (p *pathmapLookup) pathFor(net ident.Bref, bid ident.Bid) (string, bool) {
	pm, ok := p.b.paths.ForNet(net)
	if !ok {
		return "", false
	}
	return pm.Path(bid)
}

func (p *pathmapLookup) anchorFor(net ident.Bref, bid ident.Bid) (string, bool) {
	pm, ok := p.b.paths.ForNet(net)
	if !ok {
		return "", false
	}
	path, ok := pm.Path(bid)
	if !ok {
		return "", false
	}
	return Anchor(path), true
}

// Anchor extracts the fragment (post-'#') component of a path, or "" if the
// path has none.
func Anchor(path string) string {
	for i := 0; i < len(path); i++ {
		if path[i] == '#' {
			return path[i+1:]
		}
	}
	return ""
}

// RelationPred is a predicate over a single graph edge, used by
// Expression.RelationIn / Expression.RelationNotIn.
type RelationPred struct {
	Any      bool
	SinkIn   []ident.Bid
	SourceIn []ident.Bid
	NodeIn   []ident.Bid
	Kind     *weight.Kind
}

func (p RelationPred) match(source, sink ident.Bid, ws weight.Set) bool {
	switch {
	case p.Any:
		return true
	case p.SinkIn != nil:
		return containsBid(p.SinkIn, sink)
	case p.SourceIn != nil:
		return containsBid(p.SourceIn, source)
	case p.NodeIn != nil:
		return containsBid(p.NodeIn, source) || containsBid(p.NodeIn, sink)
	case p.Kind != nil:
		_, ok := ws[*p.Kind]
		return ok
	default:
		return false
	}
}

// SetOp names the boolean combinator a Dyad expression applies to its two
// sub-results.
type SetOp uint8

const (
	Union SetOp = iota
	Intersection
	Difference
	SymmetricDifference
)

// Expression is the query/set-algebra AST evaluated by Base.Evaluate
// (spec.md §4.1.c): StateIn/StateNotIn select nodes directly; RelationIn/
// RelationNotIn select nodes incident to a matching edge; Dyad recursively
// combines two sub-expressions' Bid sets via a SetOp.
type Expression struct {
	stateIn, stateNotIn       *StatePred
	relationIn, relationNotIn *RelationPred
	lhs, rhs                  *Expression
	op                        SetOp
	isDyad                    bool
}

// StateIn builds a leaf expression selecting every node that matches p.
func StateIn(p StatePred) Expression { return Expression{stateIn: &p} }

// StateNotIn builds a leaf expression selecting every node that does not
// match p.
func StateNotIn(p StatePred) Expression { return Expression{stateNotIn: &p} }

// RelationIn builds a leaf expression selecting every node incident to an
// edge matching p.
func RelationIn(p RelationPred) Expression { return Expression{relationIn: &p} }

// RelationNotIn builds a leaf expression selecting both endpoints of every
// edge that does NOT match p. A node incident to both a matching and a
// non-matching edge is still selected.
func RelationNotIn(p RelationPred) Expression { return Expression{relationNotIn: &p} }

// Dyad combines lhs and rhs's evaluated Bid sets via op.
func Dyad(lhs Expression, op SetOp, rhs Expression) Expression {
	return Expression{lhs: &lhs, rhs: &rhs, op: op, isDyad: true}
}

// FromKey builds the canonical single-field lookup expression for key
// (spec.md §4.1.c, "NodeKey -> Expression").
func FromKey(key ident.NodeKey) Expression {
	switch key.Tag {
	case ident.KeyBid:
		return StateIn(StatePred{Bid: []ident.Bid{key.Bid}})
	case ident.KeyBref:
		return StateIn(StatePred{Bref: []ident.Bref{key.Bref}})
	case ident.KeyID:
		return StateIn(StatePred{ID: []string{key.ID}})
	case ident.KeyPath:
		return StateIn(StatePred{Net: key.Net, Path: key.Path})
	default:
		return StateIn(StatePred{})
	}
}

// BeliefGraph is the result of evaluating an Expression: the matched states
// plus the subset of Relations that connect them. A state pulled in only to
// keep an edge's other endpoint resolvable — not itself selected by the
// query — carries KindTrace, so Node.Complete() reports false for it
// (spec.md §4.1.c, "Trace coloring").
type BeliefGraph struct {
	States    map[ident.Bid]Node
	Relations *bidgraph.Graph
}

func newBeliefGraph() BeliefGraph {
	return BeliefGraph{States: map[ident.Bid]Node{}, Relations: bidgraph.New()}
}

// NewBeliefGraph returns an empty BeliefGraph, for callers (e.g. Balance's
// seed set) that need to build one outside of Evaluate.
func NewBeliefGraph() BeliefGraph { return newBeliefGraph() }

// addComplete records n as directly selected, clearing any Trace flag.
func (g BeliefGraph) addComplete(n Node) {
	n.Kind = n.Kind.Without(KindTrace)
	g.States[n.Bid] = n
	g.Relations.AddNode(n.Bid)
}

// addTrace records bid as Trace, unless a complete entry already covers it.
// No-op if b has no state for bid.
func (g BeliefGraph) addTrace(b *Base, bid ident.Bid) {
	if existing, ok := g.States[bid]; ok && existing.Complete() {
		return
	}
	if n, ok := b.states[bid]; ok {
		n.Kind = n.Kind.With(KindTrace)
		g.States[bid] = n
		g.Relations.AddNode(bid)
	}
}

// projectRelations adds every edge of b.relations with at least one
// endpoint already selected in g, pulling in the other endpoint as Trace
// when it wasn't itself selected (spec.md §4.1.c, StateIn/StateNotIn step).
func (b *Base) projectRelations(g BeliefGraph) {
	for _, e := range b.relations.Edges() {
		_, fromSel := g.States[e.From]
		_, toSel := g.States[e.To]
		if !fromSel && !toSel {
			continue
		}
		g.addTrace(b, e.From)
		g.addTrace(b, e.To)
		g.Relations.AddEdge(e.From, e.To, e.Weights)
	}
}

// Evaluate runs expr against b, returning the matched BeliefGraph.
func (b *Base) Evaluate(expr Expression) BeliefGraph {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.evaluateLocked(expr)
}

func (b *Base) evaluateLocked(expr Expression) BeliefGraph {
	if expr.isDyad {
		left := b.evaluateLocked(*expr.lhs)
		right := b.evaluateLocked(*expr.rhs)
		return b.combine(left, right, expr.op)
	}

	g := newBeliefGraph()
	pl := &pathmapLookup{b: b}

	switch {
	case expr.stateIn != nil:
		for _, n := range b.states {
			if expr.stateIn.Match(n, pl) {
				g.addComplete(n)
			}
		}
		b.projectRelations(g)
	case expr.stateNotIn != nil:
		for _, n := range b.states {
			if !expr.stateNotIn.Match(n, pl) {
				g.addComplete(n)
			}
		}
		b.projectRelations(g)
	case expr.relationIn != nil:
		for _, e := range b.relations.Edges() {
			if expr.relationIn.match(e.From, e.To, e.Weights) {
				g.addTrace(b, e.From)
				g.addTrace(b, e.To)
				g.Relations.AddEdge(e.From, e.To, e.Weights)
			}
		}
	case expr.relationNotIn != nil:
		for _, e := range b.relations.Edges() {
			if !expr.relationNotIn.match(e.From, e.To, e.Weights) {
				g.addTrace(b, e.From)
				g.addTrace(b, e.To)
				g.Relations.AddEdge(e.From, e.To, e.Weights)
			}
		}
	}
	return g
}

// EvaluateTrace runs expr as Evaluate does, but marks every directly-matched
// StateIn/StateNotIn state Trace (rather than complete) and restricts the
// relations pulled in to edges carrying kindFilter (every kind, if nil)
// sourced from those states. RelationIn/RelationNotIn fall back to the
// ordinary evaluation, which already marks their matches Trace. Used by
// Balance to avoid pulling in more of the graph than an externals search
// needs (spec.md §4.1.c, "eval_trace"; §4.1.d).
func (b *Base) EvaluateTrace(expr Expression, kindFilter *weight.Kind) BeliefGraph {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.evaluateTraceLocked(expr, kindFilter)
}

func (b *Base) evaluateTraceLocked(expr Expression, kindFilter *weight.Kind) BeliefGraph {
	if expr.isDyad {
		left := b.evaluateTraceLocked(*expr.lhs, kindFilter)
		right := b.evaluateTraceLocked(*expr.rhs, kindFilter)
		return b.combine(left, right, expr.op)
	}
	if expr.relationIn != nil || expr.relationNotIn != nil {
		return b.evaluateLocked(expr)
	}

	g := newBeliefGraph()
	pl := &pathmapLookup{b: b}
	matches := func(n Node) bool {
		if expr.stateIn != nil {
			return expr.stateIn.Match(n, pl)
		}
		return !expr.stateNotIn.Match(n, pl)
	}
	for _, n := range b.states {
		if matches(n) {
			n.Kind = n.Kind.With(KindTrace)
			g.States[n.Bid] = n
			g.Relations.AddNode(n.Bid)
		}
	}
	for _, e := range b.relations.Edges() {
		if _, ok := g.States[e.From]; !ok {
			continue
		}
		if kindFilter != nil {
			if _, ok := e.Weights[*kindFilter]; !ok {
				continue
			}
		}
		g.addTrace(b, e.To)
		g.Relations.AddEdge(e.From, e.To, e.Weights)
	}
	return g
}

// combine applies op to left and right's complete (non-Trace) state sets —
// Intersection/Difference/SymmetricDifference ignore Trace-only entries for
// membership, matching spec.md §4.1.c — then re-attaches every edge of
// either side's Relations whose endpoints both survived the op. This
// simplifies the original's full bidirectional-reachability expansion
// (which can pull a node back in across an Intersection/Difference purely
// because it is still reachable) to edges between states the op already
// kept; DESIGN.md records the tradeoff.
func (b *Base) combine(left, right BeliefGraph, op SetOp) BeliefGraph {
	out := newBeliefGraph()
	switch op {
	case Union:
		for bid, n := range left.States {
			out.States[bid] = n
			out.Relations.AddNode(bid)
		}
		for bid, n := range right.States {
			if existing, ok := out.States[bid]; ok {
				if existing.Complete() || !n.Complete() {
					continue
				}
			}
			out.States[bid] = n
			out.Relations.AddNode(bid)
		}
	case Intersection:
		for bid, n := range left.States {
			if !n.Complete() {
				continue
			}
			if rn, ok := right.States[bid]; ok && rn.Complete() {
				out.States[bid] = n
				out.Relations.AddNode(bid)
			}
		}
	case Difference:
		for bid, n := range left.States {
			if !n.Complete() {
				continue
			}
			if rn, ok := right.States[bid]; ok && rn.Complete() {
				continue
			}
			out.States[bid] = n
			out.Relations.AddNode(bid)
		}
	case SymmetricDifference:
		for bid, n := range left.States {
			if !n.Complete() {
				continue
			}
			if rn, ok := right.States[bid]; ok && rn.Complete() {
				continue
			}
			out.States[bid] = n
			out.Relations.AddNode(bid)
		}
		for bid, n := range right.States {
			if !n.Complete() {
				continue
			}
			if ln, ok := left.States[bid]; ok && ln.Complete() {
				continue
			}
			out.States[bid] = n
			out.Relations.AddNode(bid)
		}
	}
	mergeRelations(out, left)
	mergeRelations(out, right)
	return out
}

// mergeRelations copies every edge of src.Relations whose endpoints are both
// already present in out's combined state set.
func mergeRelations(out, src BeliefGraph) {
	for _, e := range src.Relations.Edges() {
		_, fromOK := out.States[e.From]
		_, toOK := out.States[e.To]
		if !fromOK || !toOK {
			continue
		}
		out.Relations.AddEdge(e.From, e.To, e.Weights)
	}
}

// EvaluateNodes is Evaluate plus a resolve-to-Node pass, for callers that
// want only the directly-matched (complete) nodes rather than the full
// BeliefGraph.
func (b *Base) EvaluateNodes(expr Expression) []Node {
	g := b.Evaluate(expr)
	out := make([]Node, 0, len(g.States))
	for _, n := range g.States {
		if n.Complete() {
			out = append(out, n)
		}
	}
	return out
}
