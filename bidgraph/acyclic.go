package bidgraph

import "github.com/buildonomy/noet-core/ident"

// visit state for cycle detection, the standard White/Gray/Black DFS scheme.
const (
	white = 0
	gray  = 1
	black = 2
)

// IsAcyclic reports whether g, taken as a directed graph, contains no cycle.
// spec.md §3 requires this to hold for each single-WeightKind projection;
// callers typically run this against Graph.Projection's result.
func (g *Graph) IsAcyclic() bool {
	ok, _ := g.FindCycle()
	return ok
}

// FindCycle returns (true, nil) if g is acyclic, or (false, cycle) naming
// one cycle (as the sequence of Bids visited, closing back on the first)
// if one exists.
func (g *Graph) FindCycle() (bool, []ident.Bid) {
	state := make(map[ident.Bid]int)
	var path []ident.Bid

	var visit func(b ident.Bid) []ident.Bid
	visit = func(b ident.Bid) []ident.Bid {
		state[b] = gray
		path = append(path, b)
		for _, e := range g.OutEdges(b, nil) {
			switch state[e.To] {
			case white:
				if cyc := visit(e.To); cyc != nil {
					return cyc
				}
			case gray:
				idx := indexOfBid(path, e.To)
				cyc := append([]ident.Bid(nil), path[idx:]...)
				return append(cyc, e.To)
			}
		}
		path = path[:len(path)-1]
		state[b] = black
		return nil
	}

	for _, b := range g.Nodes() {
		if state[b] == white {
			if cyc := visit(b); cyc != nil {
				return false, cyc
			}
		}
	}
	return true, nil
}

func indexOfBid(path []ident.Bid, b ident.Bid) int {
	for i, p := range path {
		if p == b {
			return i
		}
	}
	return -1
}
