package graphbuilder

import (
	"github.com/buildonomy/noet-core/belief"
	"github.com/buildonomy/noet-core/event"
	"github.com/buildonomy/noet-core/ident"
)

// terminateStack is Phase 5 (spec.md §4.3): apply discovered renames to
// session_bb, diff session_bb against the freshly built doc_bb restricted to
// the Bids parsed this pass, replay that diff back into session_bb to keep
// it current, and return the full event sequence — renames, the diff
// itself, and the path-derivative events the replay produced — as the
// authoritative record of what changed this parse.
func (gb *GraphBuilder) terminateStack(renames map[ident.Bid]ident.Bid, parsedBids map[ident.Bid]struct{}) []event.Event {
	gb.stack = nil
	gb.docBB.ProcessEvent(event.BuiltInTest{})

	var out []event.Event
	for from, to := range renames {
		rename := event.NewNodeRenamed(from, to, event.Remote)
		out = append(out, rename)
		derivs := gb.sessionBB.ProcessEvent(rename)
		out = append(out, derivs...)
	}

	diffEvents := belief.ComputeDiff(gb.sessionBB, gb.docBB, parsedBids)
	out = append(out, diffEvents...)

	var pathEvents []event.Event
	for _, ev := range diffEvents {
		for _, d := range gb.sessionBB.ProcessEvent(ev) {
			switch d.(type) {
			case event.PathAdded, event.PathUpdate, event.PathsRemoved:
				pathEvents = append(pathEvents, d)
			}
		}
	}
	out = append(out, pathEvents...)

	gb.sessionBB.ProcessEvent(event.BuiltInTest{})
	gb.log.WithField("events", len(out)).Debug("terminated stack")
	return out
}
