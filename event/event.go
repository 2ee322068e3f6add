// Package event defines BeliefEvent and its Origin, shared by belief (the
// mutator and emitter) and pathmap (a consumer) without creating an import
// cycle between the two (spec.md §4.1, §4.2).
package event

import (
	"fmt"

	"github.com/buildonomy/noet-core/ident"
	"github.com/buildonomy/noet-core/weight"
)

// Origin indicates whether an Event has already been applied to the
// BeliefBase's state (Local) or still needs to be (Remote).
type Origin uint8

const (
	// Remote events came from an external source (persistence replay, a
	// file watcher, a remote sync) and must be applied by ProcessEvent.
	Remote Origin = iota
	// Local events were generated by this BeliefBase and already applied;
	// ProcessEvent neither reapplies nor re-validates them and returns no
	// derivatives.
	Local
)

// String renders an Origin by name.
func (o Origin) String() string {
	if o == Local {
		return "Local"
	}
	return "Remote"
}

// Event is the common interface satisfied by every BeliefEvent variant.
// Origin's second return value is false for the three origin-less signals
// (BalanceCheck, BuiltInTest, FileParsed).
type Event interface {
	Origin() (Origin, bool)
	WithOrigin(Origin) Event
	fmt.Stringer
}

// NodeUpdate deserializes a node from TOML and, if any of Keys resolves to a
// pre-existing node whose Bid differs from the new one, replaces those
// nodes (spec.md §4.1).
type NodeUpdate struct {
	Keys   []ident.NodeKey
	TOML   string
	origin Origin
}

func (e NodeUpdate) Origin() (Origin, bool)   { return e.origin, true }
func (e NodeUpdate) WithOrigin(o Origin) Event { e.origin = o; return e }
func (e NodeUpdate) String() string            { return "NodeUpdate" }

// NewNodeUpdate constructs a NodeUpdate event.
func NewNodeUpdate(keys []ident.NodeKey, tomlBody string, origin Origin) NodeUpdate {
	return NodeUpdate{Keys: keys, TOML: tomlBody, origin: origin}
}

// NodesRemoved removes each Bid from states and from the graph.
type NodesRemoved struct {
	Bids   []ident.Bid
	origin Origin
}

func (e NodesRemoved) Origin() (Origin, bool)   { return e.origin, true }
func (e NodesRemoved) WithOrigin(o Origin) Event { e.origin = o; return e }
func (e NodesRemoved) String() string            { return "NodesRemoved" }

// NewNodesRemoved constructs a NodesRemoved event.
func NewNodesRemoved(bids []ident.Bid, origin Origin) NodesRemoved {
	return NodesRemoved{Bids: bids, origin: origin}
}

// NodeRenamed is a rewriting signal emitted by the base and consumed by the
// PathMap; never itself applied by ProcessEvent beyond bookkeeping.
type NodeRenamed struct {
	From, To ident.Bid
	origin   Origin
}

func (e NodeRenamed) Origin() (Origin, bool)   { return e.origin, true }
func (e NodeRenamed) WithOrigin(o Origin) Event { e.origin = o; return e }
func (e NodeRenamed) String() string            { return "NodeRenamed" }

// NewNodeRenamed constructs a NodeRenamed event.
func NewNodeRenamed(from, to ident.Bid, origin Origin) NodeRenamed {
	return NodeRenamed{From: from, To: to, origin: origin}
}

// RelationUpdate replaces (or adds, or — if Weights is empty — removes) one
// edge source→sink.
type RelationUpdate struct {
	Source, Sink ident.Bid
	Weights      weight.Set
	origin       Origin
}

func (e RelationUpdate) Origin() (Origin, bool)   { return e.origin, true }
func (e RelationUpdate) WithOrigin(o Origin) Event { e.origin = o; return e }
func (e RelationUpdate) String() string            { return "RelationUpdate" }

// NewRelationUpdate constructs a RelationUpdate event.
func NewRelationUpdate(source, sink ident.Bid, ws weight.Set, origin Origin) RelationUpdate {
	return RelationUpdate{Source: source, Sink: sink, Weights: ws, origin: origin}
}

// RelationChange declares "make this kind have this weight"; the base folds
// it into an equivalent RelationUpdate (spec.md §4.1, Open Question #1).
type RelationChange struct {
	Source, Sink ident.Bid
	Kind         weight.Kind
	Weight       *weight.Weight // nil removes the kind from the edge
	origin       Origin
}

func (e RelationChange) Origin() (Origin, bool)   { return e.origin, true }
func (e RelationChange) WithOrigin(o Origin) Event { e.origin = o; return e }
func (e RelationChange) String() string            { return "RelationChange" }

// NewRelationChange constructs a RelationChange event.
func NewRelationChange(source, sink ident.Bid, kind weight.Kind, w *weight.Weight, origin Origin) RelationChange {
	return RelationChange{Source: source, Sink: sink, Kind: kind, Weight: w, origin: origin}
}

// RelationRemoved is equivalent to RelationUpdate with an empty WeightSet.
type RelationRemoved struct {
	Source, Sink ident.Bid
	origin       Origin
}

func (e RelationRemoved) Origin() (Origin, bool)   { return e.origin, true }
func (e RelationRemoved) WithOrigin(o Origin) Event { e.origin = o; return e }
func (e RelationRemoved) String() string            { return "RelationRemoved" }

// NewRelationRemoved constructs a RelationRemoved event.
func NewRelationRemoved(source, sink ident.Bid, origin Origin) RelationRemoved {
	return RelationRemoved{Source: source, Sink: sink, origin: origin}
}

// PathAdded is derivative-only: emitted by the PathMap when a node gains a
// path entry. Never consumed by ProcessEvent.
type PathAdded struct {
	Net    ident.Bref
	Path   string
	Bid    ident.Bid
	Order  []uint16
	origin Origin
}

func (e PathAdded) Origin() (Origin, bool)   { return e.origin, true }
func (e PathAdded) WithOrigin(o Origin) Event { e.origin = o; return e }
func (e PathAdded) String() string            { return "PathAdded" }

// PathUpdate is derivative-only: a path's order vector changed.
type PathUpdate struct {
	Net    ident.Bref
	Path   string
	Bid    ident.Bid
	Order  []uint16
	origin Origin
}

func (e PathUpdate) Origin() (Origin, bool)   { return e.origin, true }
func (e PathUpdate) WithOrigin(o Origin) Event { e.origin = o; return e }
func (e PathUpdate) String() string            { return "PathUpdate" }

// PathsRemoved is derivative-only: one or more paths were dropped from a
// network's PathMap.
type PathsRemoved struct {
	Net    ident.Bref
	Paths  []string
	origin Origin
}

func (e PathsRemoved) Origin() (Origin, bool)   { return e.origin, true }
func (e PathsRemoved) WithOrigin(o Origin) Event { e.origin = o; return e }
func (e PathsRemoved) String() string            { return "PathsRemoved" }

// BalanceCheck re-runs index sync without the full invariant test.
type BalanceCheck struct{}

func (e BalanceCheck) Origin() (Origin, bool)   { return Remote, false }
func (e BalanceCheck) WithOrigin(Origin) Event   { return e }
func (e BalanceCheck) String() string            { return "BalanceCheck" }

// BuiltInTest re-runs the full acyclicity/balance invariant suite.
type BuiltInTest struct{}

func (e BuiltInTest) Origin() (Origin, bool)  { return Remote, false }
func (e BuiltInTest) WithOrigin(Origin) Event  { return e }
func (e BuiltInTest) String() string           { return "BuiltInTest" }

// FileParsed is a zero-effect notification (SPEC_FULL.md §D.4): a
// persistence-layer subscriber can use it to checkpoint mtimes for cache
// invalidation. ProcessEvent never applies it; it only passes through.
type FileParsed struct {
	Path string
}

func (e FileParsed) Origin() (Origin, bool)  { return Remote, false }
func (e FileParsed) WithOrigin(Origin) Event  { return e }
func (e FileParsed) String() string           { return "FileParsed" }
