package graphbuilder

import (
	"github.com/buildonomy/noet-core/belief"
	"github.com/buildonomy/noet-core/ident"
	"github.com/buildonomy/noet-core/weight"
)

// Direction names which side of a proto-relation the pushing node owns
// (spec.md §6's upstream/downstream lists).
type Direction uint8

const (
	// Incoming is an "upstream" relation: the other node is the edge's
	// source, the pushing node is the sink, and the sink owns the weight by
	// default.
	Incoming Direction = iota
	// Outgoing is a "downstream" relation: the pushing node is the edge's
	// source, the other node is the sink, and the source owns the weight.
	Outgoing
)

// RelationSpec is one entry of a ProtoNode's upstream or downstream list: a
// reference to another node, the WeightKind it names, and an optional
// caller-supplied weight payload to merge onto the reserved sort_key/
// owned_by keys Push computes.
type RelationSpec struct {
	OtherKey ident.NodeKey
	Kind     weight.Kind
	Weight   *weight.Weight
}

// ProtoNode is the codec boundary contract (spec.md §6): the shape a
// document parser hands the GraphBuilder for one heading/network/document
// unit, before any Bid has necessarily been assigned.
type ProtoNode struct {
	// Path is repo-relative, optionally with a "#fragment" component.
	Path string
	// Heading is the nesting depth: 1 = network root, 2 = document, 3+ =
	// section.
	Heading int
	// Kind is the belief.Kind bitmask this node should carry once built.
	Kind belief.Kind
	// Title is the node's display title.
	Title string
	// ID is an optional document-scoped reference id.
	ID string
	// Bid is set only when the source document pins an explicit identifier;
	// the zero value means "let the builder assign or adopt one".
	Bid ident.Bid
	// Schema optionally names the payload's schema.
	Schema string
	// Document carries the decoded TOML payload table, minus the reserved
	// title/id/bid/schema keys already lifted into the fields above.
	Document map[string]any
	// Upstream lists relations where this node is the sink (default owner:
	// the sink, i.e. this node).
	Upstream []RelationSpec
	// Downstream lists relations where this node is the source (default
	// owner: the source, i.e. this node).
	Downstream []RelationSpec
	// Content is the raw byte range this proto-node was parsed from, kept
	// for codecs that need to re-render a rewritten source.
	Content []byte
}

// NodeSource records where a resolved node came from, informing whether its
// substructure still needs to be folded into the current document scope.
type NodeSource uint8

const (
	// Generated means a fresh Bid was minted; no prior state existed.
	Generated NodeSource = iota
	// SourceFile means the node was already present in the document scope
	// being built this parse.
	SourceFile
	// StackCache means the node came from the session-level cache
	// (structure accumulated earlier this session, not yet committed).
	StackCache
	// GlobalCache means the node came from the external BeliefSource.
	GlobalCache
	// Merged means a cache hit was reconciled with fields the proto-node
	// itself declared (e.g. an explicit bid overriding a cached one).
	Merged
)

// IsFromCache reports whether src names a result that already had prior
// state, as opposed to one this push freshly generated.
func (src NodeSource) IsFromCache() bool {
	return src == StackCache || src == GlobalCache || src == SourceFile || src == Merged
}

// Diagnostic is a non-fatal parse-time signal (spec.md §7): attached to a
// ParseResult rather than raised as a Go error.
type Diagnostic interface {
	diagnostic()
}

// UnresolvedReference is emitted when a proto-relation's other_key cannot be
// resolved against the document scope, the session cache, or the external
// source. It carries enough context for a scheduler to enqueue a reparse
// once the target becomes available (spec.md §4.4 step 6-7).
type UnresolvedReference struct {
	OtherKeys []ident.NodeKey
	SelfBid   ident.Bid
	SelfNet   ident.Bref
	SelfPath  string
	Direction Direction
	Kind      weight.Kind
	Index     int
}

func (UnresolvedReference) diagnostic() {}

// ParseError is a recoverable parse-time fault: the file stays in rotation
// up to the compiler's reparse cap, but this particular attempt failed.
type ParseError struct {
	Path string
	Err  error
}

func (ParseError) diagnostic() {}

// Warning is an advisory signal that does not block progress (e.g. a
// Section cycle, which spec.md §9 treats as advisory not preventive).
type Warning struct {
	Message string
}

func (Warning) diagnostic() {}

// Info is a purely informational diagnostic (e.g. "node unchanged, skipped
// rewrite").
type Info struct {
	Message string
}

func (Info) diagnostic() {}
