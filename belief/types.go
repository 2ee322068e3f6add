// Package belief implements the BeliefBase hypergraph store: the node
// model, the event-driven mutation protocol, invariant checking, the
// query/set-algebra engine, the balance-completion search, and the
// reconcile-diff algorithm (spec.md §3, §4.1).
package belief

import (
	"fmt"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/buildonomy/noet-core/ident"
)

// Kind is a bitmask over the belief-node categories a BeliefNode may carry.
type Kind uint16

const (
	// KindNetwork marks a node as a network root (a directory's config file).
	KindNetwork Kind = 1 << iota
	// KindDocument marks a node as a document root within a network.
	KindDocument
	// KindSection marks a node as a heading/section within a document.
	KindSection
	// KindAPI marks the unique root node every Bid must reach (the API node).
	KindAPI
	// KindExternal marks a node as owned by something outside the document
	// tree (e.g. a content-addressed asset, or an href wrapper).
	KindExternal
	// KindTrace marks a node as "known to exist, but with a not-necessarily-
	// complete incident edge set" — see Complete.
	KindTrace
)

// Has reports whether k carries every bit set in other.
func (k Kind) Has(other Kind) bool { return k&other == other }

// Any reports whether k carries at least one bit set in other.
func (k Kind) Any(other Kind) bool { return k&other != 0 }

// With returns k with other's bits set.
func (k Kind) With(other Kind) Kind { return k | other }

// Without returns k with other's bits cleared.
func (k Kind) Without(other Kind) Kind { return k &^ other }

// String renders the set bits by name, e.g. "Network|Section".
func (k Kind) String() string {
	names := []struct {
		bit  Kind
		name string
	}{
		{KindNetwork, "Network"},
		{KindDocument, "Document"},
		{KindSection, "Section"},
		{KindAPI, "API"},
		{KindExternal, "External"},
		{KindTrace, "Trace"},
	}
	out := ""
	for _, n := range names {
		if k.Has(n.bit) {
			if out != "" {
				out += "|"
			}
			out += n.name
		}
	}
	if out == "" {
		return "None"
	}
	return out
}

// Node is a node in the BeliefBase hypergraph.
//
// Payload holds arbitrary key/value data beyond the reserved top-level
// fields; unrecognized TOML keys round-trip through Payload unchanged.
type Node struct {
	Bid     ident.Bid
	Kind    Kind
	Title   string
	Schema  string // optional; empty means unset
	ID      string // optional; empty means unset
	Payload map[string]any
}

// Complete reports whether n's kind does not include Trace — i.e. its
// incident edge set is believed complete (spec.md §3, GLOSSARY).
func (n Node) Complete() bool { return !n.Kind.Has(KindTrace) }

// nodeWire is the TOML-serializable shape of a Node: reserved keys at the
// top level, everything else folded into Payload (spec.md §6, "Node text
// serialization").
type nodeWire struct {
	Bid    string         `toml:"bid"`
	ID     string         `toml:"id,omitempty"`
	Title  string         `toml:"title"`
	Schema string         `toml:"schema,omitempty"`
	Kind   int64          `toml:"kind"`
	Rest   map[string]any `toml:"-"`
}

// ToTOML serializes n to its TOML text form: the reserved keys bid, id?,
// title, schema? and kind (as an integer bitmask) together with n's Payload
// keys, all at the top level of one flat table.
func ToTOML(n Node) (string, error) {
	flat := make(map[string]any, len(n.Payload)+5)
	for k, v := range n.Payload {
		flat[k] = v
	}
	flat["bid"] = n.Bid.String()
	if n.ID != "" {
		flat["id"] = n.ID
	}
	flat["title"] = n.Title
	if n.Schema != "" {
		flat["schema"] = n.Schema
	}
	flat["kind"] = int64(n.Kind)

	out, err := toml.Marshal(flat)
	if err != nil {
		return "", fmt.Errorf("belief: marshal node %s: %w", n.Bid, err)
	}
	return string(out), nil
}

// reserved top-level keys that are never copied into Payload.
var reservedKeys = map[string]struct{}{
	"bid": {}, "id": {}, "title": {}, "schema": {}, "kind": {},
}

// FromTOML parses the text form produced by ToTOML. Keys outside the
// reserved set are preserved verbatim in the returned Node's Payload.
func FromTOML(text string) (Node, error) {
	var flat map[string]any
	if err := toml.Unmarshal([]byte(text), &flat); err != nil {
		return Node{}, fmt.Errorf("belief: unmarshal node: %w", err)
	}

	var n Node
	n.Payload = make(map[string]any)
	for k, v := range flat {
		switch k {
		case "bid":
			s, _ := v.(string)
			b, err := ident.Parse(s)
			if err != nil {
				return Node{}, fmt.Errorf("belief: node bid %q: %w", s, err)
			}
			n.Bid = b
		case "id":
			n.ID, _ = v.(string)
		case "title":
			n.Title, _ = v.(string)
		case "schema":
			n.Schema, _ = v.(string)
		case "kind":
			n.Kind = Kind(toInt64(v))
		default:
			n.Payload[k] = v
		}
	}
	return n, nil
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	default:
		return 0
	}
}

// newAPINode constructs the unique API root node: the "outside world"
// anchor every Bid must have a Section path to (GLOSSARY).
func newAPINode() Node {
	return Node{
		Bid:     ident.Nil,
		Kind:    KindAPI,
		Title:   "api",
		Payload: map[string]any{},
	}
}

// hrefNetworkNode constructs the reserved network node that wraps external
// href:// links (SPEC_FULL.md §D.1).
func hrefNetworkNode() Node {
	return Node{
		Bid:     ident.NewInNamespace(ident.HrefNamespace(), constBidSource{}),
		Kind:    KindNetwork | KindExternal,
		Title:   "href",
		ID:      "href",
		Payload: map[string]any{},
	}
}

// assetNetworkNode constructs the reserved network node that the content-
// addressed asset manifest attaches assets to (SPEC_FULL.md §D.2).
func assetNetworkNode() Node {
	return Node{
		Bid:     ident.NewInNamespace(ident.AssetNamespace(), constBidSource{}),
		Kind:    KindNetwork | KindExternal,
		Title:   "asset",
		ID:      "asset",
		Payload: map[string]any{},
	}
}

// constBidSource draws a fixed, deterministic self-half so the href/asset
// network nodes have a stable Bid across process restarts (they are minted
// exactly once per reserved namespace, never randomly re-derived).
type constBidSource struct{}

func (constBidSource) Next() uint64 { return 1 }
