// Package ident defines the identifier types shared by every other package
// in this module: Bid, Bref, and NodeKey.
//
// A Bid is a 128-bit identifier split into two 64-bit halves: a parent
// namespace half and a fresh random half. This split lets any Bid answer
// "which namespace do I belong to" (Namespace) and "what is my own
// namespace, as seen by children" (ParentNamespace) without a lookup.
//
// Bref is the 64-bit half of a Bid used as a short, network-local key; it is
// cheap to compare, hash, and pass by value.
//
// NodeKey is a tagged union of the ways a document can refer to a node
// before that node's Bid is known: by Bid directly, by Bref, by (network,
// id), or by (network, path).
package ident

import (
	"encoding/binary"
	"encoding/hex"
	"errors"

	"github.com/google/uuid"
)

// ErrMalformedBid indicates a hex string could not be parsed into a Bid.
var ErrMalformedBid = errors.New("ident: malformed bid string")

// Bref is the 64-bit half of a Bid, used as a short network-local key.
type Bref uint64

// String renders a Bref as lowercase hex, zero-padded to 16 characters.
func (b Bref) String() string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(b))
	return hex.EncodeToString(buf[:])
}

// ParseBref parses the hex form produced by Bref.String.
func ParseBref(s string) (Bref, error) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 8 {
		return 0, ErrMalformedBid
	}
	return Bref(binary.BigEndian.Uint64(raw)), nil
}

// Bid is a 128-bit identifier: the high 64 bits name the parent namespace
// (itself a Bid, truncated to its own Bref), and the low 64 bits are fresh
// random bits assigned at creation.
type Bid struct {
	parent Bref
	self   Bref
}

// Nil is the empty Bid: both halves zero. It never names a real node.
var Nil = Bid{}

// RandSource supplies the random 64-bit half for newly created Bids.
// Swappable so tests can seed determinism without touching production code.
type RandSource interface {
	Next() uint64
}

// uuidSource draws entropy from google/uuid's CSPRNG-backed generator.
type uuidSource struct{}

// Next returns the low 64 bits of a fresh random UUID.
func (uuidSource) Next() uint64 {
	id := uuid.New()
	return binary.BigEndian.Uint64(id[8:16])
}

// DefaultRandSource is the production entropy source for New.
var DefaultRandSource RandSource = uuidSource{}

// New returns a Bid whose ParentNamespace equals parent's own namespace and
// whose self half is freshly drawn from src. A nil src uses DefaultRandSource.
func New(parent Bid, src RandSource) Bid {
	if src == nil {
		src = DefaultRandSource
	}
	return Bid{parent: parent.Namespace(), self: Bref(src.Next())}
}

// NewInNamespace is a convenience constructor for a Bid whose parent half is
// already known as a bare Bref (used when the parent Bid itself is not at
// hand, e.g. when replaying events that only carry Brefs).
func NewInNamespace(parent Bref, src RandSource) Bid {
	if src == nil {
		src = DefaultRandSource
	}
	return Bid{parent: parent, self: Bref(src.Next())}
}

// Namespace returns the low 64 bits of b as a Bref. This is the
// key other nodes use to address b as their parent.
func (b Bid) Namespace() Bref { return b.self }

// ParentNamespace returns the high 64 bits of b: the Bref of the node that
// minted b. Two Bids share a network iff one's Namespace equals the other's
// ParentNamespace, or both share the same ParentNamespace.
func (b Bid) ParentNamespace() Bref { return b.parent }

// IsNil reports whether b is the empty identifier.
func (b Bid) IsNil() bool { return b == Nil }

// SameNetwork reports whether b and other were minted under the same parent
// namespace — the cheap "same-network" test described in spec.md §3.
func (b Bid) SameNetwork(other Bid) bool { return b.parent == other.parent }

// String renders a Bid as "<parent>.<self>" hex.
func (b Bid) String() string {
	if b.IsNil() {
		return ""
	}
	return b.parent.String() + "." + b.self.String()
}

// Parse parses the String form back into a Bid.
func Parse(s string) (Bid, error) {
	if s == "" {
		return Nil, nil
	}
	if len(s) != 33 || s[16] != '.' {
		return Nil, ErrMalformedBid
	}
	parent, err := ParseBref(s[:16])
	if err != nil {
		return Nil, err
	}
	self, err := ParseBref(s[17:])
	if err != nil {
		return Nil, err
	}
	return Bid{parent: parent, self: self}, nil
}

// KeyTag discriminates the variant held by a NodeKey.
type KeyTag uint8

const (
	// KeyBid addresses a node directly by its Bid.
	KeyBid KeyTag = iota
	// KeyBref addresses a node by its network-local Bref.
	KeyBref
	// KeyID addresses a node by a (network, id) pair.
	KeyID
	// KeyPath addresses a node by a (network, path) pair.
	KeyPath
)

// NodeKey is a tagged union of the ways a document can reference a node.
// Equality is by tag and value; two keys of different tags are never equal
// even if they would resolve to the same node.
type NodeKey struct {
	Tag  KeyTag
	Bid  Bid
	Bref Bref
	Net  Bref
	ID   string
	Path string
}

// KeyFromBid builds a NodeKey that addresses b directly.
func KeyFromBid(b Bid) NodeKey { return NodeKey{Tag: KeyBid, Bid: b} }

// KeyFromBref builds a NodeKey that addresses a node by Bref.
func KeyFromBref(b Bref) NodeKey { return NodeKey{Tag: KeyBref, Bref: b} }

// KeyFromID builds a NodeKey that addresses a node by (network, id).
func KeyFromID(net Bref, id string) NodeKey { return NodeKey{Tag: KeyID, Net: net, ID: id} }

// KeyFromPath builds a NodeKey that addresses a node by (network, path).
func KeyFromPath(net Bref, path string) NodeKey { return NodeKey{Tag: KeyPath, Net: net, Path: path} }

// Equal reports whether k and other have the same tag and the same value for
// that tag.
func (k NodeKey) Equal(other NodeKey) bool {
	if k.Tag != other.Tag {
		return false
	}
	switch k.Tag {
	case KeyBid:
		return k.Bid == other.Bid
	case KeyBref:
		return k.Bref == other.Bref
	case KeyID:
		return k.Net == other.Net && k.ID == other.ID
	case KeyPath:
		return k.Net == other.Net && k.Path == other.Path
	default:
		return false
	}
}

// reserved namespace Brefs, deterministic across runs so that wrapper nodes
// created under them (href links, content-addressed assets) always resolve
// to the same namespace regardless of process restart.
var (
	hrefNamespaceBref  = mustReservedBref("noet:href")
	assetNamespaceBref = mustReservedBref("noet:asset")
)

// mustReservedBref derives a stable Bref for a well-known reserved name by
// hashing it into the low 64 bits of a version-5 UUID namespace. Using a
// hash keeps the reserved namespace collision-free against randomly-minted
// Bids without requiring a registry.
func mustReservedBref(name string) Bref {
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(name))
	return Bref(binary.BigEndian.Uint64(id[8:16]))
}

// HrefNamespace returns the reserved, process-wide Bref under which
// external-scheme (href://...) wrapper nodes are minted.
func HrefNamespace() Bref { return hrefNamespaceBref }

// AssetNamespace returns the reserved, process-wide Bref under which
// content-addressed asset nodes are minted.
func AssetNamespace() Bref { return assetNamespaceBref }
