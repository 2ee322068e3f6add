package ident

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// seqSource is a deterministic RandSource for tests: returns 1,2,3,... .
type seqSource struct{ n uint64 }

func (s *seqSource) Next() uint64 {
	s.n++
	return s.n
}

func TestNewAssignsParentNamespace(t *testing.T) {
	src := &seqSource{}
	root := New(Nil, src)
	child := New(root, src)

	require.Equal(t, root.Namespace(), child.ParentNamespace())
	require.True(t, root.SameNetwork(child) == false || root.Namespace() == child.ParentNamespace())
}

func TestSameNetwork(t *testing.T) {
	src := &seqSource{}
	root := New(Nil, src)
	a := New(root, src)
	b := New(root, src)

	require.True(t, a.SameNetwork(b))
	require.NotEqual(t, a, b)
}

func TestNilBid(t *testing.T) {
	require.True(t, Nil.IsNil())
	require.Equal(t, "", Nil.String())

	src := &seqSource{}
	n := New(Nil, src)
	require.False(t, n.IsNil())
}

func TestBidStringRoundTrip(t *testing.T) {
	src := &seqSource{}
	b := New(New(Nil, src), src)

	s := b.String()
	parsed, err := Parse(s)
	require.NoError(t, err)
	require.Equal(t, b, parsed)
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse("not-a-bid")
	require.ErrorIs(t, err, ErrMalformedBid)
}

func TestBrefRoundTrip(t *testing.T) {
	b := Bref(0xdeadbeefcafef00d)
	s := b.String()
	parsed, err := ParseBref(s)
	require.NoError(t, err)
	require.Equal(t, b, parsed)
}

func TestNodeKeyEqual(t *testing.T) {
	src := &seqSource{}
	bidA := New(Nil, src)
	bidB := New(Nil, src)

	require.True(t, KeyFromBid(bidA).Equal(KeyFromBid(bidA)))
	require.False(t, KeyFromBid(bidA).Equal(KeyFromBid(bidB)))
	require.False(t, KeyFromBid(bidA).Equal(KeyFromBref(Bref(1))))
	require.True(t, KeyFromID(1, "x").Equal(KeyFromID(1, "x")))
	require.False(t, KeyFromID(1, "x").Equal(KeyFromID(2, "x")))
	require.True(t, KeyFromPath(1, "a/b").Equal(KeyFromPath(1, "a/b")))
}

func TestReservedNamespacesStable(t *testing.T) {
	require.Equal(t, HrefNamespace(), HrefNamespace())
	require.Equal(t, AssetNamespace(), AssetNamespace())
	require.NotEqual(t, HrefNamespace(), AssetNamespace())
}
