package weight

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWeightSortKey(t *testing.T) {
	w := NewWeight()
	_, ok := w.SortKey()
	require.False(t, ok)

	w = w.WithSortKey(3)
	k, ok := w.SortKey()
	require.True(t, ok)
	require.Equal(t, uint16(3), k)
}

func TestWeightOwnedByDefault(t *testing.T) {
	w := NewWeight()
	require.Equal(t, OwnedBySink, w.OwnedBy())

	w = w.WithOwnedBy(OwnedBySource)
	require.Equal(t, OwnedBySource, w.OwnedBy())
	require.Equal(t, "source", w.OwnedBy().String())
}

func TestWeightDocPaths(t *testing.T) {
	w := NewWeight()
	require.Nil(t, w.DocPaths())

	w[KeyDocPaths] = []string{"a.md", "b.md"}
	require.Equal(t, []string{"a.md", "b.md"}, w.DocPaths())
}

func TestWeightEqual(t *testing.T) {
	a := NewWeight().WithSortKey(1)
	b := NewWeight().WithSortKey(1)
	c := NewWeight().WithSortKey(2)

	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
}

func TestSetUnionIntersectionDifference(t *testing.T) {
	s1 := Set{Section: NewWeight().WithSortKey(0)}
	s2 := Set{Epistemic: NewWeight().WithSortKey(1)}

	u := s1.Union(s2)
	require.ElementsMatch(t, []Kind{Section, Epistemic}, u.Kinds())

	i := u.Intersection(s1)
	require.ElementsMatch(t, []Kind{Section}, i.Kinds())

	d := u.Difference(s1)
	require.ElementsMatch(t, []Kind{Epistemic}, d.Kinds())
}

func TestSetEqual(t *testing.T) {
	a := Set{Section: NewWeight().WithSortKey(0)}
	b := Set{Section: NewWeight().WithSortKey(0)}
	c := Set{Section: NewWeight().WithSortKey(1)}

	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
	require.False(t, a.Equal(NewSet()))
}

func TestSetCloneIndependence(t *testing.T) {
	s := Set{Section: NewWeight().WithSortKey(0)}
	clone := s.Clone()
	clone[Section] = clone[Section].WithSortKey(9)

	k, _ := s[Section].SortKey()
	require.Equal(t, uint16(0), k)
}
