package pathmap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buildonomy/noet-core/bidgraph"
	"github.com/buildonomy/noet-core/event"
	"github.com/buildonomy/noet-core/ident"
	"github.com/buildonomy/noet-core/weight"
)

func bid(n uint64) ident.Bid {
	return ident.NewInNamespace(ident.Bref(n), constSrc(n))
}

type constSrc uint64

func (c constSrc) Next() uint64 { return uint64(c) }

// lookupFixture is a hand-built NodeLookup over a fixed set of NodeViews,
// used by every test in this file instead of a real belief.Base.
type lookupFixture map[ident.Bid]NodeView

func (f lookupFixture) lookup(b ident.Bid) (NodeView, bool) {
	v, ok := f[b]
	return v, ok
}

func sectionWeight(sortKey uint16) weight.Set {
	return weight.Set{weight.Section: weight.NewWeight().WithSortKey(sortKey)}
}

func TestNewHasCanonicalEntries(t *testing.T) {
	net := bid(1)
	pm := New(net)

	p, ok := pm.Get("")
	require.True(t, ok)
	require.Equal(t, net, p)

	idx, ok := pm.Get("index.md")
	require.True(t, ok)
	require.Equal(t, net, idx)
}

func TestBuildDocumentAndSubsection(t *testing.T) {
	net := bid(1)
	doc := bid(2)
	sub := bid(3)

	g := bidgraph.New()
	g.AddEdge(doc, net, sectionWeight(0))
	g.AddEdge(sub, doc, sectionWeight(0))

	lk := lookupFixture{
		doc: {ID: "guide", IsNetwork: false, IsSection: false},
		sub: {Title: "Overview", IsSection: true},
	}

	pm := Build(net, g, lk.lookup)

	docPath, ok := pm.Path(doc)
	require.True(t, ok)
	require.Equal(t, "guide", docPath)

	subPath, ok := pm.Path(sub)
	require.True(t, ok)
	require.Equal(t, "guide#overview", subPath)
}

func TestBuildGatewaySlotAvoidsCollisionWithDocument(t *testing.T) {
	net := bid(1)
	rootSection := bid(2)
	doc := bid(3)

	g := bidgraph.New()
	// A section hanging directly off the network root...
	g.AddEdge(rootSection, net, sectionWeight(0))
	// ...and a document whose id happens to match the section's anchorized title.
	g.AddEdge(doc, net, sectionWeight(1))

	lk := lookupFixture{
		rootSection: {Title: "Introduction", IsSection: true},
		doc:         {ID: "introduction"},
	}

	pm := Build(net, g, lk.lookup)

	secPath, ok := pm.Path(rootSection)
	require.True(t, ok)
	require.Equal(t, "index.md#introduction", secPath)

	docPath, ok := pm.Path(doc)
	require.True(t, ok)
	require.Equal(t, "introduction", docPath)

	require.NotEqual(t, secPath, docPath)
}

func TestBuildGatewaySlotOrderPrecedesDocuments(t *testing.T) {
	net := bid(1)
	rootSection := bid(2)
	doc := bid(3)

	g := bidgraph.New()
	g.AddEdge(rootSection, net, sectionWeight(0))
	g.AddEdge(doc, net, sectionWeight(0))

	lk := lookupFixture{
		rootSection: {Title: "Intro", IsSection: true},
		doc:         {ID: "guide"},
	}

	pm := Build(net, g, lk.lookup)

	docEntry, ok := pm.IndexedPath(doc)
	require.True(t, ok)
	secEntry, ok := pm.IndexedPath(rootSection)
	require.True(t, ok)

	// Section children sort after document children at the root: the
	// gateway key is inserted before the section's own sort key, and
	// GatewaySortKey is the maximum uint16.
	require.True(t, compareOrder(docEntry.Order, secEntry.Order) < 0)
}

func TestBuildCollisionFallsBackToBrefSuffix(t *testing.T) {
	net := bid(1)
	doc := bid(2)
	a := bid(3)
	b := bid(4)

	g := bidgraph.New()
	g.AddEdge(doc, net, sectionWeight(0))
	g.AddEdge(a, doc, sectionWeight(1))
	g.AddEdge(b, doc, sectionWeight(2))

	lk := lookupFixture{
		doc: {ID: "guide"},
		a:   {Title: "Intro", IsSection: true},
		b:   {Title: "Intro", IsSection: true},
	}

	pm := Build(net, g, lk.lookup)

	aPath, ok := pm.Path(a)
	require.True(t, ok)
	require.Equal(t, "guide#intro", aPath)

	bPath, ok := pm.Path(b)
	require.True(t, ok)
	require.NotEqual(t, aPath, bPath)
	require.Contains(t, bPath, b.Namespace().String())
}

func TestBuildSkipsCyclesAndRecordsBackEdges(t *testing.T) {
	net := bid(1)
	a := bid(2)
	b := bid(3)

	g := bidgraph.New()
	g.AddEdge(a, net, sectionWeight(0))
	g.AddEdge(b, a, sectionWeight(0))
	// b -> a already walked; this closes a cycle back through a -> net's subtree.
	g.AddEdge(a, b, sectionWeight(0))

	lk := lookupFixture{
		a: {ID: "a"},
		b: {ID: "b", IsSection: true},
	}

	pm := Build(net, g, lk.lookup)

	_, ok := pm.Path(a)
	require.True(t, ok)
	_, ok = pm.Path(b)
	require.True(t, ok)
	require.NotEmpty(t, pm.BackEdges())
}

func TestBuildMissingLookupSkipsSource(t *testing.T) {
	net := bid(1)
	ghost := bid(2)

	g := bidgraph.New()
	g.AddEdge(ghost, net, sectionWeight(0))

	lk := lookupFixture{} // ghost deliberately absent

	pm := Build(net, g, lk.lookup)

	_, ok := pm.Path(ghost)
	require.False(t, ok)
}

func TestBuildSortKeyFallbackComponent(t *testing.T) {
	net := bid(1)
	doc := bid(2)

	g := bidgraph.New()
	g.AddEdge(doc, net, sectionWeight(7))

	lk := lookupFixture{doc: {}} // no id, no title, not a section

	pm := Build(net, g, lk.lookup)

	docPath, ok := pm.Path(doc)
	require.True(t, ok)
	require.Equal(t, "7", docPath)
}

func TestAnchorize(t *testing.T) {
	require.Equal(t, "hello-world", Anchorize("Hello, World!"))
	require.Equal(t, "a-b-c", Anchorize("  A -- B_C  "))
	require.Equal(t, "", Anchorize("***"))
}

func TestProcessRebuildsAndDiffs(t *testing.T) {
	net := bid(1)
	doc := bid(2)
	keepSection := bid(3)
	removedSection := bid(4)

	g := bidgraph.New()
	g.AddEdge(doc, net, sectionWeight(0))
	g.AddEdge(keepSection, doc, sectionWeight(0))
	g.AddEdge(removedSection, doc, sectionWeight(1))

	lk := lookupFixture{
		doc:            {ID: "guide"},
		keepSection:    {Title: "Keep", IsSection: true},
		removedSection: {Title: "Gone", IsSection: true},
	}

	pm := Build(net, g, lk.lookup)
	_, ok := pm.Path(removedSection)
	require.True(t, ok)

	// Simulate the section's removal and a new section's addition, then
	// reconcile via Process.
	g2 := bidgraph.New()
	addedSection := bid(5)
	g2.AddEdge(doc, net, sectionWeight(0))
	g2.AddEdge(keepSection, doc, sectionWeight(0))
	g2.AddEdge(addedSection, doc, sectionWeight(2))

	lk2 := lookupFixture{
		doc:          {ID: "guide"},
		keepSection:  {Title: "Keep", IsSection: true},
		addedSection: {Title: "Added", IsSection: true},
	}

	derivatives := pm.Process(g2, lk2.lookup, event.NewNodeRenamed(removedSection, removedSection, event.Remote))

	var sawAdded, sawRemoved bool
	for _, d := range derivatives {
		switch ev := d.(type) {
		case event.PathAdded:
			if ev.Bid == addedSection {
				sawAdded = true
			}
		case event.PathsRemoved:
			sawRemoved = len(ev.Paths) > 0
		}
	}
	require.True(t, sawAdded, "expected a PathAdded derivative for the newly introduced section")
	require.True(t, sawRemoved, "expected a PathsRemoved derivative for the dropped section")

	_, ok = pm.Path(addedSection)
	require.True(t, ok)
	_, ok = pm.Path(removedSection)
	require.False(t, ok)
}

func TestProcessIgnoresIrrelevantEvents(t *testing.T) {
	net := bid(1)
	doc := bid(2)

	g := bidgraph.New()
	g.AddEdge(doc, net, sectionWeight(0))
	lk := lookupFixture{doc: {ID: "guide"}}

	pm := Build(net, g, lk.lookup)
	before := pm.AllPaths()

	derivatives := pm.Process(g, lk.lookup, event.BalanceCheck{})
	require.Nil(t, derivatives)
	require.Equal(t, before, pm.AllPaths())
}

func TestSpeculativePathAvoidsCollision(t *testing.T) {
	net := bid(1)
	doc := bid(2)

	g := bidgraph.New()
	g.AddEdge(doc, net, sectionWeight(0))
	lk := lookupFixture{doc: {ID: "guide"}}

	pm := Build(net, g, lk.lookup)

	fresh := pm.SpeculativePath("guide", "", "New Heading", 3)
	require.Equal(t, "guide#new-heading", fresh)

	// Collide deliberately with an existing heading path.
	pm.pathIdx["guide#new-heading"] = 0
	collided := pm.SpeculativePath("guide", "", "New Heading", 3)
	require.NotEqual(t, fresh, collided)
	require.Contains(t, collided, "3")
}

func TestMapEnsureNetAndDispatch(t *testing.T) {
	net := bid(1)
	doc := bid(2)

	m := NewMap()
	pm := m.EnsureNet(net)
	require.Equal(t, net, pm.Net())

	again := m.EnsureNet(net)
	require.Same(t, pm, again)

	g := bidgraph.New()
	g.AddEdge(doc, net, sectionWeight(0))
	lk := lookupFixture{doc: {ID: "guide"}}

	derivatives := m.Dispatch(g, lk.lookup, event.NewRelationUpdate(doc, net, sectionWeight(0), event.Remote))
	require.NotNil(t, derivatives)

	path, ok := m.HomePath(doc)
	require.True(t, ok)
	require.Equal(t, "guide", path)

	m.NoteTitle(doc, "Guide")
	title, ok := m.Title(doc)
	require.True(t, ok)
	require.Equal(t, "Guide", title)

	m.Forget(doc)
	_, ok = m.Title(doc)
	require.False(t, ok)
}
