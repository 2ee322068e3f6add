package graphbuilder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buildonomy/noet-core/belief"
	"github.com/buildonomy/noet-core/ident"
	"github.com/buildonomy/noet-core/weight"
)

// seqSrc is a deterministic, incrementing ident.RandSource for reproducible
// Bids across a test run.
type seqSrc struct{ n uint64 }

func (s *seqSrc) Next() uint64 {
	s.n++
	return s.n
}

func newTestBuilder() *GraphBuilder {
	return New(WithRandSource(&seqSrc{}))
}

func networkProto(path, title string) ProtoNode {
	return ProtoNode{Path: path, Heading: 1, Kind: belief.KindNetwork, Title: title, ID: title, Document: map[string]any{}}
}

func documentProto(path, title, id string) ProtoNode {
	return ProtoNode{Path: path, Heading: 2, Kind: belief.KindDocument, Title: title, ID: id, Document: map[string]any{}}
}

func sectionProto(path, title string, heading int) ProtoNode {
	return ProtoNode{Path: path, Heading: heading, Kind: belief.KindSection, Title: title, Document: map[string]any{}}
}

func TestParseContentBuildsNetworkDocumentAndSections(t *testing.T) {
	gb := newTestBuilder()

	ancestors := []ProtoNode{networkProto("docs", "docs")}
	nodes := []ProtoNode{
		documentProto("docs/guide.md", "Guide", "guide"),
		sectionProto("docs/guide.md", "Intro", 3),
	}

	result, err := gb.ParseContent("docs/guide.md", ancestors, nodes, nil)
	require.NoError(t, err)
	require.Empty(t, result.Diagnostics)
	require.NotEmpty(t, result.Events)

	doc, ok := gb.SessionBase().Get(ident.KeyFromID(gb.Repo().Namespace(), "guide"))
	require.True(t, ok)
	require.Equal(t, "Guide", doc.Title)
	require.True(t, doc.Kind.Has(belief.KindDocument))

	edges := gb.SessionBase().Relations().InEdges(doc.Bid, sectionKind)
	require.Len(t, edges, 1)

	sec, ok := gb.SessionBase().State(edges[0].From)
	require.True(t, ok)
	require.Equal(t, "Intro", sec.Title)
}

func TestParseContentReportsUnresolvedReference(t *testing.T) {
	gb := newTestBuilder()

	missing := ident.KeyFromID(0, "missing")
	doc := documentProto("docs/guide.md", "Guide", "guide")
	doc.Upstream = []RelationSpec{{OtherKey: missing, Kind: weight.Epistemic}}

	ancestors := []ProtoNode{networkProto("docs", "docs")}
	result, err := gb.ParseContent("docs/guide.md", ancestors, []ProtoNode{doc}, nil)
	require.NoError(t, err)
	require.Len(t, result.Diagnostics, 1)

	unresolved, ok := result.Diagnostics[0].(UnresolvedReference)
	require.True(t, ok)
	require.Equal(t, Incoming, unresolved.Direction)
	require.Equal(t, weight.Epistemic, unresolved.Kind)
}

func TestParseContentWrapsHrefLink(t *testing.T) {
	gb := newTestBuilder()

	url := "https://example.com"
	doc := documentProto("docs/guide.md", "Guide", "guide")
	doc.Downstream = []RelationSpec{{
		OtherKey: ident.KeyFromID(ident.HrefNamespace(), url),
		Kind:     weight.Epistemic,
	}}

	ancestors := []ProtoNode{networkProto("docs", "docs")}
	result, err := gb.ParseContent("docs/guide.md", ancestors, []ProtoNode{doc}, nil)
	require.NoError(t, err)
	require.Empty(t, result.Diagnostics)

	wrapper, ok := gb.SessionBase().Get(ident.KeyFromID(ident.HrefNamespace(), url))
	require.True(t, ok)
	require.True(t, wrapper.Kind.Has(belief.KindExternal))
	require.True(t, wrapper.Kind.Has(belief.KindTrace))
}
