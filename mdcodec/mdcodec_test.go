package mdcodec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buildonomy/noet-core/belief"
	"github.com/buildonomy/noet-core/ident"
)

func TestDecodeNetworkConfig(t *testing.T) {
	content := []byte("id = \"docs\"\ntitle = \"Docs\"\nsummary = \"project documentation\"\n")
	nodes, err := decodeNetwork("docs/network.toml", content)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Equal(t, 1, nodes[0].Heading)
	require.True(t, nodes[0].Kind.Has(belief.KindNetwork))
	require.Equal(t, "docs", nodes[0].ID)
	require.Equal(t, "Docs", nodes[0].Title)
	require.Equal(t, "project documentation", nodes[0].Document["summary"])
}

func TestDecodeMarkdownBuildsDocumentAndSections(t *testing.T) {
	content := []byte(`+++
id = "guide"
+++
# Guide

See [Reference](reference.md) for details.

## Intro

Read more at [an external site](https://example.com).

### Details

Nothing here links anywhere.
`)
	nodes, err := decodeMarkdown("docs/guide.md", content)
	require.NoError(t, err)
	require.Len(t, nodes, 3)

	doc := nodes[0]
	require.Equal(t, 2, doc.Heading)
	require.True(t, doc.Kind.Has(belief.KindDocument))
	require.Equal(t, "guide", doc.ID)
	require.Equal(t, "Guide", doc.Title)
	require.Len(t, doc.Downstream, 1)
	require.Equal(t, ident.KeyPath, doc.Downstream[0].OtherKey.Tag)
	require.Equal(t, "reference.md", doc.Downstream[0].OtherKey.Path)

	intro := nodes[1]
	require.Equal(t, 3, intro.Heading)
	require.True(t, intro.Kind.Has(belief.KindSection))
	require.Equal(t, "Intro", intro.Title)
	require.Len(t, intro.Downstream, 1)
	require.Equal(t, ident.KeyID, intro.Downstream[0].OtherKey.Tag)
	require.Equal(t, ident.HrefNamespace(), intro.Downstream[0].OtherKey.Net)
	require.Equal(t, "https://example.com", intro.Downstream[0].OtherKey.ID)

	details := nodes[2]
	require.Equal(t, 4, details.Heading)
	require.True(t, details.Kind.Has(belief.KindSection))
	require.Empty(t, details.Downstream)
}

func TestDecodeMarkdownWithoutFrontMatter(t *testing.T) {
	content := []byte("# Bare\n\nNo frontmatter here.\n")
	nodes, err := decodeMarkdown("docs/bare.md", content)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Empty(t, nodes[0].ID)
	require.Equal(t, "Bare", nodes[0].Title)
}

func TestDecodeDispatchesOnFilename(t *testing.T) {
	c := New()
	nodes, err := c.Decode("net/network.toml", []byte("id = \"net\"\ntitle = \"Net\"\n"))
	require.NoError(t, err)
	require.True(t, nodes[0].Kind.Has(belief.KindNetwork))

	nodes, err = c.Decode("net/doc.md", []byte("# Doc\n"))
	require.NoError(t, err)
	require.True(t, nodes[0].Kind.Has(belief.KindDocument))
}
