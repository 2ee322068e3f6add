package mdcodec

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/buildonomy/noet-core/compiler"
)

// Render produces a minimal standalone HTML fragment for a resolved node
// (spec.md §4.4 step 9's optional HTML output): a heading for the node's
// title and a definition list of its payload fields, sorted for
// deterministic output. This is not a Markdown-to-HTML renderer — the
// document body itself is not reproduced, only the resolved node's own
// title/payload. The BaseURL and CDN fields of ctx are not used.
func (c *Codec) Render(path string, ctx compiler.RenderContext) (string, bool) {
	node := ctx.Node.Node
	var b strings.Builder
	fmt.Fprintf(&b, "<article data-bid=%q>\n", node.Bid.String())
	fmt.Fprintf(&b, "  <h1>%s</h1>\n", html.EscapeString(node.Title))
	if len(node.Payload) > 0 {
		b.WriteString("  <dl>\n")
		keys := make([]string, 0, len(node.Payload))
		for k := range node.Payload {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "    <dt>%s</dt><dd>%v</dd>\n", html.EscapeString(k), node.Payload[k])
		}
		b.WriteString("  </dl>\n")
	}
	b.WriteString("</article>\n")
	return b.String(), true
}
