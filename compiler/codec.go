package compiler

import (
	"strings"

	"github.com/buildonomy/noet-core/graphbuilder"
)

// NetworkConfigNames is the predeclared list of filenames that mark a
// directory as a network root (spec.md §6, "Network file discovery"). The
// core only consumes this list; a codec is responsible for actually
// parsing whichever of these files it finds.
var NetworkConfigNames = []string{"BeliefNetwork.toml", "network.toml"}

// Codec is what a Compiler needs from a document format: the extensions it
// claims, a way to turn file bytes into proto-nodes (and optionally
// rewritten bytes, for Phase 4 injection results to round-trip back to
// disk), and an optional per-document context injector.
type Codec interface {
	// Extensions lists the file extensions (without the leading dot, e.g.
	// "md") this codec decodes.
	Extensions() []string
	// Decode parses content into the document's own proto-nodes (the
	// network/ancestor chain is supplied separately by the compiler, which
	// tracks it by walking the directory tree). A nil rewritten return means
	// content needs no rewrite.
	Decode(path string, content []byte) (nodes []graphbuilder.ProtoNode, err error)
	// ContextInjector returns the Phase 4 callback for this parse, or nil if
	// this codec never rewrites payloads post-resolution.
	ContextInjector(path string) graphbuilder.Codec
	// RewrittenContent returns the source bytes a prior ContextInjector
	// callback produced for path, if any changed payload needs to be
	// written back to disk (spec.md §4.4 step 8). A codec that never
	// rewrites content can always return ("", false).
	RewrittenContent(path string) (content []byte, ok bool)
	// Render renders path's resolved node tree as HTML, or returns ok=false
	// if this codec has no HTML rendering (spec.md §4.4 step 9).
	Render(path string, ctx RenderContext) (html string, ok bool)
}

// RenderContext is the read-only view a Codec's Render hook gets into a
// document's resolved state.
type RenderContext struct {
	Node     graphbuilder.NodeContext
	BaseURL  string
	CDN      bool
}

// CodecMap dispatches a file extension to the Codec that claims it.
type CodecMap map[string]Codec

// NewCodecMap builds a dispatch table from a set of codecs, indexing each
// by every extension it reports.
func NewCodecMap(codecs ...Codec) CodecMap {
	m := make(CodecMap)
	for _, c := range codecs {
		for _, ext := range c.Extensions() {
			m[strings.ToLower(ext)] = c
		}
	}
	return m
}

// Lookup returns the Codec registered for path's extension, if any.
func (m CodecMap) Lookup(path string) (Codec, bool) {
	ext := strings.TrimPrefix(strings.ToLower(extOf(path)), ".")
	c, ok := m[ext]
	return c, ok
}

// extOf returns path's extension including the leading dot, or "" if path
// has none.
func extOf(path string) string {
	i := strings.LastIndex(path, ".")
	if i < 0 || strings.ContainsRune(path[i:], '/') {
		return ""
	}
	return path[i:]
}

// isNetworkConfigName reports whether base (a bare filename, no directory
// component) names a recognized network-root config file.
func isNetworkConfigName(base string) bool {
	for _, name := range NetworkConfigNames {
		if base == name {
			return true
		}
	}
	return false
}
