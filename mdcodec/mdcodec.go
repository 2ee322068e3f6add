// Package mdcodec implements compiler.Codec for Markdown documents with an
// optional TOML frontmatter block, and for the bare-TOML network config
// files a tree's directories use to mark themselves as network roots
// (spec.md §6's "Network file discovery" and "Node text serialization").
package mdcodec

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/buildonomy/noet-core/belief"
	"github.com/buildonomy/noet-core/graphbuilder"
	"github.com/buildonomy/noet-core/ident"
	"github.com/buildonomy/noet-core/weight"
)

// networkConfigNames mirrors compiler.NetworkConfigNames; duplicated here
// rather than imported so mdcodec has no dependency on the compiler
// package, keeping the codec usable standalone.
var networkConfigNames = map[string]bool{"BeliefNetwork.toml": true, "network.toml": true}

var headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
var linkPattern = regexp.MustCompile(`\[([^\]]*)\]\(([^)]+)\)`)
var schemePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)

const frontMatterDelim = "+++"

// Codec decodes Markdown (with optional TOML frontmatter) and bare-TOML
// network config files into graphbuilder.ProtoNode trees.
type Codec struct {
	rendered map[string][]byte
}

// New returns a ready-to-use Codec.
func New() *Codec { return &Codec{rendered: make(map[string][]byte)} }

// Extensions reports the file extensions this codec claims.
func (c *Codec) Extensions() []string { return []string{"md", "toml"} }

// Decode dispatches to the network-config or Markdown-document parser
// depending on path's basename.
func (c *Codec) Decode(path string, content []byte) ([]graphbuilder.ProtoNode, error) {
	base := path
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		base = path[i+1:]
	}
	if networkConfigNames[base] {
		return decodeNetwork(path, content)
	}
	return decodeMarkdown(path, content)
}

// networkFrontMatter is the shape a network config file's TOML decodes
// into: just enough to build the network's own ProtoNode.
type networkFrontMatter struct {
	ID      string `toml:"id"`
	Title   string `toml:"title"`
	Summary string `toml:"summary"`
}

func decodeNetwork(path string, content []byte) ([]graphbuilder.ProtoNode, error) {
	var fm networkFrontMatter
	if err := toml.Unmarshal(content, &fm); err != nil {
		return nil, fmt.Errorf("mdcodec: decode network config %s: %w", path, err)
	}
	title := fm.Title
	if title == "" {
		title = fm.ID
	}
	doc := map[string]any{}
	if fm.Summary != "" {
		doc["summary"] = fm.Summary
	}
	return []graphbuilder.ProtoNode{{
		Path: path, Heading: 1, Kind: belief.KindNetwork,
		Title: title, ID: fm.ID, Document: doc,
	}}, nil
}

// docFrontMatter is the optional "+++...+++" block a Markdown document may
// open with, naming its own id/schema and any extra relations beyond the
// ones its body's Markdown links already establish.
type docFrontMatter struct {
	ID       string   `toml:"id"`
	Schema   string   `toml:"schema"`
	Upstream []string `toml:"upstream"`
}

// splitFrontMatter returns the decoded frontmatter block (if any) and the
// remaining body bytes.
func splitFrontMatter(content []byte) (docFrontMatter, []byte, error) {
	text := string(content)
	if !strings.HasPrefix(text, frontMatterDelim) {
		return docFrontMatter{}, content, nil
	}
	rest := text[len(frontMatterDelim):]
	end := strings.Index(rest, "\n"+frontMatterDelim)
	if end < 0 {
		return docFrontMatter{}, content, nil
	}
	raw := rest[:end]
	body := rest[end+len(frontMatterDelim)+1:]
	var fm docFrontMatter
	if err := toml.Unmarshal([]byte(raw), &fm); err != nil {
		return docFrontMatter{}, nil, fmt.Errorf("mdcodec: decode frontmatter: %w", err)
	}
	return fm, []byte(strings.TrimPrefix(body, "\n")), nil
}

// headingLine is one ATX heading found while scanning a document's body.
type headingLine struct {
	depth int // number of leading '#'
	title string
	body  strings.Builder
}

// decodeMarkdown parses a Markdown document into one ProtoNode per heading:
// the first heading becomes the document root (Heading=2); every deeper
// heading becomes a section (Heading = 2 + depth - firstDepth). Markdown
// links in a heading's body become Downstream relations, resolved either
// against the href namespace (absolute-scheme targets) or as a repo-
// relative path (bare targets, left for graphbuilder.regularizeKey to
// resolve against the owning document's own network and directory).
func decodeMarkdown(path string, content []byte) ([]graphbuilder.ProtoNode, error) {
	fm, body, err := splitFrontMatter(content)
	if err != nil {
		return nil, err
	}

	var headings []*headingLine
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if m := headingPattern.FindStringSubmatch(line); m != nil {
			headings = append(headings, &headingLine{depth: len(m[1]), title: strings.TrimSpace(m[2])})
			continue
		}
		if len(headings) > 0 {
			cur := headings[len(headings)-1]
			cur.body.WriteString(line)
			cur.body.WriteByte('\n')
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("mdcodec: scan %s: %w", path, err)
	}
	if len(headings) == 0 {
		return nil, fmt.Errorf("mdcodec: %s has no heading", path)
	}

	firstDepth := headings[0].depth
	nodes := make([]graphbuilder.ProtoNode, 0, len(headings))
	for i, h := range headings {
		level := 2 + (h.depth - firstDepth)
		proto := graphbuilder.ProtoNode{
			Path: path, Heading: level, Title: h.title,
			Document: map[string]any{},
		}
		if i == 0 {
			proto.Kind = belief.KindDocument
			proto.ID = fm.ID
			proto.Schema = fm.Schema
		} else {
			proto.Kind = belief.KindSection
		}
		proto.Downstream = linksToRelations(h.body.String())
		if i == 0 {
			proto.Upstream = frontMatterRelations(fm.Upstream)
		}
		nodes = append(nodes, proto)
	}
	return nodes, nil
}

// linksToRelations turns every Markdown link in text into a Downstream
// RelationSpec: an absolute-scheme target resolves under the reserved href
// namespace, a bare target is a repo-relative path left for graphbuilder to
// regularize against the owning document's own network and directory.
func linksToRelations(text string) []graphbuilder.RelationSpec {
	matches := linkPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]graphbuilder.RelationSpec, 0, len(matches))
	for _, m := range matches {
		target := strings.TrimSpace(m[2])
		if target == "" {
			continue
		}
		out = append(out, relationFor(target))
	}
	return out
}

// frontMatterRelations turns a frontmatter "upstream" list into relations
// the same way linksToRelations does for body links.
func frontMatterRelations(targets []string) []graphbuilder.RelationSpec {
	out := make([]graphbuilder.RelationSpec, 0, len(targets))
	for _, t := range targets {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		out = append(out, relationFor(t))
	}
	return out
}

func relationFor(target string) graphbuilder.RelationSpec {
	if schemePattern.MatchString(target) {
		return graphbuilder.RelationSpec{
			OtherKey: ident.KeyFromID(ident.HrefNamespace(), target),
			Kind:     weight.Epistemic,
		}
	}
	return graphbuilder.RelationSpec{
		OtherKey: ident.NodeKey{Tag: ident.KeyPath, Path: target},
		Kind:     weight.Epistemic,
	}
}

// ContextInjector reports that mdcodec has no Phase 4 context-injection
// callback: resolved-node text is not rewritten back into the Markdown
// body during this parse.
func (c *Codec) ContextInjector(string) graphbuilder.Codec { return nil }

// RewrittenContent always reports no rewrite: mdcodec never mutates a
// document's bytes as a side effect of parsing it.
func (c *Codec) RewrittenContent(string) ([]byte, bool) { return nil, false }
