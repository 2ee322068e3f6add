package graphbuilder

import (
	"strings"

	"github.com/buildonomy/noet-core/belief"
	"github.com/buildonomy/noet-core/ident"
)

// stackFrame is one entry of the parent-from-stack rule (spec.md §4.3.a):
// the Bid already pushed for a proto-node, the repo-relative path it was
// pushed at, and its heading depth.
type stackFrame struct {
	bid     ident.Bid
	path    string
	heading int
}

// parentFromStack implements §4.3.a: pop frames until the top is a legal
// parent for proto, or the stack empties (in which case the API node is the
// parent). A Network/Document proto needs a frame whose path is a strict
// prefix of its own; a Section needs a frame at the same path with a
// shallower heading. Popped frames are discarded for good, since every
// later proto in a depth-first walk is only as shallow or deeper than the
// current one.
func (gb *GraphBuilder) parentFromStack(proto ProtoNode) (ident.Bid, string) {
	structural := proto.Kind.Has(belief.KindNetwork) || proto.Kind.Has(belief.KindDocument)
	first := true
	for len(gb.stack) > 0 {
		if !first {
			gb.stack = gb.stack[:len(gb.stack)-1]
		}
		first = false
		if len(gb.stack) == 0 {
			break
		}
		top := gb.stack[len(gb.stack)-1]
		switch {
		case structural && strings.HasPrefix(proto.Path, top.path) && proto.Path != top.path:
			return top.bid, relativePath(proto.Path, top.path)
		case !structural && proto.Path == top.path && top.heading < proto.Heading:
			return top.bid, ""
		}
	}
	return gb.docBB.API().Bid, ""
}

// networkFromStack returns the Bid of the nearest enclosing network frame
// (heading == 1), falling back to the established repo root, or Nil if
// neither is known yet (only possible while pushing the very first network).
func (gb *GraphBuilder) networkFromStack() ident.Bid {
	for i := len(gb.stack) - 1; i >= 0; i-- {
		if gb.stack[i].heading == 1 {
			return gb.stack[i].bid
		}
	}
	return gb.repoRoot
}

// relativePath strips base as a plain string prefix from p, then a leading
// "/", returning "" if nothing remains (p equals base). When base is not a
// prefix of p, p is returned with only a leading "/" removed.
func relativePath(p, base string) string {
	if base == "" {
		return strings.TrimPrefix(p, "/")
	}
	rel := strings.TrimPrefix(p, base)
	rel = strings.TrimPrefix(rel, "/")
	return rel
}

// initializeStack resets the per-document scope (Phase 0, spec.md §4.3):
// a fresh doc_bb, an empty stack, then one push per ancestor network/
// document proto-node (root-first), installing the root network's Section
// edge to the API node along the way.
func (gb *GraphBuilder) initializeStack(homePath string, ancestors []ProtoNode) error {
	gb.docBB = belief.New()
	gb.stack = nil

	for _, anc := range ancestors {
		if anc.Path == "" {
			return builderErrorf("initializeStack", ErrEmptyPath, "ancestor of %s", homePath)
		}
		if _, _, _, err := gb.push(anc); err != nil {
			return err
		}
	}
	return nil
}
