package graphbuilder

import (
	"github.com/buildonomy/noet-core/belief"
	"github.com/buildonomy/noet-core/ident"
	"github.com/buildonomy/noet-core/source"
)

// lookupEntry is what the session-level LRU cache stores per NodeKey: a
// resolved node plus the scope it was resolved from, so a repeat hit does
// not need to re-derive where the node came from.
type lookupEntry struct {
	node   belief.Node
	source NodeSource
}

// cacheFetch resolves the first of keys that matches, checking scopes from
// narrowest to widest: the document currently being built, the session-wide
// LRU cache, the session BeliefBase (accumulated structural context from
// earlier in this parse session), and finally the external BeliefSource.
// A hit against the session base is itself cached before being returned, so
// repeat references within the same document don't re-walk session_bb.
func (gb *GraphBuilder) cacheFetch(keys []ident.NodeKey) (belief.Node, NodeSource, bool) {
	for _, key := range keys {
		if n, ok := gb.docBB.Get(key); ok {
			return n, SourceFile, true
		}
	}
	for _, key := range keys {
		if entry, ok := gb.cache.Get(key); ok {
			return entry.node, StackCache, true
		}
	}
	for _, key := range keys {
		if n, ok := gb.sessionBB.Get(key); ok {
			gb.cache.Add(key, lookupEntry{node: n, source: StackCache})
			return n, StackCache, true
		}
	}
	if gb.cfg.global != nil {
		for _, key := range keys {
			if n, ok := source.Lookup(gb.cfg.global, key); ok {
				gb.cache.Add(key, lookupEntry{node: n, source: GlobalCache})
				return n, GlobalCache, true
			}
		}
	}
	return belief.Node{}, Generated, false
}
