package compiler

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"

	"github.com/buildonomy/noet-core/belief"
	"github.com/buildonomy/noet-core/event"
	"github.com/buildonomy/noet-core/ident"
	"github.com/buildonomy/noet-core/weight"
)

// assetNamespaceSelf mirrors belief's private constBidSource so this
// package recomputes the same deterministic Bid belief.New seeds for the
// reserved asset network, without needing a second accessor exposed from
// belief just for this one constant.
type assetNamespaceSelf struct{}

func (assetNamespaceSelf) Next() uint64 { return 1 }

func assetNetworkBid() ident.Bid {
	return ident.NewInNamespace(ident.AssetNamespace(), assetNamespaceSelf{})
}

// assetEntry is one tracked asset: its content hash and the Bid it was
// last installed under.
type assetEntry struct {
	Bid  ident.Bid
	Hash string
}

// assetManifest is the repo-relative-path -> content-addressed-Bid table
// (spec.md §4.4's "Asset manifest"), guarded by its own lock. The Watcher
// does not consult it when deciding what to enqueue.
type assetManifest struct {
	mu      sync.RWMutex
	entries map[string]assetEntry
}

func newAssetManifest() *assetManifest {
	return &assetManifest{entries: make(map[string]assetEntry)}
}

func (m *assetManifest) get(path string) (assetEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[path]
	return e, ok
}

func (m *assetManifest) set(path string, e assetEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[path] = e
}

// Paths returns every tracked asset's repo-relative path, sorted.
func (m *assetManifest) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.entries))
	for p := range m.entries {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// hashAsset computes the SHA-256 content hash used both to decide whether
// an asset needs updating and as the basis of its content-addressed alias
// (spec.md §4.4's "static/{sha256}.{ext}" post-pass).
func hashAsset(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// assetNode builds the BeliefNode for an asset at bid with the given
// content hash (spec.md §4.4 step 4: "kind External and a content_hash
// payload field").
func assetNode(bid ident.Bid, hash string) belief.Node {
	return belief.Node{
		Bid:     bid,
		Kind:    belief.KindExternal,
		Payload: map[string]any{"content_hash": hash},
	}
}

// ensureAssetNetwork installs the reserved asset network's Section edge to
// the API node in base, if it is not already present — mirroring
// graphbuilder's ensureHrefNode pattern for the other reserved namespace.
func ensureAssetNetwork(base *belief.Base) {
	netBid := assetNetworkBid()
	if _, ok := base.Relations().FindEdge(netBid, base.API().Bid); ok {
		return
	}
	if _, ok := base.State(netBid); !ok {
		net := belief.Node{Bid: netBid, Kind: belief.KindNetwork | belief.KindExternal, Title: "assets"}
		toml, err := belief.ToTOML(net)
		if err != nil {
			return
		}
		base.ProcessEvent(event.NewNodeUpdate([]ident.NodeKey{ident.KeyFromBid(netBid)}, toml, event.Remote))
	}
	w := weight.NewWeight().WithOwnedBy(weight.OwnedBySource)
	base.ProcessEvent(event.NewRelationChange(netBid, base.API().Bid, weight.Section, &w, event.Remote))
}

// installAsset inserts or updates an asset node in base and its Section
// edge into the asset network, tagging the edge with the asset's
// repo-relative path via the reserved doc_paths weight key.
func installAsset(base *belief.Base, bid ident.Bid, hash, repoRelativePath string) {
	ensureAssetNetwork(base)
	node := assetNode(bid, hash)
	toml, err := belief.ToTOML(node)
	if err != nil {
		return
	}
	base.ProcessEvent(event.NewNodeUpdate([]ident.NodeKey{ident.KeyFromBid(bid)}, toml, event.Remote))
	w := weight.NewWeight().WithOwnedBy(weight.OwnedBySink)
	w[weight.KeyDocPaths] = []string{repoRelativePath}
	base.ProcessEvent(event.NewRelationChange(bid, assetNetworkBid(), weight.Section, &w, event.Remote))
}
