// Package compiler implements the two-queue fixed-point scheduler that
// drives GraphBuilder over a filesystem tree: discovering network and
// document files, feeding their bytes through a Codec, and re-enqueueing
// whatever an UnresolvedReference diagnostic names until the tree reaches
// a fixed point or a file's reparse cap is hit (spec.md §4.4).
package compiler

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/buildonomy/noet-core/belief"
	"github.com/buildonomy/noet-core/event"
	"github.com/buildonomy/noet-core/graphbuilder"
	"github.com/buildonomy/noet-core/ident"
)

// StepResult is what one Step call reports: the path it acted on (empty
// once the scheduler reaches a fixed point), the events and diagnostics
// that path's parse produced, and whether any work remains.
type StepResult struct {
	Path              string
	Events            []event.Event
	Diagnostics       []graphbuilder.Diagnostic
	AffectedDocuments []string
	Done              bool
}

// Compiler is one filesystem-orchestrated parse session over a tree rooted
// at an entry point (spec.md §4.4).
type Compiler struct {
	cfg    *compilerConfig
	codecs CodecMap
	gb     *graphbuilder.GraphBuilder
	log    *logrus.Entry

	repoRoot string

	primary     []string
	reparse     *reparseQueue
	pendingDeps map[string][]string
	processed   map[string]int

	// lastRoundUpdates and reparseStable implement spec.md §4.4's livelock
	// guard: once the primary queue drains, Step works through the reparse
	// queue in passes. A pass that touches no Bid (lastRoundUpdates stays
	// empty) and discovers no new dependency (reparseStable stays true) means
	// another pass can only reproduce the same diagnostics, so the scheduler
	// reports Done instead of cycling until every file hits its reparse cap.
	lastRoundUpdates     map[ident.Bid]struct{}
	reparseStable        bool
	reparsePassRemaining int

	assets      *assetManifest
	networkDirs map[string]string
	netProtoOf  map[string]graphbuilder.ProtoNode

	statsColl *statsCollector
	stats     Stats
	events    *eventTap
}

// New builds a Compiler rooted at entryPoint (a file or directory),
// discovering every network/document/asset file beneath it up front.
func New(entryPoint string, codecs CodecMap, opts ...Option) (*Compiler, error) {
	cfg := newCompilerConfig(opts...)

	abs, err := filepath.Abs(entryPoint)
	if err != nil {
		return nil, compilerErrorf("New", ErrEntryNotFound, "%s: %v", entryPoint, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, compilerErrorf("New", ErrEntryNotFound, "%s: %v", entryPoint, err)
	}

	repoRoot := abs
	if fi, err := os.Stat(abs); err == nil && !fi.IsDir() {
		repoRoot = filepath.Dir(abs)
	}

	gbOpts := []graphbuilder.Option{graphbuilder.WithLogger(cfg.log)}
	if cfg.global != nil {
		gbOpts = append(gbOpts, graphbuilder.WithGlobalSource(cfg.global))
	}
	if cfg.cacheSize > 0 {
		gbOpts = append(gbOpts, graphbuilder.WithCacheSize(cfg.cacheSize))
	}

	c := &Compiler{
		cfg:              cfg,
		codecs:           codecs,
		gb:               graphbuilder.New(gbOpts...),
		log:              cfg.log.WithField("component", "compiler"),
		repoRoot:         repoRoot,
		reparse:          newReparseQueue(),
		pendingDeps:      map[string][]string{},
		processed:        map[string]int{},
		lastRoundUpdates: map[ident.Bid]struct{}{},
		assets:           newAssetManifest(),
		networkDirs:      map[string]string{},
		netProtoOf:       map[string]graphbuilder.ProtoNode{},
		statsColl:        newStatsCollector(cfg.registerer),
	}

	if err := c.discover(repoRoot); err != nil {
		return nil, err
	}
	return c, nil
}

// Stats returns the scheduler's current monotonic report (spec.md §7).
func (c *Compiler) Stats() Stats {
	c.stats.PrimaryQueueLength = len(c.primary)
	c.stats.ReparseQueueLength = c.reparse.len()
	c.stats.ProcessedCount = len(c.processed)
	c.stats.PendingDepsCount = len(c.pendingDeps)
	return c.stats
}

// Session exposes the accumulated session-scope belief state, for callers
// that need to query it directly (e.g. a serve surface).
func (c *Compiler) Session() *graphbuilder.GraphBuilder { return c.gb }

// discover walks the tree rooted at root in lexical order (spec.md §9's
// Open Question answer: "implementers should sort directory listings
// lexically"), recording every network-root directory and enqueueing
// every other regular file for parsing.
func (c *Compiler) discover(root string) error {
	var dirs []string
	fileSets := map[string][]string{}

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() != "." && len(d.Name()) > 0 && d.Name()[0] == '.' && p != root {
				return filepath.SkipDir
			}
			dirs = append(dirs, p)
			return nil
		}
		dir := filepath.Dir(p)
		fileSets[dir] = append(fileSets[dir], p)
		return nil
	})
	if err != nil {
		return compilerErrorf("discover", ErrEntryNotFound, "%s: %v", root, err)
	}
	sort.Strings(dirs)

	for _, dir := range dirs {
		files := fileSets[dir]
		sort.Strings(files)
		var configPath string
		for _, p := range files {
			if isNetworkConfigName(filepath.Base(p)) {
				configPath = p
				break
			}
		}
		if configPath != "" {
			c.networkDirs[dir] = configPath
		}
		for _, p := range files {
			if p == configPath {
				continue
			}
			c.primary = append(c.primary, p)
		}
	}
	// Network config files are parsed as the network's own document via
	// ancestorsFor/parseOne, seeded onto the front of the primary queue so
	// every network exists before anything beneath it is reconciled.
	var netFiles []string
	for _, cfgPath := range c.networkDirs {
		netFiles = append(netFiles, cfgPath)
	}
	sort.Strings(netFiles)
	c.primary = append(netFiles, c.primary...)
	return nil
}

// networkDirFor returns the nearest ancestor directory of dir (inclusive)
// that carries a network config, if any.
func (c *Compiler) networkDirFor(dir string) (string, bool) {
	for {
		if _, ok := c.networkDirs[dir]; ok {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// ancestorsFor returns the root-first chain of network proto-nodes
// enclosing absPath, parsing and caching each network config the first
// time it is needed.
func (c *Compiler) ancestorsFor(absPath string) ([]graphbuilder.ProtoNode, error) {
	startDir := filepath.Dir(absPath)
	var chain []string
	dir, ok := c.networkDirFor(startDir)
	for ok {
		chain = append(chain, dir)
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir, ok = c.networkDirFor(parent)
		if ok && dir == chain[len(chain)-1] {
			break
		}
	}
	// chain is leaf-to-root; reverse to root-first.
	var ancestors []graphbuilder.ProtoNode
	for i := len(chain) - 1; i >= 0; i-- {
		proto, err := c.networkProtoFor(chain[i])
		if err != nil {
			return nil, err
		}
		ancestors = append(ancestors, proto)
	}
	return ancestors, nil
}

// networkProtoFor decodes (and caches) the network config proto-node for
// the network rooted at dir.
func (c *Compiler) networkProtoFor(dir string) (graphbuilder.ProtoNode, error) {
	cfgPath := c.networkDirs[dir]
	if proto, ok := c.netProtoOf[cfgPath]; ok {
		return proto, nil
	}
	codec, ok := c.codecs.Lookup(cfgPath)
	if !ok {
		return graphbuilder.ProtoNode{}, compilerErrorf("networkProtoFor", ErrNoCodec, "%s", cfgPath)
	}
	content, err := os.ReadFile(cfgPath)
	if err != nil {
		return graphbuilder.ProtoNode{}, compilerErrorf("networkProtoFor", ErrEntryNotFound, "%s: %v", cfgPath, err)
	}
	nodes, err := codec.Decode(c.repoRelative(cfgPath), content)
	if err != nil || len(nodes) == 0 {
		return graphbuilder.ProtoNode{}, compilerErrorf("networkProtoFor", ErrNoCodec, "%s: %v", cfgPath, err)
	}
	proto := nodes[0]
	c.netProtoOf[cfgPath] = proto
	return proto, nil
}

// repoRelative converts an absolute path to a repo-relative, slash-separated
// path, the convention ProtoNode.Path expects.
func (c *Compiler) repoRelative(absPath string) string {
	rel, err := filepath.Rel(c.repoRoot, absPath)
	if err != nil {
		return filepath.ToSlash(absPath)
	}
	return filepath.ToSlash(rel)
}

// Step runs one iteration of the scheduler (spec.md §4.4's parse_next): pick
// the next candidate, parse or asset-hash it, harvest diagnostics, and
// update both queues. A Done result with an empty Path means the scheduler
// has reached a fixed point.
func (c *Compiler) Step(ctx context.Context) (StepResult, error) {
	path, ok, fromReparse := c.nextCandidate()
	if !ok {
		return StepResult{Done: true}, nil
	}
	if fromReparse {
		if c.reparsePassRemaining <= 0 {
			if len(c.lastRoundUpdates) == 0 && c.reparseStable {
				return StepResult{Done: true}, nil
			}
			c.reparsePassRemaining = c.reparse.len()
			c.lastRoundUpdates = map[ident.Bid]struct{}{}
			c.reparseStable = true
		}
		c.reparsePassRemaining--
	}

	count := c.processed[path]
	if count >= c.cfg.maxReparse {
		c.removeFromQueues(path)
		return StepResult{
			Path: path,
			Diagnostics: []graphbuilder.Diagnostic{graphbuilder.ParseError{
				Path: c.repoRelative(path),
				Err:  fmt.Errorf("%w: %d attempts", ErrMaxReparse, count),
			}},
		}, nil
	}
	c.processed[path] = count + 1
	c.statsColl.incParses()

	codec, isDoc := c.codecs.Lookup(path)
	if !isDoc {
		return c.stepAsset(path)
	}
	result, err := c.stepDocument(ctx, path, codec, fromReparse)
	c.statsColl.observe(c.Stats())
	return result, err
}

// nextCandidate peeks the primary queue, falling back to the reparse
// queue's lowest-pending-count entry. fromReparse reports which queue the
// candidate came from.
func (c *Compiler) nextCandidate() (path string, ok bool, fromReparse bool) {
	if len(c.primary) > 0 {
		return c.primary[0], true, false
	}
	path, ok = c.reparse.peek()
	return path, ok, true
}

// stepAsset treats path as a static asset (spec.md §4.4 step 4): hash its
// bytes, and skip, create, or update its node depending on whether the
// hash matches what is already tracked for this repo-relative path.
func (c *Compiler) stepAsset(path string) (StepResult, error) {
	c.popPrimaryIfHead(path)

	content, err := os.ReadFile(path)
	if err != nil {
		return StepResult{
			Path: path,
			Diagnostics: []graphbuilder.Diagnostic{graphbuilder.ParseError{
				Path: c.repoRelative(path), Err: err,
			}},
		}, nil
	}

	rel := c.repoRelative(path)
	hash := hashAsset(content)

	if existing, ok := c.assets.get(rel); ok && existing.Hash == hash && !c.cfg.force {
		return StepResult{Path: path}, nil
	}

	bid := ident.New(assetNetworkBid(), nil)
	if existing, ok := c.assets.get(rel); ok {
		bid = existing.Bid
	}
	installAsset(c.gb.SessionBase(), bid, hash, rel)
	c.assets.set(rel, assetEntry{Bid: bid, Hash: hash})

	return StepResult{Path: path}, nil
}

// removeFromQueues drops path from whichever queue currently holds it.
func (c *Compiler) removeFromQueues(path string) {
	for i, p := range c.primary {
		if p == path {
			c.primary = append(c.primary[:i], c.primary[i+1:]...)
			break
		}
	}
	c.reparse.remove(path)
	delete(c.pendingDeps, path)
}

// popPrimaryIfHead removes path from the front of the primary queue if it
// is there; used once a parse attempt (successful or not) completes.
func (c *Compiler) popPrimaryIfHead(path string) {
	if len(c.primary) > 0 && c.primary[0] == path {
		c.primary = c.primary[1:]
	}
}

// stepDocument runs Phase 0-5 for one document/network file and folds the
// resulting diagnostics into the two-queue state.
func (c *Compiler) stepDocument(ctx context.Context, path string, codec Codec, fromReparse bool) (StepResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		c.popPrimaryIfHead(path)
		c.reparse.remove(path)
		return StepResult{
			Path: path,
			Diagnostics: []graphbuilder.Diagnostic{graphbuilder.ParseError{
				Path: c.repoRelative(path), Err: err,
			}},
		}, nil
	}

	nodes, err := codec.Decode(c.repoRelative(path), content)
	if err != nil {
		c.popPrimaryIfHead(path)
		c.reparse.remove(path)
		return StepResult{
			Path: path,
			Diagnostics: []graphbuilder.Diagnostic{graphbuilder.ParseError{
				Path: c.repoRelative(path), Err: err,
			}},
		}, nil
	}

	ancestors, err := c.ancestorsFor(path)
	if err != nil {
		return StepResult{}, err
	}

	homePath := c.repoRelative(path)
	result, err := c.gb.ParseContent(homePath, ancestors, nodes, codec.ContextInjector(homePath))
	if err != nil {
		c.popPrimaryIfHead(path)
		c.reparse.remove(path)
		return StepResult{
			Path: path,
			Diagnostics: []graphbuilder.Diagnostic{graphbuilder.ParseError{
				Path: c.repoRelative(path), Err: err,
			}},
		}, nil
	}

	c.popPrimaryIfHead(path)
	unresolved := c.harvestDiagnostics(path, result.Diagnostics)
	if unresolved > 0 {
		c.reparse.upsert(path, unresolved)
	} else {
		c.reparse.remove(path)
	}

	for _, affected := range result.AffectedDocuments {
		c.enqueueAffected(affected)
	}
	if fromReparse {
		for _, bid := range updatedBids(result.Events) {
			c.lastRoundUpdates[bid] = struct{}{}
		}
	}

	if c.cfg.write {
		if rewritten, ok := codec.RewrittenContent(homePath); ok {
			_ = os.WriteFile(path, rewritten, 0o644)
		}
	}
	if c.cfg.htmlOutput != "" {
		c.renderHTML(path, codec, result)
	}

	return StepResult{
		Path:              path,
		Events:            result.Events,
		Diagnostics:       result.Diagnostics,
		AffectedDocuments: result.AffectedDocuments,
	}, nil
}

// updatedBids extracts the endpoint Bids touched by events that carry one,
// for the livelock guard's "Bids updated since the last reparse round began"
// check. NodeUpdate carries no resolved Bid of its own (it is still raw
// TOML at this point), so it is not represented here.
func updatedBids(events []event.Event) []ident.Bid {
	var out []ident.Bid
	for _, e := range events {
		switch ev := e.(type) {
		case event.RelationUpdate:
			out = append(out, ev.Source, ev.Sink)
		case event.RelationChange:
			out = append(out, ev.Source, ev.Sink)
		case event.RelationRemoved:
			out = append(out, ev.Source, ev.Sink)
		case event.NodesRemoved:
			out = append(out, ev.Bids...)
		case event.NodeRenamed:
			out = append(out, ev.From, ev.To)
		}
	}
	return out
}

// harvestDiagnostics is spec.md §4.4 step 6-7: for each UnresolvedReference
// with a resolvable sink path, enqueue that path if new and track the
// dependency; returns the count still outstanding for this path.
func (c *Compiler) harvestDiagnostics(path string, diags []graphbuilder.Diagnostic) int {
	var deps []string
	unresolved := 0
	for _, d := range diags {
		ur, ok := d.(graphbuilder.UnresolvedReference)
		if !ok {
			continue
		}
		unresolved++
		for _, key := range ur.OtherKeys {
			if key.Tag != ident.KeyPath || key.Path == "" {
				continue
			}
			target := filepath.Join(c.repoRoot, filepath.FromSlash(key.Path))
			deps = append(deps, target)
			if _, seen := c.processed[target]; !seen {
				if c.enqueuePrimary(target) {
					c.reparseStable = false
				}
			}
		}
	}
	if len(deps) > 0 {
		c.pendingDeps[path] = deps
	} else {
		delete(c.pendingDeps, path)
	}
	return unresolved
}

// enqueuePrimary appends target to the primary queue if it is not already
// queued there, reporting whether it actually added a new entry.
func (c *Compiler) enqueuePrimary(target string) bool {
	for _, p := range c.primary {
		if p == target {
			return false
		}
	}
	c.primary = append(c.primary, target)
	return true
}

// enqueueAffected re-enqueues a document whose referenced node changed
// identity (spec.md §4.4's "last-round updates" reparse trigger).
func (c *Compiler) enqueueAffected(repoRelative string) {
	target := filepath.Join(c.repoRoot, filepath.FromSlash(repoRelative))
	if c.reparse.len() > 0 {
		if _, queued := c.reparse.index[target]; queued {
			return
		}
	}
	if c.enqueuePrimary(target) {
		c.reparseStable = false
	}
}

// renderHTML asks codec to render the just-parsed document's own node, if
// the codec supports HTML output (spec.md §4.4 step 9).
func (c *Compiler) renderHTML(path string, codec Codec, result graphbuilder.ParseResult) {
	rel := c.repoRelative(path)
	node, ok := c.lookupByPath(rel)
	if !ok {
		return
	}
	html, ok := codec.Render(rel, RenderContext{
		Node:    graphbuilder.NodeContext{Node: node, Path: rel},
		BaseURL: c.cfg.baseURL,
		CDN:     c.cfg.cdn,
	})
	if !ok {
		return
	}
	outPath := filepath.Join(c.cfg.htmlOutput, rel+".html")
	_ = os.MkdirAll(filepath.Dir(outPath), 0o755)
	_ = os.WriteFile(outPath, []byte(html), 0o644)
}

// lookupByPath finds the node the session's accumulated path maps resolve
// rel to, scanning every known network the same way graphbuilder's own
// homePath does in the other direction.
func (c *Compiler) lookupByPath(rel string) (belief.Node, bool) {
	for _, net := range c.gb.SessionBase().Paths().Networks() {
		pm, ok := c.gb.SessionBase().Paths().ForNet(net.Namespace())
		if !ok {
			continue
		}
		bid, ok := pm.Get(rel)
		if !ok {
			continue
		}
		return c.gb.SessionBase().State(bid)
	}
	return belief.Node{}, false
}

// RunToFixedPoint steps the scheduler until both queues drain, invoking
// onStep after every non-terminal Step. It stops early if ctx is canceled.
func (c *Compiler) RunToFixedPoint(ctx context.Context, onStep func(StepResult)) (Stats, error) {
	for {
		select {
		case <-ctx.Done():
			return c.Stats(), ctx.Err()
		default:
		}
		result, err := c.Step(ctx)
		if err != nil {
			return c.Stats(), err
		}
		if result.Done {
			return c.Stats(), nil
		}
		if onStep != nil {
			onStep(result)
		}
	}
}
