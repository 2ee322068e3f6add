package compiler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/buildonomy/noet-core/source"
)

// defaultMaxReparse is the per-file reparse cap (spec.md §4.4's "default 3").
const defaultMaxReparse = 3

// Option customizes a Compiler's behavior. Option constructors never panic
// and ignore nil/zero inputs, matching graphbuilder's convention.
type Option func(cfg *compilerConfig)

// compilerConfig holds the configurable parameters a Compiler is built
// from. Not safe for concurrent mutation; each New call gets its own.
type compilerConfig struct {
	write        bool
	force        bool
	htmlOutput   string
	baseURL      string
	cdn          bool
	maxReparse   int
	log          *logrus.Logger
	global       source.BeliefSource
	registerer   prometheus.Registerer
	cacheSize    int
}

func newCompilerConfig(opts ...Option) *compilerConfig {
	cfg := &compilerConfig{
		write:      false,
		maxReparse: defaultMaxReparse,
		log:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithWriteBack enables rewriting source files with resolved Bids/paths
// once a document's references all resolve (spec.md §4.4 step 8).
func WithWriteBack(write bool) Option {
	return func(cfg *compilerConfig) { cfg.write = write }
}

// WithHTMLOutput configures a directory to render HTML alongside source
// parsing (spec.md §4.4 step 9). An empty dir disables HTML output.
func WithHTMLOutput(dir string) Option {
	return func(cfg *compilerConfig) {
		if dir != "" {
			cfg.htmlOutput = dir
		}
	}
}

// WithBaseURL sets the base URL a Codec's Render hook should resolve
// relative links against (spec.md §6's "parse --base-url").
func WithBaseURL(url string) Option {
	return func(cfg *compilerConfig) { cfg.baseURL = url }
}

// WithCDN tells a Codec's Render hook to prefer CDN-hosted asset references
// (spec.md §6's "parse --cdn").
func WithCDN(cdn bool) Option {
	return func(cfg *compilerConfig) { cfg.cdn = cdn }
}

// WithForce makes stepAsset reinstall every asset's node even when its
// content hash matches what the manifest already tracks, for a CLI
// invocation that wants to force a full reconciliation pass regardless of
// prior state (spec.md §6's "parse --force").
func WithForce(force bool) Option {
	return func(cfg *compilerConfig) { cfg.force = force }
}

// WithMaxReparse sets the per-file reparse cap. A non-positive value is a
// no-op, leaving defaultMaxReparse in effect.
func WithMaxReparse(n int) Option {
	return func(cfg *compilerConfig) {
		if n > 0 {
			cfg.maxReparse = n
		}
	}
}

// WithLogger injects a structured logger. A nil logger is a no-op.
func WithLogger(log *logrus.Logger) Option {
	return func(cfg *compilerConfig) {
		if log != nil {
			cfg.log = log
		}
	}
}

// WithGlobalSource sets the external BeliefSource the underlying
// GraphBuilder falls back to on a cache miss.
func WithGlobalSource(src source.BeliefSource) Option {
	return func(cfg *compilerConfig) {
		if src != nil {
			cfg.global = src
		}
	}
}

// WithMetricsRegisterer registers the compiler's stats gauges/counters
// against reg instead of the default Prometheus registry. A nil reg is a
// no-op (stats remain local-only, see stats.go).
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(cfg *compilerConfig) {
		if reg != nil {
			cfg.registerer = reg
		}
	}
}

// WithNodeCacheSize forwards the session-level node-lookup cache size to
// the underlying GraphBuilder. A non-positive size is a no-op.
func WithNodeCacheSize(n int) Option {
	return func(cfg *compilerConfig) {
		if n > 0 {
			cfg.cacheSize = n
		}
	}
}
