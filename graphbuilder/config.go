package graphbuilder

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/buildonomy/noet-core/ident"
	"github.com/buildonomy/noet-core/source"
)

// defaultCacheSize bounds the session-level node-lookup cache (see cache.go).
const defaultCacheSize = 4096

// Option customizes a GraphBuilder's behavior. As a rule, option
// constructors never panic at runtime and ignore nil/zero inputs.
type Option func(cfg *builderConfig)

// builderConfig holds the configurable parameters a GraphBuilder is built
// from. Not safe for concurrent mutation; each New call gets its own.
type builderConfig struct {
	rand       ident.RandSource
	cacheSize  int
	log        *logrus.Logger
	global     source.BeliefSource
	reparseCap int
}

// newBuilderConfig returns a builderConfig initialized with defaults, then
// applies each provided Option in order. Later options override earlier.
func newBuilderConfig(opts ...Option) *builderConfig {
	cfg := &builderConfig{
		rand:       nil, // nil -> ident.DefaultRandSource
		cacheSize:  defaultCacheSize,
		log:        logrus.StandardLogger(),
		global:     nil,
		reparseCap: 3,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithRandSource injects a deterministic Bid entropy source. A nil src is a
// no-op and leaves ident.DefaultRandSource in effect.
func WithRandSource(src ident.RandSource) Option {
	return func(cfg *builderConfig) {
		if src != nil {
			cfg.rand = src
		}
	}
}

// WithCacheSize sets the session-level node-lookup cache's capacity. A
// non-positive size is a no-op.
func WithCacheSize(n int) Option {
	return func(cfg *builderConfig) {
		if n > 0 {
			cfg.cacheSize = n
		}
	}
}

// WithLogger injects a structured logger. A nil logger is a no-op.
func WithLogger(log *logrus.Logger) Option {
	return func(cfg *builderConfig) {
		if log != nil {
			cfg.log = log
		}
	}
}

// WithGlobalSource sets the external BeliefSource consulted when a key is
// absent from both the document scope and the session cache.
func WithGlobalSource(src source.BeliefSource) Option {
	return func(cfg *builderConfig) {
		if src != nil {
			cfg.global = src
		}
	}
}

// newSessionCache builds the LRU node-lookup cache sized per cfg.
func newSessionCache(cfg *builderConfig) *lru.Cache[ident.NodeKey, lookupEntry] {
	c, err := lru.New[ident.NodeKey, lookupEntry](cfg.cacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which
		// newBuilderConfig's default and WithCacheSize both rule out.
		c, _ = lru.New[ident.NodeKey, lookupEntry](defaultCacheSize)
	}
	return c
}
