package graphbuilder

import (
	"errors"
	"fmt"
)

// Sentinel errors. Callers branch on these with errors.Is; they are never
// wrapped with additional formatted text at the point of definition — any
// context is attached at the call site via builderErrorf.
var (
	// ErrNoParent indicates a proto-node's path does not sit beneath any
	// network or document root currently on the builder's stack, and the
	// stack itself is empty (so there is no API fallback to attach to).
	ErrNoParent = errors.New("graphbuilder: no legal parent on stack")

	// ErrEmptyPath indicates a proto-node was pushed with an empty path.
	ErrEmptyPath = errors.New("graphbuilder: proto-node has empty path")

	// ErrUnbalancedRepo indicates ParseContent was called before a repo
	// root network was established.
	ErrUnbalancedRepo = errors.New("graphbuilder: repo root not established")

	// ErrMalformedDocument indicates a proto-node's document table could not
	// be decoded into a belief.Node (fatal: propagated, not a diagnostic).
	ErrMalformedDocument = errors.New("graphbuilder: malformed proto-node document table")

	// ErrNoPathMap indicates a section's home network has no PathMap yet,
	// so a speculative path cannot be computed.
	ErrNoPathMap = errors.New("graphbuilder: no path map for network")
)

// builderErrorf attaches the calling method's name to a wrapped sentinel,
// matching builder/errors.go's convention: algorithms never panic on bad
// input, they return a wrapped sentinel instead.
func builderErrorf(method string, base error, format string, args ...any) error {
	return fmt.Errorf("graphbuilder.%s: %w: %s", method, base, fmt.Sprintf(format, args...))
}
