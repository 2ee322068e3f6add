package compiler

import (
	"errors"
	"fmt"
)

// ErrNoCodec means a network config file has no registered Codec, or its
// Codec could not decode it into a proto-node. Other files without a Codec
// are treated as assets and never produce this error.
var ErrNoCodec = errors.New("compiler: no codec for file extension")

// ErrMaxReparse means a path exceeded its reparse cap (spec.md §4.4 step 2);
// surfaced as a diagnostic on the step's result, not a hard failure.
var ErrMaxReparse = errors.New("compiler: max reparse limit reached")

// ErrEntryNotFound means the configured entry point does not exist on disk.
var ErrEntryNotFound = errors.New("compiler: entry point not found")

// compilerErrorf wraps base with method/format context, mirroring
// builder/errors.go's single wrapping helper.
func compilerErrorf(method string, base error, format string, args ...any) error {
	return fmt.Errorf("compiler.%s: %w: %s", method, base, fmt.Sprintf(format, args...))
}
