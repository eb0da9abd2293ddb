package avifgain

import "errors"

// Failure categories. Operations wrap these with context so callers can
// branch with errors.Is while still seeing the failing precondition.
var (
	// ErrInvalidArgument marks malformed or incompatible inputs: dimension
	// mismatch, missing gain map, degenerate fraction, unsupported
	// matrix/chroma/depth combination. Never worth retrying.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotImplemented marks a requested quality path that is unavailable
	// in the current configuration. The caller may retry with a relaxed
	// policy.
	ErrNotImplemented = errors.New("not implemented")

	// ErrOutOfMemory marks a failed plane allocation. No partial state is
	// retained.
	ErrOutOfMemory = errors.New("out of memory")

	// ErrUnrepresentable marks a floating value that cannot be expressed as
	// a fraction with 32-bit numerator and denominator.
	ErrUnrepresentable = errors.New("value not representable as fraction")
)
