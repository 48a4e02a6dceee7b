package build

import "errors"

// Failure taxonomy for the engine. Concrete failures wrap one of these
// sentinels so callers can classify them with errors.Is.
var (
	// ErrConfiguration marks invalid graph declarations: duplicate artifact
	// names, a second transform claiming an existing output, or a group
	// colliding with a non-group artifact. Fatal at load time.
	ErrConfiguration = errors.New("invalid build configuration")

	// ErrMissingInput marks a leaf artifact that is required as an input but
	// does not exist.
	ErrMissingInput = errors.New("missing input")

	// ErrBodyExecution marks a transform body that returned an error. The
	// cached digests of its outputs are left invalidated.
	ErrBodyExecution = errors.New("transform failed")

	// ErrContractViolation marks a transform that completed without error but
	// broke its contract, e.g. by not materializing a declared output.
	ErrContractViolation = errors.New("transform contract violation")
)
