// Package errs holds the error taxonomy shared by the recurrent module and its
// collaborators. Call sites wrap these sentinels with fmt.Errorf("...: %w", ...)
// so callers can classify failures with errors.Is.
package errs

import "errors"

var (
	// ErrInvalidArgument reports malformed construction parameters or
	// malformed call arguments (shapes, arities, probabilities).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrOutOfRange reports an index outside the addressable range of a collection.
	ErrOutOfRange = errors.New("out of range")
)
