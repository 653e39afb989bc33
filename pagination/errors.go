package pagination

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidOptions matches any ValidationError via errors.Is.
	ErrInvalidOptions = errors.New("pagination: invalid options")

	// ErrUnrecognizedShape is returned when a payload matches neither
	// recognized response shape.
	ErrUnrecognizedShape = errors.New("pagination: unrecognized response shape")

	// ErrInvalidPage is returned by RobustFetch when a successful response
	// fails validation on every attempt.
	ErrInvalidPage = errors.New("pagination: response failed validation")

	// ErrClosed is returned by a ConcurrentIterator after Close.
	ErrClosed = errors.New("pagination: iterator closed")
)

// ValidationError reports out-of-range pagination options. It is terminal:
// the request is never sent and never retried.
type ValidationError struct {
	Endpoint string
	Errors   []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("pagination: invalid options for %q: %s", e.Endpoint, strings.Join(e.Errors, "; "))
}

// Is reports ErrInvalidOptions as a match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidOptions
}

// invalidPageError carries the validator's reason for a rejected payload.
type invalidPageError struct {
	err error
}

func (e *invalidPageError) Error() string {
	return fmt.Sprintf("%v: %v", ErrInvalidPage, e.err)
}

func (e *invalidPageError) Unwrap() []error {
	return []error{ErrInvalidPage, e.err}
}
