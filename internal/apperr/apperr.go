// Package apperr defines the error taxonomy shared by the refresh and
// caching core. Handlers map kinds onto HTTP status codes; fetchers and
// the aggregator classify upstream failures into them.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for propagation and status mapping.
type Kind string

const (
	// KindNotFound means the station is unknown or has no valid
	// observation data.
	KindNotFound Kind = "NotFound"

	// KindOutOfGrid means the coordinates lie outside every forecast
	// model rectangle. Internal; surfaces as "no forecast", never as an
	// HTTP error.
	KindOutOfGrid Kind = "OutOfGrid"

	// KindUpstreamUnavailable covers network errors, 5xx and 404
	// responses from external services after retries are exhausted.
	KindUpstreamUnavailable Kind = "UpstreamUnavailable"

	// KindTimeout means an individual fetch exceeded its hard deadline.
	KindTimeout Kind = "Timeout"

	// KindInternal means an otherwise well-formed upstream response
	// failed to parse. Indicates a bug or a producer format change.
	KindInternal Kind = "Internal"
)

// Error carries a kind, a human-readable message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error with the given kind and formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error that wraps a cause.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from err, or KindInternal when err carries
// no taxonomy information.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// MessageOf returns the taxonomy message from err, falling back to
// err.Error() for untyped errors.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
