package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport marks a failed exchange with the backend: the request could
	// not be sent, the connection broke, the context was cancelled or the API
	// answered with a non-success status.
	ErrTransport = errors.New("llm: transport failure")

	// ErrMalformedResponse marks a response that arrived but could not be
	// decoded into a completion.
	ErrMalformedResponse = errors.New("llm: malformed response")
)

// StatusError is a non-success HTTP answer from a backend. It wraps
// [ErrTransport].
type StatusError struct {
	// StatusCode is the HTTP status returned by the API.
	StatusCode int

	// Body is a bounded excerpt of the response body, usually the API's error
	// object.
	Body string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("api returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("api returned HTTP %d: %s", e.StatusCode, e.Body)
}

// Unwrap makes errors.Is(err, ErrTransport) hold for every status error.
func (e *StatusError) Unwrap() error { return ErrTransport }

// Transport wraps err so that it matches [ErrTransport] while keeping the
// original cause reachable through errors.Is / errors.As.
func Transport(err error) error {
	if err == nil || errors.Is(err, ErrTransport) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

// Malformed wraps err so that it matches [ErrMalformedResponse].
func Malformed(err error) error {
	if err == nil || errors.Is(err, ErrMalformedResponse) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
}
