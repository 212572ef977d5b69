package llamachat

import (
	"errors"
	"fmt"
)

// Construction and registration errors.
var (
	// ErrMissingAPIKey is returned by [New] when the API key is empty.
	ErrMissingAPIKey = errors.New("llamachat: api key must not be empty")

	// ErrMissingModel is returned by [New] and [ParseModel] when the model
	// identifier is empty.
	ErrMissingModel = errors.New("llamachat: model must not be empty")

	// ErrInvalidFunction is returned by [Registry.Register] for an entry that
	// cannot be registered.
	ErrInvalidFunction = errors.New("llamachat: invalid function")
)

// Sentinels matched by the typed chat errors below.
var (
	ErrTransport        = errors.New("llamachat: transport error")
	ErrParse            = errors.New("llamachat: parse error")
	ErrUnknownFunction  = errors.New("llamachat: unknown function")
	ErrInvalidArguments = errors.New("llamachat: invalid function arguments")
	ErrFunctionFailed   = errors.New("llamachat: function failed")
)

// TransportError reports a chat request that did not complete: the network
// failed, the context ended or the API answered with a non-success status.
type TransportError struct {
	// StatusCode is the HTTP status of the API answer, or 0 when no answer
	// was received.
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("llamachat: transport error (HTTP %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("llamachat: transport error: %v", e.Err)
}

// Unwrap exposes both [ErrTransport] and the underlying cause.
func (e *TransportError) Unwrap() []error { return []error{ErrTransport, e.Err} }

// ParseError reports a response body that could not be decoded.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("llamachat: parse error: %v", e.Err)
}

// Unwrap exposes both [ErrParse] and the underlying cause.
func (e *ParseError) Unwrap() []error { return []error{ErrParse, e.Err} }

// UnknownFunctionError reports a function call naming an unregistered
// function.
type UnknownFunctionError struct {
	Name string
}

func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("llamachat: unknown function %q", e.Name)
}

// Unwrap returns [ErrUnknownFunction].
func (e *UnknownFunctionError) Unwrap() error { return ErrUnknownFunction }

// InvalidArgumentsError reports function-call arguments that are not a JSON
// object or do not satisfy the function's parameter schema.
type InvalidArgumentsError struct {
	Name string
	Err  error
}

func (e *InvalidArgumentsError) Error() string {
	return fmt.Sprintf("llamachat: invalid arguments for %q: %v", e.Name, e.Err)
}

// Unwrap exposes both [ErrInvalidArguments] and the underlying cause.
func (e *InvalidArgumentsError) Unwrap() []error { return []error{ErrInvalidArguments, e.Err} }

// FunctionError wraps an error returned by a registered handler.
type FunctionError struct {
	Name string
	Err  error
}

func (e *FunctionError) Error() string {
	return fmt.Sprintf("llamachat: function %q failed: %v", e.Name, e.Err)
}

// Unwrap exposes both [ErrFunctionFailed] and the handler's error.
func (e *FunctionError) Unwrap() []error { return []error{ErrFunctionFailed, e.Err} }
