// Package llm defines the Provider interface for chat-completion backends.
//
// An LLM provider wraps a remote model API (the inference.net endpoint, any
// OpenAI-compatible server, Anthropic, a local Ollama instance, …) and exposes
// a uniform interface so the chat client can send a conversation, count
// tokens and inspect model capabilities without coupling to any specific SDK.
//
// Implementors must be safe for concurrent use. Errors returned by Complete
// must wrap either [ErrTransport] or [ErrMalformedResponse] so callers can
// tell a failed exchange from an unreadable answer.
package llm

import (
	"context"
	"encoding/json"

	"github.com/thearyanag/llamachat/pkg/types"
)

// Usage holds token accounting information returned by the LLM backend.
type Usage struct {
	// PromptTokens is the number of tokens consumed by the input messages and
	// system prompt.
	PromptTokens int

	// CompletionTokens is the number of tokens generated in the response.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens. Some providers return it
	// directly rather than computing it from the parts.
	TotalTokens int
}

// CompletionRequest carries everything the LLM needs to produce a response.
// Callers should treat a zero-value request as invalid; at minimum Messages must
// be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation history. The last message is
	// typically from the "user" role and drives the response.
	Messages []types.Message

	// Tools is the set of function definitions offered to the model. Providers
	// that cannot forward them natively ignore the field; the system prompt
	// still describes every function.
	Tools []types.ToolDefinition

	// Temperature controls output randomness. Nil leaves the provider
	// default; a pointer to zero asks for greedy decoding.
	Temperature *float64

	// MaxTokens caps the number of completion tokens the model may generate.
	// Zero means use the provider default.
	MaxTokens int

	// SystemPrompt is an optional high-priority instruction injected before the
	// conversation history as a "system"-role message.
	SystemPrompt string
}

// CompletionResponse is returned by Complete.
type CompletionResponse struct {
	// Content is the full text of the assistant's reply. Empty when the model
	// responds exclusively with tool calls.
	Content string

	// ToolCalls lists the native tool invocations requested by the model.
	ToolCalls []types.ToolCall

	// FinishReason is the backend's stop reason ("stop", "length",
	// "tool_calls", …). May be empty.
	FinishReason string

	// Usage contains token accounting for this request/response pair.
	Usage Usage

	// Raw is the undecoded response body when the provider has access to it.
	// Used for debug dumps only.
	Raw json.RawMessage
}

// Provider is the abstraction over any chat-completion backend.
//
// Implementations must be safe for concurrent use from multiple goroutines.
// Complete must return promptly once ctx is cancelled.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	//
	// The returned error wraps [ErrTransport] when the exchange itself failed
	// (network, non-2xx status, cancelled context) and [ErrMalformedResponse]
	// when a response arrived but could not be decoded.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CountTokens estimates the number of tokens that the given message list
	// would consume in the model's context window. The result need not be
	// exact but should not undercount.
	CountTokens(messages []types.Message) (int, error)

	// Capabilities returns static metadata describing what this provider's
	// model supports. The result is constant for the lifetime of the Provider.
	Capabilities() types.ModelCapabilities
}
