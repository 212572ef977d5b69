// Package types defines the shared types used across all llamachat packages.
//
// These types form the lingua franca between the chat client, the function
// registry and the LLM backends. Package-specific types live in their own
// packages; only cross-cutting structures are kept here to avoid import cycles.
package types

// Message roles understood by chat-completion backends.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"

	// RoleTool carries the result of a function the model asked for.
	RoleTool = "tool"
)

// Message represents a single message in an LLM conversation history.
type Message struct {
	// Role is one of [RoleSystem], [RoleUser], [RoleAssistant] or [RoleTool].
	Role string `json:"role"`

	// Content is the text content of the message.
	Content string `json:"content"`

	// Name is an optional participant name.
	Name string `json:"name,omitempty"`

	// ToolCalls contains any function invocations requested by the assistant.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID is set when Role is "tool", identifying which call this
	// message answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ToolCall represents a function invocation requested by the LLM.
type ToolCall struct {
	// ID is the unique identifier for this call. Backends assign it for
	// native tool calls; the chat client synthesises one otherwise.
	ID string `json:"id"`

	// Name is the function name.
	Name string `json:"name"`

	// Arguments is the JSON-encoded arguments object.
	Arguments string `json:"arguments"`
}

// ToolDefinition describes a function that can be offered to an LLM.
type ToolDefinition struct {
	// Name is the function's unique identifier.
	Name string `json:"name"`

	// Description explains what the function does (included in LLM prompts).
	Description string `json:"description"`

	// Parameters is the JSON Schema describing the function's input object.
	// Nil means the function takes no arguments.
	Parameters map[string]any `json:"parameters,omitempty"`
}

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one completion.
	MaxOutputTokens int

	// SupportsToolCalling indicates native function/tool calling support.
	// Models without it can still call functions through the JSON envelope
	// described in the system prompt.
	SupportsToolCalling bool

	// SupportsVision indicates the model can process image inputs.
	SupportsVision bool
}
