package anyllm

import (
	"encoding/json"
	"errors"
	"io"
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/thearyanag/llamachat/pkg/provider/llm"
	"github.com/thearyanag/llamachat/pkg/types"
)

// TestConvertMessage checks role, content and tool-call mapping.
func TestConvertMessage(t *testing.T) {
	tests := []struct {
		name string
		in   types.Message
	}{
		{name: "system", in: types.Message{Role: types.RoleSystem, Content: "You are a helpful assistant."}},
		{name: "user", in: types.Message{Role: types.RoleUser, Content: "Hello!"}},
		{name: "assistant", in: types.Message{Role: types.RoleAssistant, Content: "Hi there!"}},
		{name: "tool", in: types.Message{Role: types.RoleTool, Content: "7", ToolCallID: "call_1"}},
		{name: "named", in: types.Message{Role: types.RoleUser, Content: "hey", Name: "alice"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := convertMessage(tt.in)
			if got.Role != tt.in.Role {
				t.Errorf("role = %q, want %q", got.Role, tt.in.Role)
			}
			if got.ContentString() != tt.in.Content {
				t.Errorf("content = %q, want %q", got.ContentString(), tt.in.Content)
			}
			if got.Name != tt.in.Name {
				t.Errorf("name = %q, want %q", got.Name, tt.in.Name)
			}
			if got.ToolCallID != tt.in.ToolCallID {
				t.Errorf("tool_call_id = %q, want %q", got.ToolCallID, tt.in.ToolCallID)
			}
			if len(got.ToolCalls) != 0 {
				t.Errorf("unexpected tool calls: %+v", got.ToolCalls)
			}
		})
	}
}

// TestConvertMessage_AssistantWithToolCalls checks tool call conversion.
func TestConvertMessage_AssistantWithToolCalls(t *testing.T) {
	got := convertMessage(types.Message{
		Role:      types.RoleAssistant,
		ToolCalls: []types.ToolCall{{ID: "call_1", Name: "roll", Arguments: `{"expression":"d20"}`}},
	})
	if len(got.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(got.ToolCalls))
	}
	tc := got.ToolCalls[0]
	if tc.ID != "call_1" || tc.Type != "function" {
		t.Errorf("tool call header = %+v", tc)
	}
	if tc.Function.Name != "roll" || tc.Function.Arguments != `{"expression":"d20"}` {
		t.Errorf("tool call function = %+v", tc.Function)
	}
}

func float64Ptr(v float64) *float64 { return &v }

// TestBuildParams checks system prompt placement, sampling knobs and tools.
func TestBuildParams(t *testing.T) {
	p := &Provider{model: "llama3.1:8b"}
	params := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "be brief",
		Messages:     []types.Message{{Role: types.RoleUser, Content: "hi"}},
		Temperature:  float64Ptr(0.7),
		MaxTokens:    128,
		Tools: []types.ToolDefinition{{
			Name:        "current_time",
			Description: "Current time.",
			Parameters:  map[string]any{"type": "object"},
		}},
	})

	if params.Model != "llama3.1:8b" {
		t.Errorf("model = %q", params.Model)
	}
	if len(params.Messages) != 2 || params.Messages[0].Role != anyllmlib.RoleSystem {
		t.Fatalf("messages = %+v", params.Messages)
	}
	if params.Temperature == nil || *params.Temperature != 0.7 {
		t.Errorf("temperature = %v", params.Temperature)
	}
	if params.MaxTokens == nil || *params.MaxTokens != 128 {
		t.Errorf("max tokens = %v", params.MaxTokens)
	}
	if len(params.Tools) != 1 || params.Tools[0].Function.Name != "current_time" {
		t.Errorf("tools = %+v", params.Tools)
	}
}

// TestBuildParams_Defaults checks that zero knobs are left unset.
func TestBuildParams_Defaults(t *testing.T) {
	p := &Provider{model: "m"}
	params := p.buildParams(llm.CompletionRequest{
		Messages: []types.Message{{Role: types.RoleUser, Content: "hi"}},
	})
	if len(params.Messages) != 1 {
		t.Errorf("messages len = %d, want 1", len(params.Messages))
	}
	if params.Temperature != nil || params.MaxTokens != nil {
		t.Error("unset temperature / max tokens should stay nil")
	}

	params = p.buildParams(llm.CompletionRequest{
		Messages:    []types.Message{{Role: types.RoleUser, Content: "hi"}},
		Temperature: float64Ptr(0),
	})
	if params.Temperature == nil || *params.Temperature != 0 {
		t.Errorf("explicit zero temperature = %v, want 0", params.Temperature)
	}
	if params.Tools != nil {
		t.Errorf("tools = %+v, want nil", params.Tools)
	}
}

func TestClassify(t *testing.T) {
	var syntaxErr error
	if err := json.Unmarshal([]byte("{"), &struct{}{}); err != nil {
		syntaxErr = err
	}
	if got := classify(syntaxErr); !errors.Is(got, llm.ErrMalformedResponse) {
		t.Errorf("json error classified as %v", got)
	}
	if got := classify(io.ErrUnexpectedEOF); !errors.Is(got, llm.ErrTransport) {
		t.Errorf("io error classified as %v", got)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New("", "m"); err == nil {
		t.Error("expected error for empty provider name")
	}
	if _, err := New("ollama", ""); err == nil {
		t.Error("expected error for empty model")
	}
	if _, err := New("nonexistent", "m"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestNew_Ollama(t *testing.T) {
	p, err := New("Ollama", "llama3.1:8b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "ollama" {
		t.Errorf("Name() = %q, want ollama", p.Name())
	}
}

// TestModelCapabilities checks the capability table for representative models.
func TestModelCapabilities(t *testing.T) {
	tests := []struct {
		model  string
		window int
		tools  bool
		vision bool
	}{
		{model: "llama3.1:8b", window: 128_000, tools: true},
		{model: "llama-3.1-70b-versatile", window: 128_000, tools: true},
		{model: "llama3.2-vision:11b", window: 128_000, tools: true, vision: true},
		{model: "llama3:8b", window: 8_192, tools: false},
		{model: "gpt-4o-mini", window: 128_000, tools: true, vision: true},
		{model: "claude-3-5-sonnet-latest", window: 200_000, tools: true, vision: true},
		{model: "gemini-2.0-flash", window: 1_048_576, tools: true, vision: true},
		{model: "deepseek-chat", window: 64_000, tools: true},
		{model: "my-custom-model", window: 8_192, tools: true},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			caps := modelCapabilities(tt.model)
			if caps.ContextWindow != tt.window {
				t.Errorf("ContextWindow = %d, want %d", caps.ContextWindow, tt.window)
			}
			if caps.SupportsToolCalling != tt.tools {
				t.Errorf("SupportsToolCalling = %v, want %v", caps.SupportsToolCalling, tt.tools)
			}
			if caps.SupportsVision != tt.vision {
				t.Errorf("SupportsVision = %v, want %v", caps.SupportsVision, tt.vision)
			}
		})
	}
}
