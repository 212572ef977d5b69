package llamachat

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// functionCall is a dispatchable request extracted from a model reply.
type functionCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// parseEnvelope extracts a function call from an assistant text reply. The
// canonical form is the envelope advertised in the system prompt:
//
//	{"function": "name", "arguments": {...}}
//
// Llama 3.x models also emit {"name": "...", "parameters": {...}} when tool
// definitions are present, so that form is accepted as well. The object may
// be wrapped in a Markdown code fence. Anything else is a plain reply.
func parseEnvelope(text string) (functionCall, bool) {
	body := stripCodeFence(strings.TrimSpace(text))
	if !strings.HasPrefix(body, "{") {
		return functionCall{}, false
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return functionCall{}, false
	}

	for _, keys := range [][2]string{{"function", "arguments"}, {"name", "parameters"}} {
		rawName, okName := fields[keys[0]]
		rawArgs, okArgs := fields[keys[1]]
		if !okName || !okArgs {
			continue
		}
		var name string
		if err := json.Unmarshal(rawName, &name); err != nil || name == "" {
			continue
		}
		return functionCall{Name: name, Arguments: rawArgs}, true
	}
	return functionCall{}, false
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(s, "```"), "```")
	if nl := strings.IndexByte(inner, '\n'); nl >= 0 {
		lang := strings.TrimSpace(inner[:nl])
		if lang == "" || strings.EqualFold(lang, "json") {
			inner = inner[nl+1:]
		}
	}
	return strings.TrimSpace(inner)
}

// newCallID returns an identifier for tool calls that arrived without one.
func newCallID() string {
	return "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}
