package llamachat

import (
	"fmt"
	"slices"
	"strings"

	"github.com/thearyanag/llamachat/pkg/types"
)

// DefaultSystemPrompt is the base system prompt.
const DefaultSystemPrompt = "You are a helpful assistant."

const envelopeInstruction = `When you need to use a function, output a JSON object in the following format:

{
  "function": "function_name",
  "arguments": {
    "arg1": "value1",
    "arg2": "value2"
  }
}
`

// BuildSystemPrompt renders base followed by a numbered list of defs and the
// JSON envelope instruction. Without defs it returns base unchanged.
func BuildSystemPrompt(base string, defs []types.ToolDefinition) string {
	if len(defs) == 0 {
		return base
	}

	var b strings.Builder
	b.WriteString(base)
	b.WriteString(" You have access to the following functions:\n\n")
	for i, d := range defs {
		fmt.Fprintf(&b, "%d. %s(%s): %s\n", i+1, d.Name, strings.Join(ParameterNames(d.Parameters), ", "), d.Description)
	}
	b.WriteString("\n")
	b.WriteString(envelopeInstruction)
	return b.String()
}

// ParameterNames lists the property names of a JSON object schema: required
// properties first in declaration order, then the optional ones
// alphabetically.
func ParameterNames(schema map[string]any) []string {
	props, _ := schema["properties"].(map[string]any)
	if len(props) == 0 {
		return nil
	}

	var names []string
	seen := make(map[string]bool, len(props))
	for _, name := range requiredNames(schema["required"]) {
		if _, ok := props[name]; ok && !seen[name] {
			names = append(names, name)
			seen[name] = true
		}
	}

	var optional []string
	for name := range props {
		if !seen[name] {
			optional = append(optional, name)
		}
	}
	slices.Sort(optional)
	return append(names, optional...)
}

// requiredNames accepts both []string (hand-written schemas) and []any
// (schemas decoded from JSON).
func requiredNames(v any) []string {
	switch req := v.(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
