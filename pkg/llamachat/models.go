package llamachat

import (
	"slices"
	"strings"
)

// Model identifies a chat model served by the API. Any non-empty string is
// accepted; the constants below are the models inference.net serves.
type Model string

// Known models.
const (
	ModelLlama1B  Model = "meta-llama/llama-3.2-1b-instruct/fp-8"
	ModelLlama3B  Model = "meta-llama/llama-3.2-3b-instruct/fp-8"
	ModelLlama8B  Model = "meta-llama/llama-3.1-8b-instruct/fp-8"
	ModelLlama70B Model = "meta-llama/llama-3.1-70b-instruct/fp-8"

	// DefaultModel is used when no model option is given.
	DefaultModel = ModelLlama8B
)

var knownModels = []Model{ModelLlama1B, ModelLlama3B, ModelLlama8B, ModelLlama70B}

var modelAliases = map[string]Model{
	"1b":  ModelLlama1B,
	"3b":  ModelLlama3B,
	"8b":  ModelLlama8B,
	"70b": ModelLlama70B,
}

// KnownModels returns the known model identifiers, smallest first.
func KnownModels() []Model {
	return slices.Clone(knownModels)
}

// IsKnown reports whether m is one of [KnownModels].
func (m Model) IsKnown() bool {
	return slices.Contains(knownModels, m)
}

// Alias returns the short alias of a known model ("8b"), or "".
func (m Model) Alias() string {
	for alias, model := range modelAliases {
		if model == m {
			return alias
		}
	}
	return ""
}

func (m Model) String() string { return string(m) }

// ParseModel resolves s to a Model. The aliases "1b", "3b", "8b" and "70b"
// (case-insensitive) map to the known models; any other non-empty string is
// returned verbatim.
func ParseModel(s string) (Model, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrMissingModel
	}
	if m, ok := modelAliases[strings.ToLower(s)]; ok {
		return m, nil
	}
	return Model(s), nil
}
