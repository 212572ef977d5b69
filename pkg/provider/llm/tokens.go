package llm

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/thearyanag/llamachat/pkg/types"
)

// Per-message overheads follow the OpenAI chat accounting convention. Llama
// chat templates spend a similar amount on role headers.
const (
	tokensPerMessage  = 4
	tokensPerToolCall = 3
	tokensReplyPrime  = 3
)

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
)

// encoder returns the shared cl100k_base codec, or nil if it cannot be loaded.
func encoder() tokenizer.Codec {
	codecOnce.Do(func() {
		c, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err == nil {
			codec = c
		}
	})
	return codec
}

// CountTextTokens returns the BPE token count of text. Falls back to a
// 4-characters-per-token approximation when the codec is unavailable.
func CountTextTokens(text string) int {
	if text == "" {
		return 0
	}
	if enc := encoder(); enc != nil {
		if ids, _, err := enc.Encode(text); err == nil {
			return len(ids)
		}
	}
	return (len(text) + 3) / 4
}

// EstimateTokens estimates the prompt size of messages including role and
// tool-call framing. Llama models use their own vocabulary; cl100k_base is
// close enough for context budgeting and tends to overcount slightly.
func EstimateTokens(messages []types.Message) int {
	total := tokensReplyPrime
	for _, m := range messages {
		total += tokensPerMessage
		total += CountTextTokens(m.Role)
		total += CountTextTokens(m.Content)
		for _, tc := range m.ToolCalls {
			total += tokensPerToolCall
			total += CountTextTokens(tc.Name)
			total += CountTextTokens(tc.Arguments)
		}
		if m.ToolCallID != "" {
			total += CountTextTokens(m.ToolCallID)
		}
	}
	return total
}
