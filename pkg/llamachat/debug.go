package llamachat

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/thearyanag/llamachat/pkg/provider/llm"
	"github.com/thearyanag/llamachat/pkg/types"
)

// debugDump is the on-disk record of one completion exchange.
type debugDump struct {
	Timestamp time.Time       `json:"timestamp"`
	Model     Model           `json:"model"`
	Response  json.RawMessage `json:"response"`
	Messages  []types.Message `json:"messages"`
	Tools     []string        `json:"tools,omitempty"`
}

// debugFileName returns response-YYYY-MM-DD-HH-MM-SS-<8 hex>.json for t. The
// random suffix keeps dumps written within the same second apart.
func debugFileName(t time.Time) string {
	return fmt.Sprintf("response-%s-%s.json", t.Format("2006-01-02-15-04-05"), uuid.NewString()[:8])
}

// writeDebugDump stores the messages that were sent and the response that
// came back in dir and returns the file path.
func writeDebugDump(dir string, model Model, sent []types.Message, tools []types.ToolDefinition, resp *llm.CompletionResponse) (string, error) {
	raw := resp.Raw
	if len(raw) == 0 {
		var err error
		raw, err = json.Marshal(struct {
			Content      string           `json:"content"`
			ToolCalls    []types.ToolCall `json:"tool_calls,omitempty"`
			FinishReason string           `json:"finish_reason,omitempty"`
			Usage        llm.Usage        `json:"usage"`
		}{resp.Content, resp.ToolCalls, resp.FinishReason, resp.Usage})
		if err != nil {
			return "", fmt.Errorf("llamachat: encode debug response: %w", err)
		}
	}

	now := time.Now()
	dump := debugDump{
		Timestamp: now,
		Model:     model,
		Response:  raw,
		Messages:  sent,
	}
	for _, t := range tools {
		dump.Tools = append(dump.Tools, t.Name)
	}

	data, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return "", fmt.Errorf("llamachat: encode debug dump: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("llamachat: create debug dir: %w", err)
	}
	path := filepath.Join(dir, debugFileName(now))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("llamachat: write debug dump: %w", err)
	}
	return path, nil
}
