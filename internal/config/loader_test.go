package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/thearyanag/llamachat/internal/config"
)

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "llamachat.yaml")
	if err := os.WriteFile(path, []byte("client:\n  model: 3b\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Client.Model != "3b" {
		t.Errorf("Client.Model = %q", cfg.Client.Model)
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got: %v", err)
	}
}

func TestLoad_InvalidNamesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("log_level: loud\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := config.Load(path)
	if err == nil || !strings.Contains(err.Error(), path) {
		t.Errorf("error should name the file, got: %v", err)
	}
}

// TestLoadFromReader_ExpandsEnv checks that secrets can be kept in the
// environment.
func TestLoadFromReader_ExpandsEnv(t *testing.T) {
	t.Setenv("LLAMACHAT_TEST_KEY", "sk-from-env")
	t.Setenv("LLAMACHAT_TEST_EMPTY", "")

	yaml := `
client:
  api_key: ${LLAMACHAT_TEST_KEY}
  model: ${LLAMACHAT_TEST_EMPTY:-8b}
  system_prompt: costs $5
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Client.APIKey != "sk-from-env" {
		t.Errorf("APIKey = %q", cfg.Client.APIKey)
	}
	if cfg.Client.Model != "8b" {
		t.Errorf("Model = %q, want fallback 8b", cfg.Client.Model)
	}
	if cfg.Client.SystemPrompt != "costs $5" {
		t.Errorf("SystemPrompt = %q, bare $ should be kept", cfg.Client.SystemPrompt)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("LLAMACHAT_TEST_SET", "value")

	tests := []struct {
		in, want string
	}{
		{in: "${LLAMACHAT_TEST_SET}", want: "value"},
		{in: "a-${LLAMACHAT_TEST_SET}-b", want: "a-value-b"},
		{in: "${LLAMACHAT_TEST_UNSET}", want: ""},
		{in: "${LLAMACHAT_TEST_UNSET:-fallback}", want: "fallback"},
		{in: "${LLAMACHAT_TEST_SET:-fallback}", want: "value"},
		{in: "$LLAMACHAT_TEST_SET", want: "$LLAMACHAT_TEST_SET"},
		{in: "${not valid}", want: "${not valid}"},
	}
	for _, tt := range tests {
		if got := string(config.ExpandEnv([]byte(tt.in))); got != tt.want {
			t.Errorf("ExpandEnv(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
