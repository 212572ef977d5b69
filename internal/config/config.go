// Package config provides the configuration schema, loader, and backend
// registry for the llamachat command.
package config

import (
	"time"

	"github.com/thearyanag/llamachat/internal/mcp"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	// LogLevel controls verbosity. Defaults to info.
	LogLevel LogLevel `yaml:"log_level"`

	Client   ClientConfig  `yaml:"client"`
	Provider ProviderEntry `yaml:"provider"`

	// Fallbacks are tried in order when the primary backend fails.
	Fallbacks  []ProviderEntry  `yaml:"fallbacks"`
	Resilience ResilienceConfig `yaml:"resilience"`

	Functions FunctionsConfig `yaml:"functions"`
	MCP       MCPConfig       `yaml:"mcp"`
	Observe   ObserveConfig   `yaml:"observe"`
}

// ClientConfig holds the settings of the chat client itself.
type ClientConfig struct {
	// APIKey authenticates against the chat API. Usually written as
	// "${INFERENCE_API_KEY}" so the secret stays in the environment.
	APIKey string `yaml:"api_key"`

	// Model is a model identifier or one of the aliases 1b, 3b, 8b, 70b.
	// Empty selects the default model.
	Model string `yaml:"model"`

	// BaseURL overrides the inference.net API root.
	BaseURL string `yaml:"base_url"`

	// Timeout bounds each chat request (e.g. "30s"). Zero uses the client
	// default.
	Timeout time.Duration `yaml:"timeout"`

	// SystemPrompt replaces the default base system prompt.
	SystemPrompt string `yaml:"system_prompt"`

	// Temperature is the sampling temperature in [0, 2]. Unset leaves the
	// backend default; 0 selects greedy decoding.
	Temperature *float64 `yaml:"temperature"`

	// MaxTokens caps completion length. Zero leaves the backend default.
	MaxTokens int `yaml:"max_tokens"`

	// FunctionCalling is one of auto, prompt, native.
	FunctionCalling string `yaml:"function_calling"`

	// Debug logs every request and response.
	Debug bool `yaml:"debug"`

	// DebugDir receives a JSON dump per exchange when Debug is on.
	// Defaults to the working directory.
	DebugDir string `yaml:"debug_dir"`
}

// ProviderEntry selects the chat backend. The Name field is used to look up
// the constructor in the [Registry]; empty means the built-in inference.net
// backend configured by [ClientConfig].
type ProviderEntry struct {
	// Name selects the registered backend (e.g. "inference", "openai", "ollama").
	Name string `yaml:"name"`

	// APIKey authenticates against this backend. client.api_key only
	// applies to the inference backend; other vendors fall back to their
	// usual environment variable (OPENAI_API_KEY, ANTHROPIC_API_KEY, ...).
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the backend's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model overrides client.model for this backend.
	Model string `yaml:"model"`

	// Timeout bounds one request. Zero keeps the backend default.
	Timeout time.Duration `yaml:"timeout"`

	// Options holds backend-specific values not covered above, e.g.
	// "organization" for openai.
	Options map[string]any `yaml:"options"`
}

// ResilienceConfig tunes the circuit breaker kept per backend when
// fallbacks are configured.
type ResilienceConfig struct {
	// MaxFailures is the number of consecutive failures that takes a backend
	// out of rotation. Default: 3.
	MaxFailures int `yaml:"max_failures"`

	// Cooldown is how long a failing backend is skipped. Default: 30s.
	Cooldown time.Duration `yaml:"cooldown"`
}

// FunctionsConfig selects the built-in functions offered to the model.
type FunctionsConfig struct {
	// Builtin lists the built-in functions to register. Empty registers all
	// of them unless Disable is set.
	Builtin []string `yaml:"builtin"`

	// Disable turns off every built-in function.
	Disable bool `yaml:"disable"`
}

// MCPConfig holds the list of Model Context Protocol servers whose tools are
// imported as functions.
type MCPConfig struct {
	Servers []MCPServerConfig `yaml:"servers"`
}

// MCPServerConfig describes how to connect to a single MCP tool server.
type MCPServerConfig struct {
	// Name is a unique human-readable identifier for this server (used in logs).
	Name string `yaml:"name"`

	// Transport specifies the connection mechanism.
	Transport mcp.Transport `yaml:"transport"`

	// Command is the executable (with optional arguments) launched when
	// Transport is "stdio". Ignored for streamable-http transport.
	Command string `yaml:"command"`

	// URL is the MCP endpoint address used when Transport is "streamable-http".
	URL string `yaml:"url"`

	// Token is a static Bearer token sent to streamable-http servers.
	Token string `yaml:"token"`

	// Env holds additional environment variables injected into the subprocess
	// when Transport is "stdio". May be nil.
	Env map[string]string `yaml:"env"`
}

// ServerConfig converts s into the form accepted by the MCP host.
func (s MCPServerConfig) ServerConfig() mcp.ServerConfig {
	return mcp.ServerConfig{
		Name:        s.Name,
		Transport:   s.Transport,
		Command:     s.Command,
		URL:         s.URL,
		BearerToken: s.Token,
		Env:         s.Env,
	}
}

// ObserveConfig holds telemetry settings.
type ObserveConfig struct {
	// MetricsAddr, when set, serves Prometheus metrics at /metrics on this
	// address (e.g. ":9464").
	MetricsAddr string `yaml:"metrics_addr"`

	// ServiceName is the OpenTelemetry service name. Defaults to "llamachat".
	ServiceName string `yaml:"service_name"`

	// TraceSampleRatio is the fraction of chat turns traced, in [0, 1].
	// Zero traces every turn.
	TraceSampleRatio float64 `yaml:"trace_sample_ratio"`
}
