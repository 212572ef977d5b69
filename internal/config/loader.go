package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/thearyanag/llamachat/internal/mcp"
	"github.com/thearyanag/llamachat/pkg/llamachat"
)

// ValidProviderNames lists the backend names the llamachat command registers.
// Used by [Validate] to warn about unrecognised names.
var ValidProviderNames = []string{
	"inference", "openai",
	"anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// Built-in function names accepted in functions.builtin.
var BuiltinFunctionNames = []string{"roll", "current_time"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expanding ${VAR} and
// ${VAR:-default} references from the environment first, and validates the
// result. An empty document yields the zero Config.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(ExpandEnv(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv replaces ${VAR} with the value of the environment variable VAR
// and ${VAR:-fallback} with fallback when VAR is unset or empty. A bare $VAR
// is left alone.
func ExpandEnv(b []byte) []byte {
	return envRef.ReplaceAllFunc(b, func(m []byte) []byte {
		sub := envRef.FindSubmatch(m)
		if v := os.Getenv(string(sub[1])); v != "" {
			return []byte(v)
		}
		return sub[2]
	})
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	// Client
	c := cfg.Client
	if t := c.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, fmt.Errorf("client.temperature %.2f is out of range [0, 2]", *t))
	}
	if c.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("client.max_tokens %d must not be negative", c.MaxTokens))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("client.timeout %s must not be negative", c.Timeout))
	}
	if _, ok := llamachat.ParseFunctionCalling(c.FunctionCalling); !ok {
		errs = append(errs, fmt.Errorf("client.function_calling %q is invalid; valid values: auto, prompt, native", c.FunctionCalling))
	}
	if c.DebugDir != "" && !c.Debug {
		slog.Warn("client.debug_dir is set but client.debug is off; no dumps will be written")
	}

	validateProviderName(cfg.Provider.Name)
	if cfg.Provider.Name == "" && (cfg.Provider.APIKey != "" || cfg.Provider.Model != "" || cfg.Provider.BaseURL != "") {
		errs = append(errs, errors.New("provider.name is required when other provider fields are set"))
	}
	if cfg.Provider.Timeout < 0 {
		errs = append(errs, fmt.Errorf("provider.timeout %s must not be negative", cfg.Provider.Timeout))
	}

	// Fallbacks
	for i, fb := range cfg.Fallbacks {
		prefix := fmt.Sprintf("fallbacks[%d]", i)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		validateProviderName(fb.Name)
		if fb.Timeout < 0 {
			errs = append(errs, fmt.Errorf("%s.timeout %s must not be negative", prefix, fb.Timeout))
		}
	}
	if cfg.Resilience.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("resilience.max_failures %d must not be negative", cfg.Resilience.MaxFailures))
	}
	if cfg.Resilience.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("resilience.cooldown %s must not be negative", cfg.Resilience.Cooldown))
	}
	if r := cfg.Observe.TraceSampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("observe.trace_sample_ratio %v must be within [0, 1]", r))
	}

	// Functions
	seen := make(map[string]int, len(cfg.Functions.Builtin))
	for i, name := range cfg.Functions.Builtin {
		prefix := fmt.Sprintf("functions.builtin[%d]", i)
		if !slices.Contains(BuiltinFunctionNames, name) {
			errs = append(errs, fmt.Errorf("%s %q is unknown; valid values: %v", prefix, name, BuiltinFunctionNames))
		}
		if prev, ok := seen[name]; ok {
			errs = append(errs, fmt.Errorf("%s %q is a duplicate of functions.builtin[%d]", prefix, name, prev))
		}
		seen[name] = i
	}

	// MCP servers
	serverNames := make(map[string]int, len(cfg.MCP.Servers))
	for i, srv := range cfg.MCP.Servers {
		prefix := fmt.Sprintf("mcp.servers[%d]", i)
		if srv.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			if prev, ok := serverNames[srv.Name]; ok {
				errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of mcp.servers[%d]", prefix, srv.Name, prev))
			}
			serverNames[srv.Name] = i
		}
		if !srv.Transport.IsValid() {
			errs = append(errs, fmt.Errorf("%s.transport %q is invalid; valid values: stdio, streamable-http", prefix, srv.Transport))
		}
		if srv.Transport == mcp.TransportStdio && srv.Command == "" {
			errs = append(errs, fmt.Errorf("%s.command is required when transport is stdio", prefix))
		}
		if srv.Transport == mcp.TransportStreamableHTTP && srv.URL == "" {
			errs = append(errs, fmt.Errorf("%s.url is required when transport is streamable-http", prefix))
		}
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// [ValidProviderNames].
func validateProviderName(name string) {
	if name == "" || slices.Contains(ValidProviderNames, name) {
		return
	}
	slog.Warn("unknown provider name; may be a typo or a backend registered at runtime",
		"name", name,
		"known", ValidProviderNames,
	)
}
