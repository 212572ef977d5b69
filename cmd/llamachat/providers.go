package main

import (
	"cmp"
	"fmt"
	"log/slog"
	"os"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/thearyanag/llamachat/internal/config"
	"github.com/thearyanag/llamachat/internal/resilience"
	"github.com/thearyanag/llamachat/pkg/llamachat"
	"github.com/thearyanag/llamachat/pkg/observe"
	"github.com/thearyanag/llamachat/pkg/provider/llm"
	"github.com/thearyanag/llamachat/pkg/provider/llm/anyllm"
	"github.com/thearyanag/llamachat/pkg/provider/llm/inference"
	"github.com/thearyanag/llamachat/pkg/provider/llm/openai"
)

// defaultBackend serves requests when provider.name is empty.
const defaultBackend = "inference"

// openAIKeyEnv is read by the openai backend when its entry has no key.
const openAIKeyEnv = "OPENAI_API_KEY"

// registerBuiltinProviders wires every shipped chat backend into reg.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterLLM(defaultBackend, func(entry config.ProviderEntry) (llm.Provider, error) {
		opts := []inference.Option{
			inference.WithHTTPClient(observe.InstrumentClient(nil, observe.DefaultMetrics())),
		}
		if entry.BaseURL != "" {
			opts = append(opts, inference.WithBaseURL(entry.BaseURL))
		}
		if entry.Timeout > 0 {
			opts = append(opts, inference.WithTimeout(entry.Timeout))
		}
		return inference.New(entry.APIKey, entry.Model, opts...)
	})

	// openai goes through the official SDK so organization can be set.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		opts := []openai.Option{
			openai.WithHTTPClient(observe.InstrumentClient(nil, observe.DefaultMetrics())),
		}
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if entry.Timeout > 0 {
			opts = append(opts, openai.WithTimeout(entry.Timeout))
		}
		if org := config.OptString(entry.Options, "organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		return openai.New(cmp.Or(entry.APIKey, os.Getenv(openAIKeyEnv)), entry.Model, opts...)
	})

	// The remaining hosted backends share the same pattern: optional APIKey
	// + optional BaseURL.
	for _, name := range []string{"anthropic", "gemini", "deepseek", "mistral", "groq"} {
		reg.RegisterLLM(name, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(name, entry.Model, opts...)
		})
	}

	// Local servers use BaseURL for the address, not an API key.
	for _, name := range []string{"ollama", "llamacpp", "llamafile"} {
		reg.RegisterLLM(name, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(name, entry.Model, opts...)
		})
	}
}

// buildClient creates the chat client described by cfg. The primary backend
// and any fallbacks are created through reg. With fallbacks the returned
// Failover fronts them all; otherwise it is nil.
func buildClient(cfg *config.Config, reg *config.Registry, logger *slog.Logger) (*llamachat.Client, *resilience.Failover, error) {
	model, err := llamachat.ParseModel(cmp.Or(cfg.Client.Model, string(llamachat.DefaultModel)))
	if err != nil {
		return nil, nil, err
	}
	mode, ok := llamachat.ParseFunctionCalling(cfg.Client.FunctionCalling)
	if !ok {
		return nil, nil, fmt.Errorf("invalid function_calling %q", cfg.Client.FunctionCalling)
	}

	primary := resolveEntry(cfg, cfg.Provider, model)
	if primary.Name == defaultBackend && primary.APIKey == "" {
		return nil, nil, fmt.Errorf("no API key: set client.api_key or %s", apiKeyEnv)
	}
	p, err := reg.CreateLLM(primary)
	if err != nil {
		return nil, nil, err
	}

	var failover *resilience.Failover
	if len(cfg.Fallbacks) > 0 {
		backends := []resilience.Backend{{Name: primary.Name, Provider: p}}
		for _, fb := range cfg.Fallbacks {
			entry := resolveEntry(cfg, fb, model)
			fp, err := reg.CreateLLM(entry)
			if err != nil {
				return nil, nil, fmt.Errorf("fallback %q: %w", fb.Name, err)
			}
			backends = append(backends, resilience.Backend{Name: entry.Name, Provider: fp})
		}
		failover, err = resilience.NewFailover(resilience.BreakerConfig{
			MaxFailures: cfg.Resilience.MaxFailures,
			Cooldown:    cfg.Resilience.Cooldown,
			Logger:      logger,
		}, backends...)
		if err != nil {
			return nil, nil, err
		}
		p = failover
	}

	opts := []llamachat.Option{
		llamachat.WithProvider(p),
		llamachat.WithModel(llamachat.Model(primary.Model)),
		llamachat.WithLogger(logger),
		llamachat.WithFunctionCalling(mode),
		llamachat.WithMaxTokens(cfg.Client.MaxTokens),
	}
	if cfg.Client.Temperature != nil {
		opts = append(opts, llamachat.WithTemperature(*cfg.Client.Temperature))
	}
	if cfg.Client.SystemPrompt != "" {
		opts = append(opts, llamachat.WithSystemPrompt(cfg.Client.SystemPrompt))
	}
	if cfg.Client.Debug {
		opts = append(opts, llamachat.WithDebugDir(cmp.Or(cfg.Client.DebugDir, ".")))
	}

	// The client always wants a key; backends that authenticate through
	// their own environment variables or not at all get their name instead.
	c, err := llamachat.New(cmp.Or(primary.APIKey, primary.Name), opts...)
	if err != nil {
		return nil, nil, err
	}
	return c, failover, nil
}

// resolveEntry fills the gaps of entry from the client section. Only the
// inference.net backend takes client.api_key, INFERENCE_API_KEY,
// client.base_url and client.timeout; other vendors keep their own key or
// fall back to their SDK's environment variable.
func resolveEntry(cfg *config.Config, entry config.ProviderEntry, model llamachat.Model) config.ProviderEntry {
	entry.Name = cmp.Or(entry.Name, defaultBackend)
	entry.Model = cmp.Or(entry.Model, string(model))
	if entry.Name == defaultBackend {
		entry.APIKey = cmp.Or(entry.APIKey, cfg.Client.APIKey, os.Getenv(apiKeyEnv))
		entry.BaseURL = cmp.Or(entry.BaseURL, cfg.Client.BaseURL)
		entry.Timeout = cmp.Or(entry.Timeout, cfg.Client.Timeout, llamachat.DefaultTimeout)
	}
	return entry
}
