package llamachat

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/thearyanag/llamachat/pkg/observe"
	"github.com/thearyanag/llamachat/pkg/provider/llm"
)

// FunctionCalling selects how registered functions are offered to the model.
// The system prompt always lists them with the JSON envelope instruction; the
// mode decides whether native tool definitions travel with the request too.
type FunctionCalling int

const (
	// FunctionCallingAuto sends native tool definitions when the backend
	// reports tool-calling support.
	FunctionCallingAuto FunctionCalling = iota

	// FunctionCallingPrompt relies on the system prompt and the JSON
	// envelope only.
	FunctionCallingPrompt

	// FunctionCallingNative always sends native tool definitions.
	FunctionCallingNative
)

func (m FunctionCalling) String() string {
	switch m {
	case FunctionCallingPrompt:
		return "prompt"
	case FunctionCallingNative:
		return "native"
	default:
		return "auto"
	}
}

// ParseFunctionCalling maps "auto", "prompt" and "native" to their mode. The
// empty string is auto.
func ParseFunctionCalling(s string) (FunctionCalling, bool) {
	switch s {
	case "", "auto":
		return FunctionCallingAuto, true
	case "prompt":
		return FunctionCallingPrompt, true
	case "native":
		return FunctionCallingNative, true
	default:
		return FunctionCallingAuto, false
	}
}

type config struct {
	model        Model
	debug        bool
	debugDir     string
	baseURL      string
	httpClient   *http.Client
	timeout      time.Duration
	provider     llm.Provider
	systemPrompt string
	logger       *slog.Logger
	metrics      *observe.Metrics
	temperature  *float64
	maxTokens    int
	calling      FunctionCalling
	registry     *Registry
}

// Option configures a [Client].
type Option func(*config)

// WithModel selects the model. Defaults to [DefaultModel].
func WithModel(m Model) Option {
	return func(c *config) {
		c.model = m
	}
}

// WithDebug logs every request and response at debug level and writes a
// JSON dump of every exchange into the working directory, or into the
// directory given by [WithDebugDir].
func WithDebug(enabled bool) Option {
	return func(c *config) {
		c.debug = enabled
	}
}

// WithDebugDir sets where debug dumps are written. A non-empty dir implies
// WithDebug(true).
func WithDebugDir(dir string) Option {
	return func(c *config) {
		c.debugDir = dir
		if dir != "" {
			c.debug = true
		}
	}
}

// WithBaseURL overrides the API root of the default backend.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithHTTPClient sets the HTTP client of the default backend. The client is
// copied before its transport is instrumented.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout of the default backend. Defaults
// to 60 s.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithProvider replaces the default inference.net backend. WithBaseURL,
// WithHTTPClient and WithTimeout are then ignored.
func WithProvider(p llm.Provider) Option {
	return func(c *config) {
		c.provider = p
	}
}

// WithSystemPrompt replaces [DefaultSystemPrompt] as the base of the system
// prompt. The function list is still appended.
func WithSystemPrompt(prompt string) Option {
	return func(c *config) {
		c.systemPrompt = prompt
	}
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithMetrics sets the metric instruments. Defaults to observe.DefaultMetrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// WithTemperature sets the sampling temperature. Without it the backend
// default applies; WithTemperature(0) requests greedy decoding.
func WithTemperature(t float64) Option {
	return func(c *config) {
		c.temperature = &t
	}
}

// WithMaxTokens caps completion length. Zero leaves the backend default.
func WithMaxTokens(n int) Option {
	return func(c *config) {
		c.maxTokens = n
	}
}

// WithFunctionCalling selects the function-calling mode. Defaults to
// [FunctionCallingAuto].
func WithFunctionCalling(mode FunctionCalling) Option {
	return func(c *config) {
		c.calling = mode
	}
}

// WithRegistry shares an existing registry instead of creating a new one.
func WithRegistry(r *Registry) Option {
	return func(c *config) {
		c.registry = r
	}
}
