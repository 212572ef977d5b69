// Package llamachat is a client SDK for Llama chat models served through an
// OpenAI-compatible chat-completions API (inference.net by default).
//
// A [Client] keeps one conversation: every [Client.Chat] call sends the
// system prompt, the committed history and the new user message, then
// either returns the assistant's reply or, when the model asks for one of the
// registered functions, runs it and returns its result.
//
// Functions are offered to the model twice: as a numbered list in the system
// prompt together with a JSON envelope instruction, which works with any
// instruct model, and as native tool definitions when the backend supports
// them. Both kinds of call are dispatched through the client's [Registry].
//
// Typical usage:
//
//	c, err := llamachat.New(os.Getenv("INFERENCE_API_KEY"),
//	    llamachat.WithModel(llamachat.ModelLlama70B),
//	)
//	if err != nil { … }
//	roll, _ := llamachat.NewFunction("roll", "Roll dice.", rollDice)
//	_ = c.Register(roll)
//	reply, err := c.Chat(ctx, "Roll 2d6 for me")
package llamachat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/thearyanag/llamachat/pkg/observe"
	"github.com/thearyanag/llamachat/pkg/provider/llm"
	"github.com/thearyanag/llamachat/pkg/provider/llm/inference"
	"github.com/thearyanag/llamachat/pkg/types"
)

// DefaultTimeout bounds each request of the default backend unless
// WithTimeout or WithHTTPClient says otherwise.
const DefaultTimeout = 60 * time.Second

// Chat outcomes recorded on the chat duration histogram.
const (
	outcomeReply    = "reply"
	outcomeFunction = "function"
	outcomeError    = "error"
)

// Client holds one conversation with a chat model. It is safe for concurrent
// use; Chat calls are serialized so history order equals call order.
type Client struct {
	provider     llm.Provider
	providerName string
	model        Model
	registry     *Registry
	basePrompt   string
	logger       *slog.Logger
	metrics      *observe.Metrics
	debug        bool
	debugDir     string
	temperature  *float64
	maxTokens    int
	calling      FunctionCalling

	// turnMu serializes Chat calls. mu guards history only, so History and
	// Reset stay usable from inside function handlers.
	turnMu  sync.Mutex
	mu      sync.RWMutex
	history []types.Message
}

// New creates a Client authenticating with apiKey. Without [WithProvider] the
// client talks to inference.net through the [inference] backend.
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	cfg := &config{
		model:        DefaultModel,
		systemPrompt: DefaultSystemPrompt,
	}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.model == "" {
		return nil, ErrMissingModel
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.metrics == nil {
		cfg.metrics = observe.DefaultMetrics()
	}
	if cfg.registry == nil {
		cfg.registry = NewRegistry()
	}
	if cfg.debug && cfg.debugDir == "" {
		cfg.debugDir = "."
	}

	p := cfg.provider
	if p == nil {
		infOpts := []inference.Option{
			inference.WithHTTPClient(observe.InstrumentClient(cfg.httpClient, cfg.metrics)),
		}
		if cfg.baseURL != "" {
			infOpts = append(infOpts, inference.WithBaseURL(cfg.baseURL))
		}
		timeout := cfg.timeout
		if timeout <= 0 && cfg.httpClient == nil {
			timeout = DefaultTimeout
		}
		if timeout > 0 {
			infOpts = append(infOpts, inference.WithTimeout(timeout))
		}
		var err error
		if p, err = inference.New(apiKey, string(cfg.model), infOpts...); err != nil {
			return nil, err
		}
	}

	return &Client{
		provider:     p,
		providerName: providerName(p),
		model:        cfg.model,
		registry:     cfg.registry,
		basePrompt:   cfg.systemPrompt,
		logger:       cfg.logger,
		metrics:      cfg.metrics,
		debug:        cfg.debug,
		debugDir:     cfg.debugDir,
		temperature:  cfg.temperature,
		maxTokens:    cfg.maxTokens,
		calling:      cfg.calling,
	}, nil
}

// providerName returns p.Name() when the backend provides one.
func providerName(p llm.Provider) string {
	if n, ok := p.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "custom"
}

// Model returns the model the client was built with.
func (c *Client) Model() Model { return c.model }

// Registry returns the client's function registry.
func (c *Client) Registry() *Registry { return c.registry }

// Register adds fn to the client's registry. See [Registry.Register].
func (c *Client) Register(fn Function) error { return c.registry.Register(fn) }

// RegisterMany adds fns to the client's registry. See [Registry.RegisterMany].
func (c *Client) RegisterMany(fns ...Function) error { return c.registry.RegisterMany(fns...) }

// SystemPrompt renders the system prompt the next request will carry.
func (c *Client) SystemPrompt() string {
	return BuildSystemPrompt(c.basePrompt, c.registry.Definitions())
}

// History returns a copy of the committed conversation. The system prompt is
// not part of it.
func (c *Client) History() []types.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.history)
}

// Reset clears the conversation. Registered functions are kept.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = nil
}

// CountTokens estimates the prompt size of the next request, system prompt
// and committed history included.
func (c *Client) CountTokens() (int, error) {
	msgs := append([]types.Message{{Role: types.RoleSystem, Content: c.SystemPrompt()}}, c.History()...)
	return c.provider.CountTokens(msgs)
}

// Chat sends message and returns the assistant reply, or the result of the
// function the model asked for.
//
// Errors are *[TransportError], *[ParseError], *[UnknownFunctionError],
// *[InvalidArgumentsError] or *[FunctionError]. A failed turn leaves the
// history untouched.
func (c *Client) Chat(ctx context.Context, message string) (string, error) {
	c.turnMu.Lock()
	defer c.turnMu.Unlock()

	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "llamachat.chat",
		trace.WithAttributes(
			attribute.String("llamachat.model", string(c.model)),
			attribute.String("llamachat.provider", c.providerName),
		),
	)
	defer span.End()

	reply, outcome, err := c.turn(ctx, message)

	c.metrics.ChatDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("outcome", outcome)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observe.WithTrace(ctx, c.logger).Warn("chat turn failed", "model", c.model, "err", err)
		return "", err
	}
	span.SetAttributes(attribute.String("llamachat.outcome", outcome))
	return reply, nil
}

// turn runs one exchange and commits it on success.
func (c *Client) turn(ctx context.Context, message string) (string, string, error) {
	log := observe.WithTrace(ctx, c.logger)
	user := types.Message{Role: types.RoleUser, Content: message}

	defs := c.registry.Definitions()
	req := llm.CompletionRequest{
		SystemPrompt: BuildSystemPrompt(c.basePrompt, defs),
		Messages:     append(c.History(), user),
		Temperature:  c.temperature,
		MaxTokens:    c.maxTokens,
	}
	if c.sendTools() {
		req.Tools = defs
	}

	if c.debug {
		log.Debug("chat request",
			"model", c.model,
			"messages", len(req.Messages)+1,
			"tools", len(req.Tools),
			"content", message,
		)
	}

	resp, err := c.complete(ctx, req)
	if err != nil {
		return "", outcomeError, err
	}

	if c.debug {
		log.Debug("chat response",
			"finish_reason", resp.FinishReason,
			"tool_calls", len(resp.ToolCalls),
			"prompt_tokens", resp.Usage.PromptTokens,
			"completion_tokens", resp.Usage.CompletionTokens,
			"content", resp.Content,
		)
		if c.debugDir != "" {
			sent := append([]types.Message{{Role: types.RoleSystem, Content: req.SystemPrompt}}, req.Messages...)
			if path, err := writeDebugDump(c.debugDir, c.model, sent, req.Tools, resp); err != nil {
				log.Warn("failed to write debug dump", "err", err)
			} else {
				log.Debug("wrote debug dump", "path", path)
			}
		}
	}

	committed, reply, outcome, err := c.dispatch(ctx, user, resp)
	if err != nil {
		return "", outcomeError, err
	}

	c.mu.Lock()
	c.history = append(c.history, committed...)
	c.mu.Unlock()
	return reply, outcome, nil
}

// sendTools reports whether native tool definitions go with the request.
func (c *Client) sendTools() bool {
	switch c.calling {
	case FunctionCallingNative:
		return true
	case FunctionCallingPrompt:
		return false
	default:
		return c.provider.Capabilities().SupportsToolCalling
	}
}

// complete calls the backend once and maps its errors onto the typed chat
// errors.
func (c *Client) complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	ctx, span := observe.StartSpan(ctx, "llamachat.llm.complete",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int("llamachat.messages", len(req.Messages))),
	)
	defer span.End()

	start := time.Now()
	resp, err := c.provider.Complete(ctx, req)
	c.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("provider", c.providerName)))

	if err == nil && resp == nil {
		err = llm.Malformed(errors.New("backend returned no response"))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.metrics.RecordProviderRequest(ctx, c.providerName, string(c.model), observe.StatusError)

		if errors.Is(err, llm.ErrMalformedResponse) {
			c.metrics.RecordProviderError(ctx, c.providerName, "parse")
			return nil, &ParseError{Err: err}
		}
		c.metrics.RecordProviderError(ctx, c.providerName, "transport")
		te := &TransportError{Err: err}
		var se *llm.StatusError
		if errors.As(err, &se) {
			te.StatusCode = se.StatusCode
		}
		return nil, te
	}

	c.metrics.RecordProviderRequest(ctx, c.providerName, string(c.model), observe.StatusOK)
	span.SetAttributes(
		attribute.Int("llamachat.usage.prompt_tokens", resp.Usage.PromptTokens),
		attribute.Int("llamachat.usage.completion_tokens", resp.Usage.CompletionTokens),
	)
	return resp, nil
}

// dispatch turns a response into the messages to commit and the value to
// return. Native tool calls win over an envelope in the text; only the first
// native call is run.
func (c *Client) dispatch(ctx context.Context, user types.Message, resp *llm.CompletionResponse) ([]types.Message, string, string, error) {
	if len(resp.ToolCalls) > 0 {
		tc := resp.ToolCalls[0]
		if tc.ID == "" {
			tc.ID = newCallID()
		}
		result, err := c.callFunction(ctx, functionCall{ID: tc.ID, Name: tc.Name, Arguments: json.RawMessage(tc.Arguments)})
		if err != nil {
			return nil, "", "", err
		}
		return []types.Message{
			user,
			{Role: types.RoleAssistant, Content: resp.Content, ToolCalls: []types.ToolCall{tc}},
			{Role: types.RoleTool, Content: result, Name: tc.Name, ToolCallID: tc.ID},
		}, result, outcomeFunction, nil
	}

	if call, ok := parseEnvelope(resp.Content); ok {
		result, err := c.callFunction(ctx, call)
		if err != nil {
			return nil, "", "", err
		}
		return []types.Message{
			user,
			{Role: types.RoleAssistant, Content: result},
		}, result, outcomeFunction, nil
	}

	return []types.Message{
		user,
		{Role: types.RoleAssistant, Content: resp.Content},
	}, resp.Content, outcomeReply, nil
}

// callFunction runs a registered function with tracing and metrics.
func (c *Client) callFunction(ctx context.Context, call functionCall) (string, error) {
	ctx, span := observe.StartSpan(ctx, "llamachat.function",
		trace.WithAttributes(attribute.String("llamachat.function", call.Name)),
	)
	defer span.End()
	log := observe.WithTrace(ctx, c.logger)

	start := time.Now()
	result, err := c.registry.Call(ctx, call.Name, call.Arguments)
	c.metrics.FunctionDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("function", call.Name)))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.metrics.RecordFunctionCall(ctx, call.Name, observe.StatusError)
		return "", err
	}
	c.metrics.RecordFunctionCall(ctx, call.Name, observe.StatusOK)
	log.Info("function called", "function", call.Name, "duration", time.Since(start))
	return result, nil
}
