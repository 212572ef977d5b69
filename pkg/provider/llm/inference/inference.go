// Package inference provides the default LLM provider for the inference.net
// OpenAI-compatible chat-completions API.
//
// Requests go through the openai-go SDK (see the sibling openai package) with
// retries disabled, so each Complete call issues exactly one
// POST {baseURL}/chat/completions with "stream": false. The HTTP client is
// wrapped by a guard that classifies answers before the SDK decodes them:
// non-2xx statuses become *llm.StatusError (llm.ErrTransport) carrying a body
// excerpt, and oversized or non-JSON success bodies become
// llm.ErrMalformedResponse.
//
// Typical usage:
//
//	p, err := inference.New(apiKey, "meta-llama/llama-3.1-8b-instruct/fp-8",
//	    inference.WithTimeout(30*time.Second),
//	)
//	resp, err := p.Complete(ctx, llm.CompletionRequest{Messages: msgs})
package inference

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/option"

	"github.com/thearyanag/llamachat/pkg/provider/llm"
	"github.com/thearyanag/llamachat/pkg/provider/llm/openai"
	"github.com/thearyanag/llamachat/pkg/types"
)

// Compile-time interface assertion.
var _ llm.Provider = (*Provider)(nil)

const (
	// DefaultBaseURL is the inference.net API root.
	DefaultBaseURL = "https://api.inference.net/v1"

	defaultTimeout       = 60 * time.Second
	maxResponseBytes     = 10 << 20
	maxErrorBodyExcerpt  = 2048
	defaultContextWindow = 128_000
	defaultMaxOutput     = 4_096
)

type config struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// Option is a functional option for configuring a Provider.
type Option func(*config)

// WithBaseURL overrides the API root (default [DefaultBaseURL]). The
// completions path is appended to it.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithHTTPClient sets the HTTP client used for requests. The client is not
// modified; the provider works on a shallow copy.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 60 s unless a
// client with its own timeout is supplied.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// Provider implements llm.Provider for inference.net. Completion and token
// counting come from the embedded openai-go backend. It is safe for
// concurrent use.
type Provider struct {
	*openai.Provider
	model string
}

// New creates a Provider authenticating with apiKey and requesting model.
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("inference: apiKey must not be empty")
	}
	if model == "" {
		return nil, errors.New("inference: model must not be empty")
	}

	cfg := &config{baseURL: DefaultBaseURL}
	for _, o := range opts {
		o(cfg)
	}

	chat, err := openai.New(apiKey, model,
		openai.WithName("inference"),
		openai.WithBaseURL(strings.TrimRight(cfg.baseURL, "/")+"/"),
		openai.WithHTTPClient(newHTTPClient(cfg)),
		openai.WithRequestOptions(option.WithJSONSet("stream", false)),
	)
	if err != nil {
		return nil, fmt.Errorf("inference: %w", err)
	}
	return &Provider{Provider: chat, model: model}, nil
}

// Model returns the model identifier sent with every request.
func (p *Provider) Model() string { return p.model }

// Capabilities implements llm.Provider. Every Llama 3.1 / 3.2 instruct model
// served by inference.net shares the 128k context window and accepts tools.
func (p *Provider) Capabilities() types.ModelCapabilities {
	return types.ModelCapabilities{
		ContextWindow:       defaultContextWindow,
		MaxOutputTokens:     defaultMaxOutput,
		SupportsToolCalling: true,
		SupportsVision:      strings.Contains(strings.ToLower(p.model), "vision"),
	}
}

// newHTTPClient copies the configured client, applies the timeout and puts
// a [responseGuard] in front of its transport.
func newHTTPClient(cfg *config) *http.Client {
	var hc http.Client
	if cfg.httpClient != nil {
		hc = *cfg.httpClient
	}
	switch {
	case cfg.timeout > 0:
		hc.Timeout = cfg.timeout
	case cfg.httpClient == nil:
		hc.Timeout = defaultTimeout
	}
	hc.Transport = &responseGuard{base: hc.Transport, limit: maxResponseBytes}
	return &hc
}

// responseGuard buffers response bodies up to limit bytes and classifies
// everything that is not a well-formed JSON success.
type responseGuard struct {
	base  http.RoundTripper
	limit int64
}

// RoundTrip implements http.RoundTripper.
func (g *responseGuard) RoundTrip(req *http.Request) (*http.Response, error) {
	base := g.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyExcerpt))
		return nil, &llm.StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(excerpt)),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, g.limit+1))
	if err != nil {
		return nil, llm.Transport(fmt.Errorf("read response: %w", err))
	}
	if int64(len(body)) > g.limit {
		return nil, llm.Malformed(fmt.Errorf("response body exceeds %d bytes", g.limit))
	}
	if !json.Valid(body) {
		return nil, llm.Malformed(errors.New("response body is not valid JSON"))
	}

	// The API only speaks JSON; some proxies mislabel it.
	resp.Header.Set("Content-Type", "application/json")
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	return resp, nil
}
