// Package mcphost provides a concrete implementation of the [mcp.Host] interface.
//
// It connects to MCP servers via stdio or streamable-HTTP transports using the
// official MCP Go SDK (github.com/modelcontextprotocol/go-sdk), keeps a
// concurrent-safe catalogue of the tools they offer, and exposes each tool as
// a llamachat function.
//
// Typical usage:
//
//	h := mcphost.New(mcphost.WithLogger(logger))
//	defer h.Close()
//
//	err := h.RegisterServer(ctx, mcp.ServerConfig{
//	    Name:      "files",
//	    Transport: mcp.TransportStdio,
//	    Command:   "/usr/local/bin/mcp-files --root /srv",
//	})
//
//	for _, fn := range h.Functions() {
//	    _ = client.Register(fn)
//	}
package mcphost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/thearyanag/llamachat/internal/mcp"
	"github.com/thearyanag/llamachat/pkg/llamachat"
	"github.com/thearyanag/llamachat/pkg/types"
)

// clientVersion is reported to MCP servers during initialisation.
const clientVersion = "1.0.0"

// toolEntry holds all metadata for a single imported tool.
type toolEntry struct {
	def        types.ToolDefinition
	serverName string
	calls      *callWindow
}

// Host is a concrete implementation of [mcp.Host].
//
// The zero value is NOT usable; create instances with [New].
type Host struct {
	mu      sync.RWMutex
	tools   map[string]toolEntry                // key: tool name
	servers map[string]*mcpsdk.ClientSession // key: server name

	// client is reused across all server connections. The SDK allows a
	// single Client to manage multiple sessions concurrently.
	client *mcpsdk.Client

	httpClient *http.Client
	logger     *slog.Logger
}

// Compile-time check: Host must implement mcp.Host.
var _ mcp.Host = (*Host)(nil)

// Option configures a [Host].
type Option func(*Host)

// WithHTTPClient sets the HTTP client used for streamable-http servers.
func WithHTTPClient(hc *http.Client) Option {
	return func(h *Host) {
		h.httpClient = hc
	}
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(h *Host) {
		h.logger = l
	}
}

// New creates and returns a ready-to-use Host.
func New(opts ...Option) *Host {
	h := &Host{
		tools:   make(map[string]toolEntry),
		servers: make(map[string]*mcpsdk.ClientSession),
		client: mcpsdk.NewClient(
			&mcpsdk.Implementation{Name: "llamachat", Version: clientVersion},
			nil,
		),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// RegisterServer connects to the MCP server described by cfg and imports its
// tool catalogue. If a server with the same Name is already registered, the
// old connection is closed and replaced.
//
// For [mcp.TransportStdio]: cfg.Command is split on whitespace into
// executable and arguments; cfg.Env is added to the inherited environment.
// The subprocess lives until [Host.Close], independent of ctx.
//
// For [mcp.TransportStreamableHTTP]: cfg.URL is the endpoint and
// cfg.BearerToken, if set, authenticates every request.
func (h *Host) RegisterServer(ctx context.Context, cfg mcp.ServerConfig) error {
	if cfg.Name == "" {
		return errors.New("mcp host: server config must have a non-empty name")
	}

	var transport mcpsdk.Transport
	switch cfg.Transport {
	case mcp.TransportStdio:
		executable, args := splitCommand(cfg.Command)
		if executable == "" {
			return fmt.Errorf("mcp host: stdio server %q requires a non-empty Command", cfg.Name)
		}
		cmd := exec.Command(executable, args...)
		if len(cfg.Env) > 0 {
			cmd.Env = os.Environ()
			for k, v := range cfg.Env {
				cmd.Env = append(cmd.Env, k+"="+v)
			}
		}
		transport = &mcpsdk.CommandTransport{Command: cmd}

	case mcp.TransportStreamableHTTP:
		if cfg.URL == "" {
			return fmt.Errorf("mcp host: streamable-http server %q requires a non-empty URL", cfg.Name)
		}
		transport = &mcpsdk.StreamableClientTransport{
			Endpoint:   cfg.URL,
			HTTPClient: withBearer(h.httpClient, cfg.BearerToken),
		}

	default:
		return fmt.Errorf("mcp host: unknown transport %q for server %q", cfg.Transport, cfg.Name)
	}

	return h.connect(ctx, cfg.Name, transport)
}

// connect opens a session over transport, lists its tools and installs them
// under serverName.
func (h *Host) connect(ctx context.Context, serverName string, transport mcpsdk.Transport) error {
	session, err := h.client.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("mcp host: connect to server %q: %w", serverName, err)
	}

	var discovered []*mcpsdk.Tool
	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			_ = session.Close()
			return fmt.Errorf("mcp host: list tools of server %q: %w", serverName, err)
		}
		discovered = append(discovered, tool)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.servers[serverName]; ok {
		_ = old.Close()
		for name, t := range h.tools {
			if t.serverName == serverName {
				delete(h.tools, name)
			}
		}
	}
	h.servers[serverName] = session

	for _, tool := range discovered {
		if prev, ok := h.tools[tool.Name]; ok && prev.serverName != serverName {
			h.logger.Warn("mcp tool name collision; later server wins",
				"tool", tool.Name, "previous_server", prev.serverName, "server", serverName)
		}
		h.tools[tool.Name] = toolEntry{
			def: types.ToolDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  schemaToMap(tool.InputSchema),
			},
			serverName: serverName,
			calls:      newCallWindow(defaultWindowSize),
		}
	}

	h.logger.Info("mcp server connected", "server", serverName, "tools", len(discovered))
	return nil
}

// schemaToMap converts a tool input schema to the generic map form. The
// $schema keyword is dropped so that draft-07 schemas still compile.
func schemaToMap(schema any) map[string]any {
	fallback := map[string]any{"type": "object"}
	if schema == nil {
		return fallback
	}
	m, ok := schema.(map[string]any)
	if !ok {
		data, err := json.Marshal(schema)
		if err != nil {
			return fallback
		}
		if err := json.Unmarshal(data, &m); err != nil || m == nil {
			return fallback
		}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if k != "$schema" {
			out[k] = v
		}
	}
	return out
}

// Functions returns one function per imported tool, sorted by name.
func (h *Host) Functions() []llamachat.Function {
	h.mu.RLock()
	defer h.mu.RUnlock()

	fns := make([]llamachat.Function, 0, len(h.tools))
	for name, e := range h.tools {
		fns = append(fns, llamachat.Function{
			Name:        name,
			Description: e.def.Description,
			Parameters:  e.def.Parameters,
			Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
				return h.ExecuteTool(ctx, name, args)
			},
		})
	}
	slices.SortFunc(fns, func(a, b llamachat.Function) int { return strings.Compare(a.Name, b.Name) })
	return fns
}

// ExecuteTool calls the named tool on its server and returns the
// concatenated text content of the result.
func (h *Host) ExecuteTool(ctx context.Context, name string, args json.RawMessage) (string, error) {
	h.mu.RLock()
	entry, ok := h.tools[name]
	var session *mcpsdk.ClientSession
	if ok {
		session = h.servers[entry.serverName]
	}
	h.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("mcp host: tool %q not found", name)
	}
	if session == nil {
		return "", fmt.Errorf("mcp host: server %q not connected for tool %q", entry.serverName, name)
	}

	var argsMap map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &argsMap); err != nil {
			return "", fmt.Errorf("mcp host: invalid args JSON for tool %q: %w", name, err)
		}
	}

	start := time.Now()
	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      name,
		Arguments: argsMap,
	})
	entry.calls.Record(time.Since(start), err != nil || (result != nil && result.IsError))
	if err != nil {
		return "", fmt.Errorf("mcp host: call tool %q: %w", name, err)
	}

	var sb strings.Builder
	for _, c := range result.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	if result.IsError {
		return "", fmt.Errorf("mcp host: tool %q reported an error: %s", name, sb.String())
	}
	return sb.String(), nil
}

// Servers returns the names of the connected servers, sorted.
func (h *Host) Servers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.servers))
	for name := range h.servers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Stats reports per-tool call statistics, sorted by name.
func (h *Host) Stats() []mcp.ToolStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := make([]mcp.ToolStats, 0, len(h.tools))
	for name, e := range h.tools {
		stats = append(stats, mcp.ToolStats{
			Name:      name,
			Server:    e.serverName,
			Calls:     e.calls.Count(),
			P50Ms:     e.calls.Percentile(0.5).Milliseconds(),
			P99Ms:     e.calls.Percentile(0.99).Milliseconds(),
			ErrorRate: e.calls.ErrorRate(),
		})
	}
	slices.SortFunc(stats, func(a, b mcp.ToolStats) int { return strings.Compare(a.Name, b.Name) })
	return stats
}

// Close shuts down all server connections and clears the tool catalogue.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var errs []error
	for name, session := range h.servers {
		if err := session.Close(); err != nil {
			errs = append(errs, fmt.Errorf("mcp host: close server %q: %w", name, err))
		}
		delete(h.servers, name)
	}
	h.tools = make(map[string]toolEntry)
	return errors.Join(errs...)
}

// splitCommand splits a command string into executable and arguments.
// e.g. "/bin/foo --bar baz" → ("/bin/foo", ["--bar", "baz"]).
func splitCommand(command string) (executable string, args []string) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return "", nil
	}
	return parts[0], parts[1:]
}

// bearerTransport adds a static Authorization header to every request.
type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(req)
}

// withBearer returns hc, or a copy of it that authenticates with token.
func withBearer(hc *http.Client, token string) *http.Client {
	if token == "" {
		return hc
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	cp := *hc
	cp.Transport = &bearerTransport{token: token, base: base}
	return &cp
}
