package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/thearyanag/llamachat/internal/config"
	"github.com/thearyanag/llamachat/internal/functions/clock"
	"github.com/thearyanag/llamachat/internal/functions/dice"
	"github.com/thearyanag/llamachat/internal/health"
	"github.com/thearyanag/llamachat/internal/mcp/mcphost"
	"github.com/thearyanag/llamachat/internal/resilience"
	"github.com/thearyanag/llamachat/pkg/llamachat"
	"github.com/thearyanag/llamachat/pkg/observe"
)

// defaultConfigFile is read when --config is not given and the file exists.
const defaultConfigFile = "llamachat.yaml"

// apiKeyEnv is consulted when client.api_key is empty.
const apiKeyEnv = "INFERENCE_API_KEY"

// mcpConnectLimit bounds concurrent MCP server connections at startup.
const mcpConnectLimit = 4

// session bundles everything a command needs after startup.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	client   *llamachat.Client
	failover *resilience.Failover // nil without fallbacks
	host     *mcphost.Host
	render   func(string) string

	closers []func(context.Context) error
}

// Close releases MCP connections, the metrics server and telemetry
// exporters in reverse order of creation.
func (s *session) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, fn := range slices.Backward(s.closers) {
		if err := fn(ctx); err != nil {
			s.logger.Warn("shutdown error", "err", err)
		}
	}
}

// setup loads configuration and builds the chat client, its functions and
// the optional status endpoint.
func setup(ctx context.Context, opts *rootOptions) (*session, error) {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	applyFlags(cfg, opts)

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	s := &session{cfg: cfg, logger: logger, render: newRenderer(opts.plain)}

	if err := s.initTelemetry(ctx); err != nil {
		s.Close()
		return nil, err
	}

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	client, failover, err := buildClient(cfg, reg, logger)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.client, s.failover = client, failover

	if err := client.RegisterMany(builtinFunctions(cfg.Functions)...); err != nil {
		s.Close()
		return nil, err
	}

	s.host = mcphost.New(mcphost.WithLogger(logger))
	s.closers = append(s.closers, func(context.Context) error { return s.host.Close() })
	connectMCP(ctx, s.host, cfg.MCP.Servers, logger)
	for _, fn := range s.host.Functions() {
		if err := client.Register(fn); err != nil {
			logger.Warn("skipping mcp tool", "tool", fn.Name, "err", err)
		}
	}

	s.serveStatus()

	logger.Debug("session ready",
		"model", client.Model(),
		"functions", len(client.Registry().Names()),
	)
	return s, nil
}

// loadConfig reads path, or ./llamachat.yaml when path is empty. A missing
// default file yields an empty configuration.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); errors.Is(err, os.ErrNotExist) {
			return config.LoadFromReader(strings.NewReader(""))
		}
		path = defaultConfigFile
	}
	return config.Load(path)
}

// applyFlags overlays command-line flags on cfg.
func applyFlags(cfg *config.Config, opts *rootOptions) {
	if opts.model != "" {
		cfg.Client.Model = opts.model
	}
	if opts.debug {
		cfg.Client.Debug = true
	}
}

func newLogger(level config.LogLevel) *slog.Logger {
	var l slog.Level
	switch level {
	case config.LogDebug:
		l = slog.LevelDebug
	case config.LogWarn:
		l = slog.LevelWarn
	case config.LogError:
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

// initTelemetry installs the OpenTelemetry providers when
// observe.metrics_addr is set.
func (s *session) initTelemetry(ctx context.Context) error {
	if s.cfg.Observe.MetricsAddr == "" {
		return nil
	}
	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    s.cfg.Observe.ServiceName,
		ServiceVersion: version,
		SampleRatio:    s.cfg.Observe.TraceSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	s.closers = append(s.closers, shutdown)
	return nil
}

// serveStatus serves /metrics, /healthz and /readyz on
// observe.metrics_addr.
func (s *session) serveStatus() {
	addr := s.cfg.Observe.MetricsAddr
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	health.New(version, s.readinessChecks()...).Register(mux)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server error", "addr", addr, "err", err)
		}
	}()
	s.closers = append(s.closers, srv.Shutdown)
	s.logger.Info("serving metrics and health", "addr", addr)
}

// readinessChecks reports the backend breakers and the MCP servers that
// failed to connect.
func (s *session) readinessChecks() []health.Check {
	var checks []health.Check
	if s.failover != nil {
		checks = append(checks, health.Check{Name: "backend", Fn: s.failover.Available})
	}
	if len(s.cfg.MCP.Servers) > 0 && s.host != nil {
		checks = append(checks, health.Check{Name: "mcp", Fn: func(context.Context) error {
			connected := s.host.Servers()
			var missing []string
			for _, srv := range s.cfg.MCP.Servers {
				if !slices.Contains(connected, srv.Name) {
					missing = append(missing, srv.Name)
				}
			}
			if len(missing) > 0 {
				return fmt.Errorf("not connected: %s", strings.Join(missing, ", "))
			}
			return nil
		}})
	}
	return checks
}

// builtinFunctions returns the built-in functions selected by fc.
func builtinFunctions(fc config.FunctionsConfig) []llamachat.Function {
	if fc.Disable {
		return nil
	}
	all := map[string]func() llamachat.Function{
		dice.Name:  dice.Function,
		clock.Name: func() llamachat.Function { return clock.Function(nil) },
	}
	names := fc.Builtin
	if len(names) == 0 {
		names = config.BuiltinFunctionNames
	}
	fns := make([]llamachat.Function, 0, len(names))
	for _, name := range names {
		if mk, ok := all[name]; ok {
			fns = append(fns, mk())
		}
	}
	return fns
}

// connectMCP connects to every configured server concurrently. Servers that
// fail are logged and skipped.
func connectMCP(ctx context.Context, host *mcphost.Host, servers []config.MCPServerConfig, logger *slog.Logger) {
	if len(servers) == 0 {
		return
	}
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(mcpConnectLimit)
	for _, srv := range servers {
		eg.Go(func() error {
			if err := host.RegisterServer(egCtx, srv.ServerConfig()); err != nil {
				logger.Warn("mcp server unavailable", "server", srv.Name, "err", err)
			}
			return nil
		})
	}
	_ = eg.Wait()
}
