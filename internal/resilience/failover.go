package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/thearyanag/llamachat/pkg/provider/llm"
	"github.com/thearyanag/llamachat/pkg/types"
)

// ErrAllFailed is returned when every backend of a [Failover] failed or was
// skipped by its breaker. The last backend error stays reachable through
// errors.Is / errors.As.
var ErrAllFailed = errors.New("resilience: all backends failed")

var _ llm.Provider = (*Failover)(nil)

// Backend is one member of a [Failover].
type Backend struct {
	Name     string
	Provider llm.Provider
}

// BackendStatus is the breaker state of one backend.
type BackendStatus struct {
	Name  string
	State State
}

type member struct {
	Backend
	breaker *Breaker
}

// Failover implements llm.Provider over an ordered list of backends. Complete
// goes to the first backend whose breaker admits the call and moves on to
// the next one when it fails. Caller cancellation stops the walk without
// counting against any backend.
type Failover struct {
	members []member
	logger  *slog.Logger
}

// NewFailover creates a Failover trying backends in order. cfg is the
// template for every backend's breaker; its Name is replaced per backend.
func NewFailover(cfg BreakerConfig, backends ...Backend) (*Failover, error) {
	if len(backends) == 0 {
		return nil, errors.New("resilience: failover needs at least one backend")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	f := &Failover{logger: cfg.Logger}
	for _, b := range backends {
		if b.Provider == nil {
			return nil, fmt.Errorf("resilience: backend %q has nil provider", b.Name)
		}
		bc := cfg
		bc.Name = b.Name
		f.members = append(f.members, member{Backend: b, breaker: NewBreaker(bc)})
	}
	return f, nil
}

// Name reports the member names joined by "+", e.g. "inference+ollama".
func (f *Failover) Name() string {
	names := make([]string, len(f.members))
	for i, m := range f.members {
		names[i] = m.Name
	}
	return strings.Join(names, "+")
}

// Complete implements llm.Provider.
func (f *Failover) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	var lastErr error
	for _, m := range f.members {
		var resp *llm.CompletionResponse
		err := m.breaker.Do(func() error {
			var err error
			resp, err = m.Provider.Complete(ctx, req)
			return err
		}, func(error) bool { return ctx.Err() != nil })
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			f.logger.Debug("skipping backend, circuit open", "backend", m.Name)
			continue
		}
		f.logger.Warn("backend failed, trying next", "backend", m.Name, "err", err)
	}
	return nil, fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}

// CountTokens uses the primary backend's estimate.
func (f *Failover) CountTokens(messages []types.Message) (int, error) {
	return f.members[0].Provider.CountTokens(messages)
}

// Capabilities reports the primary backend's capabilities.
func (f *Failover) Capabilities() types.ModelCapabilities {
	return f.members[0].Provider.Capabilities()
}

// Status reports every backend's breaker state in order.
func (f *Failover) Status() []BackendStatus {
	out := make([]BackendStatus, len(f.members))
	for i, m := range f.members {
		out[i] = BackendStatus{Name: m.Name, State: m.breaker.State()}
	}
	return out
}

// Available returns nil when at least one backend's breaker would admit a
// call.
func (f *Failover) Available(context.Context) error {
	for _, m := range f.members {
		if m.breaker.State() != StateOpen {
			return nil
		}
	}
	return errors.New("resilience: every backend circuit is open")
}
