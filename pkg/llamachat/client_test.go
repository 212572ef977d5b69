package llamachat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/thearyanag/llamachat/pkg/observe"
	"github.com/thearyanag/llamachat/pkg/provider/llm"
	"github.com/thearyanag/llamachat/pkg/provider/llm/mock"
	"github.com/thearyanag/llamachat/pkg/types"
)

// ── helpers ───────────────────────────────────────────────────────────────────

type addArgs struct {
	A int `json:"a" jsonschema:"first addend"`
	B int `json:"b" jsonschema:"second addend"`
}

func addFunction(t *testing.T) Function {
	t.Helper()
	fn, err := NewFunction("add", "Add two integers.", func(_ context.Context, in addArgs) (string, error) {
		return fmt.Sprint(in.A + in.B), nil
	})
	if err != nil {
		t.Fatalf("NewFunction: %v", err)
	}
	return fn
}

func testMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newMockClient builds a Client over a mock provider answering with replies in order.
func newMockClient(t *testing.T, p *mock.Provider, opts ...Option) *Client {
	t.Helper()
	m, _ := testMetrics(t)
	base := []Option{WithProvider(p), WithMetrics(m), WithLogger(quietLogger())}
	c, err := New("test-key", append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func replies(texts ...string) []*llm.CompletionResponse {
	out := make([]*llm.CompletionResponse, len(texts))
	for i, s := range texts {
		out[i] = &llm.CompletionResponse{Content: s, FinishReason: "stop"}
	}
	return out
}

// ── construction ──────────────────────────────────────────────────────────────

func TestNew(t *testing.T) {
	t.Run("missing api key", func(t *testing.T) {
		if _, err := New(""); !errors.Is(err, ErrMissingAPIKey) {
			t.Errorf("err = %v, want ErrMissingAPIKey", err)
		}
	})

	t.Run("missing model", func(t *testing.T) {
		if _, err := New("k", WithModel("")); !errors.Is(err, ErrMissingModel) {
			t.Errorf("err = %v, want ErrMissingModel", err)
		}
	})

	t.Run("defaults", func(t *testing.T) {
		c, err := New("k", WithLogger(quietLogger()))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if c.Model() != DefaultModel {
			t.Errorf("Model() = %q, want %q", c.Model(), DefaultModel)
		}
		if c.providerName != "inference" {
			t.Errorf("provider = %q, want inference", c.providerName)
		}
		if c.SystemPrompt() != DefaultSystemPrompt {
			t.Errorf("SystemPrompt() = %q", c.SystemPrompt())
		}
		if c.Registry().Len() != 0 || len(c.History()) != 0 {
			t.Error("new client should start empty")
		}
	})

	t.Run("custom model verbatim", func(t *testing.T) {
		c, err := New("k", WithModel("my-org/custom-model"))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if c.Model() != "my-org/custom-model" {
			t.Errorf("Model() = %q", c.Model())
		}
	})
}

// ── chat flow ─────────────────────────────────────────────────────────────────

// TestChat_HistoryGrowsInOrder checks that two chats build an ordered history
// and that the second request carries the first exchange.
func TestChat_HistoryGrowsInOrder(t *testing.T) {
	p := &mock.Provider{Responses: replies("Hello!", "Still here.")}
	c := newMockClient(t, p)
	ctx := context.Background()

	if got, err := c.Chat(ctx, "hi"); err != nil || got != "Hello!" {
		t.Fatalf("first Chat = %q, %v", got, err)
	}
	if got, err := c.Chat(ctx, "you there?"); err != nil || got != "Still here." {
		t.Fatalf("second Chat = %q, %v", got, err)
	}

	want := []types.Message{
		{Role: types.RoleUser, Content: "hi"},
		{Role: types.RoleAssistant, Content: "Hello!"},
		{Role: types.RoleUser, Content: "you there?"},
		{Role: types.RoleAssistant, Content: "Still here."},
	}
	hist := c.History()
	if len(hist) != len(want) {
		t.Fatalf("history len = %d, want %d", len(hist), len(want))
	}
	for i := range want {
		if hist[i].Role != want[i].Role || hist[i].Content != want[i].Content {
			t.Errorf("history[%d] = %+v, want %+v", i, hist[i], want[i])
		}
	}

	calls := p.Calls()
	if len(calls) != 2 {
		t.Fatalf("provider called %d times, want 2", len(calls))
	}
	second := calls[1].Req.Messages
	if len(second) != 3 || second[0].Content != "hi" || second[1].Content != "Hello!" || second[2].Content != "you there?" {
		t.Errorf("second request messages = %+v", second)
	}
	if calls[0].Req.SystemPrompt != DefaultSystemPrompt {
		t.Errorf("system prompt = %q", calls[0].Req.SystemPrompt)
	}
}

// TestChat_HistoryIsACopy checks that callers cannot mutate committed history.
func TestChat_HistoryIsACopy(t *testing.T) {
	c := newMockClient(t, &mock.Provider{Responses: replies("ok")})
	if _, err := c.Chat(context.Background(), "hi"); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	h := c.History()
	h[0].Content = "tampered"
	if c.History()[0].Content != "hi" {
		t.Error("History returned a shared slice")
	}
}

// TestChat_EnvelopeFunctionCall checks that a JSON envelope reply triggers the
// registered function and that its result becomes the assistant turn.
func TestChat_EnvelopeFunctionCall(t *testing.T) {
	p := &mock.Provider{Responses: replies("```json\n{\"function\": \"add\", \"arguments\": {\"a\": 2, \"b\": 3}}\n```")}
	c := newMockClient(t, p)
	if err := c.Register(addFunction(t)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := c.Chat(context.Background(), "what is 2+3?")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got != "5" {
		t.Errorf("Chat = %q, want 5", got)
	}

	hist := c.History()
	if len(hist) != 2 || hist[1].Role != types.RoleAssistant || hist[1].Content != "5" {
		t.Errorf("history = %+v", hist)
	}

	req := p.Calls()[0].Req
	if !strings.Contains(req.SystemPrompt, "1. add(a, b): Add two integers.") {
		t.Errorf("system prompt does not list the function:\n%s", req.SystemPrompt)
	}
}

// TestChat_NativeToolCall checks dispatch of native tool calls and the
// assistant/tool message pair committed for them.
func TestChat_NativeToolCall(t *testing.T) {
	p := &mock.Provider{
		ModelCapabilities: types.ModelCapabilities{SupportsToolCalling: true},
		Responses: []*llm.CompletionResponse{{
			ToolCalls:    []types.ToolCall{{Name: "add", Arguments: `{"a":40,"b":2}`}},
			FinishReason: "tool_calls",
		}},
	}
	c := newMockClient(t, p)
	if err := c.Register(addFunction(t)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := c.Chat(context.Background(), "add 40 and 2")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got != "42" {
		t.Errorf("Chat = %q, want 42", got)
	}

	hist := c.History()
	if len(hist) != 3 {
		t.Fatalf("history len = %d, want 3: %+v", len(hist), hist)
	}
	asst, tool := hist[1], hist[2]
	if asst.Role != types.RoleAssistant || len(asst.ToolCalls) != 1 {
		t.Fatalf("assistant message = %+v", asst)
	}
	if asst.ToolCalls[0].ID == "" {
		t.Error("missing tool call id was not synthesised")
	}
	if tool.Role != types.RoleTool || tool.Content != "42" || tool.ToolCallID != asst.ToolCalls[0].ID {
		t.Errorf("tool message = %+v", tool)
	}

	if tools := p.Calls()[0].Req.Tools; len(tools) != 1 || tools[0].Name != "add" {
		t.Errorf("request tools = %+v", tools)
	}
}

// TestChat_FunctionErrors checks the typed errors of the dispatch path and
// that none of them commits the turn.
func TestChat_FunctionErrors(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name  string
		reply string
		check func(t *testing.T, err error)
	}{
		{
			name:  "unknown function",
			reply: `{"function": "teleport", "arguments": {}}`,
			check: func(t *testing.T, err error) {
				var ufe *UnknownFunctionError
				if !errors.As(err, &ufe) || ufe.Name != "teleport" {
					t.Errorf("want *UnknownFunctionError{teleport}, got %v", err)
				}
				if !errors.Is(err, ErrUnknownFunction) {
					t.Error("errors.Is(ErrUnknownFunction) = false")
				}
			},
		},
		{
			name:  "schema mismatch",
			reply: `{"function": "add", "arguments": {"a": "two"}}`,
			check: func(t *testing.T, err error) {
				var iae *InvalidArgumentsError
				if !errors.As(err, &iae) || iae.Name != "add" {
					t.Errorf("want *InvalidArgumentsError{add}, got %v", err)
				}
			},
		},
		{
			name:  "arguments not an object",
			reply: `{"function": "add", "arguments": [1, 2]}`,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrInvalidArguments) {
					t.Errorf("want ErrInvalidArguments, got %v", err)
				}
			},
		},
		{
			name:  "handler failure",
			reply: `{"function": "explode", "arguments": {}}`,
			check: func(t *testing.T, err error) {
				var fe *FunctionError
				if !errors.As(err, &fe) || fe.Name != "explode" {
					t.Errorf("want *FunctionError{explode}, got %v", err)
				}
				if !errors.Is(err, boom) {
					t.Error("handler error not reachable through errors.Is")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newMockClient(t, &mock.Provider{Responses: replies(tt.reply)})
			err := c.RegisterMany(
				addFunction(t),
				Function{Name: "explode", Handler: func(context.Context, json.RawMessage) (string, error) { return "", boom }},
			)
			if err != nil {
				t.Fatalf("RegisterMany: %v", err)
			}

			_, err = c.Chat(context.Background(), "go")
			if err == nil {
				t.Fatal("expected error")
			}
			tt.check(t, err)
			if n := len(c.History()); n != 0 {
				t.Errorf("failed turn committed %d messages", n)
			}
		})
	}
}

// TestChat_TransportErrorLeavesHistory checks transport classification and
// that a failed exchange does not alter committed history.
func TestChat_TransportErrorLeavesHistory(t *testing.T) {
	p := &mock.Provider{Responses: replies("first")}
	c := newMockClient(t, p)
	ctx := context.Background()

	if _, err := c.Chat(ctx, "one"); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	p.CompleteErr = fmt.Errorf("inference: chat completion: %w", &llm.StatusError{StatusCode: 503, Body: "overloaded"})
	_, err := c.Chat(ctx, "two")

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("want *TransportError, got %T: %v", err, err)
	}
	if te.StatusCode != 503 {
		t.Errorf("StatusCode = %d, want 503", te.StatusCode)
	}
	if !errors.Is(err, ErrTransport) || !errors.Is(err, llm.ErrTransport) {
		t.Error("transport error does not match both sentinels")
	}

	hist := c.History()
	if len(hist) != 2 || hist[0].Content != "one" || hist[1].Content != "first" {
		t.Errorf("history changed after failure: %+v", hist)
	}
}

func TestChat_ParseErrorFromProvider(t *testing.T) {
	p := &mock.Provider{CompleteErr: llm.Malformed(errors.New("unexpected end of JSON input"))}
	c := newMockClient(t, p)

	_, err := c.Chat(context.Background(), "hi")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("want *ParseError, got %v", err)
	}
	if errors.Is(err, ErrTransport) {
		t.Error("parse error should not match ErrTransport")
	}
}

// ── end to end over HTTP ──────────────────────────────────────────────────────

// newAPIServer fakes the chat-completions endpoint, answering with bodies in order.
func newAPIServer(t *testing.T, bodies ...string) (*httptest.Server, func() []map[string]any) {
	t.Helper()
	var (
		n        atomic.Int32
		mu       sync.Mutex
		requests []map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		requests = append(requests, body)
		mu.Unlock()

		i := int(n.Add(1)) - 1
		if i >= len(bodies) {
			i = len(bodies) - 1
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, bodies[i])
	}))
	t.Cleanup(srv.Close)
	return srv, func() []map[string]any {
		mu.Lock()
		defer mu.Unlock()
		return slices.Clone(requests)
	}
}

func completion(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":      "cmpl-test",
		"choices": []any{map[string]any{"index": 0, "message": map[string]any{"role": "assistant", "content": content}, "finish_reason": "stop"}},
	})
	return string(b)
}

// TestChat_HTTPFunctionTrigger runs the default backend against a fake API.
func TestChat_HTTPFunctionTrigger(t *testing.T) {
	srv, requests := newAPIServer(t,
		completion(`{"function": "add", "arguments": {"a": 1, "b": 2}}`),
		completion("Anything else?"),
	)
	m, _ := testMetrics(t)
	c, err := New("test-key",
		WithBaseURL(srv.URL+"/v1"),
		WithModel(ModelLlama1B),
		WithMetrics(m),
		WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Register(addFunction(t)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx := context.Background()
	if got, err := c.Chat(ctx, "1+2?"); err != nil || got != "3" {
		t.Fatalf("first Chat = %q, %v", got, err)
	}
	if got, err := c.Chat(ctx, "thanks"); err != nil || got != "Anything else?" {
		t.Fatalf("second Chat = %q, %v", got, err)
	}

	seen := requests()
	if len(seen) != 2 {
		t.Fatalf("server saw %d requests, want 2", len(seen))
	}
	second := seen[1]
	if second["model"] != string(ModelLlama1B) || second["stream"] != false {
		t.Errorf("request header fields = model %v stream %v", second["model"], second["stream"])
	}
	msgs, _ := second["messages"].([]any)
	if len(msgs) != 4 {
		t.Fatalf("second request carried %d messages, want 4 (system, user, assistant, user)", len(msgs))
	}
	if first, _ := msgs[0].(map[string]any); first["role"] != "system" {
		t.Errorf("first message = %v, want system", first)
	}
	if asst, _ := msgs[2].(map[string]any); asst["content"] != "3" {
		t.Errorf("assistant message = %v, want function result", asst)
	}
}

// TestChat_HTTPMalformedBody checks that an undecodable 200 body is a ParseError.
func TestChat_HTTPMalformedBody(t *testing.T) {
	srv, _ := newAPIServer(t, `{"choices": [{"message": `)
	c, err := New("test-key", WithBaseURL(srv.URL+"/v1"), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = c.Chat(context.Background(), "hi")
	if !errors.Is(err, ErrParse) {
		t.Fatalf("want ErrParse, got %v", err)
	}
	if len(c.History()) != 0 {
		t.Error("malformed response committed history")
	}
}

// TestChat_HTTPUnauthorized checks that a non-2xx status is a TransportError.
func TestChat_HTTPUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, err := New("bad-key", WithBaseURL(srv.URL), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.Chat(context.Background(), "hi")
	var te *TransportError
	if !errors.As(err, &te) || te.StatusCode != http.StatusUnauthorized {
		t.Fatalf("want TransportError 401, got %v", err)
	}
}

// ── options ───────────────────────────────────────────────────────────────────

func TestChat_FunctionCallingModes(t *testing.T) {
	tests := []struct {
		name      string
		mode      FunctionCalling
		native    bool
		wantTools bool
	}{
		{name: "auto with native support", mode: FunctionCallingAuto, native: true, wantTools: true},
		{name: "auto without native support", mode: FunctionCallingAuto, native: false, wantTools: false},
		{name: "prompt", mode: FunctionCallingPrompt, native: true, wantTools: false},
		{name: "native", mode: FunctionCallingNative, native: false, wantTools: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &mock.Provider{
				Responses:         replies("ok"),
				ModelCapabilities: types.ModelCapabilities{SupportsToolCalling: tt.native},
			}
			c := newMockClient(t, p, WithFunctionCalling(tt.mode))
			if err := c.Register(addFunction(t)); err != nil {
				t.Fatalf("Register: %v", err)
			}
			if _, err := c.Chat(context.Background(), "hi"); err != nil {
				t.Fatalf("Chat: %v", err)
			}
			req := p.Calls()[0].Req
			if got := len(req.Tools) > 0; got != tt.wantTools {
				t.Errorf("tools sent = %v, want %v", got, tt.wantTools)
			}
			if !strings.Contains(req.SystemPrompt, `"function": "function_name"`) {
				t.Error("system prompt lacks the envelope instruction")
			}
		})
	}
}

func TestChat_SamplingOptions(t *testing.T) {
	p := &mock.Provider{Responses: replies("ok")}
	c := newMockClient(t, p, WithTemperature(0.3), WithMaxTokens(256), WithSystemPrompt("You are terse."))
	if _, err := c.Chat(context.Background(), "hi"); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	req := p.Calls()[0].Req
	if req.Temperature == nil || *req.Temperature != 0.3 || req.MaxTokens != 256 {
		t.Errorf("temperature/max tokens = %v/%d", req.Temperature, req.MaxTokens)
	}
	if req.SystemPrompt != "You are terse." {
		t.Errorf("system prompt = %q", req.SystemPrompt)
	}
}

// TestChat_DebugDump checks that debug mode writes a dump per exchange.
func TestChat_DebugDump(t *testing.T) {
	dir := t.TempDir()
	p := &mock.Provider{Responses: []*llm.CompletionResponse{{
		Content: "Hello!",
		Raw:     json.RawMessage(`{"id":"cmpl-raw","choices":[]}`),
	}}}
	c := newMockClient(t, p, WithDebugDir(dir))

	if _, err := c.Chat(context.Background(), "hi"); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("dump files = %d, want 1", len(entries))
	}
	name := entries[0].Name()
	if !regexp.MustCompile(`^response-\d{4}-\d{2}-\d{2}-\d{2}-\d{2}-\d{2}-[0-9a-f]{8}\.json$`).MatchString(name) {
		t.Errorf("unexpected dump file name %q", name)
	}

	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var dump struct {
		Response map[string]any  `json:"response"`
		Messages []types.Message `json:"messages"`
	}
	if err := json.Unmarshal(data, &dump); err != nil {
		t.Fatalf("decode dump: %v", err)
	}
	if dump.Response["id"] != "cmpl-raw" {
		t.Errorf("dump response = %v", dump.Response)
	}
	if len(dump.Messages) != 2 || dump.Messages[0].Role != types.RoleSystem || dump.Messages[1].Content != "hi" {
		t.Errorf("dump messages = %+v", dump.Messages)
	}
}

// TestChat_TemperatureZero checks that greedy decoding can be requested
// explicitly and that no temperature is sent by default.
func TestChat_TemperatureZero(t *testing.T) {
	p := &mock.Provider{Responses: replies("ok")}
	c := newMockClient(t, p, WithTemperature(0))
	if _, err := c.Chat(context.Background(), "hi"); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got := p.Calls()[0].Req.Temperature; got == nil || *got != 0 {
		t.Errorf("temperature = %v, want explicit 0", got)
	}

	p = &mock.Provider{Responses: replies("ok")}
	c = newMockClient(t, p)
	if _, err := c.Chat(context.Background(), "hi"); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got := p.Calls()[0].Req.Temperature; got != nil {
		t.Errorf("temperature = %v, want unset", *got)
	}
}

// TestChat_DebugDumpsToWorkingDir checks that debug mode without a directory
// writes its dumps into the working directory.
func TestChat_DebugDumpsToWorkingDir(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	p := &mock.Provider{Responses: replies("Hello!")}
	c := newMockClient(t, p, WithDebug(true))
	if _, err := c.Chat(context.Background(), "hi"); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "response-*.json"))
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("dump files in working dir = %d, want 1", len(matches))
	}
}

func TestReset(t *testing.T) {
	p := &mock.Provider{Responses: replies("a", "b")}
	c := newMockClient(t, p)
	if err := c.Register(addFunction(t)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := c.Chat(context.Background(), "x"); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	c.Reset()
	if len(c.History()) != 0 {
		t.Error("Reset did not clear history")
	}
	if c.Registry().Len() != 1 {
		t.Error("Reset dropped registered functions")
	}
	if _, err := c.Chat(context.Background(), "y"); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if msgs := p.Calls()[1].Req.Messages; len(msgs) != 1 {
		t.Errorf("request after reset carried %d messages, want 1", len(msgs))
	}
}

func TestCountTokens(t *testing.T) {
	p := &mock.Provider{Responses: replies("hello"), TokenCount: 42}
	c := newMockClient(t, p)
	if _, err := c.Chat(context.Background(), "hi"); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	n, err := c.CountTokens()
	if err != nil || n != 42 {
		t.Fatalf("CountTokens = %d, %v", n, err)
	}
	msgs := p.CountTokensCalls[0].Messages
	if len(msgs) != 3 || msgs[0].Role != types.RoleSystem {
		t.Errorf("CountTokens saw %+v, want system + 2 history messages", msgs)
	}
}

// TestChat_RecordsMetrics checks that function calls are counted.
func TestChat_RecordsMetrics(t *testing.T) {
	m, reader := testMetrics(t)
	p := &mock.Provider{Responses: replies(`{"function":"add","arguments":{"a":1,"b":1}}`)}
	c, err := New("k", WithProvider(p), WithMetrics(m), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Register(addFunction(t)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := c.Chat(context.Background(), "1+1"); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			found[met.Name] = true
		}
	}
	for _, name := range []string{
		"llamachat.chat.duration",
		"llamachat.llm.duration",
		"llamachat.function.duration",
		"llamachat.provider.requests",
		"llamachat.function.calls",
	} {
		if !found[name] {
			t.Errorf("metric %q not recorded", name)
		}
	}
}

// TestHistoryFromHandler checks that handlers can read history mid-turn.
func TestHistoryFromHandler(t *testing.T) {
	p := &mock.Provider{Responses: replies("first", `{"function":"peek","arguments":{}}`)}
	c := newMockClient(t, p)
	err := c.Register(Function{
		Name: "peek",
		Handler: func(context.Context, json.RawMessage) (string, error) {
			return fmt.Sprint(len(c.History())), nil
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx := context.Background()
	if _, err := c.Chat(ctx, "a"); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	got, err := c.Chat(ctx, "b")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got != "2" {
		t.Errorf("handler saw %s committed messages, want 2", got)
	}
}
