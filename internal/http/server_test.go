package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextlevelbuilder/agentloop/internal/agent"
	"github.com/nextlevelbuilder/agentloop/internal/providers"
	"github.com/nextlevelbuilder/agentloop/internal/store"
	"github.com/nextlevelbuilder/agentloop/internal/store/file"
	"github.com/nextlevelbuilder/agentloop/internal/tools"
	"github.com/nextlevelbuilder/agentloop/pkg/protocol"
)

type replyProvider struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   int
}

func (p *replyProvider) Name() string         { return "fake" }
func (p *replyProvider) DefaultModel() string { return "fake-model" }

func (p *replyProvider) Send(context.Context, providers.ChatRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	if p.calls > len(p.replies) {
		return p.replies[len(p.replies)-1], nil
	}
	return p.replies[p.calls-1], nil
}

type blockingProvider struct {
	once    sync.Once
	started chan struct{}
}

func (p *blockingProvider) Name() string         { return "blocking" }
func (p *blockingProvider) DefaultModel() string { return "m" }

func (p *blockingProvider) Send(ctx context.Context, _ providers.ChatRequest) (string, error) {
	p.once.Do(func() { close(p.started) })
	<-ctx.Done()
	return "", &providers.NetworkError{Provider: "blocking", Err: ctx.Err()}
}

type memKnowledge struct {
	mu      sync.Mutex
	ingests map[string]string
}

func (k *memKnowledge) Ingest(_ context.Context, agentID uuid.UUID, source, text string) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.ingests == nil {
		k.ingests = map[string]string{}
	}
	k.ingests[agentID.String()+"/"+source] = text
	return 1, nil
}

func (k *memKnowledge) Search(_ context.Context, agentID uuid.UUID, query string, _ int) ([]store.KnowledgeResult, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	var out []store.KnowledgeResult
	for key, text := range k.ingests {
		if strings.HasPrefix(key, agentID.String()+"/") && strings.Contains(text, query) {
			out = append(out, store.KnowledgeResult{Content: text, Source: strings.TrimPrefix(key, agentID.String()+"/"), Score: 1})
		}
	}
	return out, nil
}

func newTestServer(t *testing.T, p providers.Provider, knowledge KnowledgeIndex, opts Options) (*Server, *agent.Runner) {
	t.Helper()
	ctx := context.Background()
	cat, err := file.NewCatalogStore("")
	require.NoError(t, err)
	ts, agents := cat.Tools(), cat.Agents()

	reg := tools.DefaultRegistry()
	_, err = tools.SeedBuiltins(ctx, ts, reg)
	require.NoError(t, err)
	calc, err := ts.FindByName(ctx, "calculator")
	require.NoError(t, err)
	require.NoError(t, ts.Upsert(ctx, &store.ToolDefinition{
		Name:        "thrower",
		Description: "always throws",
		Body:        `function execute(args) { throw new Error("kaboom") }`,
	}))
	require.NoError(t, agents.Upsert(ctx, &store.AgentData{
		Name:    "analyst",
		Role:    "a careful analyst",
		Task:    "Compute things.",
		ToolIDs: []uuid.UUID{calc.ID},
	}))

	invoker := tools.NewInvoker(reg, tools.NewScriptRunner(8))
	loop := agent.NewLoop(agent.LoopConfig{
		Provider: p,
		Resolver: tools.NewResolver(ts, 0),
		Invoker:  invoker,
		Tools:    ts,
	})
	runner := agent.NewRunner(loop, agents)
	s := NewServer(runner, agents, ts, invoker, knowledge, opts)
	t.Cleanup(s.limiter.Stop)
	return s, runner
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "192.0.2.1:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) protocol.ErrorShape {
	t.Helper()
	var resp protocol.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestRun_DoneWithToolCall(t *testing.T) {
	p := &replyProvider{replies: []string{
		`{"function": "calculator", "arguments": {"expression": "2+3"}}`,
		"The sum is 5.",
	}}
	s, _ := newTestServer(t, p, nil, Options{})

	rec := do(t, s.Handler(), http.MethodPost, "/v1/agents/analyst/runs?transcript=true", `{"input":"add 2 and 3"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp protocol.RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "done", resp.Status)
	assert.Equal(t, "The sum is 5.", resp.Output)
	assert.Equal(t, 2, resp.Iterations)
	require.Len(t, resp.ToolLog, 1)
	assert.Equal(t, "calculator", resp.ToolLog[0].Tool)
	assert.False(t, resp.ToolLog[0].IsError)
	assert.Len(t, resp.Transcript, 4)
	_, err := uuid.Parse(resp.RunID)
	assert.NoError(t, err)
}

func TestRun_Exhausted(t *testing.T) {
	p := &replyProvider{replies: []string{`{"function": "calculator", "arguments": {"expression": "1+1"}}`}}
	s, _ := newTestServer(t, p, nil, Options{})

	rec := do(t, s.Handler(), http.MethodPost, "/v1/agents/analyst/runs", `{"input":"loop forever"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp protocol.RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "exhausted", resp.Status)
	assert.Equal(t, agent.DefaultMaxIterations, resp.Iterations)
	assert.Equal(t, "max iterations reached", resp.Error)
	assert.Empty(t, resp.Transcript)
}

func TestRun_ProviderFailure(t *testing.T) {
	p := &replyProvider{err: &providers.BackendError{Provider: "fake", StatusCode: 500, Message: "boom"}}
	s, _ := newTestServer(t, p, nil, Options{})

	rec := do(t, s.Handler(), http.MethodPost, "/v1/agents/analyst/runs", `{"input":"hi"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	shape := decodeError(t, rec)
	assert.Equal(t, protocol.ErrRunFailed, shape.Code)
	assert.Contains(t, shape.Message, "boom")
	details, ok := shape.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "failed", details["status"])
}

func TestRun_Errors(t *testing.T) {
	s, _ := newTestServer(t, &replyProvider{replies: []string{"ok"}}, nil, Options{MaxBodyBytes: 64})
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/v1/agents/nobody/runs", `{"input":"hi"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, protocol.ErrNotFound, decodeError(t, rec).Code)

	rec = do(t, h, http.MethodPost, "/v1/agents/analyst/runs", `{"input":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/v1/agents/analyst/runs", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, protocol.ErrInvalidRequest, decodeError(t, rec).Code)

	big := `{"input":"` + strings.Repeat("x", 200) + `"}`
	rec = do(t, h, http.MethodPost, "/v1/agents/analyst/runs", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, protocol.ErrPayloadTooLarge, decodeError(t, rec).Code)

	rec = do(t, h, http.MethodGet, "/v1/agents/analyst/runs", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRuns_ListAndAbort(t *testing.T) {
	bp := &blockingProvider{started: make(chan struct{})}
	s, runner := newTestServer(t, bp, nil, Options{})
	h := s.Handler()

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- do(t, h, http.MethodPost, "/v1/agents/analyst/runs", `{"input":"wait"}`)
	}()
	select {
	case <-bp.started:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not start")
	}

	rec := do(t, h, http.MethodGet, "/v1/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Runs []protocol.ActiveRun `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Runs, 1)
	assert.Equal(t, "analyst", list.Runs[0].Agent)

	rec = do(t, h, http.MethodDelete, "/v1/runs/"+list.Runs[0].RunID, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	select {
	case res := <-done:
		assert.Equal(t, http.StatusBadGateway, res.Code)
	case <-time.After(5 * time.Second):
		t.Fatal("aborted run did not return")
	}
	assert.Empty(t, runner.ActiveRuns())

	rec = do(t, h, http.MethodDelete, "/v1/runs/"+list.Runs[0].RunID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, h, http.MethodDelete, "/v1/runs/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestToolsInvoke(t *testing.T) {
	s, _ := newTestServer(t, &replyProvider{replies: []string{"ok"}}, nil, Options{})
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/v1/tools/invoke", `{"tool":"calculator","args":{"expression":"6*7"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp protocol.InvokeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.IsError)
	assert.JSONEq(t, `{"expression":"6*7","result":42}`, string(resp.Result))

	rec = do(t, h, http.MethodPost, "/v1/tools/invoke", `{"tool":"thrower","args":{}}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	shape := decodeError(t, rec)
	assert.Equal(t, protocol.ErrToolError, shape.Code)
	assert.Contains(t, shape.Message, "kaboom")

	rec = do(t, h, http.MethodPost, "/v1/tools/invoke", `{"tool":"calculator","args":{}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, map[string]any{"missing": []any{"expression"}}, decodeError(t, rec).Details)

	rec = do(t, h, http.MethodPost, "/v1/tools/invoke", `{"tool":"nope","args":{}}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/v1/tools/invoke", `{"tool":"Bad Name"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/v1/tools/invoke", `{"tool":"calculator","args":{"expression":"1"},"agent":"ghost"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestToolsInvoke_DryRun(t *testing.T) {
	s, _ := newTestServer(t, &replyProvider{replies: []string{"ok"}}, nil, Options{})

	rec := do(t, s.Handler(), http.MethodPost, "/v1/tools/invoke", `{"tool":"calculator","dryRun":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var info protocol.ToolInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "calculator", info.Name)
	assert.Equal(t, "builtin", info.Kind)
	assert.Equal(t, "object", info.InputSchema["type"])
	assert.Equal(t, []any{"expression"}, info.InputSchema["required"])
}

func TestListTools(t *testing.T) {
	s, _ := newTestServer(t, &replyProvider{replies: []string{"ok"}}, nil, Options{})

	rec := do(t, s.Handler(), http.MethodGet, "/v1/tools", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Tools []protocol.ToolInfo `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	kinds := map[string]string{}
	var names []string
	for _, ti := range body.Tools {
		kinds[ti.Name] = ti.Kind
		names = append(names, ti.Name)
	}
	assert.IsNonDecreasing(t, names)
	assert.Equal(t, "script", kinds["thrower"])
	assert.Equal(t, "builtin", kinds["calculator"])
}

func TestKnowledgeEndpoints(t *testing.T) {
	s, _ := newTestServer(t, &replyProvider{replies: []string{"ok"}}, &memKnowledge{}, Options{})
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/v1/agents/analyst/knowledge", `{"source":"Docs/Guide.MD","text":"the vault code is 1234"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var ing protocol.IngestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ing))
	assert.Equal(t, "guide.md", ing.Source)
	assert.Equal(t, 1, ing.Chunks)

	rec = do(t, h, http.MethodGet, "/v1/agents/analyst/knowledge/search?q=vault&k=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Results []protocol.KnowledgeHit `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Results, 1)
	assert.Equal(t, "guide.md", body.Results[0].Source)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/v1/agents/analyst/knowledge/search", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/v1/agents/analyst/knowledge/search?q=x&k=0", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/v1/agents/ghost/knowledge/search?q=x", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/v1/agents/analyst/knowledge", `{"text":""}`).Code)
}

func TestKnowledgeDisabled(t *testing.T) {
	s, _ := newTestServer(t, &replyProvider{replies: []string{"ok"}}, nil, Options{})
	rec := do(t, s.Handler(), http.MethodPost, "/v1/agents/analyst/knowledge", `{"text":"x"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	shape := decodeError(t, rec)
	assert.Equal(t, protocol.ErrUnavailable, shape.Code)
	assert.True(t, shape.Retryable)
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, &replyProvider{replies: []string{"ok"}}, nil, Options{})
	rec := do(t, s.Handler(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","activeRuns":0}`, rec.Body.String())
}

func TestRateLimiter(t *testing.T) {
	s, _ := newTestServer(t, &replyProvider{replies: []string{"ok"}}, nil, Options{RateLimitRPS: 0.001, RateLimitBurst: 2})
	h := s.Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "").Code)
	rec := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, protocol.ErrResourceExhausted, decodeError(t, rec).Code)

	// Another client has its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "198.51.100.7:999"
	other := httptest.NewRecorder()
	h.ServeHTTP(other, req)
	assert.Equal(t, http.StatusOK, other.Code)
}

func TestRateLimiter_DisabledAndCleanup(t *testing.T) {
	var nilRL *RateLimiter
	assert.True(t, nilRL.Allow("x"))
	assert.False(t, nilRL.Enabled())
	nilRL.Stop()

	rl := NewRateLimiter(10, 1)
	defer rl.Stop()
	assert.True(t, rl.Allow("a"))
	rl.cleanup(time.Now().Add(time.Minute))
	_, ok := rl.limiters.Load("a")
	assert.False(t, ok)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	s, _ := newTestServer(t, &replyProvider{replies: []string{"ok"}}, nil, Options{Addr: "127.0.0.1:0"})
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.ListenAndServe(ctx) }()
	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
