// Package http serves the agentloop REST API: agent runs, direct tool
// invocation and knowledge ingestion.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/agentloop/internal/agent"
	"github.com/nextlevelbuilder/agentloop/internal/store"
	"github.com/nextlevelbuilder/agentloop/internal/tools"
	"github.com/nextlevelbuilder/agentloop/pkg/protocol"
)

const defaultMaxBodyBytes = 1 << 20

// KnowledgeIndex is the subset of the knowledge store the API needs.
type KnowledgeIndex interface {
	Ingest(ctx context.Context, agentID uuid.UUID, source, text string) (int, error)
	Search(ctx context.Context, agentID uuid.UUID, query string, topK int) ([]store.KnowledgeResult, error)
}

// Options configures the listener and request limits.
type Options struct {
	Addr           string
	RateLimitRPS   float64
	RateLimitBurst int
	MaxBodyBytes   int64
}

// Server wires the handlers onto one mux.
type Server struct {
	runner    *agent.Runner
	agents    store.AgentStore
	tools     store.ToolStore
	invoker   *tools.Invoker
	knowledge KnowledgeIndex // nil when knowledge is disabled

	opts    Options
	limiter *RateLimiter
	mux     *http.ServeMux
}

// NewServer builds the API. knowledge may be nil.
func NewServer(runner *agent.Runner, agents store.AgentStore, toolStore store.ToolStore, invoker *tools.Invoker, knowledge KnowledgeIndex, opts Options) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	s := &Server{
		runner:    runner,
		agents:    agents,
		tools:     toolStore,
		invoker:   invoker,
		knowledge: knowledge,
		opts:      opts,
		limiter:   NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst),
		mux:       http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	v := "/" + protocol.APIVersion
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("POST "+v+"/agents/{name}/runs", s.handleRun)
	s.mux.HandleFunc("GET "+v+"/runs", s.handleListRuns)
	s.mux.HandleFunc("DELETE "+v+"/runs/{id}", s.handleAbortRun)
	s.mux.HandleFunc("GET "+v+"/tools", s.handleListTools)
	s.mux.HandleFunc("POST "+v+"/tools/invoke", s.handleInvoke)
	s.mux.HandleFunc("POST "+v+"/agents/{name}/knowledge", s.handleIngest)
	s.mux.HandleFunc("GET "+v+"/agents/{name}/knowledge/search", s.handleSearch)
}

// Handler returns the root handler with rate limiting applied.
func (s *Server) Handler() http.Handler {
	return s.limiter.Middleware(s.mux)
}

// ListenAndServe blocks until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the API on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	defer s.limiter.Stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	// Abort in-flight runs so their handlers return promptly.
	for _, run := range s.runner.ActiveRuns() {
		s.runner.AbortRun(run.RunID)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	slog.Info("http server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"activeRuns": len(s.runner.ActiveRuns()),
	})
}

// lookupAgent writes a 404 and returns nil when the agent does not exist.
func (s *Server) lookupAgent(w http.ResponseWriter, r *http.Request, name string) *store.AgentData {
	ag, err := s.runner.Agent(r.Context(), name)
	if err == nil {
		return ag
	}
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, protocol.ErrNotFound, fmt.Sprintf("agent %q not found", name), nil)
		return nil
	}
	slog.Error("http: agent lookup failed", "agent", name, "error", err)
	writeError(w, http.StatusInternalServerError, protocol.ErrInternal, "agent lookup failed", nil)
	return nil
}
