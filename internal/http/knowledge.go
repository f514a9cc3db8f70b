package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/nextlevelbuilder/agentloop/internal/config"
	"github.com/nextlevelbuilder/agentloop/pkg/protocol"
)

const maxSearchTopK = 50

// handleIngest indexes text into the named agent's knowledge base,
// replacing any earlier content from the same source.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.knowledge == nil {
		writeError(w, http.StatusServiceUnavailable, protocol.ErrUnavailable, "knowledge is disabled", nil)
		return
	}
	var req protocol.IngestRequest
	if !decodeBody(w, r, s.opts.MaxBodyBytes, &req) {
		return
	}
	if err := validateIngestRequest(&req); err != nil {
		writeError(w, http.StatusBadRequest, protocol.ErrInvalidRequest, err.Error(), nil)
		return
	}
	ag := s.lookupAgent(w, r, r.PathValue("name"))
	if ag == nil {
		return
	}

	source := config.NormalizeSourceName(req.Source)
	n, err := s.knowledge.Ingest(r.Context(), ag.ID, source, req.Text)
	if err != nil {
		slog.Error("http: knowledge ingest failed", "agent", ag.Name, "source", source, "error", err)
		writeError(w, http.StatusInternalServerError, protocol.ErrInternal, "ingest failed", nil)
		return
	}
	slog.Info("knowledge ingested", "agent", ag.Name, "source", source, "chunks", n)
	writeJSON(w, http.StatusOK, protocol.IngestResponse{Source: source, Chunks: n})
}

// handleSearch queries the named agent's knowledge base.
//
//	GET /v1/agents/{name}/knowledge/search?q=...&k=3
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.knowledge == nil {
		writeError(w, http.StatusServiceUnavailable, protocol.ErrUnavailable, "knowledge is disabled", nil)
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, protocol.ErrInvalidRequest, "q is required", nil)
		return
	}
	topK := 0
	if raw := r.URL.Query().Get("k"); raw != "" {
		k, err := strconv.Atoi(raw)
		if err != nil || k < 1 || k > maxSearchTopK {
			writeError(w, http.StatusBadRequest, protocol.ErrInvalidRequest, "k must be between 1 and 50", nil)
			return
		}
		topK = k
	}
	ag := s.lookupAgent(w, r, r.PathValue("name"))
	if ag == nil {
		return
	}

	results, err := s.knowledge.Search(r.Context(), ag.ID, q, topK)
	if err != nil {
		slog.Error("http: knowledge search failed", "agent", ag.Name, "error", err)
		writeError(w, http.StatusInternalServerError, protocol.ErrInternal, "search failed", nil)
		return
	}
	hits := make([]protocol.KnowledgeHit, 0, len(results))
	for _, res := range results {
		hits = append(hits, protocol.KnowledgeHit{Content: res.Content, Source: res.Source, Score: res.Score})
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": hits})
}
