package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/agentloop/internal/agent"
	"github.com/nextlevelbuilder/agentloop/internal/store"
	"github.com/nextlevelbuilder/agentloop/pkg/protocol"
)

// handleRun executes one agent run synchronously.
//
//	POST /v1/agents/{name}/runs[?transcript=true]
//
// done and exhausted reply 200; failed replies 502 RUN_FAILED with the
// partial run in details. Inputs rejected by the guard reply 400.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var req protocol.RunRequest
	if !decodeBody(w, r, s.opts.MaxBodyBytes, &req) {
		return
	}
	if err := validateRunRequest(&req); err != nil {
		writeError(w, http.StatusBadRequest, protocol.ErrInvalidRequest, err.Error(), nil)
		return
	}

	slog.Info("run request", "agent", name, "remote", clientKey(r))

	result, err := s.runner.Run(r.Context(), name, req.Input)
	if result == nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, protocol.ErrNotFound, fmt.Sprintf("agent %q not found", name), nil)
			return
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			writeError(w, http.StatusServiceUnavailable, protocol.ErrUnavailable, "no run slot available", nil)
			return
		}
		slog.Error("http: run could not start", "agent", name, "error", err)
		writeError(w, http.StatusInternalServerError, protocol.ErrInternal, "run could not start", nil)
		return
	}

	resp := toRunResponse(name, result, r.URL.Query().Get("transcript") == "true")
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, agent.ErrInputRejected) {
			status = http.StatusBadRequest
		}
		code := protocol.ErrRunFailed
		if status == http.StatusBadRequest {
			code = protocol.ErrInvalidRequest
		}
		writeError(w, status, code, result.Error, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleListRuns lists in-flight runs, oldest first.
func (s *Server) handleListRuns(w http.ResponseWriter, _ *http.Request) {
	active := s.runner.ActiveRuns()
	out := make([]protocol.ActiveRun, 0, len(active))
	for _, run := range active {
		out = append(out, protocol.ActiveRun{
			RunID:     run.RunID.String(),
			Agent:     run.AgentName,
			StartedAt: run.StartedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

// handleAbortRun cancels an in-flight run.
func (s *Server) handleAbortRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, protocol.ErrInvalidRequest, "invalid run id", nil)
		return
	}
	if !s.runner.AbortRun(id) {
		writeError(w, http.StatusNotFound, protocol.ErrNotFound, "run not found or already finished", nil)
		return
	}
	slog.Info("run aborted", "run_id", id)
	writeJSON(w, http.StatusOK, map[string]any{"runId": id.String(), "aborted": true})
}

func toRunResponse(agentName string, res *agent.RunResult, withTranscript bool) protocol.RunResponse {
	resp := protocol.RunResponse{
		RunID:      res.RunID.String(),
		Agent:      agentName,
		Status:     string(res.Status),
		Output:     res.Output,
		Error:      res.Error,
		Iterations: res.Iterations,
		ToolLog:    make([]protocol.ToolCall, 0, len(res.ToolLog)),
	}
	for _, rec := range res.ToolLog {
		resp.ToolLog = append(resp.ToolLog, protocol.ToolCall{
			Iteration:  rec.Iteration,
			Tool:       rec.Tool,
			Arguments:  rec.Arguments,
			Result:     rec.Result,
			IsError:    rec.IsError,
			DurationMS: rec.DurationMS,
		})
	}
	if withTranscript {
		for _, m := range res.Transcript {
			resp.Transcript = append(resp.Transcript, protocol.Turn{Role: string(m.Role), Content: m.Content})
		}
	}
	return resp
}
