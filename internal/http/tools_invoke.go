package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"github.com/nextlevelbuilder/agentloop/internal/store"
	"github.com/nextlevelbuilder/agentloop/internal/tools"
	"github.com/nextlevelbuilder/agentloop/pkg/protocol"
)

// handleInvoke runs one catalog tool directly, outside any agent run.
// With dryRun it only returns the tool's description and input schema.
// Tool failures reply 422 TOOL_ERROR carrying the normalized result.
func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	var req protocol.InvokeRequest
	if !decodeBody(w, r, s.opts.MaxBodyBytes, &req) {
		return
	}
	if err := validateInvokeRequest(&req); err != nil {
		writeError(w, http.StatusBadRequest, protocol.ErrInvalidRequest, err.Error(), nil)
		return
	}

	slog.Info("tools invoke request", "tool", req.Tool, "agent", req.Agent, "dry_run", req.DryRun)

	def, err := s.tools.FindByName(r.Context(), req.Tool)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, protocol.ErrNotFound, fmt.Sprintf("tool %q not found", req.Tool), nil)
			return
		}
		slog.Error("http: tool lookup failed", "tool", req.Tool, "error", err)
		writeError(w, http.StatusInternalServerError, protocol.ErrInternal, "tool lookup failed", nil)
		return
	}

	if req.DryRun {
		info := toToolInfo(*def)
		info.InputSchema = tools.InputSchema(*def)
		writeJSON(w, http.StatusOK, info)
		return
	}

	if missing := tools.MissingRequired(*def, req.Args); len(missing) > 0 {
		writeError(w, http.StatusBadRequest, protocol.ErrInvalidRequest,
			"missing required arguments", map[string]any{"missing": missing})
		return
	}

	ctx := r.Context()
	if req.Agent != "" {
		ag := s.lookupAgent(w, r, req.Agent)
		if ag == nil {
			return
		}
		ctx = store.WithAgentID(ctx, ag.ID)
	}

	result := s.invoker.Invoke(ctx, *def, req.Args)
	resp := protocol.InvokeResponse{
		Tool:    def.Name,
		Result:  json.RawMessage(result.ForLLM),
		IsError: result.IsError,
	}
	if result.IsError {
		writeError(w, http.StatusUnprocessableEntity, protocol.ErrToolError, result.Message, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleListTools lists the catalog, sorted by name.
func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	defs, err := s.tools.List(r.Context())
	if err != nil {
		slog.Error("http: list tools failed", "error", err)
		writeError(w, http.StatusInternalServerError, protocol.ErrInternal, "list tools failed", nil)
		return
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	out := make([]protocol.ToolInfo, 0, len(defs))
	for _, def := range defs {
		out = append(out, toToolInfo(def))
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": out})
}

func toToolInfo(def store.ToolDefinition) protocol.ToolInfo {
	params := make([]protocol.ToolParam, 0, len(def.Parameters))
	for _, p := range def.Parameters {
		params = append(params, protocol.ToolParam{
			Name:        p.Name,
			Type:        string(p.Type),
			Description: p.Description,
			Required:    p.Required,
		})
	}
	return protocol.ToolInfo{
		ID:          def.ID.String(),
		Name:        def.Name,
		Description: def.Description,
		Parameters:  params,
		ReturnType:  string(def.ReturnType),
		Kind:        tools.Kind(def),
	}
}
