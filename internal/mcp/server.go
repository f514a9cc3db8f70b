// Package mcp exposes the tool catalog over the Model Context Protocol so
// external MCP clients can list and call catalog tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nextlevelbuilder/agentloop/internal/store"
	"github.com/nextlevelbuilder/agentloop/internal/tools"
)

// Server bridges the catalog into an MCP server.
type Server struct {
	tools   store.ToolStore
	invoker *tools.Invoker
	mcp     *server.MCPServer
}

// NewServer creates the MCP server and registers every catalog tool.
func NewServer(ctx context.Context, ts store.ToolStore, invoker *tools.Invoker, version string) (*Server, error) {
	if version == "" {
		version = "dev"
	}
	s := &Server{
		tools:   ts,
		invoker: invoker,
		mcp:     server.NewMCPServer("agentloop", version, server.WithToolCapabilities(true)),
	}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// MCPServer returns the underlying server, e.g. for in-process clients.
func (s *Server) MCPServer() *server.MCPServer { return s.mcp }

// ServeStdio serves MCP over stdin/stdout until the input closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// Reload replaces the registered tool set with the current catalog.
// Tools that cannot be expressed as an MCP schema are skipped.
func (s *Server) Reload(ctx context.Context) error {
	defs, err := s.tools.List(ctx)
	if err != nil {
		return fmt.Errorf("mcp: list tools: %w", err)
	}
	var registered []server.ServerTool
	for _, def := range defs {
		tool, err := toMCPTool(def)
		if err != nil {
			slog.Warn("mcp: skipping tool", "tool", def.Name, "error", err)
			continue
		}
		registered = append(registered, server.ServerTool{Tool: tool, Handler: s.handler(def.Name)})
	}
	s.mcp.SetTools(registered...)
	slog.Info("mcp: tools registered", "count", len(registered))
	return nil
}

// handler re-reads the definition on each call so catalog edits apply
// without a reload.
func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		def, err := s.tools.FindByName(ctx, name)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return mcpgo.NewToolResultError(fmt.Sprintf("tool %q no longer exists", name)), nil
			}
			return nil, fmt.Errorf("mcp: lookup %s: %w", name, err)
		}
		args := req.GetArguments()
		if missing := tools.MissingRequired(*def, args); len(missing) > 0 {
			return mcpgo.NewToolResultError("missing required arguments: " + strings.Join(missing, ", ")), nil
		}

		result := s.invoker.Invoke(ctx, *def, args)
		if result.IsError {
			return mcpgo.NewToolResultError(result.ForLLM), nil
		}
		return mcpgo.NewToolResultText(result.ForLLM), nil
	}
}

func toMCPTool(def store.ToolDefinition) (mcpgo.Tool, error) {
	schema, err := json.Marshal(tools.InputSchema(def))
	if err != nil {
		return mcpgo.Tool{}, err
	}
	desc := def.Description
	if def.ReturnType != "" {
		desc += " Returns: " + string(def.ReturnType) + "."
	}
	return mcpgo.NewToolWithRawSchema(def.Name, strings.TrimSpace(desc), schema), nil
}
