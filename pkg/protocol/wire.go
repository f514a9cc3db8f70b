// Package protocol defines the wire format of the agentloop HTTP API.
// It is importable by clients.
package protocol

import "encoding/json"

// APIVersion prefixes every route.
const APIVersion = "v1"

// RunRequest is the body of POST /v1/agents/{name}/runs.
type RunRequest struct {
	Input string `json:"input"`
}

// ToolCall is one entry of RunResponse.ToolLog.
type ToolCall struct {
	Iteration  int            `json:"iteration"`
	Tool       string         `json:"tool"`
	Arguments  map[string]any `json:"arguments"`
	Result     any            `json:"result"`
	IsError    bool           `json:"isError,omitempty"`
	DurationMS int64          `json:"durationMs"`
}

// Turn is one transcript entry.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RunResponse reports the outcome of a run. Failed runs carry it in
// ErrorShape.Details.
type RunResponse struct {
	RunID      string     `json:"runId"`
	Agent      string     `json:"agent"`
	Status     string     `json:"status"` // done | failed | exhausted
	Output     string     `json:"output,omitempty"`
	Error      string     `json:"error,omitempty"`
	Iterations int        `json:"iterations"`
	ToolLog    []ToolCall `json:"toolLog"`
	Transcript []Turn     `json:"transcript,omitempty"`
}

// ActiveRun is one entry of GET /v1/runs.
type ActiveRun struct {
	RunID     string `json:"runId"`
	Agent     string `json:"agent"`
	StartedAt string `json:"startedAt"`
}

// InvokeRequest is the body of POST /v1/tools/invoke.
type InvokeRequest struct {
	Tool   string         `json:"tool"`
	Args   map[string]any `json:"args"`
	Agent  string         `json:"agent,omitempty"`
	DryRun bool           `json:"dryRun,omitempty"`
}

// InvokeResponse carries the normalized tool result.
type InvokeResponse struct {
	Tool    string          `json:"tool"`
	Result  json.RawMessage `json:"result"`
	IsError bool            `json:"isError,omitempty"`
}

// ToolParam describes one tool parameter.
type ToolParam struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// ToolInfo is one entry of GET /v1/tools and the dry-run reply.
type ToolInfo struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  []ToolParam    `json:"parameters"`
	ReturnType  string         `json:"returnType,omitempty"`
	Kind        string         `json:"kind"` // builtin | script | descriptive
	InputSchema map[string]any `json:"inputSchema,omitempty"`
}

// IngestRequest is the body of POST /v1/agents/{name}/knowledge.
type IngestRequest struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

// IngestResponse reports how many chunks were indexed.
type IngestResponse struct {
	Source string `json:"source"`
	Chunks int    `json:"chunks"`
}

// KnowledgeHit is one search result.
type KnowledgeHit struct {
	Content string  `json:"content"`
	Source  string  `json:"source,omitempty"`
	Score   float64 `json:"score"`
}
