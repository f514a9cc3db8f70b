package store

import (
	"context"

	"github.com/google/uuid"
)

// ToolStore manages the tool catalog.
type ToolStore interface {
	// ListByIDs returns the definitions matching ids. Unknown ids are
	// omitted; order is unspecified.
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]ToolDefinition, error)
	// FindByName returns ErrNotFound when no tool has that name.
	FindByName(ctx context.Context, name string) (*ToolDefinition, error)
	List(ctx context.Context) ([]ToolDefinition, error)
	Upsert(ctx context.Context, def *ToolDefinition) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// AgentStore manages agent configurations.
type AgentStore interface {
	Get(ctx context.Context, id uuid.UUID) (*AgentData, error)
	GetByName(ctx context.Context, name string) (*AgentData, error)
	List(ctx context.Context) ([]AgentData, error)
	Upsert(ctx context.Context, a *AgentData) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// KnowledgeSearcher retrieves snippets relevant to a query, scoped to one agent.
type KnowledgeSearcher interface {
	Search(ctx context.Context, agentID uuid.UUID, query string, topK int) ([]KnowledgeResult, error)
}

// ExecutionLogSink receives one record per completed run. Write-only.
type ExecutionLogSink interface {
	Record(ctx context.Context, entry *ExecutionLog) error
}

// NopLogSink discards execution logs.
type NopLogSink struct{}

func (NopLogSink) Record(context.Context, *ExecutionLog) error { return nil }

// Stores is the top-level container for the storage backends.
type Stores struct {
	Tools     ToolStore
	Agents    AgentStore
	Knowledge KnowledgeSearcher
	ExecLogs  ExecutionLogSink

	// Close releases the underlying connections. May be nil.
	Close func() error
}
