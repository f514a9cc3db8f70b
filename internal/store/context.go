package store

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	// RunIDKey is the context key for the current run UUID.
	RunIDKey contextKey = "agentloop_run_id"
	// AgentIDKey is the context key for the running agent UUID.
	AgentIDKey contextKey = "agentloop_agent_id"
)

// WithRunID returns a new context with the given run UUID.
func WithRunID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, RunIDKey, id)
}

// RunIDFromContext extracts the run UUID from context. Returns uuid.Nil if not set.
func RunIDFromContext(ctx context.Context) uuid.UUID {
	if v, ok := ctx.Value(RunIDKey).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

// WithAgentID returns a new context with the given agent UUID.
func WithAgentID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, AgentIDKey, id)
}

// AgentIDFromContext extracts the agent UUID from context. Returns uuid.Nil if not set.
func AgentIDFromContext(ctx context.Context) uuid.UUID {
	if v, ok := ctx.Value(AgentIDKey).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}
