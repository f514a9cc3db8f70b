package pg

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/agentloop/internal/store"
)

// PGLogStore implements store.ExecutionLogSink backed by Postgres.
type PGLogStore struct {
	db *sql.DB
}

func NewPGLogStore(db *sql.DB) *PGLogStore {
	return &PGLogStore{db: db}
}

func (s *PGLogStore) Record(ctx context.Context, e *store.ExecutionLog) error {
	if e.ID == uuid.Nil {
		e.ID = store.GenNewID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = nowUTC()
	}
	params, err := marshalJSON(e.Parameters, "{}")
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO execution_logs (id, run_id, agent_id, input, output, error, parameters, model,
		 status, iterations, tool_calls, duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		e.ID, e.RunID, e.AgentID, e.Input, e.Output, e.Error, params, e.Model,
		e.Status, e.Iterations, e.ToolCalls, e.DurationMS, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert execution log: %w", err)
	}
	return nil
}
