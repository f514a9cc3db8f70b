package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nextlevelbuilder/agentloop/internal/store"
)

// LogStore implements store.ExecutionLogSink and adds read access for the CLI.
type LogStore struct {
	db *sqlx.DB
}

type logRow struct {
	ID         string `db:"id"`
	RunID      string `db:"run_id"`
	AgentID    string `db:"agent_id"`
	Input      string `db:"input"`
	Output     string `db:"output"`
	Error      string `db:"error"`
	Parameters string `db:"parameters"`
	Model      string `db:"model"`
	Status     string `db:"status"`
	Iterations int    `db:"iterations"`
	ToolCalls  int    `db:"tool_calls"`
	DurationMS int64  `db:"duration_ms"`
	CreatedAt  int64  `db:"created_at"`
}

func (s *LogStore) Record(ctx context.Context, e *store.ExecutionLog) error {
	if e.ID == uuid.Nil {
		e.ID = store.GenNewID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	params, err := json.Marshal(e.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	row := logRow{
		ID:         e.ID.String(),
		RunID:      e.RunID.String(),
		AgentID:    e.AgentID.String(),
		Input:      e.Input,
		Output:     e.Output,
		Error:      e.Error,
		Parameters: string(params),
		Model:      e.Model,
		Status:     e.Status,
		Iterations: e.Iterations,
		ToolCalls:  e.ToolCalls,
		DurationMS: e.DurationMS,
		CreatedAt:  toMillis(e.CreatedAt),
	}
	_, err = s.db.NamedExecContext(ctx, `INSERT INTO execution_logs
		(id, run_id, agent_id, input, output, error, parameters, model, status, iterations, tool_calls, duration_ms, created_at)
		VALUES (:id, :run_id, :agent_id, :input, :output, :error, :parameters, :model, :status, :iterations, :tool_calls, :duration_ms, :created_at)`, row)
	if err != nil {
		return fmt.Errorf("insert execution log: %w", err)
	}
	return nil
}

// Recent returns the newest execution logs for an agent, newest first.
func (s *LogStore) Recent(ctx context.Context, agentID uuid.UUID, limit int) ([]store.ExecutionLog, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []logRow
	err := s.db.SelectContext(ctx, &rows, `SELECT * FROM execution_logs
		WHERE agent_id = ? ORDER BY created_at DESC LIMIT ?`, agentID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("list execution logs: %w", err)
	}
	out := make([]store.ExecutionLog, 0, len(rows))
	for _, r := range rows {
		e := store.ExecutionLog{
			Input:      r.Input,
			Output:     r.Output,
			Error:      r.Error,
			Model:      r.Model,
			Status:     r.Status,
			Iterations: r.Iterations,
			ToolCalls:  r.ToolCalls,
			DurationMS: r.DurationMS,
			CreatedAt:  fromMillis(r.CreatedAt),
		}
		e.ID, _ = uuid.Parse(r.ID)
		e.RunID, _ = uuid.Parse(r.RunID)
		e.AgentID, _ = uuid.Parse(r.AgentID)
		_ = json.Unmarshal([]byte(r.Parameters), &e.Parameters)
		out = append(out, e)
	}
	return out, nil
}
