package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/agentloop/internal/store"
)

// PGAgentStore implements store.AgentStore backed by Postgres.
type PGAgentStore struct {
	db *sql.DB
}

func NewPGAgentStore(db *sql.DB) *PGAgentStore {
	return &PGAgentStore{db: db}
}

// agentSelectCols is the column list for all agent SELECT queries.
const agentSelectCols = `id, name, role, goal, task, expected_output, model,
		 parameters, tool_ids, knowledge_enabled, knowledge_top_k, created_at, updated_at`

func (s *PGAgentStore) Get(ctx context.Context, id uuid.UUID) (*store.AgentData, error) {
	return s.getOne(ctx, `SELECT `+agentSelectCols+` FROM agents WHERE id = $1`, id)
}

func (s *PGAgentStore) GetByName(ctx context.Context, name string) (*store.AgentData, error) {
	return s.getOne(ctx, `SELECT `+agentSelectCols+` FROM agents WHERE name = $1`, name)
}

func (s *PGAgentStore) getOne(ctx context.Context, query string, arg any) (*store.AgentData, error) {
	a, err := scanAgent(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return a, nil
}

func (s *PGAgentStore) List(ctx context.Context) ([]store.AgentData, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+agentSelectCols+` FROM agents ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()
	var out []store.AgentData
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *PGAgentStore) Upsert(ctx context.Context, a *store.AgentData) error {
	if err := store.ValidateAgent(a); err != nil {
		return err
	}
	params, err := marshalJSON(a.Parameters, "{}")
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	toolIDs, err := marshalJSON(a.ToolIDs, "[]")
	if err != nil {
		return fmt.Errorf("marshal tool ids: %w", err)
	}
	now := nowUTC()
	if a.ID == uuid.Nil {
		a.ID = store.GenNewID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO agents (`+agentSelectCols+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, role = EXCLUDED.role, goal = EXCLUDED.goal, task = EXCLUDED.task,
			expected_output = EXCLUDED.expected_output, model = EXCLUDED.model,
			parameters = EXCLUDED.parameters, tool_ids = EXCLUDED.tool_ids,
			knowledge_enabled = EXCLUDED.knowledge_enabled, knowledge_top_k = EXCLUDED.knowledge_top_k,
			updated_at = EXCLUDED.updated_at`,
		a.ID, a.Name, a.Role, a.Goal, a.Task, a.ExpectedOutput, a.Model,
		params, toolIDs, a.KnowledgeEnabled, a.KnowledgeTopK, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert agent %s: %w", a.Name, err)
	}
	return nil
}

func (s *PGAgentStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM agents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete agent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanAgent(row rowScanner) (*store.AgentData, error) {
	var a store.AgentData
	var params, toolIDs []byte
	if err := row.Scan(&a.ID, &a.Name, &a.Role, &a.Goal, &a.Task, &a.ExpectedOutput, &a.Model,
		&params, &toolIDs, &a.KnowledgeEnabled, &a.KnowledgeTopK, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(params, &a.Parameters); err != nil {
		return nil, fmt.Errorf("agent %s: bad parameters: %w", a.Name, err)
	}
	if err := json.Unmarshal(toolIDs, &a.ToolIDs); err != nil {
		return nil, fmt.Errorf("agent %s: bad tool ids: %w", a.Name, err)
	}
	return &a, nil
}
