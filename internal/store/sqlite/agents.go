package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nextlevelbuilder/agentloop/internal/store"
)

type agentRow struct {
	ID               string `db:"id"`
	Name             string `db:"name"`
	Role             string `db:"role"`
	Goal             string `db:"goal"`
	Task             string `db:"task"`
	ExpectedOutput   string `db:"expected_output"`
	Model            string `db:"model"`
	Parameters       string `db:"parameters"`
	ToolIDs          string `db:"tool_ids"`
	KnowledgeEnabled bool   `db:"knowledge_enabled"`
	KnowledgeTopK    int    `db:"knowledge_top_k"`
	CreatedAt        int64  `db:"created_at"`
	UpdatedAt        int64  `db:"updated_at"`
}

const agentColumns = `id, name, role, goal, task, expected_output, model, parameters, tool_ids,
	knowledge_enabled, knowledge_top_k, created_at, updated_at`

func (r agentRow) toAgent() (*store.AgentData, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("agent %s: bad id: %w", r.Name, err)
	}
	a := &store.AgentData{
		Name:             r.Name,
		Role:             r.Role,
		Goal:             r.Goal,
		Task:             r.Task,
		ExpectedOutput:   r.ExpectedOutput,
		Model:            r.Model,
		KnowledgeEnabled: r.KnowledgeEnabled,
		KnowledgeTopK:    r.KnowledgeTopK,
	}
	a.ID = id
	a.CreatedAt = fromMillis(r.CreatedAt)
	a.UpdatedAt = fromMillis(r.UpdatedAt)
	if err := json.Unmarshal([]byte(r.Parameters), &a.Parameters); err != nil {
		return nil, fmt.Errorf("agent %s: bad parameters: %w", r.Name, err)
	}
	if err := json.Unmarshal([]byte(r.ToolIDs), &a.ToolIDs); err != nil {
		return nil, fmt.Errorf("agent %s: bad tool ids: %w", r.Name, err)
	}
	return a, nil
}

// AgentStore implements store.AgentStore.
type AgentStore struct {
	db *sqlx.DB
}

func (s *AgentStore) Get(ctx context.Context, id uuid.UUID) (*store.AgentData, error) {
	return s.getOne(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = ?`, id.String())
}

func (s *AgentStore) GetByName(ctx context.Context, name string) (*store.AgentData, error) {
	return s.getOne(ctx, `SELECT `+agentColumns+` FROM agents WHERE name = ?`, name)
}

func (s *AgentStore) getOne(ctx context.Context, query string, arg any) (*store.AgentData, error) {
	var row agentRow
	err := s.db.GetContext(ctx, &row, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return row.toAgent()
}

func (s *AgentStore) List(ctx context.Context) ([]store.AgentData, error) {
	var rows []agentRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+agentColumns+` FROM agents ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	out := make([]store.AgentData, 0, len(rows))
	for _, r := range rows {
		a, err := r.toAgent()
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, nil
}

func (s *AgentStore) Upsert(ctx context.Context, a *store.AgentData) error {
	if err := store.ValidateAgent(a); err != nil {
		return err
	}
	params := a.Parameters
	if params == nil {
		params = map[string]any{}
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	ids := a.ToolIDs
	if ids == nil {
		ids = []uuid.UUID{}
	}
	idsJSON, _ := json.Marshal(ids)

	now := time.Now().UTC()
	if a.ID == uuid.Nil {
		a.ID = store.GenNewID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	row := agentRow{
		ID:               a.ID.String(),
		Name:             a.Name,
		Role:             a.Role,
		Goal:             a.Goal,
		Task:             a.Task,
		ExpectedOutput:   a.ExpectedOutput,
		Model:            a.Model,
		Parameters:       string(paramsJSON),
		ToolIDs:          string(idsJSON),
		KnowledgeEnabled: a.KnowledgeEnabled,
		KnowledgeTopK:    a.KnowledgeTopK,
		CreatedAt:        toMillis(a.CreatedAt),
		UpdatedAt:        toMillis(a.UpdatedAt),
	}
	_, err = s.db.NamedExecContext(ctx, `INSERT INTO agents (`+agentColumns+`)
		VALUES (:id, :name, :role, :goal, :task, :expected_output, :model, :parameters, :tool_ids,
			:knowledge_enabled, :knowledge_top_k, :created_at, :updated_at)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			role = excluded.role,
			goal = excluded.goal,
			task = excluded.task,
			expected_output = excluded.expected_output,
			model = excluded.model,
			parameters = excluded.parameters,
			tool_ids = excluded.tool_ids,
			knowledge_enabled = excluded.knowledge_enabled,
			knowledge_top_k = excluded.knowledge_top_k,
			updated_at = excluded.updated_at`, row)
	if err != nil {
		return fmt.Errorf("upsert agent %s: %w", a.Name, err)
	}
	return nil
}

func (s *AgentStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM agents WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete agent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}
