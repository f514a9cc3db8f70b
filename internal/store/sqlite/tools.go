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

type toolRow struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Description string `db:"description"`
	Parameters  string `db:"parameters"`
	ReturnType  string `db:"return_type"`
	Body        string `db:"body"`
	Builtin     bool   `db:"builtin"`
	CreatedAt   int64  `db:"created_at"`
	UpdatedAt   int64  `db:"updated_at"`
}

func (r toolRow) toDefinition() (store.ToolDefinition, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return store.ToolDefinition{}, fmt.Errorf("tool %s: bad id: %w", r.Name, err)
	}
	def := store.ToolDefinition{
		Name:        r.Name,
		Description: r.Description,
		ReturnType:  store.ParamType(r.ReturnType),
		Body:        r.Body,
		Builtin:     r.Builtin,
	}
	def.ID = id
	def.CreatedAt = fromMillis(r.CreatedAt)
	def.UpdatedAt = fromMillis(r.UpdatedAt)
	if err := json.Unmarshal([]byte(r.Parameters), &def.Parameters); err != nil {
		return def, fmt.Errorf("tool %s: bad parameters: %w", r.Name, err)
	}
	return def, nil
}

const toolColumns = `id, name, description, parameters, return_type, body, builtin, created_at, updated_at`

// ToolStore implements store.ToolStore.
type ToolStore struct {
	db *sqlx.DB
}

func (s *ToolStore) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]store.ToolDefinition, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	query, args, err := sqlx.In(`SELECT `+toolColumns+` FROM tools WHERE id IN (?)`, strs)
	if err != nil {
		return nil, err
	}
	var rows []toolRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list tools by id: %w", err)
	}
	return rowsToDefinitions(rows)
}

func (s *ToolStore) FindByName(ctx context.Context, name string) (*store.ToolDefinition, error) {
	var row toolRow
	err := s.db.GetContext(ctx, &row,
		`SELECT `+toolColumns+` FROM tools WHERE name = ? ORDER BY created_at LIMIT 1`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find tool %s: %w", name, err)
	}
	def, err := row.toDefinition()
	if err != nil {
		return nil, err
	}
	return &def, nil
}

func (s *ToolStore) List(ctx context.Context) ([]store.ToolDefinition, error) {
	var rows []toolRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+toolColumns+` FROM tools ORDER BY name, created_at`); err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	return rowsToDefinitions(rows)
}

func (s *ToolStore) Upsert(ctx context.Context, def *store.ToolDefinition) error {
	if err := store.ValidateToolDefinition(def); err != nil {
		return err
	}
	params, err := json.Marshal(paramsOrEmpty(def.Parameters))
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	now := time.Now().UTC()
	if def.ID == uuid.Nil {
		def.ID = store.GenNewID()
	}
	if def.CreatedAt.IsZero() {
		def.CreatedAt = now
	}
	def.UpdatedAt = now

	row := toolRow{
		ID:          def.ID.String(),
		Name:        def.Name,
		Description: def.Description,
		Parameters:  string(params),
		ReturnType:  string(def.ReturnType),
		Body:        def.Body,
		Builtin:     def.Builtin,
		CreatedAt:   toMillis(def.CreatedAt),
		UpdatedAt:   toMillis(def.UpdatedAt),
	}
	_, err = s.db.NamedExecContext(ctx, `INSERT INTO tools (`+toolColumns+`)
		VALUES (:id, :name, :description, :parameters, :return_type, :body, :builtin, :created_at, :updated_at)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			parameters = excluded.parameters,
			return_type = excluded.return_type,
			body = excluded.body,
			builtin = excluded.builtin,
			updated_at = excluded.updated_at`, row)
	if err != nil {
		return fmt.Errorf("upsert tool %s: %w", def.Name, err)
	}
	return nil
}

func (s *ToolStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tools WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete tool: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func rowsToDefinitions(rows []toolRow) ([]store.ToolDefinition, error) {
	out := make([]store.ToolDefinition, 0, len(rows))
	for _, r := range rows {
		def, err := r.toDefinition()
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, nil
}

func paramsOrEmpty(p []store.ParamSpec) []store.ParamSpec {
	if p == nil {
		return []store.ParamSpec{}
	}
	return p
}
