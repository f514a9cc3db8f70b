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

// PGToolStore implements store.ToolStore backed by Postgres.
type PGToolStore struct {
	db *sql.DB
}

func NewPGToolStore(db *sql.DB) *PGToolStore {
	return &PGToolStore{db: db}
}

const toolSelectCols = `id, name, description, parameters, return_type, body, builtin, created_at, updated_at`

func (s *PGToolStore) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]store.ToolDefinition, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+toolSelectCols+` FROM tools WHERE id IN (`+placeholders(1, len(ids))+`)`,
		uuidArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("list tools by id: %w", err)
	}
	defer rows.Close()
	return scanToolRows(rows)
}

func (s *PGToolStore) FindByName(ctx context.Context, name string) (*store.ToolDefinition, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+toolSelectCols+` FROM tools WHERE name = $1 ORDER BY created_at LIMIT 1`, name)
	def, err := scanTool(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find tool %s: %w", name, err)
	}
	return def, nil
}

func (s *PGToolStore) List(ctx context.Context) ([]store.ToolDefinition, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+toolSelectCols+` FROM tools ORDER BY name, created_at`)
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	defer rows.Close()
	return scanToolRows(rows)
}

func (s *PGToolStore) Upsert(ctx context.Context, def *store.ToolDefinition) error {
	if err := store.ValidateToolDefinition(def); err != nil {
		return err
	}
	params, err := marshalJSON(def.Parameters, "[]")
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	now := nowUTC()
	if def.ID == uuid.Nil {
		def.ID = store.GenNewID()
	}
	if def.CreatedAt.IsZero() {
		def.CreatedAt = now
	}
	def.UpdatedAt = now
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tools (`+toolSelectCols+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, description = EXCLUDED.description,
			parameters = EXCLUDED.parameters, return_type = EXCLUDED.return_type,
			body = EXCLUDED.body, builtin = EXCLUDED.builtin, updated_at = EXCLUDED.updated_at`,
		def.ID, def.Name, def.Description, params, string(def.ReturnType), def.Body, def.Builtin,
		def.CreatedAt, def.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert tool %s: %w", def.Name, err)
	}
	return nil
}

func (s *PGToolStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tools WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete tool: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTool(row rowScanner) (*store.ToolDefinition, error) {
	var def store.ToolDefinition
	var params []byte
	var returnType string
	if err := row.Scan(&def.ID, &def.Name, &def.Description, &params, &returnType, &def.Body,
		&def.Builtin, &def.CreatedAt, &def.UpdatedAt); err != nil {
		return nil, err
	}
	def.ReturnType = store.ParamType(returnType)
	if err := json.Unmarshal(params, &def.Parameters); err != nil {
		return nil, fmt.Errorf("tool %s: bad parameters: %w", def.Name, err)
	}
	return &def, nil
}

func scanToolRows(rows *sql.Rows) ([]store.ToolDefinition, error) {
	var out []store.ToolDefinition
	for rows.Next() {
		def, err := scanTool(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *def)
	}
	return out, rows.Err()
}
