// Package sqlite implements the tool, agent and execution-log stores on an
// embedded SQLite database.
package sqlite

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nextlevelbuilder/agentloop/internal/store"
)

// DB wraps the shared sqlx handle used by every store in this package.
type DB struct {
	db *sqlx.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*DB, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	slog.Info("sqlite store opened", "path", path)
	return d, nil
}

func (d *DB) Close() error { return d.db.Close() }

func (d *DB) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tools (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			parameters TEXT NOT NULL DEFAULT '[]',
			return_type TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL DEFAULT '',
			builtin INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tools_name ON tools(name)`,
		`CREATE TABLE IF NOT EXISTS agents (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			role TEXT NOT NULL DEFAULT '',
			goal TEXT NOT NULL DEFAULT '',
			task TEXT NOT NULL DEFAULT '',
			expected_output TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT '',
			parameters TEXT NOT NULL DEFAULT '{}',
			tool_ids TEXT NOT NULL DEFAULT '[]',
			knowledge_enabled INTEGER NOT NULL DEFAULT 0,
			knowledge_top_k INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS execution_logs (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			input TEXT NOT NULL,
			output TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			parameters TEXT NOT NULL DEFAULT '{}',
			model TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			iterations INTEGER NOT NULL DEFAULT 0,
			tool_calls INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_execution_logs_agent ON execution_logs(agent_id, created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := d.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:min(len(stmt), 60)], err)
		}
	}
	return nil
}

// NewStores returns the sqlite-backed tool, agent and execution-log stores.
func NewStores(d *DB) *store.Stores {
	return &store.Stores{
		Tools:    &ToolStore{db: d.db},
		Agents:   &AgentStore{db: d.db},
		ExecLogs: &LogStore{db: d.db},
		Close:    d.Close,
	}
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
