// Package knowledge is the retrieval collaborator of the agent loop: a
// per-agent SQLite FTS5 index of ingested documents searched with BM25.
package knowledge

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nextlevelbuilder/agentloop/internal/store"
)

const (
	defaultTopK       = 3
	maxSnippetLen     = 700
	defaultSourceName = "inline"
)

// Chunk is one indexed fragment.
type Chunk struct {
	ID        string `db:"id"`
	AgentID   string `db:"agent_id"`
	Source    string `db:"source"`
	StartLine int    `db:"start_line"`
	EndLine   int    `db:"end_line"`
	Hash      string `db:"hash"`
	Text      string `db:"text"`
	UpdatedAt int64  `db:"updated_at"`
}

// Store is a SQLite FTS5 knowledge index scoped by agent.
type Store struct {
	db          *sqlx.DB
	mu          sync.RWMutex
	maxChunkLen int
}

var _ store.KnowledgeSearcher = (*Store)(nil)

// Open opens (or creates) the index at path.
func Open(path string, maxChunkLen int) (*Store, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open knowledge db: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, maxChunkLen: maxChunkLen}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate knowledge db: %w", err)
	}
	slog.Info("knowledge store opened", "path", path)
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			source TEXT NOT NULL,
			start_line INTEGER NOT NULL,
			end_line INTEGER NOT NULL,
			hash TEXT NOT NULL,
			text TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_agent_source ON chunks(agent_id, source)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
			text,
			id UNINDEXED,
			agent_id UNINDEXED,
			source UNINDEXED,
			tokenize='porter unicode61'
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:min(len(stmt), 60)], err)
		}
	}
	return nil
}

// Ingest replaces every chunk of (agentID, source) with the chunks of text.
// Returns the number of chunks written.
func (s *Store) Ingest(ctx context.Context, agentID uuid.UUID, source, text string) (int, error) {
	if source == "" {
		source = defaultSourceName
	}
	chunks := ChunkText(text, s.maxChunkLen)

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	aid := agentID.String()
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks_fts WHERE agent_id = ? AND source = ?`, aid, source); err != nil {
		return 0, fmt.Errorf("clear fts: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE agent_id = ? AND source = ?`, aid, source); err != nil {
		return 0, fmt.Errorf("clear chunks: %w", err)
	}

	now := time.Now().Unix()
	for _, c := range chunks {
		row := Chunk{
			ID:        store.GenNewID().String(),
			AgentID:   aid,
			Source:    source,
			StartLine: c.StartLine,
			EndLine:   c.EndLine,
			Hash:      ContentHash(c.Text),
			Text:      c.Text,
			UpdatedAt: now,
		}
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO chunks (id, agent_id, source, start_line, end_line, hash, text, updated_at)
			VALUES (:id, :agent_id, :source, :start_line, :end_line, :hash, :text, :updated_at)`, row); err != nil {
			return 0, fmt.Errorf("insert chunk: %w", err)
		}
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO chunks_fts (text, id, agent_id, source)
			VALUES (:text, :id, :agent_id, :source)`, row); err != nil {
			return 0, fmt.Errorf("insert fts: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// Search returns the topK chunks of agentID that best match query,
// highest score first. A query without searchable terms returns nothing.
func (s *Store) Search(ctx context.Context, agentID uuid.UUID, query string, topK int) ([]store.KnowledgeResult, error) {
	if topK <= 0 {
		topK = defaultTopK
	}
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// BM25 rank is negative; map it to a (0,1] score.
	var rows []struct {
		Source string  `db:"source"`
		Text   string  `db:"text"`
		Score  float64 `db:"score"`
	}
	err := s.db.SelectContext(ctx, &rows, `SELECT source, text, 1.0 / (1.0 + abs(rank)) AS score
		FROM chunks_fts
		WHERE chunks_fts MATCH ? AND agent_id = ?
		ORDER BY rank
		LIMIT ?`, match, agentID.String(), topK)
	if err != nil {
		return nil, fmt.Errorf("fts query: %w", err)
	}

	out := make([]store.KnowledgeResult, 0, len(rows))
	for _, r := range rows {
		out = append(out, store.KnowledgeResult{
			Content: truncateSnippet(r.Text, maxSnippetLen),
			Source:  r.Source,
			Score:   r.Score,
		})
	}
	return out, nil
}

// Sources lists the ingested sources of an agent with their chunk counts.
func (s *Store) Sources(ctx context.Context, agentID uuid.UUID) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []struct {
		Source string `db:"source"`
		N      int    `db:"n"`
	}
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT source, COUNT(*) AS n FROM chunks WHERE agent_id = ? GROUP BY source`, agentID.String()); err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.Source] = r.N
	}
	return out, nil
}

// DeleteSource removes one ingested source of an agent.
func (s *Store) DeleteSource(ctx context.Context, agentID uuid.UUID, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	aid := agentID.String()
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks_fts WHERE agent_id = ? AND source = ?`, aid, source); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE agent_id = ? AND source = ?`, aid, source); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Close() error {
	return s.db.Close()
}

var termRe = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// ftsQuery turns free text into an FTS5 expression of quoted terms joined by
// OR, so user punctuation never reaches the MATCH grammar.
func ftsQuery(q string) string {
	terms := termRe.FindAllString(strings.ToLower(q), -1)
	if len(terms) == 0 {
		return ""
	}
	seen := make(map[string]bool, len(terms))
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		if seen[t] {
			continue
		}
		seen[t] = true
		quoted = append(quoted, `"`+t+`"`)
	}
	return strings.Join(quoted, " OR ")
}

// ContentHash returns the SHA256 hash of text content.
func ContentHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%x", h[:16])
}

func truncateSnippet(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
