package knowledge

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "knowledge.db"), 200)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestChunkText(t *testing.T) {
	text := strings.Repeat("alpha line\n", 8) + "\n" + strings.Repeat("beta line\n", 8)
	chunks := ChunkText(text, 100)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	if chunks[0].StartLine != 1 {
		t.Errorf("first chunk should start at line 1, got %d", chunks[0].StartLine)
	}
	for i, c := range chunks {
		if c.EndLine < c.StartLine {
			t.Errorf("chunk %d: end %d before start %d", i, c.EndLine, c.StartLine)
		}
		if strings.TrimSpace(c.Text) != c.Text || c.Text == "" {
			t.Errorf("chunk %d not trimmed: %q", i, c.Text)
		}
	}
}

func TestChunkText_SingleParagraph(t *testing.T) {
	chunks := ChunkText("just one line", 0)
	if len(chunks) != 1 || chunks[0].Text != "just one line" {
		t.Fatalf("unexpected chunks: %+v", chunks)
	}
	if ChunkText("\n\n  \n", 0) != nil {
		t.Error("blank text should produce no chunks")
	}
}

func TestStore_IngestAndSearch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	agent := uuid.New()
	other := uuid.New()

	doc := "Refunds are processed within five business days.\n\nShipping to Canada takes two weeks."
	n, err := s.Ingest(ctx, agent, "faq.md", doc)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if n == 0 {
		t.Fatal("expected chunks to be written")
	}
	if _, err := s.Ingest(ctx, other, "faq.md", "Refunds are never processed here."); err != nil {
		t.Fatalf("Ingest other: %v", err)
	}

	results, err := s.Search(ctx, agent, "how long do refunds take?", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected results")
	}
	for _, r := range results {
		if strings.Contains(r.Content, "never") {
			t.Error("search leaked another agent's knowledge")
		}
		if r.Score <= 0 || r.Score > 1 {
			t.Errorf("score out of range: %v", r.Score)
		}
		if r.Source != "faq.md" {
			t.Errorf("source = %q", r.Source)
		}
	}
	if !strings.Contains(results[0].Content, "Refunds") {
		t.Errorf("top result = %q", results[0].Content)
	}
}

func TestStore_ReingestReplacesSource(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	agent := uuid.New()

	s.Ingest(ctx, agent, "notes", "the password rotation policy is monthly")
	s.Ingest(ctx, agent, "notes", "the office closes at six")

	res, err := s.Search(ctx, agent, "password", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 0 {
		t.Errorf("stale chunk still indexed: %+v", res)
	}

	sources, err := s.Sources(ctx, agent)
	if err != nil {
		t.Fatalf("Sources: %v", err)
	}
	if sources["notes"] != 1 {
		t.Errorf("sources = %v", sources)
	}

	if err := s.DeleteSource(ctx, agent, "notes"); err != nil {
		t.Fatalf("DeleteSource: %v", err)
	}
	if res, _ := s.Search(ctx, agent, "office", 3); len(res) != 0 {
		t.Errorf("deleted source still searchable: %+v", res)
	}
}

func TestStore_SearchPunctuationOnly(t *testing.T) {
	s := newTestStore(t)
	res, err := s.Search(context.Background(), uuid.New(), `"*(){}`, 3)
	if err != nil || res != nil {
		t.Errorf("expected no results and no error, got %v, %v", res, err)
	}
}

func TestFTSQuery(t *testing.T) {
	if got := ftsQuery(`What's "AND" 2+2?`); got != `"what" OR "s" OR "and" OR "2"` {
		t.Errorf("ftsQuery = %s", got)
	}
}
