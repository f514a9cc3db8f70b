package file

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/agentloop/internal/store"
)

func TestCatalogStorePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.yaml")

	s, err := NewCatalogStore(path)
	if err != nil {
		t.Fatalf("NewCatalogStore: %v", err)
	}
	def := &store.ToolDefinition{
		Name:        "greet",
		Description: "Greets someone",
		Parameters:  []store.ParamSpec{{Name: "who", Type: store.ParamString, Required: true}},
		ReturnType:  store.ParamString,
		Body:        "function execute(a) { return 'hi ' + a.who }",
	}
	if err := s.Tools().Upsert(ctx, def); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	agent := &store.AgentData{Name: "helper", Role: "assistant", ToolIDs: []uuid.UUID{def.ID}}
	if err := s.Agents().Upsert(ctx, agent); err != nil {
		t.Fatalf("Upsert agent: %v", err)
	}

	reloaded, err := NewCatalogStore(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	got, err := reloaded.Tools().FindByName(ctx, "greet")
	if err != nil {
		t.Fatalf("FindByName: %v", err)
	}
	if got.ID != def.ID || got.Body != def.Body || len(got.Parameters) != 1 {
		t.Errorf("reloaded tool mismatch: %+v", got)
	}
	a, err := reloaded.Agents().GetByName(ctx, "helper")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	if len(a.ToolIDs) != 1 || a.ToolIDs[0] != def.ID {
		t.Errorf("agent tool ids = %v, want [%s]", a.ToolIDs, def.ID)
	}
}

func TestCatalogStoreRollsBackOnSaveFailure(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "data")
	s, err := NewCatalogStore(filepath.Join(dir, "catalog.yaml"))
	if err != nil {
		t.Fatalf("NewCatalogStore: %v", err)
	}
	def := &store.ToolDefinition{Name: "greet", Description: "v1", Body: "function execute() { return 1 }"}
	if err := s.Tools().Upsert(ctx, def); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	agent := &store.AgentData{Name: "helper", Role: "assistant"}
	if err := s.Agents().Upsert(ctx, agent); err != nil {
		t.Fatalf("Upsert agent: %v", err)
	}

	// A regular file where the catalog directory should be makes every save fail.
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dir, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	changed := *def
	changed.Description = "v2"
	if err := s.Tools().Upsert(ctx, &changed); err == nil {
		t.Fatal("expected save error on update")
	}
	if got, _ := s.Tools().FindByName(ctx, "greet"); got == nil || got.Description != "v1" {
		t.Errorf("tool after failed update = %+v, want v1", got)
	}

	if err := s.Tools().Upsert(ctx, &store.ToolDefinition{Name: "extra", Body: "function execute() {}"}); err == nil {
		t.Fatal("expected save error on insert")
	}
	if _, err := s.Tools().FindByName(ctx, "extra"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("failed insert left tool behind: %v", err)
	}

	if err := s.Tools().Delete(ctx, def.ID); err == nil {
		t.Fatal("expected save error on delete")
	}
	if _, err := s.Tools().FindByName(ctx, "greet"); err != nil {
		t.Errorf("failed delete removed tool: %v", err)
	}

	if err := s.Agents().Upsert(ctx, &store.AgentData{Name: "other", Role: "r"}); err == nil {
		t.Fatal("expected save error on agent insert")
	}
	if _, err := s.Agents().GetByName(ctx, "other"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("failed agent insert left agent behind: %v", err)
	}
	if err := s.Agents().Delete(ctx, agent.ID); err == nil {
		t.Fatal("expected save error on agent delete")
	}
	if _, err := s.Agents().GetByName(ctx, "helper"); err != nil {
		t.Errorf("failed agent delete removed agent: %v", err)
	}
}

func TestCatalogStoreNotFound(t *testing.T) {
	s, _ := NewCatalogStore("")
	if _, err := s.Tools().FindByName(context.Background(), "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("FindByName err = %v, want ErrNotFound", err)
	}
	if err := s.Tools().Delete(context.Background(), uuid.New()); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Delete err = %v, want ErrNotFound", err)
	}
}

func TestListByIDsDropsUnknown(t *testing.T) {
	ctx := context.Background()
	s, _ := NewCatalogStore("")
	def := &store.ToolDefinition{Name: "one", Body: "1"}
	if err := s.Tools().Upsert(ctx, def); err != nil {
		t.Fatal(err)
	}
	got, err := s.Tools().ListByIDs(ctx, []uuid.UUID{uuid.New(), def.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Name != "one" {
		t.Errorf("ListByIDs = %+v", got)
	}
}

func TestBundleRoundTrip(t *testing.T) {
	ctx := context.Background()
	src, _ := NewCatalogStore("")
	def := &store.ToolDefinition{
		Name:        "weather",
		Description: "Looks up weather",
		Parameters: []store.ParamSpec{
			{Name: "city", Type: store.ParamString, Required: true, Description: "City name"},
		},
		ReturnType: store.ParamObject,
		Body:       "function execute(a) { return { city: a.city } }",
	}
	if err := src.Tools().Upsert(ctx, def); err != nil {
		t.Fatal(err)
	}
	if err := src.Agents().Upsert(ctx, &store.AgentData{Name: "forecaster", ToolIDs: []uuid.UUID{def.ID}}); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := Export(ctx, src.Tools(), src.Agents(), &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}

	dst, _ := NewCatalogStore("")
	stats, err := Import(ctx, &buf, dst.Tools(), dst.Agents())
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if stats.Tools != 1 || stats.Agents != 1 || stats.UnresolvedRefs != 0 {
		t.Errorf("stats = %+v", stats)
	}

	got, err := dst.Tools().FindByName(ctx, "weather")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID == def.ID {
		t.Error("expected a regenerated id")
	}
	if got.Body != def.Body || got.Description != def.Description || got.ReturnType != def.ReturnType {
		t.Errorf("imported tool differs: %+v", got)
	}
	if len(got.Parameters) != 1 || got.Parameters[0] != def.Parameters[0] {
		t.Errorf("parameters differ: %+v", got.Parameters)
	}

	a, err := dst.Agents().GetByName(ctx, "forecaster")
	if err != nil {
		t.Fatal(err)
	}
	if len(a.ToolIDs) != 1 || a.ToolIDs[0] != got.ID {
		t.Errorf("agent tool ids = %v, want [%s]", a.ToolIDs, got.ID)
	}
}
