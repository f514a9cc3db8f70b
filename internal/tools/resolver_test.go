package tools

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/agentloop/internal/store"
	"github.com/nextlevelbuilder/agentloop/internal/store/file"
)

func TestResolveForAgentDropsUnknownAndKeepsOrder(t *testing.T) {
	ctx := context.Background()
	cat, _ := file.NewCatalogStore("")
	ts := cat.Tools()

	a := &store.ToolDefinition{Name: "alpha", Body: "function execute() { return 1 }"}
	b := &store.ToolDefinition{Name: "beta", Body: "function execute() { return 2 }"}
	ts.Upsert(ctx, a)
	ts.Upsert(ctx, b)

	r := NewResolver(ts, 0)
	got := r.ResolveForAgent(ctx, []uuid.UUID{b.ID, uuid.New(), a.ID})
	if len(got) != 2 || got[0].Name != "beta" || got[1].Name != "alpha" {
		t.Fatalf("ResolveForAgent = %+v", got)
	}

	if _, ok := Lookup(got, "alpha"); !ok {
		t.Error("Lookup(alpha) failed")
	}
	if _, ok := Lookup(got, "Alpha"); ok {
		t.Error("Lookup must match names exactly")
	}
	if _, ok := Lookup(got, "gamma"); ok {
		t.Error("Lookup(gamma) should miss")
	}
}

func TestResolverInvalidate(t *testing.T) {
	ctx := context.Background()
	cat, _ := file.NewCatalogStore("")
	ts := cat.Tools()
	def := &store.ToolDefinition{Name: "alpha", Description: "v1", Body: "1"}
	ts.Upsert(ctx, def)

	r := NewResolver(ts, 0)
	r.ResolveForAgent(ctx, []uuid.UUID{def.ID})

	def.Description = "v2"
	ts.Upsert(ctx, def)
	if got := r.ResolveForAgent(ctx, []uuid.UUID{def.ID}); got[0].Description != "v1" {
		t.Errorf("expected cached v1, got %s", got[0].Description)
	}
	r.Invalidate(def.ID)
	if got := r.ResolveForAgent(ctx, []uuid.UUID{def.ID}); got[0].Description != "v2" {
		t.Errorf("expected v2 after invalidate, got %s", got[0].Description)
	}

	ts.Delete(ctx, def.ID)
	r.Invalidate(def.ID)
	if got := r.ResolveForAgent(ctx, []uuid.UUID{def.ID}); len(got) != 0 {
		t.Errorf("deleted tool still resolved: %+v", got)
	}
}
