package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/nextlevelbuilder/agentloop/internal/store"
)

// SeedStats summarizes a SeedBuiltins pass.
type SeedStats struct {
	Created    int
	Updated    int
	Duplicates int
	Deprecated int
}

// SeedBuiltins reconciles the catalog with the registry: every builtin gets
// exactly one catalog row (the oldest survives), and builtin rows whose
// implementation no longer exists are removed. User-authored rows are never
// touched. Safe to run on every startup.
func SeedBuiltins(ctx context.Context, ts store.ToolStore, reg *Registry) (SeedStats, error) {
	var stats SeedStats
	all, err := ts.List(ctx)
	if err != nil {
		return stats, fmt.Errorf("list tools: %w", err)
	}

	byName := make(map[string][]store.ToolDefinition)
	for _, d := range all {
		if d.Builtin {
			byName[d.Name] = append(byName[d.Name], d)
		}
	}

	for _, name := range reg.List() {
		b, _ := reg.Get(name)
		want := Definition(b)
		rows := byName[name]
		delete(byName, name)

		if len(rows) == 0 {
			if err := ts.Upsert(ctx, &want); err != nil {
				return stats, fmt.Errorf("seed %s: %w", name, err)
			}
			stats.Created++
			continue
		}

		sort.SliceStable(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })
		keep := rows[0]
		for _, dup := range rows[1:] {
			if err := ts.Delete(ctx, dup.ID); err != nil {
				return stats, fmt.Errorf("prune duplicate %s: %w", name, err)
			}
			stats.Duplicates++
		}
		if !sameShape(keep, want) {
			want.BaseModel = keep.BaseModel
			if err := ts.Upsert(ctx, &want); err != nil {
				return stats, fmt.Errorf("refresh %s: %w", name, err)
			}
			stats.Updated++
		}
	}

	for name, rows := range byName {
		for _, d := range rows {
			if err := ts.Delete(ctx, d.ID); err != nil {
				return stats, fmt.Errorf("remove deprecated %s: %w", name, err)
			}
			stats.Deprecated++
		}
	}

	if stats != (SeedStats{}) {
		slog.Info("tools: builtin catalog reconciled",
			"created", stats.Created, "updated", stats.Updated,
			"duplicates", stats.Duplicates, "deprecated", stats.Deprecated)
	}
	return stats, nil
}

func sameShape(a, b store.ToolDefinition) bool {
	if a.Description != b.Description || a.ReturnType != b.ReturnType || a.Body != b.Body {
		return false
	}
	if len(a.Parameters) != len(b.Parameters) {
		return false
	}
	for i := range a.Parameters {
		if a.Parameters[i] != b.Parameters[i] {
			return false
		}
	}
	return true
}
