package tools

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/nextlevelbuilder/agentloop/internal/store"
)

const (
	defaultResolverCacheSize = 512
	defaultResolverCacheTTL  = time.Minute
)

// Resolver turns an agent's tool ids into definitions, dropping ids that no
// longer resolve. Recently resolved definitions are cached briefly.
type Resolver struct {
	store store.ToolStore
	cache *expirable.LRU[uuid.UUID, store.ToolDefinition]
}

// NewResolver creates a resolver over s. A ttl <= 0 uses the default.
func NewResolver(s store.ToolStore, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = defaultResolverCacheTTL
	}
	return &Resolver{
		store: s,
		cache: expirable.NewLRU[uuid.UUID, store.ToolDefinition](defaultResolverCacheSize, nil, ttl),
	}
}

// ResolveForAgent returns the definitions for ids in id order. Unknown ids
// are skipped. A store error is logged and yields whatever the cache held.
func (r *Resolver) ResolveForAgent(ctx context.Context, ids []uuid.UUID) []store.ToolDefinition {
	var missing []uuid.UUID
	for _, id := range ids {
		if _, ok := r.cache.Get(id); !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		defs, err := r.store.ListByIDs(ctx, missing)
		if err != nil {
			slog.Warn("tools: resolve failed", "ids", len(missing), "error", err)
		}
		for _, d := range defs {
			r.cache.Add(d.ID, d)
		}
	}

	out := make([]store.ToolDefinition, 0, len(ids))
	for _, id := range ids {
		d, ok := r.cache.Get(id)
		if !ok {
			slog.Debug("tools: dropping unresolved tool id", "id", id)
			continue
		}
		out = append(out, d)
	}
	return out
}

// Invalidate drops a cached definition, e.g. after an edit or delete.
func (r *Resolver) Invalidate(id uuid.UUID) {
	r.cache.Remove(id)
}

// Lookup finds a tool by exact name among resolved definitions.
func Lookup(resolved []store.ToolDefinition, name string) (store.ToolDefinition, bool) {
	for _, d := range resolved {
		if d.Name == name {
			return d, true
		}
	}
	return store.ToolDefinition{}, false
}
