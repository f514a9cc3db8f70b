package file

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/nextlevelbuilder/agentloop/internal/store"
)

// Catalog is the on-disk YAML document holding tools and agents.
type Catalog struct {
	Tools  []store.ToolDefinition `yaml:"tools"`
	Agents []store.AgentData      `yaml:"agents"`
}

// CatalogStore is an in-memory tool and agent store persisted to a YAML file.
// An empty path keeps everything in memory.
type CatalogStore struct {
	mu     sync.RWMutex
	path   string
	tools  map[uuid.UUID]store.ToolDefinition
	agents map[uuid.UUID]store.AgentData
}

// NewCatalogStore loads the catalog at path. A missing file yields an empty store.
func NewCatalogStore(path string) (*CatalogStore, error) {
	s := &CatalogStore{
		path:   path,
		tools:  make(map[uuid.UUID]store.ToolDefinition),
		agents: make(map[uuid.UUID]store.AgentData),
	}
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	for _, t := range cat.Tools {
		if t.ID == uuid.Nil {
			t.ID = store.GenNewID()
		}
		s.tools[t.ID] = t
	}
	for _, a := range cat.Agents {
		if a.ID == uuid.Nil {
			a.ID = store.GenNewID()
		}
		s.agents[a.ID] = a
	}
	return s, nil
}

// Tools returns the store as a store.ToolStore.
func (s *CatalogStore) Tools() store.ToolStore { return toolView{s} }

// Agents returns the store as a store.AgentStore.
func (s *CatalogStore) Agents() store.AgentStore { return agentView{s} }

// saveLocked writes the catalog back to disk. Caller holds s.mu.
func (s *CatalogStore) saveLocked() error {
	if s.path == "" {
		return nil
	}
	cat := Catalog{Tools: sortedTools(s.tools), Agents: sortedAgents(s.agents)}
	data, err := yaml.Marshal(&cat)
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create catalog dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace catalog: %w", err)
	}
	slog.Debug("catalog saved", "path", s.path, "tools", len(cat.Tools), "agents", len(cat.Agents))
	return nil
}

func sortedTools(m map[uuid.UUID]store.ToolDefinition) []store.ToolDefinition {
	out := make([]store.ToolDefinition, 0, len(m))
	for _, t := range m {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func sortedAgents(m map[uuid.UUID]store.AgentData) []store.AgentData {
	out := make([]store.AgentData, 0, len(m))
	for _, a := range m {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

type toolView struct{ s *CatalogStore }

func (v toolView) ListByIDs(_ context.Context, ids []uuid.UUID) ([]store.ToolDefinition, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	out := make([]store.ToolDefinition, 0, len(ids))
	for _, id := range ids {
		if t, ok := v.s.tools[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (v toolView) FindByName(_ context.Context, name string) (*store.ToolDefinition, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	var found *store.ToolDefinition
	for _, t := range v.s.tools {
		if t.Name != name {
			continue
		}
		// Oldest row wins when duplicates exist.
		if found == nil || t.CreatedAt.Before(found.CreatedAt) {
			t := t
			found = &t
		}
	}
	if found == nil {
		return nil, store.ErrNotFound
	}
	return found, nil
}

func (v toolView) List(context.Context) ([]store.ToolDefinition, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return sortedTools(v.s.tools), nil
}

func (v toolView) Upsert(_ context.Context, def *store.ToolDefinition) error {
	if err := store.ValidateToolDefinition(def); err != nil {
		return err
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	now := time.Now().UTC()
	if def.ID == uuid.Nil {
		def.ID = store.GenNewID()
	}
	prev, existed := v.s.tools[def.ID]
	if existed {
		def.CreatedAt = prev.CreatedAt
	} else if def.CreatedAt.IsZero() {
		def.CreatedAt = now
	}
	def.UpdatedAt = now
	v.s.tools[def.ID] = *def
	if err := v.s.saveLocked(); err != nil {
		if existed {
			v.s.tools[def.ID] = prev
		} else {
			delete(v.s.tools, def.ID)
		}
		return err
	}
	return nil
}

func (v toolView) Delete(_ context.Context, id uuid.UUID) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	prev, ok := v.s.tools[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(v.s.tools, id)
	if err := v.s.saveLocked(); err != nil {
		v.s.tools[id] = prev
		return err
	}
	return nil
}

type agentView struct{ s *CatalogStore }

func (v agentView) Get(_ context.Context, id uuid.UUID) (*store.AgentData, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	a, ok := v.s.agents[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (v agentView) GetByName(_ context.Context, name string) (*store.AgentData, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	for _, a := range v.s.agents {
		if a.Name == name {
			return &a, nil
		}
	}
	return nil, store.ErrNotFound
}

func (v agentView) List(context.Context) ([]store.AgentData, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return sortedAgents(v.s.agents), nil
}

func (v agentView) Upsert(_ context.Context, a *store.AgentData) error {
	if err := store.ValidateAgent(a); err != nil {
		return err
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	now := time.Now().UTC()
	if a.ID == uuid.Nil {
		a.ID = store.GenNewID()
	}
	prev, existed := v.s.agents[a.ID]
	if existed {
		a.CreatedAt = prev.CreatedAt
	} else if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	v.s.agents[a.ID] = *a
	if err := v.s.saveLocked(); err != nil {
		if existed {
			v.s.agents[a.ID] = prev
		} else {
			delete(v.s.agents, a.ID)
		}
		return err
	}
	return nil
}

func (v agentView) Delete(_ context.Context, id uuid.UUID) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	prev, ok := v.s.agents[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(v.s.agents, id)
	if err := v.s.saveLocked(); err != nil {
		v.s.agents[id] = prev
		return err
	}
	return nil
}
