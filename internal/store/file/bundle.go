package file

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/nextlevelbuilder/agentloop/internal/store"
)

// BundleVersion is written into every exported bundle.
const BundleVersion = 1

// Bundle is a portable export of tools and agents. Agents reference tools
// by name so ids can be regenerated on import.
type Bundle struct {
	Version int           `yaml:"version"`
	Tools   []BundleTool  `yaml:"tools"`
	Agents  []BundleAgent `yaml:"agents,omitempty"`
}

type BundleTool struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Parameters  []store.ParamSpec `yaml:"parameters,omitempty"`
	ReturnType  store.ParamType   `yaml:"return_type,omitempty"`
	Body        string            `yaml:"body,omitempty"`
	Builtin     bool              `yaml:"builtin,omitempty"`
}

type BundleAgent struct {
	Name             string         `yaml:"name"`
	Role             string         `yaml:"role"`
	Goal             string         `yaml:"goal"`
	Task             string         `yaml:"task"`
	ExpectedOutput   string         `yaml:"expected_output"`
	Model            string         `yaml:"model"`
	Parameters       map[string]any `yaml:"parameters,omitempty"`
	Tools            []string       `yaml:"tools,omitempty"`
	KnowledgeEnabled bool           `yaml:"knowledge_enabled,omitempty"`
	KnowledgeTopK    int            `yaml:"knowledge_top_k,omitempty"`
}

// ImportStats summarizes an Import call.
type ImportStats struct {
	Tools          int
	Agents         int
	UnresolvedRefs int
}

// Export writes every tool and agent as a YAML bundle.
func Export(ctx context.Context, tools store.ToolStore, agents store.AgentStore, w io.Writer) error {
	defs, err := tools.List(ctx)
	if err != nil {
		return fmt.Errorf("list tools: %w", err)
	}
	names := make(map[uuid.UUID]string, len(defs))
	b := Bundle{Version: BundleVersion}
	for _, d := range defs {
		names[d.ID] = d.Name
		b.Tools = append(b.Tools, BundleTool{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.Parameters,
			ReturnType:  d.ReturnType,
			Body:        d.Body,
			Builtin:     d.Builtin,
		})
	}
	if agents != nil {
		list, err := agents.List(ctx)
		if err != nil {
			return fmt.Errorf("list agents: %w", err)
		}
		for _, a := range list {
			ba := BundleAgent{
				Name:             a.Name,
				Role:             a.Role,
				Goal:             a.Goal,
				Task:             a.Task,
				ExpectedOutput:   a.ExpectedOutput,
				Model:            a.Model,
				Parameters:       a.Parameters,
				KnowledgeEnabled: a.KnowledgeEnabled,
				KnowledgeTopK:    a.KnowledgeTopK,
			}
			for _, id := range a.ToolIDs {
				if n, ok := names[id]; ok {
					ba.Tools = append(ba.Tools, n)
				}
			}
			b.Agents = append(b.Agents, ba)
		}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&b); err != nil {
		return fmt.Errorf("encode bundle: %w", err)
	}
	return enc.Close()
}

// Import reads a bundle and creates every tool and agent under fresh ids.
// Agent tool references are resolved by name against the imported tools
// first, then against tools already in the store.
func Import(ctx context.Context, r io.Reader, tools store.ToolStore, agents store.AgentStore) (ImportStats, error) {
	var stats ImportStats
	var b Bundle
	if err := yaml.NewDecoder(r).Decode(&b); err != nil {
		return stats, fmt.Errorf("decode bundle: %w", err)
	}
	if b.Version != BundleVersion {
		return stats, fmt.Errorf("unsupported bundle version %d", b.Version)
	}

	ids := make(map[string]uuid.UUID, len(b.Tools))
	for _, bt := range b.Tools {
		def := &store.ToolDefinition{
			Name:        bt.Name,
			Description: bt.Description,
			Parameters:  bt.Parameters,
			ReturnType:  bt.ReturnType,
			Body:        bt.Body,
			Builtin:     bt.Builtin,
		}
		def.ID = store.GenNewID()
		if err := tools.Upsert(ctx, def); err != nil {
			return stats, fmt.Errorf("import tool %s: %w", bt.Name, err)
		}
		ids[bt.Name] = def.ID
		stats.Tools++
	}

	if agents == nil {
		return stats, nil
	}
	for _, ba := range b.Agents {
		a := &store.AgentData{
			Name:             ba.Name,
			Role:             ba.Role,
			Goal:             ba.Goal,
			Task:             ba.Task,
			ExpectedOutput:   ba.ExpectedOutput,
			Model:            ba.Model,
			Parameters:       ba.Parameters,
			KnowledgeEnabled: ba.KnowledgeEnabled,
			KnowledgeTopK:    ba.KnowledgeTopK,
		}
		a.ID = store.GenNewID()
		for _, name := range ba.Tools {
			if id, ok := ids[name]; ok {
				a.ToolIDs = append(a.ToolIDs, id)
				continue
			}
			existing, err := tools.FindByName(ctx, name)
			if err != nil {
				stats.UnresolvedRefs++
				continue
			}
			a.ToolIDs = append(a.ToolIDs, existing.ID)
		}
		if err := agents.Upsert(ctx, a); err != nil {
			return stats, fmt.Errorf("import agent %s: %w", ba.Name, err)
		}
		stats.Agents++
	}
	return stats, nil
}
