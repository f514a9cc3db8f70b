package tools

import (
	"context"
	"testing"

	"github.com/nextlevelbuilder/agentloop/internal/store"
)

// mockBuiltin is a minimal builtin for testing the registry.
type mockBuiltin struct {
	name string
}

func (m *mockBuiltin) Name() string                  { return m.name }
func (m *mockBuiltin) Description() string           { return "mock tool" }
func (m *mockBuiltin) Parameters() []store.ParamSpec { return nil }
func (m *mockBuiltin) ReturnType() store.ParamType   { return store.ParamString }
func (m *mockBuiltin) Execute(context.Context, map[string]any) (any, error) {
	return "ok", nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&mockBuiltin{name: "test_tool"})

	got, ok := reg.Get("test_tool")
	if !ok {
		t.Fatal("tool not found")
	}
	if got.Name() != "test_tool" {
		t.Errorf("expected test_tool, got %s", got.Name())
	}
	if _, ok := reg.Get("nonexistent"); ok {
		t.Error("expected tool not found")
	}
}

func TestRegistry_CountAndList(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&mockBuiltin{name: "t2"})
	reg.Register(&mockBuiltin{name: "t1"})
	reg.Register(&mockBuiltin{name: "t1"})
	if reg.Count() != 2 {
		t.Errorf("Count() = %d, want 2", reg.Count())
	}
	if got := reg.List(); len(got) != 2 || got[0] != "t1" || got[1] != "t2" {
		t.Errorf("List() = %v", got)
	}
}

func TestInputSchema(t *testing.T) {
	def := store.ToolDefinition{
		Name: "weather",
		Parameters: []store.ParamSpec{
			{Name: "city", Type: store.ParamString, Required: true, Description: "City"},
			{Name: "days", Type: store.ParamNumber},
		},
	}
	s := InputSchema(def)
	props := s["properties"].(map[string]any)
	if len(props) != 2 || props["days"].(map[string]any)["type"] != "number" {
		t.Errorf("properties = %v", props)
	}
	if req := s["required"].([]string); len(req) != 1 || req[0] != "city" {
		t.Errorf("required = %v", req)
	}

	if missing := MissingRequired(def, map[string]any{"days": 3}); len(missing) != 1 || missing[0] != "city" {
		t.Errorf("MissingRequired = %v", missing)
	}
	if missing := MissingRequired(def, map[string]any{"city": "Paris"}); len(missing) != 0 {
		t.Errorf("MissingRequired = %v", missing)
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		def  store.ToolDefinition
		want string
	}{
		{store.ToolDefinition{Name: "x", Body: "  "}, "descriptive"},
		{store.ToolDefinition{Name: "x", Body: "1", Builtin: true}, "script"},
		{store.ToolDefinition{Name: "x", Builtin: true}, "builtin"},
	}
	for _, tt := range tests {
		if got := Kind(tt.def); got != tt.want {
			t.Errorf("Kind(%+v) = %q, want %q", tt.def, got, tt.want)
		}
	}
}
