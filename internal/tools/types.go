package tools

import (
	"context"

	"github.com/nextlevelbuilder/agentloop/internal/store"
)

// Builtin is a natively implemented tool. The invoker dispatches to it when a
// catalog definition of the same name carries no script body.
type Builtin interface {
	Name() string
	Description() string
	Parameters() []store.ParamSpec
	ReturnType() store.ParamType
	// Execute returns a JSON-serializable payload. Returned errors are
	// normalized into failure results by the invoker.
	Execute(ctx context.Context, args map[string]any) (any, error)
}

// Definition returns the catalog row describing b.
func Definition(b Builtin) store.ToolDefinition {
	return store.ToolDefinition{
		Name:        b.Name(),
		Description: b.Description(),
		Parameters:  b.Parameters(),
		ReturnType:  b.ReturnType(),
		Builtin:     true,
	}
}
