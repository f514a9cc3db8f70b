package tools

import "github.com/nextlevelbuilder/agentloop/internal/store"

// InputSchema renders a definition's parameters as a JSON Schema object.
func InputSchema(def store.ToolDefinition) map[string]any {
	props := make(map[string]any, len(def.Parameters))
	required := make([]string, 0, len(def.Parameters))
	for _, p := range def.Parameters {
		prop := map[string]any{"type": string(p.Type)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// MissingRequired returns the required parameters absent from args.
func MissingRequired(def store.ToolDefinition, args map[string]any) []string {
	var missing []string
	for _, p := range def.Parameters {
		if !p.Required {
			continue
		}
		if v, ok := args[p.Name]; !ok || v == nil {
			missing = append(missing, p.Name)
		}
	}
	return missing
}

// Kind classifies how a definition executes: "script" for a user body,
// "builtin" for a native implementation, "descriptive" otherwise.
func Kind(def store.ToolDefinition) string {
	switch {
	case def.HasBody():
		return "script"
	case def.Builtin:
		return "builtin"
	default:
		return "descriptive"
	}
}
