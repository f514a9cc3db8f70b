package store

import (
	"fmt"
	"regexp"
)

// MaxNameLength matches the VARCHAR(255) name columns in the database schema.
const MaxNameLength = 255

var toolNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// ValidateToolName checks that a tool name is a lowercase identifier the
// model can reproduce verbatim in a call.
func ValidateToolName(name string) error {
	if !toolNameRe.MatchString(name) {
		return fmt.Errorf("invalid tool name %q: must match %s", name, toolNameRe.String())
	}
	return nil
}

// ValidateToolDefinition checks name, parameter and return type constraints.
func ValidateToolDefinition(def *ToolDefinition) error {
	if err := ValidateToolName(def.Name); err != nil {
		return err
	}
	seen := make(map[string]bool, len(def.Parameters))
	for i, p := range def.Parameters {
		if p.Name == "" {
			return fmt.Errorf("tool %s: parameter %d has no name", def.Name, i)
		}
		if seen[p.Name] {
			return fmt.Errorf("tool %s: duplicate parameter %q", def.Name, p.Name)
		}
		seen[p.Name] = true
		if !p.Type.Valid() {
			return fmt.Errorf("tool %s: parameter %q has invalid type %q", def.Name, p.Name, p.Type)
		}
	}
	if def.ReturnType != "" && !def.ReturnType.Valid() {
		return fmt.Errorf("tool %s: invalid return type %q", def.Name, def.ReturnType)
	}
	return nil
}

// ValidateAgent checks the agent name constraint.
func ValidateAgent(a *AgentData) error {
	if a.Name == "" {
		return fmt.Errorf("agent name is required")
	}
	if len(a.Name) > MaxNameLength {
		return fmt.Errorf("agent name too long: %d chars (max %d)", len(a.Name), MaxNameLength)
	}
	return nil
}
