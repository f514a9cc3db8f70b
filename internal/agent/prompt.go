package agent

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/nextlevelbuilder/agentloop/internal/providers"
	"github.com/nextlevelbuilder/agentloop/internal/store"
)

// PromptInput is everything the first transcript turn is built from.
type PromptInput struct {
	Agent     *store.AgentData
	Input     string
	Tools     []store.ToolDefinition
	Knowledge []store.KnowledgeResult
}

// callShape is the literal call syntax the parser recognizes.
const callShape = `{"function": "<tool_name>", "arguments": {"<param>": <value>}}`

// BuildPrompt renders the seed turn of a run. Sections appear in a fixed
// order and empty sections are omitted. The tool catalog is only rendered
// here, never on later turns.
func BuildPrompt(in PromptInput) string {
	var sb strings.Builder
	ag := in.Agent
	if ag == nil {
		ag = &store.AgentData{}
	}

	section := func(title, body string) {
		body = strings.TrimSpace(body)
		if body == "" {
			return
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		if title != "" {
			sb.WriteString(title)
			sb.WriteString(":\n")
		}
		sb.WriteString(body)
	}

	section("", framing(ag.Role, ag.Goal))
	section("Task", ag.Task)
	section("Expected output", ag.ExpectedOutput)
	section("Context", customContext(ag.Parameters))
	section("Relevant knowledge", knowledgeBlock(in.Knowledge))
	section("User input", in.Input)
	section("Available tools", toolCatalog(in.Tools))
	if len(in.Tools) > 0 {
		section("", callInstructions())
	}
	return sb.String()
}

func framing(role, goal string) string {
	role = strings.TrimSpace(role)
	goal = strings.TrimSpace(goal)
	var parts []string
	if role != "" {
		parts = append(parts, "You are "+role+".")
	}
	if goal != "" {
		parts = append(parts, "Your goal is: "+goal)
	}
	return strings.Join(parts, " ")
}

// customContext renders every non-generation parameter as "key: value",
// sorted by key.
func customContext(params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if providers.IsGenerationParam(k) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %s", k, contextValue(params[k])))
	}
	return strings.Join(lines, "\n")
}

func contextValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func knowledgeBlock(results []store.KnowledgeResult) string {
	var lines []string
	for i, r := range results {
		lines = append(lines, fmt.Sprintf("[%d] %s", i+1, strings.TrimSpace(r.Content)))
	}
	return strings.Join(lines, "\n")
}

func toolCatalog(defs []store.ToolDefinition) string {
	var sb strings.Builder
	for i, d := range defs {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "- %s: %s\n", d.Name, d.Description)
		if len(d.Parameters) == 0 {
			sb.WriteString("  Parameters: none\n")
		} else {
			sb.WriteString("  Parameters:\n")
			for _, p := range d.Parameters {
				req := "optional"
				if p.Required {
					req = "required"
				}
				fmt.Fprintf(&sb, "    - %s (%s, %s)", p.Name, p.Type, req)
				if p.Description != "" {
					sb.WriteString(": " + p.Description)
				}
				sb.WriteString("\n")
			}
		}
		rt := d.ReturnType
		if rt == "" {
			rt = "any"
		}
		fmt.Fprintf(&sb, "  Returns: %s", rt)
	}
	return sb.String()
}

func callInstructions() string {
	return "To use a tool, reply with a JSON object in exactly this shape:\n" +
		callShape + "\n" +
		"You may request several tools in one reply; they run in order. " +
		"After you receive a tool result, continue reasoning toward the final answer. " +
		"When no tool is needed, reply with the final answer and no function-call JSON."
}

// ToolResultTurn renders the user turn that feeds one tool result back to
// the model.
func ToolResultTurn(toolName, resultJSON string) string {
	return fmt.Sprintf("Tool %q returned:\n%s\n\nContinue reasoning with this result. "+
		"Call another tool if you still need one, otherwise give the final answer.", toolName, resultJSON)
}
