package agent

import (
	"strings"
	"testing"

	"github.com/nextlevelbuilder/agentloop/internal/store"
)

func TestBuildPrompt_SectionOrder(t *testing.T) {
	ag := &store.AgentData{
		Role:           "a release manager",
		Goal:           "ship safely",
		Task:           "Summarize the changelog.",
		ExpectedOutput: "A bullet list.",
		Parameters: map[string]any{
			"temperature": 0.2,
			"zone":        "eu",
			"audience":    "engineers",
			"limits":      map[string]any{"max": 3},
		},
	}
	tools := []store.ToolDefinition{{
		Name:        "calculator",
		Description: "Evaluates arithmetic.",
		Parameters: []store.ParamSpec{
			{Name: "expression", Type: store.ParamString, Required: true, Description: "the expression"},
			{Name: "precision", Type: store.ParamNumber},
		},
		ReturnType: store.ParamObject,
	}}
	knowledge := []store.KnowledgeResult{{Content: "first fact"}, {Content: "second fact"}}

	got := BuildPrompt(PromptInput{Agent: ag, Input: "What changed?", Tools: tools, Knowledge: knowledge})

	order := []string{
		"You are a release manager. Your goal is: ship safely",
		"Task:\nSummarize the changelog.",
		"Expected output:\nA bullet list.",
		"Context:\naudience: engineers\nlimits: {\"max\":3}\nzone: eu",
		"Relevant knowledge:\n[1] first fact\n[2] second fact",
		"User input:\nWhat changed?",
		"Available tools:\n- calculator: Evaluates arithmetic.",
		"    - expression (string, required): the expression",
		"    - precision (number, optional)",
		"  Returns: object",
		`{"function": "<tool_name>", "arguments": {"<param>": <value>}}`,
		"continue reasoning",
	}
	pos := 0
	for _, want := range order {
		idx := strings.Index(got[pos:], want)
		if idx < 0 {
			t.Fatalf("missing or out of order: %q\nprompt:\n%s", want, got)
		}
		pos += idx + len(want)
	}
	if strings.Contains(got, "temperature") {
		t.Error("generation parameters must not appear as context")
	}
}

func TestBuildPrompt_OmitsEmptySections(t *testing.T) {
	got := BuildPrompt(PromptInput{Agent: &store.AgentData{Task: "Say hi."}, Input: "hello"})

	for _, absent := range []string{"Available tools", "Relevant knowledge", "Context:", "Expected output", "You are", `"function"`} {
		if strings.Contains(got, absent) {
			t.Errorf("prompt should not contain %q:\n%s", absent, got)
		}
	}
	if got != "Task:\nSay hi.\n\nUser input:\nhello" {
		t.Errorf("unexpected prompt:\n%q", got)
	}
}

func TestToolResultTurn(t *testing.T) {
	got := ToolResultTurn("calculator", `{"result":4}`)
	if !strings.Contains(got, `Tool "calculator" returned:`) || !strings.Contains(got, `{"result":4}`) {
		t.Errorf("unexpected turn: %s", got)
	}
	if !strings.Contains(got, "Continue reasoning") {
		t.Error("missing continuation instruction")
	}
}
