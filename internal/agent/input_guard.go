// Package agent runs the agent loop: it assembles the seed prompt, calls the
// model gateway, parses function calls out of replies, and feeds tool results
// back until the model answers or the iteration ceiling is reached.
//
// InputGuard scans user input for known injection patterns before the first
// model call. Action is configurable via loop.guard_action:
//   - "log":   info-level logging (quiet)
//   - "warn":  warning-level logging (default)
//   - "block": fail the run before any model call
//   - "off":   disable scanning entirely
package agent

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Guard actions.
const (
	GuardOff   = "off"
	GuardLog   = "log"
	GuardWarn  = "warn"
	GuardBlock = "block"
)

// ValidGuardAction reports whether a is a known guard action.
func ValidGuardAction(a string) bool {
	switch a {
	case GuardOff, GuardLog, GuardWarn, GuardBlock:
		return true
	}
	return false
}

// guardPattern pairs a human-readable name with a compiled regex.
type guardPattern struct {
	name    string
	pattern *regexp.Regexp
}

// InputGuard scans user input for known prompt injection patterns.
type InputGuard struct {
	patterns []guardPattern
	action   string
}

// NewInputGuard creates an InputGuard with the default pattern set. An empty
// or unknown action falls back to "warn".
func NewInputGuard(action string) *InputGuard {
	if !ValidGuardAction(action) {
		action = GuardWarn
	}
	return &InputGuard{
		patterns: defaultGuardPatterns(),
		action:   action,
	}
}

// Action returns the configured action.
func (g *InputGuard) Action() string { return g.action }

// Scan checks a message against all known injection patterns.
// Returns the names of matched patterns (empty slice = no matches).
func (g *InputGuard) Scan(message string) []string {
	if message == "" {
		return nil
	}
	var matches []string
	for _, gp := range g.patterns {
		if gp.pattern.MatchString(message) {
			matches = append(matches, gp.name)
		}
	}
	return matches
}

// Check scans message and applies the configured action. It returns an
// error wrapping ErrInputRejected only when the action is "block".
func (g *InputGuard) Check(message string) error {
	if g == nil || g.action == GuardOff {
		return nil
	}
	matches := g.Scan(message)
	if len(matches) == 0 {
		return nil
	}
	switch g.action {
	case GuardLog:
		slog.Info("security.injection_detected", "patterns", matches, "chars", len(message))
	case GuardBlock:
		slog.Warn("security.injection_blocked", "patterns", matches, "chars", len(message))
		return fmt.Errorf("%w: matched %s", ErrInputRejected, strings.Join(matches, ", "))
	default:
		slog.Warn("security.injection_detected", "patterns", matches, "chars", len(message))
	}
	return nil
}

// defaultGuardPatterns returns the built-in set of injection detection patterns.
func defaultGuardPatterns() []guardPattern {
	return []guardPattern{
		{
			name:    "ignore_instructions",
			pattern: regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above|earlier|preceding)\s+(instructions?|rules?|prompts?|directives?|guidelines?)`),
		},
		{
			name:    "role_override",
			pattern: regexp.MustCompile(`(?i)(you are now|from now on you are|pretend you are|act as if you are|imagine you are)\s+`),
		},
		{
			name:    "system_tags",
			pattern: regexp.MustCompile(`(?i)</?system>|\[SYSTEM\]|\[INST\]|<<SYS>>|<\|im_start\|>system`),
		},
		{
			name:    "instruction_injection",
			pattern: regexp.MustCompile(`(?i)(new instructions?:|override:|system prompt:|<\|system\|>)`),
		},
		{
			name:    "null_bytes",
			pattern: regexp.MustCompile(`\x00`),
		},
		{
			name:    "delimiter_escape",
			pattern: regexp.MustCompile(`(?i)(end of system|begin user input|</?(instructions?|rules|prompt|context)>)`),
		},
		{
			// User text that already contains the tool call syntax.
			name:    "function_call_spoof",
			pattern: regexp.MustCompile(`\{\s*"function"\s*:\s*"[^"]*"\s*,\s*"arguments"\s*:`),
		},
	}
}

// PatternNames returns the names of all configured patterns.
func (g *InputGuard) PatternNames() []string {
	names := make([]string, len(g.patterns))
	for i, gp := range g.patterns {
		names[i] = gp.name
	}
	return names
}
