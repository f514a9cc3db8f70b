package tools

import "regexp"

// Credential patterns scrubbed from tool output before it reaches the model.
var credentialPatterns = []*regexp.Regexp{
	// Anthropic (before the generic sk- pattern so the whole key is matched)
	regexp.MustCompile(`sk-ant-[a-zA-Z0-9-]{20,}`),
	// OpenAI
	regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`),
	// Google API keys (Gemini, Maps)
	regexp.MustCompile(`AIza[0-9A-Za-z_-]{35}`),
	// GitHub tokens
	regexp.MustCompile(`gh[pousr]_[a-zA-Z0-9]{36}`),
	// AWS access key ids
	regexp.MustCompile(`AKIA[A-Z0-9]{16}`),
	// key=value and key: value forms
	regexp.MustCompile(`(?i)(api[_-]?key|token|secret|password|bearer|authorization)["']?\s*[:=]\s*["']?[^\s"']{8,}["']?`),
}

const redactedPlaceholder = "[REDACTED]"

// ScrubCredentials replaces known credential patterns in text with [REDACTED].
func ScrubCredentials(text string) string {
	for _, pat := range credentialPatterns {
		text = pat.ReplaceAllString(text, redactedPlaceholder)
	}
	return text
}
