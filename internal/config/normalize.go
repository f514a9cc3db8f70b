package config

import (
	"path/filepath"
	"regexp"
	"strings"
)

const DefaultSourceName = "inline"

var (
	validSourceRe = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{0,127}$`)
	invalidChars  = regexp.MustCompile(`[^a-z0-9._-]+`)
	leadingDash   = regexp.MustCompile(`^[-.]+`)
	trailingDash  = regexp.MustCompile(`[-.]+$`)
)

// NormalizeSourceName converts a file path or label into a knowledge source name:
//   - base name only, lowercase, max 128 chars
//   - only [a-z0-9._-] allowed
//   - invalid chars replaced with "-"
//   - leading/trailing dashes and dots stripped
//   - empty result defaults to "inline"
func NormalizeSourceName(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return DefaultSourceName
	}

	lower := strings.ToLower(filepath.Base(trimmed))
	if validSourceRe.MatchString(lower) {
		return lower
	}

	result := invalidChars.ReplaceAllString(lower, "-")
	result = leadingDash.ReplaceAllString(result, "")
	result = trailingDash.ReplaceAllString(result, "")

	if len(result) > 128 {
		result = result[:128]
	}

	if result == "" {
		return DefaultSourceName
	}
	return result
}
