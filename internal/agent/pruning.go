package agent

import (
	"fmt"
	"unicode/utf8"
)

// Tool result trimming defaults. Results longer than the limit keep a head
// and a tail so the model still sees the shape of the payload.
const (
	defaultMaxToolResultChars = 16000
	defaultTrimHeadChars      = 6000
	defaultTrimTailChars      = 2000
)

// trimSettings holds resolved trimming limits.
type trimSettings struct {
	maxChars  int
	headChars int
	tailChars int
}

// resolveTrimSettings applies defaults. maxChars < 0 disables trimming.
func resolveTrimSettings(maxChars int) trimSettings {
	s := trimSettings{
		maxChars:  defaultMaxToolResultChars,
		headChars: defaultTrimHeadChars,
		tailChars: defaultTrimTailChars,
	}
	switch {
	case maxChars < 0:
		s.maxChars = 0
	case maxChars > 0:
		s.maxChars = maxChars
		// Keep the 3:1 head/tail split within the configured budget.
		if s.headChars+s.tailChars > maxChars {
			s.headChars = maxChars * 3 / 4
			s.tailChars = maxChars - s.headChars
		}
	}
	return s
}

// trimToolResult shortens a tool result that exceeds the limit.
func trimToolResult(content string, s trimSettings) string {
	if s.maxChars == 0 {
		return content
	}
	n := utf8.RuneCountInString(content)
	if n <= s.maxChars {
		return content
	}
	head := takeHead(content, s.headChars)
	tail := takeTail(content, s.tailChars)
	return fmt.Sprintf("%s\n...\n%s\n\n[Tool result trimmed: kept first %d chars and last %d chars of %d chars.]",
		head, tail, s.headChars, s.tailChars, n)
}

// takeHead returns the first n runes of s.
func takeHead(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// takeTail returns the last n runes of s.
func takeTail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
