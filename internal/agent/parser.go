package agent

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
)

// ParseFunctionCalls extracts {"function": ..., "arguments": {...}} objects
// from model text in order of appearance. Prose around the objects is
// ignored. A candidate that fails to decode is skipped and scanning resumes
// at the next byte. An empty result means the model produced a final answer.
//
// The match is lenient in two ways: an object whose "arguments" key is
// missing or null still counts as a call with empty arguments, and extra keys
// next to "function" are ignored. Non-object arguments are not a call.
func ParseFunctionCalls(text string) []FunctionCall {
	var calls []FunctionCall
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		if !strings.Contains(text[i:], `"function"`) {
			break
		}
		call, n, err := decodeCall(text[i:])
		if err != nil {
			slog.Debug("agent: skipping malformed function call", "offset", i, "error", err)
			continue
		}
		if call == nil {
			continue
		}
		calls = append(calls, *call)
		i += n - 1
	}
	return calls
}

type rawCall struct {
	Function  *string         `json:"function"`
	Arguments json.RawMessage `json:"arguments"`
}

// decodeCall decodes one JSON object at the start of s and returns the call
// and the number of bytes consumed. A well-formed object that is not a call
// yields a nil call and no error.
func decodeCall(s string) (*FunctionCall, int, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	var raw rawCall
	if err := dec.Decode(&raw); err != nil {
		return nil, 0, err
	}
	n := int(dec.InputOffset())

	if raw.Function == nil || strings.TrimSpace(*raw.Function) == "" {
		return nil, n, nil
	}
	args := map[string]any{}
	trimmed := bytes.TrimSpace(raw.Arguments)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if trimmed[0] != '{' {
			return nil, n, nil
		}
		if err := json.Unmarshal(trimmed, &args); err != nil {
			return nil, 0, err
		}
	}
	return &FunctionCall{Name: strings.TrimSpace(*raw.Function), Arguments: args}, n, nil
}
