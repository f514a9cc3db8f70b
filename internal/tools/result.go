package tools

import (
	"encoding/json"
	"fmt"
)

// Result is the normalized outcome of a tool invocation.
type Result struct {
	ToolName string `json:"tool_name"`
	Value    any    `json:"value,omitempty"` // success payload
	IsError  bool   `json:"is_error"`
	Message  string `json:"message,omitempty"` // failure message
	Err      error  `json:"-"`                 // typed cause (not serialized)
	ForLLM   string `json:"-"`                 // JSON sent back to the model
}

// NewResult builds a success result for payload v.
func NewResult(toolName string, v any) *Result {
	r := &Result{ToolName: toolName, Value: v}
	r.ForLLM = encodeForLLM(r.Payload())
	return r
}

// ErrorResult builds a failure result from err.
func ErrorResult(toolName string, err error) *Result {
	r := &Result{ToolName: toolName, IsError: true, Message: err.Error(), Err: err}
	r.ForLLM = encodeForLLM(r.Payload())
	return r
}

// Payload returns the value in the shape the model sees: the raw success
// payload, or {"error": true, "message": ..., "toolName": ...}.
func (r *Result) Payload() any {
	if r.IsError {
		return map[string]any{
			"error":    true,
			"message":  r.Message,
			"toolName": r.ToolName,
		}
	}
	return r.Value
}

func encodeForLLM(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		// Non-JSON payloads (NaN, channels, cycles) degrade to their text form.
		data, _ = json.Marshal(fmt.Sprint(v))
	}
	return string(data)
}
