package tools

import "fmt"

// DefinitionError reports a malformed or unimplemented tool.
type DefinitionError struct {
	Tool   string
	Reason string
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("tool %s: %s", e.Tool, e.Reason)
}

// NotImplementedError is the DefinitionError raised for a tool with neither
// a script body nor a matching builtin.
type NotImplementedError struct {
	DefinitionError
}

func (e *NotImplementedError) Unwrap() error { return &e.DefinitionError }

func notImplemented(tool string) error {
	return &NotImplementedError{DefinitionError{Tool: tool, Reason: "tool has no implementation"}}
}

// ValidationError reports arguments a tool cannot use.
type ValidationError struct {
	Tool    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Tool, e.Message)
}

func validationErr(tool, format string, args ...any) error {
	return &ValidationError{Tool: tool, Message: fmt.Sprintf(format, args...)}
}

// ExecutionError wraps a failure raised while a tool ran: a thrown script
// error, a rejected promise, a transport failure or an interrupted VM.
type ExecutionError struct {
	Tool string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
