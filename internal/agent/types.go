package agent

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/agentloop/internal/providers"
	"github.com/nextlevelbuilder/agentloop/internal/store"
)

// DefaultMaxIterations bounds the model/tool rounds of a single run.
const DefaultMaxIterations = 10

var (
	// ErrMaxIterations marks a run that hit the iteration ceiling.
	ErrMaxIterations = errors.New("max iterations reached")
	// ErrInputRejected is returned when the input guard blocks a message.
	ErrInputRejected = errors.New("input rejected")
)

// Status is the terminal state of a run.
type Status string

const (
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
	StatusExhausted Status = "exhausted"
)

// RunRequest is the input for one agent run.
type RunRequest struct {
	Agent *store.AgentData
	Input string
	// RunID is optional; a new v7 id is generated when nil.
	RunID uuid.UUID
}

// FunctionCall is one tool invocation requested by the model.
type FunctionCall struct {
	Name      string         `json:"function"`
	Arguments map[string]any `json:"arguments"`
}

// ToolExecutionRecord is one executed call in the run's tool log.
type ToolExecutionRecord struct {
	Iteration  int            `json:"iteration"`
	Tool       string         `json:"tool"`
	Arguments  map[string]any `json:"arguments"`
	Result     any            `json:"result"`
	IsError    bool           `json:"isError,omitempty"`
	DurationMS int64          `json:"durationMs"`
}

// RunResult is the outcome of a run. Transcript and ToolLog are populated
// for every status, including partial data for failed runs.
type RunResult struct {
	RunID      uuid.UUID             `json:"runId"`
	AgentID    uuid.UUID             `json:"agentId"`
	Model      string                `json:"model"`
	Status     Status                `json:"status"`
	Output     string                `json:"output,omitempty"`
	Error      string                `json:"error,omitempty"`
	Iterations int                   `json:"iterations"`
	Transcript []providers.Message   `json:"transcript"`
	ToolLog    []ToolExecutionRecord `json:"toolLog"`
}

// RunError is returned alongside a failed RunResult.
type RunError struct {
	RunID uuid.UUID
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run %s failed: %v", e.RunID, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }
