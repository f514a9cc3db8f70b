package store

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

// BaseModel provides common fields for all persisted models.
type BaseModel struct {
	ID        uuid.UUID `json:"id" yaml:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at" db:"updated_at"`
}

// GenNewID generates a new UUID v7 (time-ordered).
func GenNewID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// StoreConfig configures the store layer.
type StoreConfig struct {
	// Driver: "file" (default), "sqlite" or "postgres".
	Driver string

	// CatalogPath is the YAML catalog used by the file driver.
	CatalogPath string

	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string

	// PostgresDSN is the Postgres connection string.
	PostgresDSN string
}

// ParamType is the declared type of a tool parameter or return value.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamNumber  ParamType = "number"
	ParamBoolean ParamType = "boolean"
	ParamArray   ParamType = "array"
	ParamObject  ParamType = "object"
)

// Valid reports whether t is one of the declared parameter types.
func (t ParamType) Valid() bool {
	switch t {
	case ParamString, ParamNumber, ParamBoolean, ParamArray, ParamObject:
		return true
	}
	return false
}

// ParamSpec describes one named tool parameter.
type ParamSpec struct {
	Name        string    `json:"name" yaml:"name"`
	Type        ParamType `json:"type" yaml:"type"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool      `json:"required,omitempty" yaml:"required,omitempty"`
}

// ToolDefinition is a named capability offered to the model.
// Either Body carries a user-authored script, or Builtin marks a catalog
// entry backed by a native implementation of the same name.
type ToolDefinition struct {
	BaseModel   `yaml:",inline"`
	Name        string      `json:"name" yaml:"name" db:"name"`
	Description string      `json:"description" yaml:"description" db:"description"`
	Parameters  []ParamSpec `json:"parameters" yaml:"parameters"`
	ReturnType  ParamType   `json:"return_type,omitempty" yaml:"return_type,omitempty" db:"return_type"`
	Body        string      `json:"body,omitempty" yaml:"body,omitempty" db:"body"`
	Builtin     bool        `json:"builtin,omitempty" yaml:"builtin,omitempty" db:"builtin"`
}

// HasBody reports whether the definition carries a non-blank script body.
func (d *ToolDefinition) HasBody() bool {
	return strings.TrimSpace(d.Body) != ""
}

// AgentData is the persisted configuration of an agent.
type AgentData struct {
	BaseModel        `yaml:",inline"`
	Name             string         `json:"name" yaml:"name" db:"name"`
	Role             string         `json:"role" yaml:"role" db:"role"`
	Goal             string         `json:"goal" yaml:"goal" db:"goal"`
	Task             string         `json:"task" yaml:"task" db:"task"`
	ExpectedOutput   string         `json:"expected_output" yaml:"expected_output" db:"expected_output"`
	Model            string         `json:"model" yaml:"model" db:"model"`
	Parameters       map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	ToolIDs          []uuid.UUID    `json:"tool_ids,omitempty" yaml:"tool_ids,omitempty"`
	KnowledgeEnabled bool           `json:"knowledge_enabled,omitempty" yaml:"knowledge_enabled,omitempty" db:"knowledge_enabled"`
	KnowledgeTopK    int            `json:"knowledge_top_k,omitempty" yaml:"knowledge_top_k,omitempty" db:"knowledge_top_k"`
}

// KnowledgeResult is one snippet returned by a knowledge search.
type KnowledgeResult struct {
	Content string  `json:"content"`
	Source  string  `json:"source,omitempty"`
	Score   float64 `json:"score"`
}

// Execution log statuses.
const (
	ExecStatusSuccess    = "success"
	ExecStatusError      = "error"
	ExecStatusIncomplete = "incomplete"
)

// ExecutionLog is the post-hoc record of one agent run.
type ExecutionLog struct {
	ID         uuid.UUID      `json:"id" db:"id"`
	RunID      uuid.UUID      `json:"run_id" db:"run_id"`
	AgentID    uuid.UUID      `json:"agent_id" db:"agent_id"`
	Input      string         `json:"input" db:"input"`
	Output     string         `json:"output,omitempty" db:"output"`
	Error      string         `json:"error,omitempty" db:"error"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Model      string         `json:"model" db:"model"`
	Status     string         `json:"status" db:"status"`
	Iterations int            `json:"iterations" db:"iterations"`
	ToolCalls  int            `json:"tool_calls" db:"tool_calls"`
	DurationMS int64          `json:"duration_ms" db:"duration_ms"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
}
