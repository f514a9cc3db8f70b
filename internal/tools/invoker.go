package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nextlevelbuilder/agentloop/internal/store"
)

const defaultInvokeTimeout = 30 * time.Second

// Invoker executes tool definitions and always returns a normalized Result.
type Invoker struct {
	registry    *Registry
	scripts     *ScriptRunner
	rateLimiter *ToolRateLimiter // nil = no rate limiting
	scrubbing   bool             // scrub credentials from output (default true)
	timeout     time.Duration
}

func NewInvoker(registry *Registry, scripts *ScriptRunner) *Invoker {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if scripts == nil {
		scripts = NewScriptRunner(0)
	}
	return &Invoker{
		registry:  registry,
		scripts:   scripts,
		scrubbing: true,
		timeout:   defaultInvokeTimeout,
	}
}

// SetRateLimiter enables per-agent tool rate limiting.
func (inv *Invoker) SetRateLimiter(rl *ToolRateLimiter) {
	inv.rateLimiter = rl
}

// SetScrubbing enables or disables credential scrubbing on tool output.
func (inv *Invoker) SetScrubbing(enabled bool) {
	inv.scrubbing = enabled
}

// SetTimeout bounds each invocation. Zero keeps the default.
func (inv *Invoker) SetTimeout(d time.Duration) {
	if d > 0 {
		inv.timeout = d
	}
}

// Registry returns the builtin registry.
func (inv *Invoker) Registry() *Registry { return inv.registry }

// Invoke runs def with args. Dispatch order: script body, then a builtin
// of the same name for catalog-seeded definitions, else NotImplementedError.
// It never panics and never returns nil.
func (inv *Invoker) Invoke(ctx context.Context, def store.ToolDefinition, args map[string]any) (result *Result) {
	if args == nil {
		args = map[string]any{}
	}

	if inv.rateLimiter != nil {
		key := store.AgentIDFromContext(ctx).String()
		if err := inv.rateLimiter.Allow(key); err != nil {
			return ErrorResult(def.Name, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, inv.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if x := recover(); x != nil {
			result = ErrorResult(def.Name, &ExecutionError{Tool: def.Name, Err: fmt.Errorf("panic: %v", x)})
		}
		if inv.scrubbing {
			result.ForLLM = ScrubCredentials(result.ForLLM)
		}
		slog.Debug("tool executed",
			"tool", def.Name,
			"duration_ms", time.Since(start).Milliseconds(),
			"is_error", result.IsError,
		)
	}()

	var (
		value any
		err   error
		path  string
	)
	switch {
	case def.HasBody():
		path = "script"
		value, err = inv.scripts.Run(ctx, def.Name, def.Body, args)
	case def.Builtin:
		b, ok := inv.registry.Get(def.Name)
		if !ok {
			err = notImplemented(def.Name)
			break
		}
		path = "builtin"
		value, err = b.Execute(ctx, args)
	default:
		// Descriptive-only or explicitly blank body: never routed to a builtin.
		err = notImplemented(def.Name)
	}

	if err != nil {
		slog.Warn("tool failed", "tool", def.Name, "path", path, "error", err)
		return ErrorResult(def.Name, err)
	}
	return NewResult(def.Name, value)
}
