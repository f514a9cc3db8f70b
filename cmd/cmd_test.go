package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/agentloop/internal/agent"
	"github.com/nextlevelbuilder/agentloop/internal/config"
	"github.com/nextlevelbuilder/agentloop/internal/store"
	"github.com/nextlevelbuilder/agentloop/internal/store/file"
)

func TestReadInput(t *testing.T) {
	if got, err := readInput("hello", nil); err != nil || got != "hello" {
		t.Errorf("readInput(hello) = %q, %v", got, err)
	}
	if got, err := readInput("-", strings.NewReader("  from stdin\n")); err != nil || got != "from stdin" {
		t.Errorf("readInput(-) = %q, %v", got, err)
	}
	if _, err := readInput("-", strings.NewReader("   ")); err == nil {
		t.Error("expected error for blank stdin")
	}
	if _, err := readInput(" ", nil); err == nil {
		t.Error("expected error for blank message")
	}
}

func TestExitCode(t *testing.T) {
	tests := map[agent.Status]int{
		agent.StatusDone:      0,
		agent.StatusFailed:    exitFailed,
		agent.StatusExhausted: exitExhausted,
	}
	for status, want := range tests {
		if got := exitCode(status); got != want {
			t.Errorf("exitCode(%s) = %d, want %d", status, got, want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestPrintRunResult(t *testing.T) {
	var stdout, stderr bytes.Buffer
	printRunResult(&stdout, &stderr, &agent.RunResult{
		Status:     agent.StatusExhausted,
		Output:     "partial",
		Error:      "max iterations reached",
		Iterations: 10,
		ToolLog:    []agent.ToolExecutionRecord{{Iteration: 1, Tool: "calculator", IsError: true}},
	})
	if stdout.String() != "partial\n" {
		t.Errorf("stdout = %q", stdout.String())
	}
	if !strings.Contains(stderr.String(), "max iterations reached after 10 iterations") ||
		!strings.Contains(stderr.String(), "[1] calculator (error") {
		t.Errorf("stderr = %q", stderr.String())
	}

	stdout.Reset()
	stderr.Reset()
	printRunResult(&stdout, &stderr, &agent.RunResult{RunID: uuid.Nil, Status: agent.StatusFailed, Error: "boom"})
	if stdout.Len() != 0 || !strings.Contains(stderr.String(), "failed after 0 iterations: boom") {
		t.Errorf("stdout = %q, stderr = %q", stdout.String(), stderr.String())
	}
}

func TestNewApp_FileDriver(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Database.CatalogPath = filepath.Join(dir, "catalog.yaml")
	cfg.ExecLog.Path = filepath.Join(dir, "executions.jsonl")
	cfg.Knowledge.Enabled = true
	cfg.Knowledge.Path = filepath.Join(dir, "kb", "knowledge.db")

	ctx := context.Background()
	a, err := newApp(ctx, cfg, appOptions{})
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.Close()

	defs, err := a.stores.Tools.List(ctx)
	if err != nil || len(defs) != a.registry.Count() {
		t.Fatalf("seeded %d tools (err %v), want %d", len(defs), err, a.registry.Count())
	}
	if _, ok := a.stores.ExecLogs.(*file.LogSink); !ok {
		t.Errorf("exec log sink = %T, want *file.LogSink", a.stores.ExecLogs)
	}
	if a.knowledge == nil || a.stores.Knowledge == nil {
		t.Error("knowledge index not opened")
	}
	if a.provider != nil {
		t.Error("provider built without being requested")
	}
	if a.newLoop(nil).MaxIterations() != cfg.Loop.MaxIterations {
		t.Error("loop ignores loop.max_iterations")
	}
}

func TestOpenLogSink(t *testing.T) {
	ctx := context.Background()
	sink, closer, err := openLogSink(ctx, config.ExecLogConfig{Sink: "none"}, &store.Stores{})
	if err != nil || closer != nil {
		t.Fatalf("none: %v", err)
	}
	if _, ok := sink.(store.NopLogSink); !ok {
		t.Errorf("none sink = %T", sink)
	}

	own := store.NopLogSink{}
	sink, _, err = openLogSink(ctx, config.ExecLogConfig{Sink: "store"}, &store.Stores{ExecLogs: own})
	if err != nil || sink != store.ExecutionLogSink(own) {
		t.Errorf("store sink = %T, %v", sink, err)
	}

	if _, _, err := openLogSink(ctx, config.ExecLogConfig{Sink: "redis"}, &store.Stores{}); err == nil {
		t.Error("expected error for redis sink without url")
	}
}

func TestBuildProvider_RequiresKey(t *testing.T) {
	cfg := config.Default()
	if _, err := buildProvider(context.Background(), cfg, "openai"); err == nil {
		t.Error("expected missing api key error")
	}
	if _, err := buildProvider(context.Background(), cfg, "nope"); err == nil {
		t.Error("expected unknown provider error")
	}
	cfg.Providers.OpenAI.APIKey = "sk-test"
	p, err := buildProvider(context.Background(), cfg, "openai")
	if err != nil {
		t.Fatalf("buildProvider: %v", err)
	}
	if p.Name() != "openai" {
		t.Errorf("Name() = %q", p.Name())
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("abcdefghij", 5); got != "abcd…" {
		t.Errorf("truncate = %q", got)
	}
}
