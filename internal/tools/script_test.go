package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestScriptRunnerEntryPoints(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"execute_declaration", `function execute(args) { return args.a + args.b }`, "3"},
		{"completion_value", `(function (args) { return args.a * 10 })`, "10"},
		{"arrow_completion", `(args) => args.b - args.a`, "1"},
		{"const_execute", `const execute = (args) => "sum:" + (args.a + args.b)`, "sum:3"},
		{"single_global", `function helperless(args) { return [args.a, args.b].length }`, "2"},
		{"execute_wins_over_helpers", `
			function double(x) { return x * 2 }
			function execute(args) { return double(args.b) }`, "4"},
		{"async", `async function execute(args) { const v = await Promise.resolve(args.a); return v + 100 }`, "101"},
		{"returns_object", `function execute() { return { ok: true } }`, "map[ok:true]"},
	}
	runner := NewScriptRunner(0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := runner.Run(context.Background(), "t", tt.body, map[string]any{"a": 1.0, "b": 2.0})
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if s := fmt.Sprint(got); s != tt.want {
				t.Errorf("result = %s, want %s", s, tt.want)
			}
		})
	}
}

func TestScriptRunnerDefinitionErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		reason string
	}{
		{"no_function", `var x = 1`, "no entry point"},
		{"ambiguous", `function a() {} function b() {}`, "ambiguous entry point"},
		{"syntax", `function execute( {`, "compile"},
	}
	runner := NewScriptRunner(0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runner.Run(context.Background(), "t", tt.body, nil)
			var de *DefinitionError
			if !errors.As(err, &de) {
				t.Fatalf("err = %v, want DefinitionError", err)
			}
			if !strings.Contains(de.Reason, tt.reason) {
				t.Errorf("reason = %q, want it to contain %q", de.Reason, tt.reason)
			}
		})
	}
}

func TestScriptRunnerExecutionErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		msg  string
	}{
		{"throw_error", `function execute() { throw new Error("kaboom") }`, "kaboom"},
		{"throw_string", `function execute() { throw "plain" }`, "plain"},
		{"rejected", `async function execute() { throw new Error("async kaboom") }`, "async kaboom"},
		{"pending", `function execute() { return new Promise(function () {}) }`, "did not settle"},
		{"reference", `function execute() { return missing.value }`, "missing"},
	}
	runner := NewScriptRunner(0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runner.Run(context.Background(), "t", tt.body, nil)
			var ee *ExecutionError
			if !errors.As(err, &ee) {
				t.Fatalf("err = %v, want ExecutionError", err)
			}
			if !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("err = %q, want it to contain %q", err, tt.msg)
			}
		})
	}
}

func TestScriptRunnerInterruptsOnDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewScriptRunner(0).Run(ctx, "spin", `function execute() { while (true) {} }`, nil)
	var ee *ExecutionError
	if !errors.As(err, &ee) || !strings.Contains(err.Error(), "interrupted") {
		t.Fatalf("err = %v, want interrupted ExecutionError", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("interrupt took too long")
	}
}

func TestScriptRunnerIsolation(t *testing.T) {
	runner := NewScriptRunner(0)
	body := `var counter = (typeof counter === "number") ? counter + 1 : 1; function execute() { return counter }`
	for i := 0; i < 3; i++ {
		got, err := runner.Run(context.Background(), "t", body, nil)
		if err != nil {
			t.Fatal(err)
		}
		if fmt.Sprint(got) != "1" {
			t.Fatalf("run %d saw counter %v; state leaked between invocations", i, got)
		}
	}
	if runner.programs.Len() != 1 {
		t.Errorf("cache has %d programs, want 1", runner.programs.Len())
	}
}
