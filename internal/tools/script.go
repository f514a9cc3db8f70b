package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/dop251/goja"
	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultScriptCacheSize = 256

// Globals installed by the runner; never treated as entry points.
var hostGlobals = map[string]bool{"console": true}

// ScriptRunner executes user-authored tool bodies in a fresh JavaScript VM
// per invocation. Compiled programs are cached by body hash.
//
// The VM isolates scripts from each other but is not a security sandbox.
type ScriptRunner struct {
	programs *lru.Cache[string, *goja.Program]
}

// NewScriptRunner creates a runner caching up to size compiled programs.
func NewScriptRunner(size int) *ScriptRunner {
	if size <= 0 {
		size = defaultScriptCacheSize
	}
	cache, _ := lru.New[string, *goja.Program](size)
	return &ScriptRunner{programs: cache}
}

// Run evaluates body, locates its entry point and calls it with args.
// A returned promise is settled before Run returns.
func (s *ScriptRunner) Run(ctx context.Context, toolName, body string, args map[string]any) (value any, err error) {
	prog, err := s.compile(toolName, body)
	if err != nil {
		return nil, err
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	installConsole(vm, toolName)

	stop := context.AfterFunc(ctx, func() { vm.Interrupt(ctx.Err()) })
	defer stop()

	defer func() {
		if x := recover(); x != nil {
			value, err = nil, &ExecutionError{Tool: toolName, Err: fmt.Errorf("panic: %v", x)}
		}
	}()

	completion, err := vm.RunProgram(prog)
	if err != nil {
		return nil, scriptError(toolName, err)
	}

	entry, err := findEntryPoint(vm, toolName, completion)
	if err != nil {
		return nil, err
	}

	ret, err := entry(goja.Undefined(), vm.ToValue(args))
	if err != nil {
		return nil, scriptError(toolName, err)
	}
	return settle(toolName, ret)
}

func (s *ScriptRunner) compile(toolName, body string) (*goja.Program, error) {
	sum := sha256.Sum256([]byte(body))
	key := hex.EncodeToString(sum[:])
	if prog, ok := s.programs.Get(key); ok {
		return prog, nil
	}
	prog, err := goja.Compile(toolName+".js", body, false)
	if err != nil {
		return nil, &DefinitionError{Tool: toolName, Reason: "compile: " + err.Error()}
	}
	s.programs.Add(key, prog)
	return prog, nil
}

// findEntryPoint picks, in order: a callable completion value, a binding
// named execute, or the single function-valued global the script declared.
func findEntryPoint(vm *goja.Runtime, toolName string, completion goja.Value) (goja.Callable, error) {
	if fn, ok := goja.AssertFunction(completion); ok {
		return fn, nil
	}

	// typeof resolves let/const bindings too, which are not global properties.
	if v, err := vm.RunString(`typeof execute === "function" ? execute : undefined`); err == nil {
		if fn, ok := goja.AssertFunction(v); ok {
			return fn, nil
		}
	}

	global := vm.GlobalObject()
	var names []string
	var found goja.Callable
	for _, k := range global.Keys() {
		if hostGlobals[k] {
			continue
		}
		if fn, ok := goja.AssertFunction(global.Get(k)); ok {
			names = append(names, k)
			found = fn
		}
	}
	switch len(names) {
	case 1:
		return found, nil
	case 0:
		return nil, &DefinitionError{Tool: toolName, Reason: "no entry point"}
	default:
		sort.Strings(names)
		return nil, &DefinitionError{
			Tool:   toolName,
			Reason: "ambiguous entry point: " + strings.Join(names, ", ") + " (name one of them execute)",
		}
	}
}

// settle unwraps a promise result. Jobs queued by the call have already run
// when the entry point returned.
func settle(toolName string, v goja.Value) (any, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	p, ok := v.Export().(*goja.Promise)
	if !ok {
		return v.Export(), nil
	}
	switch p.State() {
	case goja.PromiseStateFulfilled:
		if r := p.Result(); r != nil {
			return r.Export(), nil
		}
		return nil, nil
	case goja.PromiseStateRejected:
		return nil, &ExecutionError{Tool: toolName, Err: errors.New(jsMessage(p.Result()))}
	default:
		return nil, &ExecutionError{Tool: toolName, Err: errors.New("promise did not settle")}
	}
}

func scriptError(toolName string, err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return &ExecutionError{Tool: toolName, Err: fmt.Errorf("interrupted: %v", interrupted.Value())}
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return &ExecutionError{Tool: toolName, Err: errors.New(jsMessage(ex.Value()))}
	}
	return &ExecutionError{Tool: toolName, Err: err}
}

// jsMessage extracts the message of a thrown value: Error objects yield
// their message, anything else its string form.
func jsMessage(v goja.Value) string {
	if v == nil {
		return "undefined"
	}
	if obj, ok := v.(*goja.Object); ok {
		if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) {
			return msg.String()
		}
	}
	return v.String()
}

func installConsole(vm *goja.Runtime, toolName string) {
	console := vm.NewObject()
	logFn := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, a := range call.Arguments {
			parts[i] = a.String()
		}
		slog.Debug("tool script log", "tool", toolName, "msg", strings.Join(parts, " "))
		return goja.Undefined()
	}
	_ = console.Set("log", logFn)
	_ = console.Set("error", logFn)
	_ = vm.Set("console", console)
}
