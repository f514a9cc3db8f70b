package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/agentloop/internal/providers"
	"github.com/nextlevelbuilder/agentloop/internal/store"
	"github.com/nextlevelbuilder/agentloop/internal/tools"
)

const (
	tracerName           = "github.com/nextlevelbuilder/agentloop/internal/agent"
	defaultKnowledgeTopK = 3
	executionLogTimeout  = 5 * time.Second
)

// LoopConfig wires a Loop to its collaborators.
type LoopConfig struct {
	Provider providers.Provider
	Resolver *tools.Resolver
	Invoker  *tools.Invoker

	// Tools is consulted by name when a call names a tool outside the
	// agent's resolved set and CatalogFallback is enabled.
	Tools           store.ToolStore
	CatalogFallback bool

	Knowledge store.KnowledgeSearcher // optional
	LogSink   store.ExecutionLogSink  // optional

	MaxIterations      int
	MaxToolResultChars int // 0 = default, < 0 = never trim

	InjectionAction string      // "off", "log", "warn" (default), "block"
	InputGuard      *InputGuard // optional; created from InjectionAction when nil

	Tracer trace.Tracer // optional; the global provider is used when nil
}

// Loop drives agent runs. It holds no per-run state, so one Loop serves
// any number of concurrent runs.
type Loop struct {
	provider        providers.Provider
	resolver        *tools.Resolver
	invoker         *tools.Invoker
	tools           store.ToolStore
	catalogFallback bool
	knowledge       store.KnowledgeSearcher
	logSink         store.ExecutionLogSink
	maxIterations   int
	trim            trimSettings
	injectionAction string
	inputGuard      *InputGuard
	tracer          trace.Tracer
}

func NewLoop(cfg LoopConfig) *Loop {
	action := cfg.InjectionAction
	if !ValidGuardAction(action) {
		action = GuardWarn
	}
	guard := cfg.InputGuard
	if guard == nil && action != GuardOff {
		guard = NewInputGuard(action)
	}
	if guard != nil {
		guard.action = action
	}
	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	logSink := cfg.LogSink
	if logSink == nil {
		logSink = store.NopLogSink{}
	}

	return &Loop{
		provider:        cfg.Provider,
		resolver:        cfg.Resolver,
		invoker:         cfg.Invoker,
		tools:           cfg.Tools,
		catalogFallback: cfg.CatalogFallback,
		knowledge:       cfg.Knowledge,
		logSink:         logSink,
		maxIterations:   maxIter,
		trim:            resolveTrimSettings(cfg.MaxToolResultChars),
		injectionAction: action,
		inputGuard:      guard,
		tracer:          tracer,
	}
}

// MaxIterations returns the iteration ceiling.
func (l *Loop) MaxIterations() int { return l.maxIterations }

// Run executes one agent run to a terminal state. A failed run returns the
// partial result together with a *RunError; done and exhausted runs return
// a nil error and are told apart by Status.
func (l *Loop) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	ag := req.Agent
	if ag == nil {
		return nil, errors.New("agent: run request has no agent")
	}
	runID := req.RunID
	if runID == uuid.Nil {
		runID = store.GenNewID()
	}
	model := ag.Model
	if model == "" && l.provider != nil {
		model = l.provider.DefaultModel()
	}

	ctx = store.WithRunID(ctx, runID)
	ctx = store.WithAgentID(ctx, ag.ID)
	ctx, span := l.tracer.Start(ctx, "agent.run", trace.WithAttributes(
		attribute.String("agentloop.run_id", runID.String()),
		attribute.String("agentloop.agent", ag.Name),
		attribute.String("gen_ai.request.model", model),
	))
	defer span.End()

	start := time.Now()
	res := &RunResult{RunID: runID, AgentID: ag.ID, Model: model}
	log := slog.With("run_id", runID, "agent", ag.Name)
	defer func() {
		span.SetAttributes(
			attribute.String("agentloop.status", string(res.Status)),
			attribute.Int("agentloop.iterations", res.Iterations),
		)
		l.recordExecution(ctx, ag, req.Input, res, time.Since(start))
	}()

	if l.provider == nil {
		return l.fail(span, log, res, errors.New("no model provider configured"))
	}
	if err := l.inputGuard.Check(req.Input); err != nil {
		return l.fail(span, log, res, err)
	}

	// INIT
	resolved := l.resolveTools(ctx, ag)
	knowledge := l.retrieve(ctx, ag, req.Input)
	prompt := BuildPrompt(PromptInput{Agent: ag, Input: req.Input, Tools: resolved, Knowledge: knowledge})
	res.Transcript = append(res.Transcript, providers.Message{Role: providers.RoleUser, Content: prompt})
	params := providers.ResolveParams(ag.Parameters)
	log.Info("agent run started", "model", model, "tools", len(resolved), "knowledge", len(knowledge))

	var lastReply string
	for res.Iterations < l.maxIterations {
		if err := ctx.Err(); err != nil {
			return l.fail(span, log, res, err)
		}
		res.Iterations++

		reply, err := l.callModel(ctx, model, res.Transcript, params, res.Iterations)
		if err != nil {
			return l.fail(span, log, res, err)
		}
		res.Transcript = append(res.Transcript, providers.Message{Role: providers.RoleModel, Content: reply})
		lastReply = reply

		calls := ParseFunctionCalls(reply)
		if len(calls) == 0 {
			res.Status = StatusDone
			res.Output = reply
			span.SetStatus(codes.Ok, "")
			log.Info("agent run done", "iterations", res.Iterations, "tool_calls", len(res.ToolLog))
			return res, nil
		}

		for _, call := range calls {
			if err := ctx.Err(); err != nil {
				return l.fail(span, log, res, err)
			}
			def, ok := l.lookupTool(ctx, resolved, call.Name)
			if !ok {
				log.Warn("agent: skipping call to unknown tool", "tool", call.Name, "iteration", res.Iterations)
				continue
			}
			rec, forLLM := l.invokeTool(ctx, def, call, res.Iterations)
			res.ToolLog = append(res.ToolLog, rec)
			res.Transcript = append(res.Transcript, providers.Message{
				Role:    providers.RoleUser,
				Content: ToolResultTurn(def.Name, trimToolResult(forLLM, l.trim)),
			})
		}
	}

	res.Status = StatusExhausted
	res.Output = lastReply
	res.Error = ErrMaxIterations.Error()
	span.SetStatus(codes.Error, ErrMaxIterations.Error())
	log.Warn("agent run exhausted", "iterations", res.Iterations, "tool_calls", len(res.ToolLog))
	return res, nil
}

func (l *Loop) fail(span trace.Span, log *slog.Logger, res *RunResult, err error) (*RunResult, error) {
	res.Status = StatusFailed
	res.Error = err.Error()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	log.Error("agent run failed", "iterations", res.Iterations, "error", err)
	return res, &RunError{RunID: res.RunID, Err: err}
}

func (l *Loop) resolveTools(ctx context.Context, ag *store.AgentData) []store.ToolDefinition {
	if l.resolver == nil || len(ag.ToolIDs) == 0 {
		return nil
	}
	return l.resolver.ResolveForAgent(ctx, ag.ToolIDs)
}

// retrieve fetches knowledge snippets. Failures are logged and yield none.
func (l *Loop) retrieve(ctx context.Context, ag *store.AgentData, input string) []store.KnowledgeResult {
	if !ag.KnowledgeEnabled || l.knowledge == nil {
		return nil
	}
	topK := ag.KnowledgeTopK
	if topK <= 0 {
		topK = defaultKnowledgeTopK
	}
	results, err := l.knowledge.Search(ctx, ag.ID, input, topK)
	if err != nil {
		slog.Warn("agent: knowledge search failed", "agent", ag.Name, "error", err)
		return nil
	}
	return results
}

func (l *Loop) lookupTool(ctx context.Context, resolved []store.ToolDefinition, name string) (store.ToolDefinition, bool) {
	if def, ok := tools.Lookup(resolved, name); ok {
		return def, true
	}
	if !l.catalogFallback || l.tools == nil {
		return store.ToolDefinition{}, false
	}
	def, err := l.tools.FindByName(ctx, name)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Warn("agent: tool lookup failed", "tool", name, "error", err)
		}
		return store.ToolDefinition{}, false
	}
	return *def, true
}

func (l *Loop) callModel(ctx context.Context, model string, transcript []providers.Message, params providers.GenerationParams, iteration int) (string, error) {
	ctx, span := l.tracer.Start(ctx, "llm.call", trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(
		attribute.String("gen_ai.system", l.provider.Name()),
		attribute.String("gen_ai.request.model", model),
		attribute.Int("agentloop.iteration", iteration),
		attribute.Int("agentloop.transcript_turns", len(transcript)),
	))
	defer span.End()

	start := time.Now()
	reply, err := l.provider.Send(ctx, providers.ChatRequest{Model: model, Messages: transcript, Params: params})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("model call (iteration %d): %w", iteration, err)
	}
	slog.Debug("agent: model replied", "iteration", iteration, "chars", len(reply), "duration_ms", time.Since(start).Milliseconds())
	return reply, nil
}

func (l *Loop) invokeTool(ctx context.Context, def store.ToolDefinition, call FunctionCall, iteration int) (ToolExecutionRecord, string) {
	ctx, span := l.tracer.Start(ctx, "tool.call", trace.WithAttributes(
		attribute.String("agentloop.tool.name", def.Name),
		attribute.Int("agentloop.iteration", iteration),
	))
	defer span.End()

	start := time.Now()
	var r *tools.Result
	if l.invoker == nil {
		r = tools.ErrorResult(def.Name, errors.New("no tool invoker configured"))
	} else {
		r = l.invoker.Invoke(ctx, def, call.Arguments)
	}
	if r.IsError {
		span.SetStatus(codes.Error, r.Message)
	}
	return ToolExecutionRecord{
		Iteration:  iteration,
		Tool:       def.Name,
		Arguments:  call.Arguments,
		Result:     r.Payload(),
		IsError:    r.IsError,
		DurationMS: time.Since(start).Milliseconds(),
	}, r.ForLLM
}

// recordExecution pushes the post-hoc log entry. Sink errors never change
// the run outcome.
func (l *Loop) recordExecution(ctx context.Context, ag *store.AgentData, input string, res *RunResult, elapsed time.Duration) {
	status := store.ExecStatusSuccess
	switch res.Status {
	case StatusFailed:
		status = store.ExecStatusError
	case StatusExhausted:
		status = store.ExecStatusIncomplete
	}
	entry := &store.ExecutionLog{
		ID:         store.GenNewID(),
		RunID:      res.RunID,
		AgentID:    ag.ID,
		Input:      input,
		Output:     res.Output,
		Error:      res.Error,
		Parameters: ag.Parameters,
		Model:      res.Model,
		Status:     status,
		Iterations: res.Iterations,
		ToolCalls:  len(res.ToolLog),
		DurationMS: elapsed.Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), executionLogTimeout)
	defer cancel()
	if err := l.logSink.Record(ctx, entry); err != nil {
		slog.Warn("agent: execution log write failed", "run_id", res.RunID, "error", err)
	}
}
