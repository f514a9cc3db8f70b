package otelexport

import (
	"context"
	"testing"

	"github.com/google/uuid"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/agentloop/internal/store"
)

func TestUUIDToTraceID(t *testing.T) {
	id := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	tid := uuidToTraceID(id)
	if tid == (trace.TraceID{}) {
		t.Error("expected non-zero trace ID")
	}
	if tid.String() != "550e8400e29b41d4a716446655440000" {
		t.Errorf("trace id = %s", tid)
	}
}

func TestRunIDGenerator_UsesRunID(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sr),
		sdktrace.WithIDGenerator(RunIDGenerator{}),
	)
	runID := store.GenNewID()

	ctx := store.WithRunID(context.Background(), runID)
	ctx, root := tp.Tracer("test").Start(ctx, "agent.run")
	_, child := tp.Tracer("test").Start(ctx, "llm.call")
	child.End()
	root.End()

	spans := sr.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	want := trace.TraceID(runID)
	for _, s := range spans {
		if s.SpanContext().TraceID() != want {
			t.Errorf("%s: trace id %s, want %s", s.Name(), s.SpanContext().TraceID(), want)
		}
	}
	if spans[0].SpanContext().SpanID() == spans[1].SpanContext().SpanID() {
		t.Error("span ids must differ")
	}
}

func TestRunIDGenerator_RandomWithoutRunID(t *testing.T) {
	g := RunIDGenerator{}
	a, _ := g.NewIDs(context.Background())
	b, _ := g.NewIDs(context.Background())
	if !a.IsValid() || !b.IsValid() || a == b {
		t.Errorf("expected distinct valid ids, got %s and %s", a, b)
	}
}

func TestNew_EmptyEndpoint(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil {
		t.Error("expected error for empty endpoint")
	}
}

func TestNew_UnknownProtocol(t *testing.T) {
	_, err := New(context.Background(), Config{Endpoint: "localhost:4317", Protocol: "carrier-pigeon"})
	if err == nil {
		t.Error("expected error for unknown protocol")
	}
}

func TestNew_HTTPDoesNotDial(t *testing.T) {
	exp, err := New(context.Background(), Config{Endpoint: "localhost:4318", Protocol: "http", Insecure: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if exp.Tracer("x") == nil {
		t.Error("nil tracer")
	}
	if err := exp.Shutdown(context.Background()); err != nil {
		t.Logf("shutdown: %v", err)
	}
}

func TestExporter_NilSafe(t *testing.T) {
	var exp *Exporter
	exp.Install()
	if err := exp.Shutdown(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if exp.Tracer("x") == nil {
		t.Error("nil exporter should fall back to the global tracer")
	}
}
