// Package otelexport installs an OpenTelemetry tracer provider that ships
// agent run spans over OTLP. Root spans of a run reuse the run UUID as their
// trace ID so traces can be looked up from execution logs.
package otelexport

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/agentloop/internal/store"
)

// Config configures the OpenTelemetry OTLP exporter.
type Config struct {
	Endpoint       string            // OTLP endpoint (e.g. "localhost:4317")
	Protocol       string            // "grpc" (default) or "http"
	Insecure       bool              // skip TLS for local dev
	ServiceName    string            // OTEL service name (default "agentloop")
	ServiceVersion string            // default "dev"
	Headers        map[string]string // extra headers (auth tokens, etc.)
}

// Exporter owns the tracer provider.
type Exporter struct {
	provider *sdktrace.TracerProvider
}

// New creates an OTLP exporter with the given config.
func New(ctx context.Context, cfg Config) (*Exporter, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("OTLP endpoint is required")
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "agentloop"
	}
	version := cfg.ServiceVersion
	if version == "" {
		version = "dev"
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch cfg.Protocol {
	case "http":
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(cfg.Endpoint),
		}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
		}
		exporter, err = otlptracehttp.New(ctx, opts...)
	case "", "grpc":
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unknown OTLP protocol %q", cfg.Protocol)
	}
	if err != nil {
		return nil, fmt.Errorf("otel exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithMaxExportBatchSize(100),
			sdktrace.WithBatchTimeout(5*time.Second),
		),
		sdktrace.WithResource(res),
		sdktrace.WithIDGenerator(RunIDGenerator{}),
	)
	return &Exporter{provider: tp}, nil
}

// Install makes the exporter's provider the global one.
func (e *Exporter) Install() {
	if e == nil {
		return
	}
	otel.SetTracerProvider(e.provider)
}

// Tracer returns a named tracer from the provider.
func (e *Exporter) Tracer(name string) trace.Tracer {
	if e == nil {
		return otel.Tracer(name)
	}
	return e.provider.Tracer(name)
}

// Shutdown gracefully shuts down the OTel exporter, flushing remaining spans.
func (e *Exporter) Shutdown(ctx context.Context) error {
	if e == nil {
		return nil
	}
	slog.Info("otel exporter shutting down")
	return e.provider.Shutdown(ctx)
}

// RunIDGenerator derives root trace IDs from the run UUID carried in the
// context and falls back to random IDs.
type RunIDGenerator struct{}

var _ sdktrace.IDGenerator = RunIDGenerator{}

func (RunIDGenerator) NewIDs(ctx context.Context) (trace.TraceID, trace.SpanID) {
	if id := store.RunIDFromContext(ctx); id != uuid.Nil {
		return uuidToTraceID(id), randomSpanID()
	}
	var tid trace.TraceID
	for !tid.IsValid() {
		_, _ = rand.Read(tid[:])
	}
	return tid, randomSpanID()
}

func (RunIDGenerator) NewSpanID(context.Context, trace.TraceID) trace.SpanID {
	return randomSpanID()
}

func randomSpanID() trace.SpanID {
	var sid trace.SpanID
	for !sid.IsValid() {
		_, _ = rand.Read(sid[:])
	}
	return sid
}

// uuidToTraceID converts a UUID to an OTel TraceID (16 bytes).
func uuidToTraceID(id [16]byte) trace.TraceID {
	return trace.TraceID(id)
}
