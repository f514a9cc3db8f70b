package cmd

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/agentloop/internal/config"
	"github.com/nextlevelbuilder/agentloop/internal/tracing/otelexport"
)

const tracerName = "github.com/nextlevelbuilder/agentloop"

type telemetry struct {
	exp    *otelexport.Exporter
	tracer trace.Tracer // nil = global no-op provider
}

// initTelemetry creates and installs the OTLP exporter when the telemetry
// config is enabled. Failures only disable export.
func initTelemetry(ctx context.Context, cfg *config.Config) *telemetry {
	if !cfg.Telemetry.Enabled || cfg.Telemetry.Endpoint == "" {
		slog.Debug("OTel export not enabled (set telemetry.enabled + telemetry.endpoint)")
		return &telemetry{}
	}

	exp, err := otelexport.New(ctx, otelexport.Config{
		Endpoint:       cfg.Telemetry.Endpoint,
		Protocol:       cfg.Telemetry.Protocol,
		Insecure:       cfg.Telemetry.Insecure,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: Version,
		Headers:        cfg.Telemetry.Headers,
	})
	if err != nil {
		slog.Warn("failed to create OTel exporter", "error", err)
		return &telemetry{}
	}
	exp.Install()
	slog.Info("OpenTelemetry OTLP export enabled",
		"endpoint", cfg.Telemetry.Endpoint,
		"protocol", cfg.Telemetry.Protocol,
	)
	return &telemetry{exp: exp, tracer: exp.Tracer(tracerName)}
}

// shutdown flushes pending spans.
func (t *telemetry) shutdown() {
	if t.exp == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := t.exp.Shutdown(ctx); err != nil {
		slog.Warn("OTel shutdown failed", "error", err)
	}
}
