package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/agentloop/internal/agent"
	"github.com/nextlevelbuilder/agentloop/internal/config"
	"github.com/nextlevelbuilder/agentloop/internal/knowledge"
	"github.com/nextlevelbuilder/agentloop/internal/providers"
	"github.com/nextlevelbuilder/agentloop/internal/store"
	"github.com/nextlevelbuilder/agentloop/internal/store/file"
	"github.com/nextlevelbuilder/agentloop/internal/store/pg"
	"github.com/nextlevelbuilder/agentloop/internal/store/redisstore"
	"github.com/nextlevelbuilder/agentloop/internal/store/sqlite"
	"github.com/nextlevelbuilder/agentloop/internal/tools"
)

// app holds every component built from the config for one command.
type app struct {
	cfg       *config.Config
	stores    *store.Stores
	knowledge *knowledge.Store // nil when disabled
	registry  *tools.Registry
	invoker   *tools.Invoker
	resolver  *tools.Resolver
	limiter   *tools.ToolRateLimiter // nil when tools.rate_limit_per_minute is 0
	provider  providers.Provider     // nil unless requested

	closers []func() error
}

type appOptions struct {
	withProvider bool
}

// newApp opens the stores, seeds builtins and, when asked, builds the
// configured model provider.
func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	a := &app{cfg: cfg, registry: tools.DefaultRegistry()}

	stores, err := openStores(cfg.Database)
	if err != nil {
		return nil, err
	}
	a.stores = stores
	if stores.Close != nil {
		a.closers = append(a.closers, stores.Close)
	}

	sink, closeSink, err := openLogSink(ctx, cfg.ExecLog, stores)
	if err != nil {
		a.Close()
		return nil, err
	}
	stores.ExecLogs = sink
	if closeSink != nil {
		a.closers = append(a.closers, closeSink)
	}

	if cfg.Knowledge.Enabled {
		if err := ensureDir(cfg.Knowledge.Path); err != nil {
			a.Close()
			return nil, err
		}
		ks, err := knowledge.Open(cfg.Knowledge.Path, cfg.Knowledge.MaxChunkLen)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open knowledge index: %w", err)
		}
		a.knowledge = ks
		stores.Knowledge = ks
		a.closers = append(a.closers, ks.Close)
	}

	stats, err := tools.SeedBuiltins(ctx, stores.Tools, a.registry)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("seed builtins: %w", err)
	}
	if stats.Created+stats.Updated+stats.Duplicates+stats.Deprecated > 0 {
		slog.Info("builtin tools reconciled",
			"created", stats.Created, "updated", stats.Updated,
			"duplicates", stats.Duplicates, "deprecated", stats.Deprecated)
	}

	a.invoker = tools.NewInvoker(a.registry, tools.NewScriptRunner(cfg.Tools.ScriptCacheSize))
	if cfg.Tools.TimeoutSec > 0 {
		a.invoker.SetTimeout(time.Duration(cfg.Tools.TimeoutSec) * time.Second)
	}
	a.invoker.SetScrubbing(cfg.Tools.ScrubCredentials)
	if rl := tools.NewToolRateLimiter(cfg.Tools.RateLimitPerMinute, time.Minute); rl != nil {
		a.invoker.SetRateLimiter(rl)
		a.limiter = rl
	}
	a.resolver = tools.NewResolver(stores.Tools, time.Duration(cfg.Tools.ResolverTTLSec)*time.Second)

	if opts.withProvider {
		p, err := buildProvider(ctx, cfg, cfg.Providers.Default)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.provider = p
	}
	return a, nil
}

// newLoop builds an orchestrator from the current loop settings.
func (a *app) newLoop(tracer trace.Tracer) *agent.Loop {
	lc := agent.LoopConfig{
		Provider:           a.provider,
		Resolver:           a.resolver,
		Invoker:            a.invoker,
		Tools:              a.stores.Tools,
		CatalogFallback:    a.cfg.Loop.CatalogFallback,
		LogSink:            a.stores.ExecLogs,
		MaxIterations:      a.cfg.Loop.MaxIterations,
		MaxToolResultChars: a.cfg.Loop.MaxToolResultChars,
		InjectionAction:    a.cfg.Loop.GuardAction,
		Tracer:             tracer,
	}
	if a.knowledge != nil {
		lc.Knowledge = a.knowledge
	}
	return agent.NewLoop(lc)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Debug("close failed", "error", err)
		}
	}
	a.closers = nil
}

func openStores(db config.DatabaseConfig) (*store.Stores, error) {
	switch db.Driver {
	case "sqlite":
		if err := ensureDir(db.SQLitePath); err != nil {
			return nil, err
		}
		d, err := sqlite.Open(db.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return sqlite.NewStores(d), nil
	case "postgres":
		s, err := pg.NewStores(db.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return s, nil
	default:
		if err := ensureDir(db.CatalogPath); err != nil {
			return nil, err
		}
		cat, err := file.NewCatalogStore(db.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("open catalog: %w", err)
		}
		return &store.Stores{Tools: cat.Tools(), Agents: cat.Agents()}, nil
	}
}

// openLogSink picks the execution-log sink. "store" keeps the sink of the
// database driver, falling back to the JSONL file for the file driver.
func openLogSink(ctx context.Context, cfg config.ExecLogConfig, stores *store.Stores) (store.ExecutionLogSink, func() error, error) {
	switch cfg.Sink {
	case "none":
		return store.NopLogSink{}, nil, nil
	case "redis":
		s, err := redisstore.NewLogSink(ctx, redisstore.Config{URL: cfg.RedisURL, Stream: cfg.Stream, MaxLen: cfg.MaxLen})
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "file":
		return file.NewLogSink(cfg.Path), nil, nil
	default:
		if stores.ExecLogs != nil {
			return stores.ExecLogs, nil, nil
		}
		return file.NewLogSink(cfg.Path), nil, nil
	}
}

func buildProvider(ctx context.Context, cfg *config.Config, kind string) (providers.Provider, error) {
	pc, ok := cfg.Provider(kind)
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", kind)
	}
	retry := providers.DefaultRetryConfig()
	retry.MaxRetries = pc.MaxRetries
	p, err := providers.New(ctx, providers.Config{
		Kind:         kind,
		APIKey:       pc.APIKey,
		BaseURL:      pc.BaseURL,
		DefaultModel: pc.Model,
		Timeout:      time.Duration(pc.TimeoutSec) * time.Second,
		RPS:          pc.RPS,
		Burst:        pc.Burst,
		Retry:        retry,
	})
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", kind, err)
	}
	return p, nil
}

func ensureDir(path string) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	return nil
}

// openApp loads config and builds the app, exiting on failure.
func openApp(ctx context.Context, withProvider bool) *app {
	cfg := mustLoadConfig()
	a, err := newApp(ctx, cfg, appOptions{withProvider: withProvider})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	return a
}
