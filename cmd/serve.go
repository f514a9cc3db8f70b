package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/agentloop/internal/agent"
	"github.com/nextlevelbuilder/agentloop/internal/config"
	agenthttp "github.com/nextlevelbuilder/agentloop/internal/http"
)

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API with config hot reload",
		Run: func(cmd *cobra.Command, args []string) {
			if err := runServe(addr); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default http.addr from config)")
	return cmd
}

func runServe(addr string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := openApp(ctx, true)
	defer a.Close()

	tel := initTelemetry(ctx, a.cfg)
	defer tel.shutdown()

	runner := agent.NewRunner(a.newLoop(tel.tracer), a.stores.Agents)
	runner.SetTTL(time.Duration(a.cfg.Tools.ResolverTTLSec) * time.Second)
	runner.SetMaxConcurrent(a.cfg.Loop.MaxConcurrentRuns)
	if addr == "" {
		addr = a.cfg.HTTP.Addr
	}
	var index agenthttp.KnowledgeIndex
	if a.knowledge != nil {
		index = a.knowledge
	}
	srv := agenthttp.NewServer(runner, a.stores.Agents, a.stores.Tools, a.invoker, index, agenthttp.Options{
		Addr:           addr,
		RateLimitRPS:   a.cfg.HTTP.RateLimitRPS,
		RateLimitBurst: a.cfg.HTTP.RateLimitBurst,
		MaxBodyBytes:   a.cfg.HTTP.MaxBodyBytes,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})

	if a.limiter != nil {
		g.Go(func() error {
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					a.limiter.Cleanup()
				}
			}
		})
	}

	cfgPath := resolveConfigPath()
	watcher, err := config.NewWatcher(cfgPath)
	if err != nil {
		slog.Warn("config hot reload disabled", "error", err)
	} else {
		watcher.OnChange(func(cfg *config.Config) {
			logLevel.Set(parseLevel(cfg.Log.Level))
			a.cfg.Loop = cfg.Loop
			runner.SetLoop(a.newLoop(tel.tracer))
			runner.SetMaxConcurrent(cfg.Loop.MaxConcurrentRuns)
			slog.Info("config reloaded",
				"max_iterations", cfg.Loop.MaxIterations,
				"guard_action", cfg.Loop.GuardAction,
				"log_level", cfg.Log.Level)
		})
		if err := watcher.Start(); err != nil {
			slog.Warn("config hot reload disabled", "error", err)
		} else {
			g.Go(func() error {
				<-gctx.Done()
				watcher.Stop()
				return nil
			})
		}
	}

	return g.Wait()
}
