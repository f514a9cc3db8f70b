// Package cmd implements the agentloop command line.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/agentloop/internal/config"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfgFile  string
	verbose  bool
	logLevel = new(slog.LevelVar)
)

var rootCmd = &cobra.Command{
	Use:   "agentloop",
	Short: "Run LLM agents that call tools in a reasoning loop",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(os.Stderr, "", "")
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.agentloop/config.json5, or $AGENTLOOP_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(agentCmd())
	rootCmd.AddCommand(toolsCmd())
	rootCmd.AddCommand(knowledgeCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(mcpCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(doctorCmd())
	rootCmd.AddCommand(versionCmd())
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("agentloop " + Version)
		},
	}
}

func resolveConfigPath() string {
	return config.ResolvePath(cfgFile)
}

// mustLoadConfig loads the config and applies its log settings, exiting on error.
func mustLoadConfig() *config.Config {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %s\n", err)
		os.Exit(1)
	}
	setupLogging(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	return cfg
}

// setupLogging installs the default slog handler. Logs always go to w
// (stderr) so stdout stays clean for command output and MCP stdio.
func setupLogging(w io.Writer, level, format string) {
	logLevel.Set(parseLevel(level))
	if verbose {
		logLevel.Set(slog.LevelDebug)
	}
	opts := &slog.HandlerOptions{Level: logLevel}
	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(h))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
