package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/agentloop/internal/config"
	"github.com/nextlevelbuilder/agentloop/pkg/protocol"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check environment, configuration and storage health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("agentloop doctor")
	fmt.Printf("  Version:  %s (api %s)\n", Version, protocol.APIVersion)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	// Config
	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, using defaults)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	// Providers
	fmt.Println()
	fmt.Printf("  Providers (default %s):\n", cfg.Providers.Default)
	checkProvider("Gemini", cfg.Providers.Gemini.APIKey)
	checkProvider("OpenAI", cfg.Providers.OpenAI.APIKey)
	checkProvider("Anthropic", cfg.Providers.Anthropic.APIKey)
	checkProvider("DashScope", cfg.Providers.DashScope.APIKey)

	// Storage
	fmt.Println()
	fmt.Println("  Storage:")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a, err := newApp(ctx, cfg, appOptions{})
	if err != nil {
		fmt.Printf("    %-12s %s\n", cfg.Database.Driver+":", err)
		return
	}
	defer a.Close()
	checkCount("Tools:", func() (int, error) {
		defs, err := a.stores.Tools.List(ctx)
		return len(defs), err
	})
	checkCount("Agents:", func() (int, error) {
		ags, err := a.stores.Agents.List(ctx)
		return len(ags), err
	})
	fmt.Printf("    %-12s %s\n", "Exec log:", cfg.ExecLog.Sink)
	if a.knowledge != nil {
		fmt.Printf("    %-12s %s (OK)\n", "Knowledge:", cfg.Knowledge.Path)
	} else {
		fmt.Printf("    %-12s disabled\n", "Knowledge:")
	}

	// Telemetry
	fmt.Println()
	if cfg.Telemetry.Enabled {
		fmt.Printf("  Telemetry: %s (%s)\n", cfg.Telemetry.Endpoint, cfg.Telemetry.Protocol)
	} else {
		fmt.Println("  Telemetry: disabled")
	}

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

func checkProvider(name, apiKey string) {
	if len(apiKey) > 8 {
		maskedKey := apiKey[:4] + strings.Repeat("*", len(apiKey)-8) + apiKey[len(apiKey)-4:]
		fmt.Printf("    %-12s %s\n", name+":", maskedKey)
	} else if apiKey != "" {
		fmt.Printf("    %-12s ****\n", name+":")
	} else {
		fmt.Printf("    %-12s (not configured)\n", name+":")
	}
}

func checkCount(label string, count func() (int, error)) {
	n, err := count()
	if err != nil {
		fmt.Printf("    %-12s ERROR %s\n", label, err)
		return
	}
	fmt.Printf("    %-12s %d\n", label, n)
}
