package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/agentloop/internal/mcp"
)

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the tool catalog over MCP on stdin/stdout",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			a := openApp(ctx, false)
			defer a.Close()

			srv, err := mcp.NewServer(ctx, a.stores.Tools, a.invoker, Version)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
			if err := srv.ServeStdio(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
		},
	}
}
