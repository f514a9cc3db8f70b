package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nextlevelbuilder/agentloop/internal/store"
	"github.com/nextlevelbuilder/agentloop/internal/store/file"
	"github.com/nextlevelbuilder/agentloop/internal/tools"
)

func toolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Manage the tool catalog",
	}
	cmd.AddCommand(toolsListCmd())
	cmd.AddCommand(toolsShowCmd())
	cmd.AddCommand(toolsAddCmd())
	cmd.AddCommand(toolsDeleteCmd())
	cmd.AddCommand(toolsInvokeCmd())
	cmd.AddCommand(toolsSeedCmd())
	cmd.AddCommand(toolsExportCmd())
	cmd.AddCommand(toolsImportCmd())
	return cmd
}

func toolsListCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog tools",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			a := openApp(ctx, false)
			defer a.Close()

			defs, err := a.stores.Tools.List(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
			if jsonOutput {
				data, _ := json.MarshalIndent(defs, "", "  ")
				fmt.Println(string(data))
				return
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tKIND\tPARAMS\tDESCRIPTION")
			for _, def := range defs {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", def.Name, tools.Kind(def), len(def.Parameters), truncate(def.Description, 60))
			}
			w.Flush()
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func toolsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Show a tool definition and its input schema",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			a := openApp(ctx, false)
			defer a.Close()

			def, err := a.stores.Tools.FindByName(ctx, args[0])
			if err != nil {
				exitNotFound("tool", args[0], err)
			}
			out := struct {
				*store.ToolDefinition
				Kind        string         `json:"kind"`
				InputSchema map[string]any `json:"input_schema"`
			}{def, tools.Kind(*def), tools.InputSchema(*def)}
			data, _ := json.MarshalIndent(out, "", "  ")
			fmt.Println(string(data))
		},
	}
}

func toolsAddCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "add -f TOOL.yaml",
		Short: "Create or update a tool from a YAML definition",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			a := openApp(ctx, false)
			defer a.Close()

			data, err := os.ReadFile(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
			var def store.ToolDefinition
			if err := yaml.Unmarshal(data, &def); err != nil {
				fmt.Fprintf(os.Stderr, "Error: parse %s: %s\n", path, err)
				os.Exit(1)
			}
			if existing, err := a.stores.Tools.FindByName(ctx, def.Name); err == nil {
				def.ID = existing.ID
			}
			if err := a.stores.Tools.Upsert(ctx, &def); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
			fmt.Printf("Tool %q saved (id %s).\n", def.Name, def.ID)
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "", "YAML tool definition (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func toolsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a tool",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			a := openApp(ctx, false)
			defer a.Close()

			def, err := a.stores.Tools.FindByName(ctx, args[0])
			if err != nil {
				exitNotFound("tool", args[0], err)
			}
			if err := a.stores.Tools.Delete(ctx, def.ID); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
			fmt.Printf("Tool %q deleted.\n", def.Name)
		},
	}
}

func toolsInvokeCmd() *cobra.Command {
	var rawArgs string
	cmd := &cobra.Command{
		Use:   "invoke NAME",
		Short: "Invoke a tool directly and print the normalized result",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			a := openApp(ctx, false)
			defer a.Close()

			def, err := a.stores.Tools.FindByName(ctx, args[0])
			if err != nil {
				exitNotFound("tool", args[0], err)
			}
			toolArgs := map[string]any{}
			if rawArgs != "" {
				if err := json.Unmarshal([]byte(rawArgs), &toolArgs); err != nil {
					fmt.Fprintf(os.Stderr, "Error: --args must be a JSON object: %s\n", err)
					os.Exit(1)
				}
			}
			result := a.invoker.Invoke(ctx, *def, toolArgs)
			fmt.Println(result.ForLLM)
			if result.IsError {
				os.Exit(1)
			}
		},
	}
	cmd.Flags().StringVar(&rawArgs, "args", "", `JSON object of arguments, e.g. {"expression":"2+2"}`)
	return cmd
}

func toolsSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Reconcile builtin tools with the catalog",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			// newApp already seeds; run once more to report the idempotent result.
			a := openApp(ctx, false)
			defer a.Close()
			stats, err := tools.SeedBuiltins(ctx, a.stores.Tools, a.registry)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
			fmt.Printf("Builtins: %d registered, %d created, %d updated, %d duplicates removed, %d deprecated removed.\n",
				a.registry.Count(), stats.Created, stats.Updated, stats.Duplicates, stats.Deprecated)
		},
	}
}

func toolsExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export FILE",
		Short: "Export every tool and agent as a YAML bundle (- for stdout)",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			a := openApp(ctx, false)
			defer a.Close()

			out := os.Stdout
			if args[0] != "-" {
				f, err := os.Create(args[0])
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error: %s\n", err)
					os.Exit(1)
				}
				defer f.Close()
				out = f
			}
			if err := file.Export(ctx, a.stores.Tools, a.stores.Agents, out); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
		},
	}
}

func toolsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import a YAML bundle of tools and agents",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			a := openApp(ctx, false)
			defer a.Close()

			f, err := os.Open(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
			defer f.Close()
			stats, err := file.Import(ctx, f, a.stores.Tools, a.stores.Agents)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
			fmt.Printf("Imported %d tools and %d agents.\n", stats.Tools, stats.Agents)
			if stats.UnresolvedRefs > 0 {
				fmt.Fprintf(os.Stderr, "Warning: %d agent tool references could not be resolved.\n", stats.UnresolvedRefs)
			}
		},
	}
}
