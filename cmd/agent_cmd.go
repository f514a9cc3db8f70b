package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/agentloop/internal/store"
)

func agentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage agents: list, show, add, delete",
	}
	cmd.AddCommand(agentListCmd())
	cmd.AddCommand(agentShowCmd())
	cmd.AddCommand(agentAddCmd())
	cmd.AddCommand(agentDeleteCmd())
	return cmd
}

// --- agent list ---

func agentListCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all agents",
		Run: func(cmd *cobra.Command, args []string) {
			runAgentList(jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func runAgentList(jsonOutput bool) {
	ctx := context.Background()
	a := openApp(ctx, false)
	defer a.Close()

	agents, err := a.stores.Agents.List(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(agents, "", "  ")
		fmt.Println(string(data))
		return
	}
	if len(agents) == 0 {
		fmt.Println("No agents configured.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tROLE\tMODEL\tTOOLS\tKNOWLEDGE")
	for _, ag := range agents {
		kn := ""
		if ag.KnowledgeEnabled {
			kn = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", ag.Name, truncate(ag.Role, 40), ag.Model, len(ag.ToolIDs), kn)
	}
	w.Flush()
}

// --- agent show ---

func agentShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Show one agent with its resolved tools",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			a := openApp(ctx, false)
			defer a.Close()

			ag, err := a.stores.Agents.GetByName(ctx, args[0])
			if err != nil {
				exitNotFound("agent", args[0], err)
			}
			resolved := a.resolver.ResolveForAgent(ctx, ag.ToolIDs)
			names := make([]string, 0, len(resolved))
			for _, def := range resolved {
				names = append(names, def.Name)
			}
			out := struct {
				*store.AgentData
				Tools []string `json:"tools"`
			}{ag, names}
			data, _ := json.MarshalIndent(out, "", "  ")
			fmt.Println(string(data))
		},
	}
}

// --- agent add ---

func agentAddCmd() *cobra.Command {
	var (
		ag        store.AgentData
		toolNames []string
		params    string
	)
	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Create or update an agent",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			a := openApp(ctx, false)
			defer a.Close()

			ag.Name = args[0]
			if params != "" {
				if err := json.Unmarshal([]byte(params), &ag.Parameters); err != nil {
					fmt.Fprintf(os.Stderr, "Error: --params must be a JSON object: %s\n", err)
					os.Exit(1)
				}
			}
			ids, err := toolIDsByName(ctx, a.stores.Tools, toolNames)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
			ag.ToolIDs = ids

			if existing, err := a.stores.Agents.GetByName(ctx, ag.Name); err == nil {
				ag.ID = existing.ID
			}
			if err := a.stores.Agents.Upsert(ctx, &ag); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
			fmt.Printf("Agent %q saved (id %s).\n", ag.Name, ag.ID)
		},
	}
	f := cmd.Flags()
	f.StringVar(&ag.Role, "role", "", "who the agent is")
	f.StringVar(&ag.Goal, "goal", "", "what the agent tries to achieve")
	f.StringVar(&ag.Task, "task", "", "task instructions")
	f.StringVar(&ag.ExpectedOutput, "expected-output", "", "description of the expected answer")
	f.StringVar(&ag.Model, "model", "", "model id (default: provider default)")
	f.StringSliceVar(&toolNames, "tools", nil, "comma-separated tool names")
	f.StringVar(&params, "params", "", `JSON object of parameters, e.g. {"temperature":0.2}`)
	f.BoolVar(&ag.KnowledgeEnabled, "knowledge", false, "retrieve knowledge snippets for each run")
	f.IntVar(&ag.KnowledgeTopK, "knowledge-top-k", 0, "snippets per run (default 3)")
	return cmd
}

func toolIDsByName(ctx context.Context, ts store.ToolStore, names []string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		def, err := ts.FindByName(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("tool %q: %w", name, err)
		}
		ids = append(ids, def.ID)
	}
	return ids, nil
}

// --- agent delete ---

func agentDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete an agent",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			a := openApp(ctx, false)
			defer a.Close()

			ag, err := a.stores.Agents.GetByName(ctx, args[0])
			if err != nil {
				exitNotFound("agent", args[0], err)
			}
			if err := a.stores.Agents.Delete(ctx, ag.ID); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
			fmt.Printf("Agent %q deleted.\n", ag.Name)
		},
	}
}

func exitNotFound(kind, name string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		fmt.Fprintf(os.Stderr, "Error: %s %q not found\n", kind, name)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
	os.Exit(1)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
