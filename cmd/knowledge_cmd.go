package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/agentloop/internal/config"
	"github.com/nextlevelbuilder/agentloop/internal/store"
)

func knowledgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "knowledge",
		Short: "Manage per-agent knowledge (requires knowledge.enabled)",
	}
	cmd.AddCommand(knowledgeIngestCmd())
	cmd.AddCommand(knowledgeSearchCmd())
	cmd.AddCommand(knowledgeSourcesCmd())
	cmd.AddCommand(knowledgeDeleteCmd())
	return cmd
}

// openKnowledge returns the app and the named agent, exiting when knowledge
// is disabled or the agent does not exist.
func openKnowledge(ctx context.Context, agentName string) (*app, *store.AgentData) {
	a := openApp(ctx, false)
	if a.knowledge == nil {
		a.Close()
		fmt.Fprintln(os.Stderr, "Error: knowledge is disabled (set knowledge.enabled in the config)")
		os.Exit(1)
	}
	ag, err := a.stores.Agents.GetByName(ctx, agentName)
	if err != nil {
		a.Close()
		exitNotFound("agent", agentName, err)
	}
	return a, ag
}

func knowledgeIngestCmd() *cobra.Command {
	var (
		agentName string
		source    string
	)
	cmd := &cobra.Command{
		Use:   "ingest FILE...",
		Short: "Index text files into an agent's knowledge; re-ingesting a source replaces it",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			a, ag := openKnowledge(ctx, agentName)
			defer a.Close()

			if source != "" && len(args) > 1 {
				fmt.Fprintln(os.Stderr, "Error: --source only applies to a single file")
				os.Exit(1)
			}
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error: %s\n", err)
					os.Exit(1)
				}
				name := source
				if name == "" {
					name = path
				}
				name = config.NormalizeSourceName(name)
				n, err := a.knowledge.Ingest(ctx, ag.ID, name, string(data))
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error: ingest %s: %s\n", path, err)
					os.Exit(1)
				}
				fmt.Printf("%s: %d chunks\n", name, n)
			}
		},
	}
	cmd.Flags().StringVarP(&agentName, "agent", "a", "", "agent name (required)")
	cmd.Flags().StringVar(&source, "source", "", "source name (default: file name)")
	_ = cmd.MarkFlagRequired("agent")
	return cmd
}

func knowledgeSearchCmd() *cobra.Command {
	var (
		agentName  string
		topK       int
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "search QUERY...",
		Short: "Search an agent's knowledge",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			a, ag := openKnowledge(ctx, agentName)
			defer a.Close()

			results, err := a.knowledge.Search(ctx, ag.ID, strings.Join(args, " "), topK)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
			if jsonOutput {
				data, _ := json.MarshalIndent(results, "", "  ")
				fmt.Println(string(data))
				return
			}
			if len(results) == 0 {
				fmt.Println("No matches.")
				return
			}
			for i, r := range results {
				fmt.Printf("[%d] %s (score %.3f)\n%s\n\n", i+1, r.Source, r.Score, r.Content)
			}
		},
	}
	cmd.Flags().StringVarP(&agentName, "agent", "a", "", "agent name (required)")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 3, "number of results")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	_ = cmd.MarkFlagRequired("agent")
	return cmd
}

func knowledgeSourcesCmd() *cobra.Command {
	var agentName string
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List the ingested sources of an agent",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			a, ag := openKnowledge(ctx, agentName)
			defer a.Close()

			sources, err := a.knowledge.Sources(ctx, ag.ID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
			names := make([]string, 0, len(sources))
			for name := range sources {
				names = append(names, name)
			}
			sort.Strings(names)
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SOURCE\tCHUNKS")
			for _, name := range names {
				fmt.Fprintf(w, "%s\t%d\n", name, sources[name])
			}
			w.Flush()
		},
	}
	cmd.Flags().StringVarP(&agentName, "agent", "a", "", "agent name (required)")
	_ = cmd.MarkFlagRequired("agent")
	return cmd
}

func knowledgeDeleteCmd() *cobra.Command {
	var agentName string
	cmd := &cobra.Command{
		Use:   "delete SOURCE",
		Short: "Remove one source from an agent's knowledge",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			a, ag := openKnowledge(ctx, agentName)
			defer a.Close()

			if err := a.knowledge.DeleteSource(ctx, ag.ID, args[0]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
			fmt.Printf("Source %q removed.\n", args[0])
		},
	}
	cmd.Flags().StringVarP(&agentName, "agent", "a", "", "agent name (required)")
	_ = cmd.MarkFlagRequired("agent")
	return cmd
}
