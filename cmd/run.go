package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/agentloop/internal/agent"
	"github.com/nextlevelbuilder/agentloop/internal/store"
)

// Exit codes of `agentloop run`.
const (
	exitFailed    = 1
	exitExhausted = 2
)

func runCmd() *cobra.Command {
	var (
		agentName  string
		message    string
		jsonOutput bool
		timeout    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an agent once and print its answer",
		Long: "Run an agent once and print its answer. The input comes from -m, or from\n" +
			"stdin when -m is \"-\". Exits 1 when the run fails and 2 when it hits the\n" +
			"iteration ceiling.",
		Run: func(cmd *cobra.Command, args []string) {
			input, err := readInput(message, os.Stdin)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
			os.Exit(runAgent(agentName, input, jsonOutput, timeout))
		},
	}
	cmd.Flags().StringVarP(&agentName, "agent", "a", "", "agent name (required)")
	cmd.Flags().StringVarP(&message, "message", "m", "", "input text, or - to read stdin (required)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the full run result as JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "abort the run after this long (0 = no limit)")
	_ = cmd.MarkFlagRequired("agent")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func readInput(message string, stdin io.Reader) (string, error) {
	if message != "-" {
		if strings.TrimSpace(message) == "" {
			return "", errors.New("input is empty")
		}
		return message, nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	input := strings.TrimSpace(string(data))
	if input == "" {
		return "", errors.New("input is empty")
	}
	return input, nil
}

func runAgent(name, input string, jsonOutput bool, timeout time.Duration) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	a := openApp(ctx, true)
	defer a.Close()

	tel := initTelemetry(ctx, a.cfg)
	defer tel.shutdown()

	runner := agent.NewRunner(a.newLoop(tel.tracer), a.stores.Agents)
	res, err := runner.Run(ctx, name, input)
	if res == nil {
		if errors.Is(err, store.ErrNotFound) {
			fmt.Fprintf(os.Stderr, "Error: agent %q not found\n", name)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		return exitFailed
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(res, "", "  ")
		fmt.Println(string(data))
	} else {
		printRunResult(os.Stdout, os.Stderr, res)
	}
	return exitCode(res.Status)
}

func exitCode(status agent.Status) int {
	switch status {
	case agent.StatusDone:
		return 0
	case agent.StatusExhausted:
		return exitExhausted
	default:
		return exitFailed
	}
}

func printRunResult(stdout, stderr io.Writer, res *agent.RunResult) {
	switch res.Status {
	case agent.StatusDone:
		fmt.Fprintln(stdout, res.Output)
	case agent.StatusExhausted:
		fmt.Fprintln(stdout, res.Output)
		fmt.Fprintf(stderr, "Warning: %s after %d iterations\n", res.Error, res.Iterations)
	default:
		fmt.Fprintf(stderr, "Run %s failed after %d iterations: %s\n", res.RunID, res.Iterations, res.Error)
	}
	for _, rec := range res.ToolLog {
		mark := "ok"
		if rec.IsError {
			mark = "error"
		}
		fmt.Fprintf(stderr, "  [%d] %s (%s, %dms)\n", rec.Iteration, rec.Tool, mark, rec.DurationMS)
	}
}
