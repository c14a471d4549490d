package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dshills/teamgraph/graph"
)

var (
	runID          string
	runTimeout     time.Duration
	saveCheckpoint string
	fromCheckpoint string
)

var runCmd = &cobra.Command{
	Use:   "run [request]",
	Short: "Run a team once on a single request",
	Long: `Run a team once on a single request and print the final state.

The request is read from the arguments, or from standard input when none
are given. Every node's output is streamed as it completes.

Examples:
  teamgraph run "What does acme/widgets do?" --team research
  teamgraph run "Write a script that prints the first 10 primes" -t dev -o yaml
  teamgraph run "add a login page" --checkpoint before-login`,
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runID, "run-id", "", "Run ID (default: a new UUID)")
	f.DurationVar(&runTimeout, "timeout", 0, "Bound the whole run (0 for no limit)")
	f.StringVar(&saveCheckpoint, "checkpoint", "", "Save the final state under this checkpoint name")
	f.StringVar(&fromCheckpoint, "from-checkpoint", "", "Start from a saved checkpoint instead of an empty conversation")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if err := checkRunID(runID); err != nil {
		return err
	}

	request := strings.TrimSpace(strings.Join(args, " "))
	if request == "" {
		request, err = prompt(cmd.InOrStdin(), out, fmt.Sprintf("Enter your request for the %s team: ", teamName))
		if err != nil {
			return err
		}
	}
	if request == "" {
		return errors.New("no request given")
	}

	a, err := newApp(ctx, cfg, teamName, out)
	if err != nil {
		return err
	}
	defer a.Close()

	id := runID
	if id == "" {
		id = uuid.NewString()
	}
	var opts []graph.RunOption
	if runTimeout > 0 {
		opts = append(opts, graph.WithRunTimeout(runTimeout))
	}

	var final graph.State
	if fromCheckpoint != "" {
		final, err = a.engine.ResumeFromCheckpoint(ctx, fromCheckpoint, id, request, opts...)
	} else {
		final, err = a.engine.Run(ctx, id, graph.NewState(request), opts...)
	}
	a.finish(ctx)
	if err != nil {
		return fatal(cmd.ErrOrStderr(), err)
	}

	if saveCheckpoint != "" {
		if err := a.engine.SaveCheckpoint(ctx, id, saveCheckpoint); err != nil {
			return fmt.Errorf("saving checkpoint %s: %w", saveCheckpoint, err)
		}
		fmt.Fprintf(out, "%s %s\n", labelColor.Sprint("checkpoint:"), saveCheckpoint)
	}
	fmt.Fprintf(out, "%s %s\n", labelColor.Sprint("run:"), id)
	return printState(out, final, cfg.Output.Format)
}

// prompt writes label and reads one line.
func prompt(in io.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading request: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// conversation is the part of an engine the REPL drives.
type conversation interface {
	Run(ctx context.Context, runID string, initial graph.State, opts ...graph.RunOption) (graph.State, error)
	Resume(ctx context.Context, runID, input string, opts ...graph.RunOption) (graph.State, error)
}
