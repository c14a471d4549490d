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

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dshills/teamgraph/graph"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to a team interactively",
	Long: `Start an interactive conversation with a team.

Each line you type continues the same run: when the supervisor waits for
input or finishes, the next line resumes the conversation with its full
history. Type exit, quit or bye to leave.

With a durable store (--store sqlite) and a fixed --run-id a conversation
survives restarts.`,
	RunE: runChat,
}

var chatRunID string

func init() {
	chatCmd.Flags().StringVar(&chatRunID, "run-id", "", "Conversation ID to start or continue (default: a new UUID)")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := checkRunID(chatRunID); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	a, err := newApp(ctx, cfg, teamName, out)
	if err != nil {
		return err
	}
	defer a.Close()

	id := chatRunID
	if id == "" {
		id = uuid.NewString()
	}
	fmt.Fprintf(out, "%s %s team, conversation %s\n", labelColor.Sprint("teamgraph"), teamName, id)
	err = chatLoop(ctx, a.engine, id, cmd.InOrStdin(), out, cmd.ErrOrStderr())
	a.finish(ctx)
	return err
}

var exitWords = map[string]bool{"exit": true, "quit": true, "bye": true}

// chatLoop reads one request per line and runs it against the conversation
// runID until an exit word, end of input or cancellation. Fatal run errors
// are reported and the conversation continues from its last saved step.
func chatLoop(ctx context.Context, conv conversation, runID string, in io.Reader, out, errOut io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(out, "User: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if exitWords[strings.ToLower(line)] {
			fmt.Fprintln(out, "AI: Goodbye!")
			return nil
		}

		state, err := conv.Resume(ctx, runID, line)
		if isRunNotFound(err) {
			state, err = conv.Run(ctx, runID, graph.NewState(line))
		}
		if err != nil {
			_ = fatal(errOut, err)
			continue
		}
		if state.Next == graph.WaitForInput {
			fmt.Fprintln(out, dimColor.Sprint("(waiting for your input)"))
		}
	}
}

func isRunNotFound(err error) bool {
	var ee *graph.EngineError
	return errors.As(err, &ee) && ee.Code == "RUN_NOT_FOUND"
}
