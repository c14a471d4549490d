package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dshills/teamgraph/graph"
	"github.com/dshills/teamgraph/graph/model"
	"github.com/dshills/teamgraph/graph/tool"
)

// DefaultMaxRounds bounds the model/tool exchanges of a ToolAgent.
const DefaultMaxRounds = 5

// ToolAgent is a worker node that lets a chat model call tools until it
// answers in plain text or runs out of rounds.
//
// Tool results are fed back as user messages. A tool error is reported to
// the model as the tool's result; only a model error fails the node.
type ToolAgent struct {
	Name      string
	Model     model.ChatModel
	System    string
	Tools     *tool.Set
	MaxRounds int
	Logger    *zap.Logger

	// Prompt builds the task message from the node input. Nil uses the request.
	Prompt func(in graph.Input) string
}

// Run implements graph.Node.
func (a *ToolAgent) Run(ctx context.Context, in graph.Input) graph.NodeResult {
	task := in.Request
	if a.Prompt != nil {
		task = a.Prompt(in)
	}
	answer, err := a.Ask(ctx, task)
	if err != nil {
		return graph.Fail(err)
	}
	return graph.Ok(graph.Say(in.Node, answer))
}

// Ask runs the tool loop for a single task and returns the final answer.
func (a *ToolAgent) Ask(ctx context.Context, task string) (string, error) {
	if a.Model == nil {
		return "", errors.New(a.Name + ": no model configured")
	}
	logger := a.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	rounds := a.MaxRounds
	if rounds <= 0 {
		rounds = DefaultMaxRounds
	}
	var specs []model.ToolSpec
	if a.Tools != nil {
		specs = a.Tools.Specs()
	}

	msgs := make([]model.Message, 0, 2+2*rounds)
	if a.System != "" {
		msgs = append(msgs, model.System(a.System))
	}
	msgs = append(msgs, model.User(task))

	var last string
	for round := 1; round <= rounds; round++ {
		out, err := a.Model.Chat(ctx, msgs, specs)
		if err != nil {
			return "", err
		}
		last = strings.TrimSpace(out.Text)
		if len(out.ToolCalls) == 0 || a.Tools == nil {
			if last == "" {
				last = "No result."
			}
			return last, nil
		}

		if last != "" {
			msgs = append(msgs, model.Assistant(last))
		}
		for _, call := range out.ToolCalls {
			args, _ := json.Marshal(call.Input)
			msgs = append(msgs, model.Assistant(fmt.Sprintf("Calling %s with %s", call.Name, args)))

			result, err := a.Tools.Call(ctx, call)
			if err != nil {
				if ctx.Err() != nil {
					return "", ctx.Err()
				}
				result = "error: " + err.Error()
			}
			logger.Debug("tool call",
				zap.String("agent", a.Name),
				zap.String("tool", call.Name),
				zap.Int("round", round),
				zap.Bool("failed", err != nil))
			msgs = append(msgs, model.User(fmt.Sprintf("Result of %s:\n%s", call.Name, result)))
		}
	}

	if last == "" {
		last = fmt.Sprintf("Stopped after %d tool rounds without a final answer.", rounds)
	}
	return last, nil
}
