// Package agents assembles the worker nodes, model-backed supervisors and
// the product, research and dev teams on top of the graph engine.
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

// RouteTool is the name of the function a supervisor model must call.
const RouteTool = "route"

// ErrNoDecision is returned when the model produced neither a route call
// nor a parsable JSON decision.
var ErrNoDecision = errors.New("model returned no routing decision")

const routeInstruction = "Given the conversation above, provide a response to the user and decide the next action. " +
	"If you need more information from the user, use WAIT_FOR_INPUT. " +
	"If you need another team member, name it and give a concise, targeted input for it. " +
	"Otherwise select FINISH if the task is complete. " +
	"Always provide a response, even for simple greetings or questions. " +
	"Call the route function with your decision."

// ModelRouter is a graph.Router backed by a chat model.
//
// Each decision sends the supervisor prompt, the trimmed run history and a
// closing instruction, and offers a single route function whose next
// parameter is an enum over the legal targets. Models that answer in text
// are accepted when the text holds a JSON object with the same fields.
type ModelRouter struct {
	Model   model.ChatModel
	Prompt  string
	Trimmer *Trimmer
	Logger  *zap.Logger
}

// NewModelRouter creates a router. prompt may reference {members}, which is
// replaced with the worker names of the legal target set.
func NewModelRouter(m model.ChatModel, prompt string, trimmer *Trimmer, logger *zap.Logger) *ModelRouter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelRouter{Model: m, Prompt: prompt, Trimmer: trimmer, Logger: logger}
}

// RouteSpec builds the route function schema for targets.
func RouteSpec(targets []string) model.ToolSpec {
	return model.ToolSpec{
		Name:        RouteTool,
		Description: "Select the next action and provide a response.",
		Schema: tool.Object(tool.Props{
			"next": tool.Enum("The next action to take. Use WAIT_FOR_INPUT if user input is required.", targets...),
			"response": tool.String("The response to the user's input or query."),
			"agent_input": tool.String("The specific input to send to the next agent, if applicable."),
		}, "next", "response"),
	}
}

// Route implements graph.Router.
func (r *ModelRouter) Route(ctx context.Context, req graph.RouteRequest) (graph.Decision, error) {
	if r.Model == nil {
		return graph.Decision{}, errors.New("no model configured for " + req.Supervisor)
	}

	msgs := []model.Message{model.System(r.prompt(req.Targets))}
	if summary := req.State.Summary(); summary != "" {
		msgs = append(msgs, model.System("Current state:\n"+summary))
	}
	msgs = append(msgs, History(req.State)...)
	msgs = append(msgs, model.System(routeInstruction))
	msgs = r.Trimmer.Trim(msgs)

	out, err := r.Model.Chat(ctx, msgs, []model.ToolSpec{RouteSpec(req.Targets)})
	if err != nil {
		return graph.Decision{}, err
	}

	d, err := decisionFrom(out)
	if err != nil {
		return graph.Decision{}, err
	}
	r.Logger.Debug("routing decision",
		zap.String("supervisor", req.Supervisor),
		zap.String("next", d.Next),
		zap.Bool("legal", req.Allows(d.Next)))
	return d, nil
}

func (r *ModelRouter) prompt(targets []string) string {
	var members []string
	for _, t := range targets {
		if !graph.IsTerminal(t) {
			members = append(members, t)
		}
	}
	return strings.ReplaceAll(r.Prompt, "{members}", strings.Join(members, ", "))
}

func decisionFrom(out model.ChatOut) (graph.Decision, error) {
	if call, ok := out.FirstCall(RouteTool); ok {
		d := graph.Decision{
			Next:       call.String("next"),
			Response:   call.String("response"),
			AgentInput: call.String("agent_input"),
		}
		if d.Response == "" {
			d.Response = strings.TrimSpace(out.Text)
		}
		return d, nil
	}
	return ParseDecision(out.Text)
}

// ParseDecision extracts a decision from text holding a JSON object,
// optionally wrapped in prose or a code fence.
func ParseDecision(text string) (graph.Decision, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return graph.Decision{}, fmt.Errorf("%w: %q", ErrNoDecision, truncate(text, 200))
	}
	var d graph.Decision
	if err := json.Unmarshal([]byte(text[start:end+1]), &d); err != nil {
		return graph.Decision{}, fmt.Errorf("%w: %v", ErrNoDecision, err)
	}
	if d.Next == "" {
		return graph.Decision{}, fmt.Errorf("%w: missing next", ErrNoDecision)
	}
	return d, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
