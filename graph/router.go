package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Decision is a supervisor's routing output.
type Decision struct {
	// Next is the selected target. It must be one of RouteRequest.Targets.
	Next string `json:"next"`

	// Response is user-facing text. It is always recorded, even when the
	// decision needs no further routing.
	Response string `json:"response"`

	// AgentInput is the narrowed instruction handed to the next worker.
	AgentInput string `json:"agent_input,omitempty"`
}

// RouteRequest is what a Router receives.
type RouteRequest struct {
	// Supervisor is the name of the node asking for a decision.
	Supervisor string

	// State is the supervisor's view of the run.
	State State

	// Request is the instruction addressed to the supervisor.
	Request string

	// Targets is the legal target set: worker names plus FINISH and
	// WAIT_FOR_INPUT, computed when the graph was compiled.
	Targets []string
}

// Allows reports whether target is in the legal set.
func (r RouteRequest) Allows(target string) bool {
	for _, t := range r.Targets {
		if t == target {
			return true
		}
	}
	return false
}

// Router decides where a supervisor sends the run next.
//
// Implementations may be rule based, table driven or backed by a language
// model. The engine only requires the returned Decision to name a target in
// RouteRequest.Targets; anything else aborts the run with a *ContractError.
type Router interface {
	Route(ctx context.Context, req RouteRequest) (Decision, error)
}

// RouterFunc adapts a function to the Router interface.
type RouterFunc func(ctx context.Context, req RouteRequest) (Decision, error)

// Route implements Router.
func (f RouterFunc) Route(ctx context.Context, req RouteRequest) (Decision, error) {
	return f(ctx, req)
}

// ErrScriptExhausted is returned by a ScriptedRouter with no decisions left.
var ErrScriptExhausted = errors.New("scripted router has no decisions left")

// ScriptedRouter returns a fixed sequence of decisions, one per call.
//
// When the script runs out it repeats the last decision if Repeat is set,
// otherwise it fails with ErrScriptExhausted. It is intended for tests and
// deterministic demos; a single ScriptedRouter is shared by every run of the
// graph it backs.
//
// Example:
//
//	router := graph.Script(
//	    graph.Decision{Next: "WorkerA", Response: "asking A"},
//	    graph.Decision{Next: "WorkerB", Response: "asking B"},
//	    graph.Decision{Next: graph.Finish, Response: "done"},
//	)
type ScriptedRouter struct {
	Decisions []Decision
	Repeat    bool

	mu    sync.Mutex
	calls int
	seen  []RouteRequest
}

// Script builds a ScriptedRouter from decisions.
func Script(decisions ...Decision) *ScriptedRouter {
	return &ScriptedRouter{Decisions: decisions}
}

// Route implements Router.
func (s *ScriptedRouter) Route(_ context.Context, req RouteRequest) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seen = append(s.seen, req)
	i := s.calls
	s.calls++
	if i >= len(s.Decisions) {
		if !s.Repeat || len(s.Decisions) == 0 {
			return Decision{}, ErrScriptExhausted
		}
		i = len(s.Decisions) - 1
	}
	return s.Decisions[i], nil
}

// Calls returns how many decisions have been requested.
func (s *ScriptedRouter) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Requests returns the route requests received so far.
func (s *ScriptedRouter) Requests() []RouteRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RouteRequest(nil), s.seen...)
}

// Supervisor is a Node that asks a Router for the next target and records
// the decision's response as a message.
type Supervisor struct {
	router Router
}

// NewSupervisor wraps router as a Node. Register it with Builder.AddSupervisor
// or with Builder.Add plus Builder.Branch.
func NewSupervisor(router Router) *Supervisor {
	return &Supervisor{router: router}
}

// Run implements Node.
func (s *Supervisor) Run(ctx context.Context, in Input) NodeResult {
	decision, err := s.router.Route(ctx, RouteRequest{
		Supervisor: in.Node,
		State:      in.State,
		Request:    in.Request,
		Targets:    in.Targets,
	})
	if err != nil {
		return Fail(fmt.Errorf("routing: %w", err))
	}

	response := decision.Response
	if response == "" {
		response = "Routing to " + decision.Next + "."
	}
	return Ok(Update{
		Messages:   []Message{AIMessage(in.Node, response)},
		Next:       decision.Next,
		AgentInput: decision.AgentInput,
	})
}
