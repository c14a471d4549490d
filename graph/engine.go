package graph

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/teamgraph/graph/emit"
)

// Engine is a compiled, immutable graph.
//
// The Engine drives a run from its entry node to a terminal sentinel:
//   - invokes the current node with a read-only view of the state
//   - records capability failures as messages and routes to the supervisor
//   - validates and merges the node's partial update
//   - resolves the next node by fixed edge or validated routing decision
//   - persists every step via the store and emits observability events
//   - aborts when the recursion limit is reached
//
// An Engine holds no per-run state. Concurrent calls to Run are isolated:
// each owns its State, and the registry is never written after Compile.
type Engine struct {
	opts       Options
	nodes      map[string]*registered
	order      []string
	fixed      map[string]string
	legal      map[string]map[string]struct{}
	targets    map[string][]string
	slots      map[string]Kind
	start      string
	supervisor string
}

// Name returns the graph name.
func (e *Engine) Name() string { return e.opts.Name }

// Nodes returns the registered node names in sorted order.
func (e *Engine) Nodes() []string { return append([]string(nil), e.order...) }

// Start returns the entry node.
func (e *Engine) Start() string { return e.start }

// Supervisor returns the designated supervisor, or "" when none is set.
func (e *Engine) Supervisor() string { return e.supervisor }

// Targets returns the legal target set of a conditional node, or nil for
// nodes without a branch.
func (e *Engine) Targets(node string) []string {
	return append([]string(nil), e.targets[node]...)
}

// Edges returns the fixed edges ordered by source node.
func (e *Engine) Edges() []Edge {
	out := make([]Edge, 0, len(e.fixed))
	for _, from := range e.order {
		if to, ok := e.fixed[from]; ok {
			out = append(out, Edge{From: from, To: to})
		}
	}
	return out
}

// Branches returns the conditional nodes and their legal targets, ordered by source node.
func (e *Engine) Branches() []Branch {
	out := make([]Branch, 0, len(e.targets))
	for _, from := range e.order {
		if targets, ok := e.targets[from]; ok {
			out = append(out, Branch{From: from, Targets: append([]string(nil), targets...)})
		}
	}
	return out
}

// Slots returns the declared slot schema.
func (e *Engine) Slots() map[string]Kind {
	out := make(map[string]Kind, len(e.slots))
	for k, v := range e.slots {
		out[k] = v
	}
	return out
}

// Run executes the graph from its entry node with initial as the starting state.
//
// Run returns when a node resolves to FINISH or WAIT_FOR_INPUT. Structural
// failures abort the run and are returned alongside the state accumulated so far:
//   - *RecursionLimitError when the iteration cap is reached
//   - *ContractError when a conditional node selects an illegal target
//   - *EngineError for undeclared writes, shape mismatches and store failures
//   - ctx.Err() when the context is cancelled
//
// Node capability failures never abort the run.
//
// Example:
//
//	final, err := engine.Run(ctx, "run-001", graph.NewState("list files in dshills/teamgraph"))
//	if errors.Is(err, graph.ErrRecursionLimit) {
//	    log.Printf("gave up after %d messages", len(final.Messages))
//	}
func (e *Engine) Run(ctx context.Context, runID string, initial State, opts ...RunOption) (State, error) {
	return e.run(ctx, runID, initial, 0, opts)
}

// run drives the loop. offset is the last persisted step of runID, so that
// resumed runs keep step numbers increasing in the store.
func (e *Engine) run(ctx context.Context, runID string, initial State, offset int, opts []RunOption) (State, error) {
	rc := runConfig{limit: e.opts.RecursionLimit}
	for _, opt := range opts {
		opt(&rc)
	}
	if rc.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rc.timeout)
		defer cancel()
	}
	if runID == "" {
		runID = uuid.NewString()
	}

	state := initial.Clone()
	if err := e.normalizeSlots(state.Slots); err != nil {
		return state, err
	}
	if state.Slots == nil && len(e.slots) > 0 {
		state.Slots = make(map[string]Slot, len(e.slots))
	}
	for name, kind := range e.slots {
		if _, ok := state.Slots[name]; !ok {
			state.Slots[name] = Slot{Kind: kind}
		}
	}

	e.opts.Metrics.RunStarted(e.opts.Name)
	e.emit(runID, offset, "", "run_start", map[string]interface{}{"entry": e.start})

	current := e.start
	for i := 1; ; i++ {
		step := offset + i
		if i > rc.limit {
			return e.abort(runID, step-1, state, &RecursionLimitError{Limit: rc.limit, Node: current})
		}
		if err := ctx.Err(); err != nil {
			return e.abort(runID, step-1, state, err)
		}

		next, err := e.step(ctx, runID, step, current, state)
		if err != nil {
			return e.abort(runID, step, next, err)
		}
		state = next

		if err := e.opts.Store.SaveStep(ctx, runID, step, current, state); err != nil {
			return e.abort(runID, step, state, &EngineError{
				Message: "failed to save step: " + err.Error(),
				Code:    "STORE_ERROR",
			})
		}

		if IsTerminal(state.Next) {
			e.opts.Metrics.RunFinished(e.opts.Name, strings.ToLower(state.Next))
			e.emit(runID, step, current, "run_end", map[string]interface{}{
				"next":     state.Next,
				"messages": len(state.Messages),
			})
			return state, nil
		}
		current = state.Next
	}
}

// step runs one node and returns the merged state with Next resolved.
func (e *Engine) step(ctx context.Context, runID string, step int, current string, state State) (State, error) {
	reg, ok := e.nodes[current]
	if !ok {
		return state, &EngineError{Message: "node not found during execution: " + current, Code: "NODE_NOT_FOUND"}
	}

	in := Input{
		RunID:   runID,
		Node:    current,
		State:   state.view(reg.fields.reads),
		Request: requestFor(state),
		Targets: e.Targets(current),
	}

	e.emit(runID, step, current, "node_start", nil)
	started := time.Now()
	res, nodeErr, fatal := executeNode(ctx, reg.node, in, nodeTimeout(reg.fields.policy, e.opts.DefaultNodeTimeout))
	latency := time.Since(started)
	if fatal != nil {
		e.opts.Metrics.RecordStepLatency(e.opts.Name, current, latency, "error")
		return state, fatal
	}

	var delta Update
	if nodeErr != nil {
		status := "error"
		if nodeErr.Code == "NODE_TIMEOUT" {
			status = "timeout"
		}
		e.opts.Metrics.RecordStepLatency(e.opts.Name, current, latency, status)
		e.opts.Metrics.IncrementNodeFailures(e.opts.Name, current, nodeErr.Code)
		e.emit(runID, step, current, "node_error", map[string]interface{}{
			"error": nodeErr.Error(),
			"code":  nodeErr.Code,
		})
		delta = Update{
			Messages: []Message{AIMessage(current, current+" failed: "+nodeErr.Message)},
			Next:     e.errorTarget(current, reg),
		}
	} else {
		e.opts.Metrics.RecordStepLatency(e.opts.Name, current, latency, "success")
		delta = res.Delta
		if err := e.checkWrites(current, reg, delta); err != nil {
			return state, err
		}
	}

	_, conditional := e.legal[current]
	// An instruction is consumed by the node it was addressed to.
	base := state
	if nodeErr == nil {
		base.AgentInput = ""
	}
	merged, err := Merge(base, delta)
	if err != nil {
		return state, &EngineError{Message: current + ": " + err.Error(), Code: "SHAPE_MISMATCH"}
	}

	target, err := e.resolve(current, delta.Next, nodeErr != nil)
	if err != nil {
		return state, err
	}
	merged.Next = target

	if conditional && nodeErr == nil {
		e.opts.Metrics.RecordDecision(e.opts.Name, current, target)
	}
	e.emit(runID, step, current, "node_end", map[string]interface{}{
		"next":       target,
		"output":     render(delta.Messages),
		"latency_ms": latency.Milliseconds(),
		"recovered":  nodeErr != nil,
	})
	return merged, nil
}

// resolve determines the state that follows current.
func (e *Engine) resolve(current, proposed string, recovered bool) (string, error) {
	if recovered {
		return proposed, nil
	}
	if to, ok := e.fixed[current]; ok {
		return to, nil
	}
	if legal, ok := e.legal[current]; ok {
		if _, allowed := legal[proposed]; !allowed {
			return "", &ContractError{Node: current, Target: proposed, Allowed: e.Targets(current)}
		}
		return proposed, nil
	}
	return Finish, nil
}

// errorTarget chooses where a recovered failure routes: the node's policy
// override, else the supervisor, else the node's fixed edge, else FINISH.
// A failing supervisor suspends the run rather than re-entering itself.
func (e *Engine) errorTarget(current string, reg *registered) string {
	if p := reg.fields.policy; p != nil && p.ErrorTarget != "" {
		return p.ErrorTarget
	}
	if e.supervisor != "" {
		if e.supervisor == current {
			return WaitForInput
		}
		return e.supervisor
	}
	if to, ok := e.fixed[current]; ok {
		return to
	}
	return Finish
}

// checkWrites rejects updates that touch slots the node did not declare or
// that change a slot's declared shape.
func (e *Engine) checkWrites(node string, reg *registered, delta Update) error {
	for name, slot := range delta.Slots {
		kind, ok := e.slots[name]
		if !ok {
			return &EngineError{Message: node + " wrote unknown slot " + name, Code: "UNKNOWN_SLOT"}
		}
		if _, ok := reg.fields.writes[name]; !ok {
			return &EngineError{Message: node + " wrote undeclared slot " + name, Code: "UNDECLARED_WRITE"}
		}
		if slot.Kind != kind {
			return &EngineError{
				Message: node + " wrote " + string(slot.Kind) + " into " + string(kind) + " slot " + name,
				Code:    "SHAPE_MISMATCH",
			}
		}
	}
	return nil
}

// normalizeSlots validates caller-supplied slots against the schema and
// stamps the declared kind on slots that omit it.
func (e *Engine) normalizeSlots(slots map[string]Slot) error {
	for name, slot := range slots {
		kind, ok := e.slots[name]
		if !ok {
			return &EngineError{Message: "initial state has unknown slot " + name, Code: "UNKNOWN_SLOT"}
		}
		if slot.Kind != "" && slot.Kind != kind {
			return &EngineError{Message: "initial slot " + name + " is " + string(slot.Kind) + ", want " + string(kind), Code: "SHAPE_MISMATCH"}
		}
		slot.Kind = kind
		if !slot.fits() {
			return &EngineError{Message: "initial slot " + name + " holds values a " + string(kind) + " slot cannot", Code: "SHAPE_MISMATCH"}
		}
		if kind == KindSet {
			slot.Items = union(nil, slot.Items)
		}
		slots[name] = slot
	}
	return nil
}

func (e *Engine) abort(runID string, step int, state State, err error) (State, error) {
	e.opts.Metrics.RunFinished(e.opts.Name, Category(err))
	e.emit(runID, step, "", "run_error", map[string]interface{}{
		"error":    err.Error(),
		"category": Category(err),
	})
	return state, err
}

func (e *Engine) emit(runID string, step int, node, msg string, meta map[string]interface{}) {
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["graph"] = e.opts.Name
	e.opts.Emitter.Emit(emit.Event{
		RunID:  runID,
		Step:   step,
		NodeID: node,
		Msg:    msg,
		Meta:   meta,
	})
}

// requestFor returns the instruction addressed to the next node.
func requestFor(s State) string {
	if s.AgentInput != "" {
		return s.AgentInput
	}
	return s.LastHuman()
}

func render(msgs []Message) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, "\n")
}
