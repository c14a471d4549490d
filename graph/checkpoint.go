package graph

import (
	"context"
	"errors"

	"github.com/dshills/teamgraph/graph/store"
)

// Resume continues a run that stopped at WAIT_FOR_INPUT (or FINISH) with new
// external input.
//
// The latest persisted state of runID is loaded, input is appended as a human
// message, the routing fields are cleared and the graph runs again from its
// entry node. Step numbers continue from the last persisted step.
//
// Returns an EngineError with code RUN_NOT_FOUND when runID has no persisted state.
//
// Example:
//
//	state, _ := engine.Run(ctx, "chat-1", graph.NewState("hi"))
//	for state.Next == graph.WaitForInput {
//	    state, _ = engine.Resume(ctx, "chat-1", readLine())
//	}
func (e *Engine) Resume(ctx context.Context, runID, input string, opts ...RunOption) (State, error) {
	prev, step, err := e.opts.Store.LoadLatest(ctx, runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return State{}, &EngineError{Message: "no persisted state for run " + runID, Code: "RUN_NOT_FOUND"}
		}
		return State{}, &EngineError{Message: "failed to load run: " + err.Error(), Code: "STORE_ERROR"}
	}
	return e.run(ctx, runID, continueWith(prev, input), step, opts)
}

// SaveCheckpoint stores the latest state of runID under the name cpID.
//
// Checkpoints let a caller branch a conversation: save before a risky
// request, then continue from the snapshot under a new run ID.
func (e *Engine) SaveCheckpoint(ctx context.Context, runID, cpID string) error {
	latest, step, err := e.opts.Store.LoadLatest(ctx, runID)
	if err != nil {
		return &EngineError{Message: "cannot checkpoint run " + runID + ": " + err.Error(), Code: "STORE_ERROR"}
	}
	if err := e.opts.Store.SaveCheckpoint(ctx, cpID, latest, step); err != nil {
		return &EngineError{Message: "failed to save checkpoint: " + err.Error(), Code: "STORE_ERROR"}
	}
	e.emit(runID, step, "", "checkpoint_saved", map[string]interface{}{"checkpoint_id": cpID})
	return nil
}

// ResumeFromCheckpoint starts newRunID from the state saved under cpID,
// appending input as a human message when it is non-empty.
func (e *Engine) ResumeFromCheckpoint(ctx context.Context, cpID, newRunID, input string, opts ...RunOption) (State, error) {
	cp, step, err := e.opts.Store.LoadCheckpoint(ctx, cpID)
	if err != nil {
		return State{}, &EngineError{Message: "cannot resume: checkpoint not found: " + err.Error(), Code: "CHECKPOINT_NOT_FOUND"}
	}
	e.emit(newRunID, 0, "", "checkpoint_resumed", map[string]interface{}{
		"checkpoint_id":   cpID,
		"checkpoint_step": step,
	})
	return e.run(ctx, newRunID, continueWith(cp, input), 0, opts)
}

func continueWith(prev State, input string) State {
	next := prev.Clone()
	next.Next = ""
	next.AgentInput = ""
	if input != "" {
		next.Messages = append(next.Messages, HumanMessage(input))
	}
	return next
}
