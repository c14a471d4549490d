package graph

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// InMapping builds the fresh inner state for a subgraph run from the outer input.
type InMapping func(outer Input) State

// OutMapping translates the inner terminal state into the outer update.
type OutMapping func(outer Input, inner State) Update

// DefaultIn seeds the inner run with a single human message carrying the request.
func DefaultIn(outer Input) State {
	return NewState(outer.Request)
}

// DefaultOut reports the inner run's last AI message, re-authored as the
// subgraph node. Inner slots are not copied.
func DefaultOut(outer Input, inner State) Update {
	for i := len(inner.Messages) - 1; i >= 0; i-- {
		if inner.Messages[i].Role == RoleAI {
			return Say(outer.Node, inner.Messages[i].Content)
		}
	}
	return Say(outer.Node, "No result.")
}

// subGraph presents a compiled engine as a single node.
type subGraph struct {
	inner *Engine
	in    InMapping
	out   OutMapping
}

// SubGraph wraps a compiled engine so it can be registered as a node of an
// enclosing graph.
//
// Each invocation builds a fresh inner state with in, drives the inner graph
// to a terminal sentinel, and translates the result with out. Nothing from
// the inner run reaches the outer state except what out returns. Nil
// mappings select DefaultIn and DefaultOut.
//
// Structural failures of the inner run (contract violation, recursion limit)
// are structural failures of the outer run too.
//
// Example:
//
//	research, _ := researchBuilder.Compile()
//	_ = product.Add("Research", graph.SubGraph(research, nil, nil))
//	_ = product.Connect("Research", "ProductManager")
func SubGraph(inner *Engine, in InMapping, out OutMapping) Node {
	if in == nil {
		in = DefaultIn
	}
	if out == nil {
		out = DefaultOut
	}
	return &subGraph{inner: inner, in: in, out: out}
}

// Run implements Node.
func (s *subGraph) Run(ctx context.Context, outer Input) NodeResult {
	runID := fmt.Sprintf("%s/%s/%s", outer.RunID, outer.Node, uuid.NewString())
	final, err := s.inner.Run(ctx, runID, s.in(outer))
	if err != nil {
		if isStructural(err) {
			return Fail(err)
		}
		return Fail(fmt.Errorf("subgraph %s: %w", s.inner.Name(), err))
	}
	return Ok(s.out(outer, final))
}
