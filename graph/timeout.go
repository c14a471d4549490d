package graph

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// executeNode runs node under its timeout and converts every way it can fail
// into a *NodeError: a returned error, a panic, or an exceeded deadline.
//
// The node runs on its own goroutine so that a node ignoring its context
// still times out; its late result is discarded.
//
// Cancellation of the parent context is not a node failure; it is returned
// as fatal so the caller can abort the run. Structural errors surfaced by a
// nested graph are returned as fatal too.
func executeNode(ctx context.Context, node Node, in Input, timeout time.Duration) (NodeResult, *NodeError, error) {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		res   NodeResult
		panic interface{}
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{panic: r}
			}
		}()
		done <- outcome{res: node.Run(runCtx, in)}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-runCtx.Done():
	}

	if err := ctx.Err(); err != nil {
		return NodeResult{}, nil, err
	}
	if out.panic != nil {
		return NodeResult{}, &NodeError{
			Message: fmt.Sprintf("panic: %v", out.panic),
			Code:    "NODE_PANIC",
			NodeID:  in.Node,
		}, nil
	}
	if timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return NodeResult{}, &NodeError{
			Message: fmt.Sprintf("exceeded timeout of %v", timeout),
			Code:    "NODE_TIMEOUT",
			NodeID:  in.Node,
			Cause:   context.DeadlineExceeded,
		}, nil
	}

	res := out.res
	if res.Err != nil {
		if isStructural(res.Err) {
			return NodeResult{}, nil, res.Err
		}
		var ne *NodeError
		if errors.As(res.Err, &ne) && ne.NodeID == in.Node {
			return NodeResult{}, ne, nil
		}
		return NodeResult{}, &NodeError{
			Message: res.Err.Error(),
			Code:    "NODE_FAILED",
			NodeID:  in.Node,
			Cause:   res.Err,
		}, nil
	}
	return res, nil, nil
}
