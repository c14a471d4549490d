package graph

import "context"

// Node is a unit of work in the graph.
//
// A node receives a read-only view of the run state restricted to the slots
// it declared with Reads, plus the request text addressed to it, and returns
// a NodeResult. Nodes must not retain or mutate the State they are given.
//
// A node is either a plain worker, whose successor is fixed by an edge, or a
// supervisor, whose Update.Next is validated against its legal targets.
type Node interface {
	// Run executes the node's logic. Capability failures are reported via
	// NodeResult.Err; the executor records them and keeps the run alive.
	Run(ctx context.Context, in Input) NodeResult
}

// Input is what a node sees when it runs.
type Input struct {
	// RunID identifies the run the node is executing in.
	RunID string

	// Node is the name the node is registered under.
	Node string

	// State is a copy of the run state restricted to the declared read slots.
	State State

	// Request is the instruction addressed to this node: the supervisor's
	// agent input when present, otherwise the latest human message.
	Request string

	// Targets is the legal target set when the node is conditional, nil otherwise.
	Targets []string
}

// NodeResult is the explicit two-outcome result of a node execution.
//
// Exactly one of Delta and Err is meaningful. When Err is non-nil the
// executor discards Delta, appends an error message authored by the node
// and routes back to the graph's supervisor.
type NodeResult struct {
	// Delta is the partial state update produced by this node.
	Delta Update

	// Err is the capability failure, if any.
	Err error
}

// Ok wraps an Update as a successful result.
func Ok(delta Update) NodeResult {
	return NodeResult{Delta: delta}
}

// Fail wraps err as a failed result.
func Fail(err error) NodeResult {
	return NodeResult{Err: err}
}

// NodeFunc is a function adapter that implements the Node interface.
//
// Example:
//
//	echo := graph.NodeFunc(func(ctx context.Context, in graph.Input) graph.NodeResult {
//	    return graph.Ok(graph.Say(in.Node, "echo: "+in.Request))
//	})
type NodeFunc func(ctx context.Context, in Input) NodeResult

// Run implements the Node interface for NodeFunc.
func (f NodeFunc) Run(ctx context.Context, in Input) NodeResult {
	return f(ctx, in)
}

// Field declares slot access for a node at registration time.
type Field func(*fieldSet)

type fieldSet struct {
	reads  map[string]struct{}
	writes map[string]struct{}
	policy *NodePolicy
}

func newFieldSet(fields []Field) *fieldSet {
	fs := &fieldSet{
		reads:  make(map[string]struct{}),
		writes: make(map[string]struct{}),
	}
	for _, f := range fields {
		f(fs)
	}
	return fs
}

// Reads declares the slots a node may observe.
func Reads(slots ...string) Field {
	return func(fs *fieldSet) {
		for _, s := range slots {
			fs.reads[s] = struct{}{}
		}
	}
}

// Writes declares the slots a node may update. Writing a slot also makes it readable.
func Writes(slots ...string) Field {
	return func(fs *fieldSet) {
		for _, s := range slots {
			fs.writes[s] = struct{}{}
			fs.reads[s] = struct{}{}
		}
	}
}

// WithPolicy attaches an execution policy to a node.
func WithPolicy(p NodePolicy) Field {
	return func(fs *fieldSet) {
		fs.policy = &p
	}
}

// NodeError represents a capability failure recovered at a node boundary.
type NodeError struct {
	// Message is the human-readable error description.
	Message string

	// Code is a machine-readable error code (NODE_FAILED, NODE_TIMEOUT, NODE_PANIC).
	Code string

	// NodeID identifies which node produced this error.
	NodeID string

	// Cause is the underlying error that caused this NodeError.
	Cause error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	if e.NodeID != "" {
		return "node " + e.NodeID + ": " + e.Message
	}
	return e.Message
}

// Unwrap returns the underlying cause error for error wrapping support.
func (e *NodeError) Unwrap() error {
	return e.Cause
}
