package graph

import "time"

// NodePolicy configures how the executor runs a single node.
//
// The engine never retries a node. Retrying is a property of the
// collaborator adapter a node calls, not of the orchestration core.
//
// Example:
//
//	b.Add("Tester", tester,
//	    graph.Reads("code_context"),
//	    graph.WithPolicy(graph.NodePolicy{Timeout: 2 * time.Minute}),
//	)
type NodePolicy struct {
	// Timeout is the maximum execution time allowed for this node.
	// If zero, the engine's default node timeout is used.
	Timeout time.Duration

	// ErrorTarget overrides where a recovered failure routes. If empty the
	// run returns to the graph's designated supervisor.
	ErrorTarget string
}

// nodeTimeout determines the timeout for a node based on precedence:
// NodePolicy.Timeout, then the engine default, then none.
func nodeTimeout(policy *NodePolicy, defaultTimeout time.Duration) time.Duration {
	if policy != nil && policy.Timeout > 0 {
		return policy.Timeout
	}
	if defaultTimeout > 0 {
		return defaultTimeout
	}
	return 0
}
