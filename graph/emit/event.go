package emit

// Event is one observability record produced while a graph runs.
//
// The engine emits run_start, node_start, node_end, node_error, run_end,
// run_error, checkpoint_saved and checkpoint_resumed. Nodes that call
// language models may add model_usage events carrying token counts.
type Event struct {
	// RunID identifies the run. Subgraph runs use "outer/node/uuid".
	RunID string `json:"run_id"`

	// Step is the 1-based node invocation counter within the run, 0 for
	// run-level events emitted before the first node.
	Step int `json:"step"`

	// NodeID is the node the event concerns, empty for run-level events.
	NodeID string `json:"node_id,omitempty"`

	// Msg is the event type.
	Msg string `json:"msg"`

	// Meta holds event-specific fields such as next, output, latency_ms,
	// error and category. Every engine event carries "graph".
	Meta map[string]interface{} `json:"meta,omitempty"`
}

// Str returns Meta[key] when it is a string.
func (e Event) Str(key string) string {
	s, _ := e.Meta[key].(string)
	return s
}

// Bool returns Meta[key] when it is a bool.
func (e Event) Bool(key string) bool {
	b, _ := e.Meta[key].(bool)
	return b
}
