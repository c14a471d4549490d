package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/dshills/teamgraph/graph/emit"
)

var (
	labelColor = color.New(color.FgCyan, color.Bold)
	nestColor  = color.New(color.FgMagenta)
	failColor  = color.New(color.FgRed, color.Bold)
	dimColor   = color.New(color.Faint)
)

// streamEmitter prints each node's label and output as the run progresses.
// Nodes of nested runs are prefixed with the node that started them.
type streamEmitter struct {
	mu sync.Mutex
	w  io.Writer
}

func newStreamEmitter(w io.Writer) *streamEmitter {
	return &streamEmitter{w: w}
}

func (s *streamEmitter) Emit(event emit.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch event.Msg {
	case "node_end":
		// Recovered failures were already printed from node_error.
		out := strings.TrimSpace(event.Str("output"))
		if out == "" || event.Bool("recovered") {
			return
		}
		fmt.Fprintf(s.w, "%s%s %s\n", s.prefix(event.RunID), labelColor.Sprint(event.NodeID+":"), out)
		fmt.Fprintln(s.w, dimColor.Sprint("---"))
	case "node_error":
		fmt.Fprintf(s.w, "%s%s %s\n", s.prefix(event.RunID), failColor.Sprint(event.NodeID+" failed:"), event.Str("error"))
	}
}

// prefix renders "Research > " for events of a run nested under the
// Research node. Nested run IDs look like "outer/node/uuid"; checkRunID
// keeps user IDs free of the separator.
// checkRunID rejects run IDs that would read as nested runs.
func checkRunID(id string) error {
	if strings.Contains(id, "/") {
		return fmt.Errorf("invalid run ID %q: must not contain '/'", id)
	}
	return nil
}

func (s *streamEmitter) prefix(runID string) string {
	parts := strings.Split(runID, "/")
	if len(parts) < 3 {
		return ""
	}
	var nodes []string
	for i := 1; i+1 < len(parts); i += 2 {
		nodes = append(nodes, parts[i])
	}
	return nestColor.Sprint(strings.Join(nodes, " > ") + " > ")
}
