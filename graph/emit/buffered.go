package emit

import "sync"

// BufferedEmitter keeps every event in memory, grouped by run ID.
//
// The chat command uses it to print a transcript of a turn, and tests use it
// to assert on the order of node invocations.
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event
}

// HistoryFilter narrows History results. Zero fields match everything.
type HistoryFilter struct {
	NodeID  string
	Msg     string
	MinStep int
	MaxStep int
}

func (f HistoryFilter) match(e Event) bool {
	if f.NodeID != "" && e.NodeID != f.NodeID {
		return false
	}
	if f.Msg != "" && e.Msg != f.Msg {
		return false
	}
	if f.MinStep > 0 && e.Step < f.MinStep {
		return false
	}
	if f.MaxStep > 0 && e.Step > f.MaxStep {
		return false
	}
	return true
}

// NewBufferedEmitter creates an empty BufferedEmitter.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{events: make(map[string][]Event)}
}

// Emit implements Emitter.
func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[event.RunID] = append(b.events[event.RunID], event)
}

// History returns the events of runID in emission order.
func (b *BufferedEmitter) History(runID string, filter HistoryFilter) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := []Event{}
	for _, e := range b.events[runID] {
		if filter.match(e) {
			out = append(out, e)
		}
	}
	return out
}

// Visited returns the node of every node_start event of runID, in order.
func (b *BufferedEmitter) Visited(runID string) []string {
	events := b.History(runID, HistoryFilter{Msg: "node_start"})
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.NodeID)
	}
	return out
}

// Runs returns the number of distinct run IDs seen.
func (b *BufferedEmitter) Runs() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events)
}

// Clear drops the events of runID, or of every run when runID is empty.
func (b *BufferedEmitter) Clear(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if runID == "" {
		b.events = make(map[string][]Event)
		return
	}
	delete(b.events, runID)
}
