package emit

import (
	"fmt"
	"sync"
	"testing"
)

func TestBufferedEmitter_History(t *testing.T) {
	b := NewBufferedEmitter()
	b.Emit(Event{RunID: "r1", Msg: "run_start"})
	b.Emit(Event{RunID: "r1", Step: 1, NodeID: "Sup", Msg: "node_start"})
	b.Emit(Event{RunID: "r1", Step: 1, NodeID: "Sup", Msg: "node_end"})
	b.Emit(Event{RunID: "r1", Step: 2, NodeID: "A", Msg: "node_start"})
	b.Emit(Event{RunID: "r2", Step: 1, NodeID: "B", Msg: "node_start"})

	tests := []struct {
		name   string
		filter HistoryFilter
		want   int
	}{
		{"all", HistoryFilter{}, 4},
		{"by node", HistoryFilter{NodeID: "Sup"}, 2},
		{"by msg", HistoryFilter{Msg: "node_start"}, 2},
		{"min step", HistoryFilter{MinStep: 2}, 1},
		{"max step", HistoryFilter{MaxStep: 1}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.History("r1", tt.filter); len(got) != tt.want {
				t.Errorf("History() returned %d events, want %d", len(got), tt.want)
			}
		})
	}

	if got := b.Visited("r1"); fmt.Sprint(got) != "[Sup A]" {
		t.Errorf("Visited() = %v, want [Sup A]", got)
	}
	if b.Runs() != 2 {
		t.Errorf("Runs() = %d, want 2", b.Runs())
	}
	if got := b.History("missing", HistoryFilter{}); got == nil || len(got) != 0 {
		t.Errorf("History(missing) = %v, want empty non-nil slice", got)
	}
}

func TestBufferedEmitter_Clear(t *testing.T) {
	b := NewBufferedEmitter()
	b.Emit(Event{RunID: "r1", Msg: "x"})
	b.Emit(Event{RunID: "r2", Msg: "x"})

	b.Clear("r1")
	if len(b.History("r1", HistoryFilter{})) != 0 || len(b.History("r2", HistoryFilter{})) != 1 {
		t.Fatal("Clear(r1) should only drop r1")
	}
	b.Clear("")
	if b.Runs() != 0 {
		t.Errorf("Runs() after Clear(\"\") = %d, want 0", b.Runs())
	}
}

func TestBufferedEmitter_Concurrent(t *testing.T) {
	b := NewBufferedEmitter()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(run int) {
			defer wg.Done()
			for s := 1; s <= 20; s++ {
				b.Emit(Event{RunID: fmt.Sprintf("run-%d", run), Step: s, Msg: "node_start"})
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 10; i++ {
		events := b.History(fmt.Sprintf("run-%d", i), HistoryFilter{})
		if len(events) != 20 {
			t.Fatalf("run-%d has %d events, want 20", i, len(events))
		}
		for j, e := range events {
			if e.Step != j+1 {
				t.Fatalf("run-%d event %d has step %d", i, j, e.Step)
			}
		}
	}
}
