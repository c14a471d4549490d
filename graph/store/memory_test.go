package store

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
)

func TestMemStore(t *testing.T) {
	runStoreSuite(t, NewMemStore[testState]())
}

func TestMemStore_Runs(t *testing.T) {
	ctx := context.Background()
	st := NewMemStore[testState]()
	_ = st.SaveStep(ctx, "b", 1, "N", testState{})
	_ = st.SaveStep(ctx, "a", 1, "N", testState{})

	got := st.Runs()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Runs() = %v, want [a b]", got)
	}
}

func TestMemStore_JSONSnapshot(t *testing.T) {
	ctx := context.Background()
	st := NewMemStore[testState]()
	_ = st.SaveStep(ctx, "run", 1, "A", testState{Value: "one"})
	_ = st.SaveStep(ctx, "run", 2, "B", testState{Value: "two"})
	_ = st.SaveCheckpoint(ctx, "cp", testState{Value: "snap"}, 2)

	data, err := json.Marshal(st)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	restored := NewMemStore[testState]()
	if err := json.Unmarshal(data, restored); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	state, step, err := restored.LoadLatest(ctx, "run")
	if err != nil || step != 2 || state.Value != "two" {
		t.Errorf("LoadLatest() = (%+v, %d, %v), want two at step 2", state, step, err)
	}
	cp, _, err := restored.LoadCheckpoint(ctx, "cp")
	if err != nil || cp.Value != "snap" {
		t.Errorf("LoadCheckpoint() = (%+v, %v), want snap", cp, err)
	}
}

func TestMemStore_ConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	st := NewMemStore[testState]()

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(step int) {
			defer wg.Done()
			_ = st.SaveStep(ctx, "run", step, "N", testState{Count: step})
		}(i)
	}
	wg.Wait()

	records, err := st.Steps(ctx, "run")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 50 {
		t.Fatalf("Steps() returned %d records, want 50", len(records))
	}
	for i, rec := range records {
		if rec.Step != i+1 {
			t.Fatalf("records[%d].Step = %d, want %d", i, rec.Step, i+1)
		}
	}
}
