package store

import (
	"context"
	"errors"
	"testing"
)

type testState struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// runStoreSuite exercises the behavior every Store implementation shares.
func runStoreSuite(t *testing.T, st Store[testState]) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing run", func(t *testing.T) {
		_, _, err := st.LoadLatest(ctx, "no-such-run")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("LoadLatest() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("latest step wins regardless of write order", func(t *testing.T) {
		for _, step := range []int{3, 1, 2} {
			if err := st.SaveStep(ctx, "run-order", step, "Node", testState{Count: step}); err != nil {
				t.Fatalf("SaveStep(%d) error = %v", step, err)
			}
		}
		state, step, err := st.LoadLatest(ctx, "run-order")
		if err != nil {
			t.Fatalf("LoadLatest() error = %v", err)
		}
		if step != 3 || state.Count != 3 {
			t.Errorf("LoadLatest() = (%+v, %d), want count 3 at step 3", state, step)
		}
	})

	t.Run("saving a step twice overwrites it", func(t *testing.T) {
		if err := st.SaveStep(ctx, "run-overwrite", 1, "A", testState{Value: "first"}); err != nil {
			t.Fatal(err)
		}
		if err := st.SaveStep(ctx, "run-overwrite", 1, "B", testState{Value: "second"}); err != nil {
			t.Fatal(err)
		}
		state, step, err := st.LoadLatest(ctx, "run-overwrite")
		if err != nil {
			t.Fatal(err)
		}
		if step != 1 || state.Value != "second" {
			t.Errorf("LoadLatest() = (%+v, %d), want second at step 1", state, step)
		}

		h, ok := st.(History[testState])
		if !ok {
			return
		}
		records, err := h.Steps(ctx, "run-overwrite")
		if err != nil {
			t.Fatalf("Steps() error = %v", err)
		}
		if len(records) != 1 || records[0].NodeID != "B" {
			t.Errorf("Steps() = %+v, want one record from B", records)
		}
	})

	t.Run("runs are isolated", func(t *testing.T) {
		if err := st.SaveStep(ctx, "run-a", 1, "A", testState{Value: "a"}); err != nil {
			t.Fatal(err)
		}
		if err := st.SaveStep(ctx, "run-b", 5, "B", testState{Value: "b"}); err != nil {
			t.Fatal(err)
		}
		a, stepA, _ := st.LoadLatest(ctx, "run-a")
		b, stepB, _ := st.LoadLatest(ctx, "run-b")
		if a.Value != "a" || stepA != 1 || b.Value != "b" || stepB != 5 {
			t.Errorf("got a=(%+v,%d) b=(%+v,%d)", a, stepA, b, stepB)
		}
	})

	t.Run("history is ordered by step", func(t *testing.T) {
		h, ok := st.(History[testState])
		if !ok {
			t.Skip("store does not implement History")
		}
		records, err := h.Steps(ctx, "run-order")
		if err != nil {
			t.Fatalf("Steps() error = %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("Steps() returned %d records, want 3", len(records))
		}
		for i, rec := range records {
			if rec.Step != i+1 {
				t.Errorf("records[%d].Step = %d, want %d", i, rec.Step, i+1)
			}
		}
		if _, err := h.Steps(ctx, "no-such-run"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Steps(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("checkpoints", func(t *testing.T) {
		if _, _, err := st.LoadCheckpoint(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("LoadCheckpoint(missing) error = %v, want ErrNotFound", err)
		}
		if err := st.SaveCheckpoint(ctx, "cp", testState{Value: "v1"}, 4); err != nil {
			t.Fatal(err)
		}
		if err := st.SaveCheckpoint(ctx, "cp", testState{Value: "v2"}, 7); err != nil {
			t.Fatal(err)
		}
		state, step, err := st.LoadCheckpoint(ctx, "cp")
		if err != nil {
			t.Fatal(err)
		}
		if state.Value != "v2" || step != 7 {
			t.Errorf("LoadCheckpoint() = (%+v, %d), want v2 at step 7", state, step)
		}
	})
}
