package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory implementation of Store[S].
//
// It is the engine's default store and the one used by tests and the
// interactive CLI when no database is configured. Data is lost when the
// process exits; MarshalJSON and UnmarshalJSON let a caller snapshot it.
//
// MemStore is safe for concurrent use. States are stored as given, so S
// should be a value type or be cloned by the caller before saving.
type MemStore[S any] struct {
	mu          sync.RWMutex
	steps       map[string][]StepRecord[S] // runID -> steps ordered by step number
	checkpoints map[string]Checkpoint[S]
}

// NewMemStore creates a new in-memory store.
func NewMemStore[S any]() *MemStore[S] {
	return &MemStore[S]{
		steps:       make(map[string][]StepRecord[S]),
		checkpoints: make(map[string]Checkpoint[S]),
	}
}

// SaveStep implements Store.
func (m *MemStore[S]) SaveStep(_ context.Context, runID string, step int, nodeID string, state S) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := StepRecord[S]{Step: step, NodeID: nodeID, State: state, CreatedAt: time.Now()}
	records := m.steps[runID]
	i := sort.Search(len(records), func(i int) bool { return records[i].Step >= step })
	if i < len(records) && records[i].Step == step {
		records[i] = rec
		return nil
	}
	records = append(records, StepRecord[S]{})
	copy(records[i+1:], records[i:])
	records[i] = rec
	m.steps[runID] = records
	return nil
}

// LoadLatest implements Store.
func (m *MemStore[S]) LoadLatest(_ context.Context, runID string) (state S, step int, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := m.steps[runID]
	if len(records) == 0 {
		return state, 0, ErrNotFound
	}
	latest := records[len(records)-1]
	return latest.State, latest.Step, nil
}

// SaveCheckpoint implements Store.
func (m *MemStore[S]) SaveCheckpoint(_ context.Context, cpID string, state S, step int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkpoints[cpID] = Checkpoint[S]{State: state, Step: step, CreatedAt: time.Now()}
	return nil
}

// LoadCheckpoint implements Store.
func (m *MemStore[S]) LoadCheckpoint(_ context.Context, cpID string) (state S, step int, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cp, ok := m.checkpoints[cpID]
	if !ok {
		return state, 0, ErrNotFound
	}
	return cp.State, cp.Step, nil
}

// Steps implements History.
func (m *MemStore[S]) Steps(_ context.Context, runID string) ([]StepRecord[S], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records, ok := m.steps[runID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]StepRecord[S](nil), records...), nil
}

// Runs returns the IDs of every run with at least one step, sorted.
func (m *MemStore[S]) Runs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.steps))
	for id := range m.steps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type memSnapshot[S any] struct {
	Steps       map[string][]StepRecord[S] `json:"steps"`
	Checkpoints map[string]Checkpoint[S]   `json:"checkpoints"`
}

// MarshalJSON serializes every step and checkpoint.
//
// Example:
//
//	data, _ := json.Marshal(mem)
//	_ = os.WriteFile("session.json", data, 0o644)
func (m *MemStore[S]) MarshalJSON() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return json.Marshal(memSnapshot[S]{Steps: m.steps, Checkpoints: m.checkpoints})
}

// UnmarshalJSON replaces the store contents with a snapshot produced by MarshalJSON.
func (m *MemStore[S]) UnmarshalJSON(data []byte) error {
	var snap memSnapshot[S]
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	if snap.Steps == nil {
		snap.Steps = make(map[string][]StepRecord[S])
	}
	if snap.Checkpoints == nil {
		snap.Checkpoints = make(map[string]Checkpoint[S])
	}
	for _, records := range snap.Steps {
		sort.Slice(records, func(i, j int) bool { return records[i].Step < records[j].Step })
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = snap.Steps
	m.checkpoints = snap.Checkpoints
	return nil
}
