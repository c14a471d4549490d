// Package store persists run state so conversations can be resumed after
// WAIT_FOR_INPUT and branched from named checkpoints.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested run ID or checkpoint ID does not exist.
var ErrNotFound = errors.New("not found")

// errClosed is returned by every operation on a closed store.
var errClosed = errors.New("store is closed")

// Store provides persistence for run state and checkpoints.
//
// The engine calls SaveStep after every node invocation, so LoadLatest
// always returns the state a suspended run stopped in.
//
// Type parameter S is the state type to persist. Durable backends encode it
// as JSON, so S must round-trip through encoding/json.
type Store[S any] interface {
	// SaveStep persists the state after a node execution step.
	// Saving the same runID and step twice overwrites the earlier record.
	SaveStep(ctx context.Context, runID string, step int, nodeID string, state S) error

	// LoadLatest retrieves the highest-numbered step for runID.
	// Returns ErrNotFound if runID has no steps.
	LoadLatest(ctx context.Context, runID string) (state S, step int, err error)

	// SaveCheckpoint creates or replaces a named snapshot.
	SaveCheckpoint(ctx context.Context, cpID string, state S, step int) error

	// LoadCheckpoint retrieves a named snapshot.
	// Returns ErrNotFound if cpID does not exist.
	LoadCheckpoint(ctx context.Context, cpID string) (state S, step int, err error)
}

// History is implemented by stores that can list every step of a run.
type History[S any] interface {
	Steps(ctx context.Context, runID string) ([]StepRecord[S], error)
}

// StepRecord is one persisted step.
type StepRecord[S any] struct {
	Step      int       `json:"step"`
	NodeID    string    `json:"node_id"`
	State     S         `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

// Checkpoint is a named snapshot.
type Checkpoint[S any] struct {
	State     S         `json:"state"`
	Step      int       `json:"step"`
	CreatedAt time.Time `json:"created_at"`
}
