package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// dialect carries the statements that differ between SQL backends.
type dialect struct {
	schema           []string
	upsertStep       string
	upsertCheckpoint string
}

const (
	selectLatestSQL = `
		SELECT step, state
		FROM workflow_steps
		WHERE run_id = ?
		ORDER BY step DESC
		LIMIT 1`

	selectStepsSQL = `
		SELECT step, node_id, state, created_at
		FROM workflow_steps
		WHERE run_id = ?
		ORDER BY step ASC`

	selectCheckpointSQL = `
		SELECT state, step
		FROM workflow_checkpoints
		WHERE checkpoint_id = ?`
)

// sqlStore implements Store and History over database/sql. Timestamps are
// stored as unix milliseconds so both backends scan them the same way.
type sqlStore[S any] struct {
	db     *sql.DB
	d      dialect
	mu     sync.RWMutex
	closed bool
}

func newSQLStore[S any](ctx context.Context, db *sql.DB, d dialect) (*sqlStore[S], error) {
	s := &sqlStore[S]{db: db, d: d}
	for _, stmt := range d.schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
	}
	return s, nil
}

func (s *sqlStore[S]) check() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errClosed
	}
	return nil
}

// SaveStep implements Store.
func (s *sqlStore[S]) SaveStep(ctx context.Context, runID string, step int, nodeID string, state S) error {
	if err := s.check(); err != nil {
		return err
	}
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, s.d.upsertStep, runID, step, nodeID, string(stateJSON), time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to save step: %w", err)
	}
	return nil
}

// LoadLatest implements Store.
func (s *sqlStore[S]) LoadLatest(ctx context.Context, runID string) (state S, step int, err error) {
	if err := s.check(); err != nil {
		return state, 0, err
	}
	var stateJSON string
	err = s.db.QueryRowContext(ctx, selectLatestSQL, runID).Scan(&step, &stateJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return state, 0, ErrNotFound
	}
	if err != nil {
		return state, 0, fmt.Errorf("failed to load latest step: %w", err)
	}
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		var zero S
		return zero, 0, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return state, step, nil
}

// SaveCheckpoint implements Store.
func (s *sqlStore[S]) SaveCheckpoint(ctx context.Context, cpID string, state S, step int) error {
	if err := s.check(); err != nil {
		return err
	}
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, s.d.upsertCheckpoint, cpID, string(stateJSON), step, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint implements Store.
func (s *sqlStore[S]) LoadCheckpoint(ctx context.Context, cpID string) (state S, step int, err error) {
	if err := s.check(); err != nil {
		return state, 0, err
	}
	var stateJSON string
	err = s.db.QueryRowContext(ctx, selectCheckpointSQL, cpID).Scan(&stateJSON, &step)
	if errors.Is(err, sql.ErrNoRows) {
		return state, 0, ErrNotFound
	}
	if err != nil {
		return state, 0, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		var zero S
		return zero, 0, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return state, step, nil
}

// Steps implements History.
func (s *sqlStore[S]) Steps(ctx context.Context, runID string) ([]StepRecord[S], error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, selectStepsSQL, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}
	defer rows.Close()

	var out []StepRecord[S]
	for rows.Next() {
		var (
			rec       StepRecord[S]
			stateJSON string
			created   int64
		)
		if err := rows.Scan(&rec.Step, &rec.NodeID, &stateJSON, &created); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		if err := json.Unmarshal([]byte(stateJSON), &rec.State); err != nil {
			return nil, fmt.Errorf("failed to unmarshal state at step %d: %w", rec.Step, err)
		}
		rec.CreatedAt = time.UnixMilli(created)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate steps: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// Ping verifies the database connection is alive.
func (s *sqlStore[S]) Ping(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.db.PingContext(ctx)
}

// Close closes the database. After Close every operation returns an error.
// Closing twice is a no-op.
func (s *sqlStore[S]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
