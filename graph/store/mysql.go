package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

var mysqlDialect = dialect{
	schema: []string{
		`CREATE TABLE IF NOT EXISTS workflow_steps (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			run_id VARCHAR(255) NOT NULL,
			step INT NOT NULL,
			node_id VARCHAR(255) NOT NULL,
			state JSON NOT NULL,
			created_at BIGINT NOT NULL,
			INDEX idx_run_id (run_id),
			UNIQUE KEY unique_run_step (run_id, step)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
		`CREATE TABLE IF NOT EXISTS workflow_checkpoints (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			checkpoint_id VARCHAR(255) NOT NULL UNIQUE,
			state JSON NOT NULL,
			step INT NOT NULL,
			updated_at BIGINT NOT NULL
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	},
	upsertStep: `
		INSERT INTO workflow_steps (run_id, step, node_id, state, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			node_id = VALUES(node_id),
			state = VALUES(state),
			created_at = VALUES(created_at)`,
	upsertCheckpoint: `
		INSERT INTO workflow_checkpoints (checkpoint_id, state, step, updated_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			state = VALUES(state),
			step = VALUES(step),
			updated_at = VALUES(updated_at)`,
}

// MySQLStore is a MySQL/Aurora implementation of Store[S] and History[S],
// for deployments where several processes serve the same conversations.
//
// Example:
//
//	dsn := "user:pass@tcp(localhost:3306)/teamgraph"
//	st, err := store.NewMySQLStore[graph.State](dsn)
type MySQLStore[S any] struct {
	*sqlStore[S]
}

// NewMySQLStore opens a pooled connection to dsn, verifies it and creates
// the tables if they do not exist.
func NewMySQLStore[S any](dsn string) (*MySQLStore[S], error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	st, err := NewMySQLStoreFromDB[S](ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

// NewMySQLStoreFromDB wraps an existing pool. The store takes ownership of db
// and closes it on Close.
func NewMySQLStoreFromDB[S any](ctx context.Context, db *sql.DB) (*MySQLStore[S], error) {
	inner, err := newSQLStore[S](ctx, db, mysqlDialect)
	if err != nil {
		return nil, err
	}
	return &MySQLStore[S]{sqlStore: inner}, nil
}

// Stats returns connection pool statistics.
func (m *MySQLStore[S]) Stats() sql.DBStats {
	return m.db.Stats()
}
