// Package db provides PostgreSQL persistence for job results.
package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/leadscout/internal/types"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// EnsureSchema creates the job_results table if it does not exist.
func (db *DB) EnsureSchema(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS job_results (
			job_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			result JSONB NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// SaveResult upserts a terminal job result. The full result, thread URLs
// included, is stored as JSONB.
func (db *DB) SaveResult(ctx context.Context, result *types.JobResult) error {
	jsonBytes, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal job result: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO job_results (job_id, status, result, started_at, ended_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (job_id) DO UPDATE SET status = $2, result = $3, started_at = $4, ended_at = $5`,
		result.JobID, string(result.Status), jsonBytes, result.StartedAt, result.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save job result %s: %w", result.JobID, err)
	}
	return nil
}

// GetResult retrieves a job result by ID. Returns nil without error when no
// result exists.
func (db *DB) GetResult(ctx context.Context, jobID string) (*types.JobResult, error) {
	var content []byte
	err := db.pool.QueryRow(ctx,
		`SELECT result FROM job_results WHERE job_id = $1`,
		jobID,
	).Scan(&content)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job result %s: %w", jobID, err)
	}

	var result types.JobResult
	if err := json.Unmarshal(content, &result); err != nil {
		return nil, fmt.Errorf("failed to decode job result %s: %w", jobID, err)
	}
	return &result, nil
}

// ListResults returns the most recent job results, newest first.
func (db *DB) ListResults(ctx context.Context, limit int) ([]types.JobResult, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.pool.Query(ctx,
		`SELECT result FROM job_results ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list job results: %w", err)
	}
	defer rows.Close()

	var results []types.JobResult
	for rows.Next() {
		var content []byte
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("failed to scan job result: %w", err)
		}
		var result types.JobResult
		if err := json.Unmarshal(content, &result); err != nil {
			return nil, fmt.Errorf("failed to decode job result: %w", err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}
