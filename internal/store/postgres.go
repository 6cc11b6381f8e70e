package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/darkwatch/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool      *pgxpool.Pool
	namespace string
}

// NewPostgresStore creates a PostgresStore. Token rows are scoped by namespace.
func NewPostgresStore(pool *pgxpool.Pool, namespace string) *PostgresStore {
	if namespace == "" {
		namespace = "default"
	}
	return &PostgresStore{pool: pool, namespace: namespace}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Tokens ---

func (s *PostgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM client_tokens WHERE namespace = $1 AND key = $2`,
		s.namespace, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get token %s: %w", key, err)
	}
	return value, true, nil
}

func (s *PostgresStore) Set(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO client_tokens (namespace, key, value, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		s.namespace, key, value)
	if err != nil {
		return fmt.Errorf("set token %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`DELETE FROM client_tokens WHERE namespace = $1 AND key = ANY($2)`,
		s.namespace, keys)
	if err != nil {
		return fmt.Errorf("delete tokens: %w", err)
	}
	return nil
}

// --- Task runs ---

// RecordTaskStatus upserts the latest observation of a task and counts polls.
func (s *PostgresStore) RecordTaskStatus(ctx context.Context, t *models.Task) error {
	var errMsg *string
	if t.Error != "" {
		errMsg = &t.Error
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO task_runs (task_id, status, progress, error, polls, first_seen_at, last_seen_at)
		 VALUES ($1, $2, $3, $4, 1, NOW(), NOW())
		 ON CONFLICT (task_id) DO UPDATE SET
		   status = EXCLUDED.status,
		   progress = EXCLUDED.progress,
		   error = EXCLUDED.error,
		   polls = task_runs.polls + 1,
		   last_seen_at = NOW()`,
		t.ID, string(t.Status), t.Progress, errMsg)
	if err != nil {
		return fmt.Errorf("record task %s: %w", t.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetTaskRun(ctx context.Context, taskID string) (*models.TaskRun, error) {
	var r models.TaskRun
	err := s.pool.QueryRow(ctx,
		`SELECT task_id, status, progress, error, polls, first_seen_at, last_seen_at
		 FROM task_runs WHERE task_id = $1`, taskID,
	).Scan(&r.TaskID, &r.Status, &r.Progress, &r.Error, &r.Polls, &r.FirstSeenAt, &r.LastSeenAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task run: %w", err)
	}
	return &r, nil
}

// ListTaskRuns returns the most recently polled tasks first.
func (s *PostgresStore) ListTaskRuns(ctx context.Context, limit int) ([]*models.TaskRun, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT task_id, status, progress, error, polls, first_seen_at, last_seen_at
		 FROM task_runs ORDER BY last_seen_at DESC, task_id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list task runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.TaskRun
	for rows.Next() {
		var r models.TaskRun
		if err := rows.Scan(&r.TaskID, &r.Status, &r.Progress, &r.Error, &r.Polls,
			&r.FirstSeenAt, &r.LastSeenAt); err != nil {
			return nil, fmt.Errorf("scan task run: %w", err)
		}
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}
