// Package store persists session tokens and task-run history in Postgres.
package store

import (
	"context"
	"errors"

	"github.com/kiranshivaraju/darkwatch/internal/session"
	"github.com/kiranshivaraju/darkwatch/internal/task"
	"github.com/kiranshivaraju/darkwatch/pkg/models"
)

var ErrNotFound = errors.New("resource not found")

// DefaultHistoryLimit caps ListTaskRuns when no limit is given.
const DefaultHistoryLimit = 20

// Store is the data access interface. All database operations go through here.
type Store interface {
	session.TokenStore
	task.Recorder

	Ping(ctx context.Context) error
	GetTaskRun(ctx context.Context, taskID string) (*models.TaskRun, error)
	ListTaskRuns(ctx context.Context, limit int) ([]*models.TaskRun, error)
}

var _ Store = (*PostgresStore)(nil)
