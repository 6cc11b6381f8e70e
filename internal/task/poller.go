// Package task turns an asynchronous backend job into a blocking call by
// polling its status until it reaches a terminal state.
package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/darkwatch/pkg/models"
)

// ErrPollTimeout is returned when a task does not reach a terminal state
// within the attempt budget.
var ErrPollTimeout = errors.New("task polling timeout")

const (
	DefaultMaxAttempts = 60
	DefaultInterval    = 2 * time.Second
)

// Fetcher reads task state from the backend.
type Fetcher interface {
	TaskStatus(ctx context.Context, id string) (*models.Task, error)
	TaskResult(ctx context.Context, id string) (*models.TaskResult, error)
}

// Recorder observes every status fetched during a poll.
type Recorder interface {
	RecordTaskStatus(ctx context.Context, t *models.Task) error
}

// ProgressFunc receives a 0-100 completion estimate after each status fetch.
type ProgressFunc func(percent int)

// Poller runs independent poll loops; concurrent polls of the same id are not deduplicated.
type Poller struct {
	fetcher     Fetcher
	recorder    Recorder
	logger      *slog.Logger
	maxAttempts int
	interval    time.Duration
	wait        func(ctx context.Context, d time.Duration) error
}

// Option configures a Poller.
type Option func(*Poller)

func WithMaxAttempts(n int) Option {
	return func(p *Poller) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d >= 0 {
			p.interval = d
		}
	}
}

// WithRecorder reports every fetched status to r. Recorder failures are logged
// and never fail the poll.
func WithRecorder(r Recorder) Option {
	return func(p *Poller) { p.recorder = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) { p.logger = l }
}

// NewPoller creates a Poller with the default budget of 60 attempts 2s apart.
func NewPoller(f Fetcher, opts ...Option) *Poller {
	p := &Poller{
		fetcher:     f,
		logger:      slog.Default(),
		maxAttempts: DefaultMaxAttempts,
		interval:    DefaultInterval,
		wait:        sleep,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PollUntilComplete fetches the status of task id up to the attempt budget,
// waiting the poll interval between attempts. When the task reaches done or
// failed it fetches and returns the full result. A nil onProgress is allowed.
// Cancelling ctx stops the loop and returns ctx.Err().
func (p *Poller) PollUntilComplete(ctx context.Context, id string, onProgress ProgressFunc) (*models.TaskResult, error) {
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		t, err := p.fetcher.TaskStatus(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("fetching status of task %s: %w", id, err)
		}
		p.record(ctx, t)

		percent := Progress(t)
		p.logger.Debug("task polled",
			"task_id", id,
			"attempt", attempt,
			"status", t.Status,
			"progress", percent,
		)
		if onProgress != nil {
			onProgress(percent)
		}

		if t.Status.IsTerminal() {
			result, err := p.fetcher.TaskResult(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("fetching result of task %s: %w", id, err)
			}
			return result, nil
		}

		if attempt == p.maxAttempts {
			break
		}
		if err := p.wait(ctx, p.interval); err != nil {
			return nil, err
		}
	}

	p.logger.Warn("task did not finish in time",
		"task_id", id,
		"attempts", p.maxAttempts,
		"interval", p.interval,
	)
	return nil, fmt.Errorf("%w: task %s after %d attempts", ErrPollTimeout, id, p.maxAttempts)
}

func (p *Poller) record(ctx context.Context, t *models.Task) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.RecordTaskStatus(ctx, t); err != nil {
		p.logger.Warn("recording task status", "task_id", t.ID, "error", err)
	}
}

// Progress derives a completion percentage from a status payload. An explicit
// non-zero progress field wins; otherwise the status is mapped coarsely.
func Progress(t *models.Task) int {
	if t.Progress != nil && *t.Progress != 0 {
		return clamp(*t.Progress)
	}
	switch t.Status {
	case models.TaskStatusQueued:
		return 10
	case models.TaskStatusInProgress:
		return 50
	case models.TaskStatusDone:
		return 100
	default:
		return 0
	}
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

// sleep waits for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
