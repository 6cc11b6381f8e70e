package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/kiranshivaraju/darkwatch/internal/apiclient"
	"github.com/kiranshivaraju/darkwatch/internal/cache"
	"github.com/kiranshivaraju/darkwatch/internal/config"
	"github.com/kiranshivaraju/darkwatch/internal/evaluation"
	"github.com/kiranshivaraju/darkwatch/internal/filestore"
	"github.com/kiranshivaraju/darkwatch/internal/session"
	"github.com/kiranshivaraju/darkwatch/internal/store"
	"github.com/kiranshivaraju/darkwatch/internal/task"
	"github.com/kiranshivaraju/darkwatch/pkg/models"
)

// app holds everything a command needs. One app serves one process; tests
// reuse it across commands so an in-memory session survives between them.
type app struct {
	cfg     *config.Config
	stdout  io.Writer
	stderr  io.Writer
	format  string
	logger  *slog.Logger
	session *session.Manager
	client  *apiclient.Client
	poller  *task.Poller
	service *evaluation.Service
	history store.Store
	closers []func()

	// lastStatus reads the most recently recorded status of a task. Nil
	// when the token store does not record task statuses.
	lastStatus statusLookup
}

// statusLookup returns a recorded task status and how many polls observed it.
type statusLookup func(ctx context.Context, id string) (*models.Task, int64, bool, error)

// backends is the outcome of opening the configured token store.
type backends struct {
	tokens   session.TokenStore
	recorder task.Recorder
	history  store.Store
	status   statusLookup
	closers  []func()
}

func newApp(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) (*app, error) {
	logger := slog.Default()

	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	tokens := apiclient.NewTokenClient(cfg.API.BaseURL, cfg.API.Timeout, apiclient.WithLogger(logger))
	sess := session.NewManager(b.tokens, tokens, session.WithLogger(logger))
	client := apiclient.New(cfg.API.BaseURL, sess, cfg.API.Timeout, apiclient.WithLogger(logger))

	pollOpts := []task.Option{
		task.WithInterval(cfg.Poll.Interval),
		task.WithMaxAttempts(cfg.Poll.MaxAttempts),
		task.WithLogger(logger),
	}
	if b.recorder != nil {
		pollOpts = append(pollOpts, task.WithRecorder(b.recorder))
	}
	poller := task.NewPoller(client, pollOpts...)

	return &app{
		cfg:     cfg,
		stdout:  stdout,
		stderr:  stderr,
		format:  formatJSON,
		logger:  logger,
		session: sess,
		client:  client,
		poller:  poller,
		service: evaluation.NewService(client, poller, logger),
		history: b.history,
		closers: b.closers,

		lastStatus: b.status,
	}, nil
}

// openBackends opens the token store selected by DARKWATCH_TOKEN_STORE. The
// shared stores also record every polled task status.
func openBackends(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backends, error) {
	switch cfg.Session.Store {
	case config.StoreMemory:
		return &backends{tokens: session.NewMemoryStore()}, nil

	case config.StoreFile:
		return &backends{tokens: filestore.New(cfg.Session.File, cfg.Session.Passphrase)}, nil

	case config.StoreRedis:
		rc, err := cache.NewRedisCache(cfg.Redis.URL, cfg.Session.Namespace)
		if err != nil {
			return nil, fmt.Errorf("create redis cache: %w", err)
		}
		if err := rc.Ping(ctx); err != nil {
			rc.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		logger.Debug("redis connected")
		return &backends{
			tokens:   rc,
			recorder: rc,
			status:   redisStatus(rc),
			closers:  []func(){func() { rc.Close() }},
		}, nil

	case config.StorePostgres:
		pool, err := store.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := store.RunMigrations(cfg.Database.URL); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Debug("database migrations applied")
		pg := store.NewPostgresStore(pool, cfg.Session.Namespace)
		return &backends{
			tokens:   pg,
			recorder: pg,
			history:  pg,
			status:   postgresStatus(pg),
			closers:  []func(){pool.Close},
		}, nil
	}
	return nil, fmt.Errorf("unknown token store %q", cfg.Session.Store)
}

func redisStatus(rc *cache.RedisCache) statusLookup {
	return func(ctx context.Context, id string) (*models.Task, int64, bool, error) {
		t, ok, err := rc.GetTaskStatus(ctx, id)
		if err != nil || !ok {
			return nil, 0, false, err
		}
		polls, err := rc.TaskPolls(ctx, id)
		if err != nil {
			return nil, 0, false, err
		}
		return t, polls, true, nil
	}
}

func postgresStatus(pg *store.PostgresStore) statusLookup {
	return func(ctx context.Context, id string) (*models.Task, int64, bool, error) {
		run, err := pg.GetTaskRun(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil, 0, false, nil
		}
		if err != nil {
			return nil, 0, false, err
		}
		t := &models.Task{ID: run.TaskID, Status: run.Status, Progress: run.Progress}
		if run.Error != nil {
			t.Error = *run.Error
		}
		return t, int64(run.Polls), true, nil
	}
}

// Close releases connections opened by openBackends, newest first.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
