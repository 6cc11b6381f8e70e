package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/darkwatch/internal/config"
	"github.com/kiranshivaraju/darkwatch/internal/session"
	"github.com/kiranshivaraju/darkwatch/internal/store"
	"github.com/kiranshivaraju/darkwatch/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool.
func setupTestDB(t *testing.T) (*pgxpool.Pool, string) {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("darkwatch_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, store.RunMigrations(connStr))

	pool, err := store.Connect(ctx, config.DatabaseConfig{URL: connStr, MaxOpenConns: 4, MaxIdleConns: 1, ConnMaxLifetime: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool, connStr
}

func TestConnect_BadURL(t *testing.T) {
	_, err := store.Connect(context.Background(), config.DatabaseConfig{URL: "::not a url::"})
	assert.Error(t, err)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	_, connStr := setupTestDB(t)
	assert.NoError(t, store.RunMigrations(connStr), "second run is a no-op")
}

// --- Tokens ---

func TestTokens_Roundtrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool, _ := setupTestDB(t)
	s := store.NewPostgresStore(pool, "default")
	ctx := context.Background()

	_, found, err := s.Get(ctx, session.AccessTokenKey)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Set(ctx, session.AccessTokenKey, "access-1"))
	require.NoError(t, s.Set(ctx, session.AccessTokenKey, "access-2"))
	require.NoError(t, s.Set(ctx, session.RefreshTokenKey, "refresh-1"))

	val, found, err := s.Get(ctx, session.AccessTokenKey)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "access-2", val, "set overwrites")

	require.NoError(t, s.Delete(ctx, session.AccessTokenKey, session.RefreshTokenKey))
	_, found, err = s.Get(ctx, session.RefreshTokenKey)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestTokens_NamespacesAreIsolated(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool, _ := setupTestDB(t)
	ctx := context.Background()

	ci := store.NewPostgresStore(pool, "ci")
	dev := store.NewPostgresStore(pool, "dev")
	require.NoError(t, ci.Set(ctx, session.RefreshTokenKey, "ci-refresh"))

	_, found, err := dev.Get(ctx, session.RefreshTokenKey)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestTokens_BackSessionManager(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool, _ := setupTestDB(t)
	ctx := context.Background()
	s := store.NewPostgresStore(pool, "default")

	m := session.NewManager(s, nil)
	require.NoError(t, s.Set(ctx, session.AccessTokenKey, "not-a-jwt"))
	assert.False(t, m.IsAuthenticated(ctx))

	require.NoError(t, m.Logout(ctx))
	_, found, err := s.Get(ctx, session.AccessTokenKey)
	require.NoError(t, err)
	assert.False(t, found)
}

// --- Task runs ---

func TestRecordTaskStatus_Upserts(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool, _ := setupTestDB(t)
	s := store.NewPostgresStore(pool, "default")
	ctx := context.Background()

	require.NoError(t, s.RecordTaskStatus(ctx, &models.Task{ID: "t-1", Status: models.TaskStatusQueued}))
	progress := 100
	require.NoError(t, s.RecordTaskStatus(ctx, &models.Task{ID: "t-1", Status: models.TaskStatusDone, Progress: &progress}))

	run, err := s.GetTaskRun(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusDone, run.Status)
	assert.Equal(t, 2, run.Polls)
	require.NotNil(t, run.Progress)
	assert.Equal(t, 100, *run.Progress)
	assert.Nil(t, run.Error)
	assert.False(t, run.LastSeenAt.Before(run.FirstSeenAt))
}

func TestRecordTaskStatus_KeepsError(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool, _ := setupTestDB(t)
	s := store.NewPostgresStore(pool, "default")
	ctx := context.Background()

	require.NoError(t, s.RecordTaskStatus(ctx, &models.Task{ID: "t-2", Status: models.TaskStatusFailed, Error: "navigation timeout"}))

	run, err := s.GetTaskRun(ctx, "t-2")
	require.NoError(t, err)
	require.NotNil(t, run.Error)
	assert.Equal(t, "navigation timeout", *run.Error)
}

func TestGetTaskRun_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool, _ := setupTestDB(t)
	s := store.NewPostgresStore(pool, "default")

	_, err := s.GetTaskRun(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListTaskRuns_MostRecentFirst(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool, _ := setupTestDB(t)
	s := store.NewPostgresStore(pool, "default")
	ctx := context.Background()

	for _, id := range []string{"t-a", "t-b", "t-c"} {
		require.NoError(t, s.RecordTaskStatus(ctx, &models.Task{ID: id, Status: models.TaskStatusQueued}))
		time.Sleep(10 * time.Millisecond)
	}

	runs, err := s.ListTaskRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "t-c", runs[0].TaskID)
	assert.Equal(t, "t-b", runs[1].TaskID)

	all, err := s.ListTaskRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
