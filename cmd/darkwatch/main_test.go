package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kiranshivaraju/darkwatch/internal/apiclient"
	"github.com/kiranshivaraju/darkwatch/internal/apitest"
	"github.com/kiranshivaraju/darkwatch/internal/config"
	"github.com/kiranshivaraju/darkwatch/internal/session"
	"github.com/kiranshivaraju/darkwatch/internal/task"
	"github.com/kiranshivaraju/darkwatch/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// ─── harness ─────────────────────────────────────────────────────────────────

type cli struct {
	app     *app
	backend *apitest.Server
	server  *httptest.Server
	stdout  *bytes.Buffer
	stderr  *bytes.Buffer
}

func newCLI(t *testing.T, opts ...apitest.Option) *cli {
	t.Helper()
	return newCLIWithConfig(t, nil, opts...)
}

// newCLIWithConfig lets configure adjust the config before the app is built.
func newCLIWithConfig(t *testing.T, configure func(*config.Config), opts ...apitest.Option) *cli {
	t.Helper()
	backend := apitest.NewServer(opts...)
	ts := backend.Start()
	t.Cleanup(ts.Close)

	cfg := &config.Config{
		API:     config.APIConfig{BaseURL: ts.URL + "/api", Timeout: 5 * time.Second},
		Poll:    config.PollConfig{Interval: 0, MaxAttempts: 5},
		Session: config.SessionConfig{Store: config.StoreMemory, Namespace: "default"},
		Log:     config.LogConfig{Level: "error", Format: "json"},
	}
	if configure != nil {
		configure(cfg)
	}
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	a, err := newApp(context.Background(), cfg, stdout, stderr)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	return &cli{app: a, backend: backend, server: ts, stdout: stdout, stderr: stderr}
}

// exec runs one command and returns what it printed to stdout.
func (c *cli) exec(args ...string) (string, error) {
	c.stdout.Reset()
	c.stderr.Reset()
	err := c.app.run(context.Background(), args)
	return c.stdout.String(), err
}

func (c *cli) mustExec(t *testing.T, args ...string) string {
	t.Helper()
	out, err := c.exec(args...)
	require.NoError(t, err, "darkwatch %s: %s", strings.Join(args, " "), c.stderr.String())
	return out
}

func (c *cli) loginAs(t *testing.T, username, role string) {
	t.Helper()
	c.backend.AddUser(username, "s3cret", role)
	c.mustExec(t, "login", "-u", username, "-p", "s3cret")
}

func decodeOut[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v
}

// ─── session ─────────────────────────────────────────────────────────────────

func TestLoginWhoamiLogout(t *testing.T) {
	c := newCLI(t)
	c.backend.AddUser("rita", "s3cret", "regulator")

	out := c.mustExec(t, "login", "-u", "rita", "-p", "s3cret")
	u := decodeOut[userView](t, out)
	assert.Equal(t, "rita", u.Username)
	assert.Equal(t, "regulator", u.Role)
	assert.Equal(t, "government", u.UserType)
	assert.False(t, u.ExpiresAt.IsZero())

	out = c.mustExec(t, "whoami")
	assert.Equal(t, "rita", decodeOut[userView](t, out).Username)

	c.mustExec(t, "logout")
	assert.Contains(t, c.stderr.String(), "logged out")

	_, err := c.exec("whoami")
	require.ErrorIs(t, err, session.ErrAuthExpired)
}

func TestLogin_PasswordFromEnv(t *testing.T) {
	t.Setenv("DARKWATCH_PASSWORD", "s3cret")
	c := newCLI(t)
	c.backend.AddUser("ada", "s3cret", "owner")

	out := c.mustExec(t, "login", "-u", "ada")
	assert.Equal(t, "business", decodeOut[userView](t, out).UserType)
}

func TestLogin_MissingFlags(t *testing.T) {
	t.Setenv("DARKWATCH_PASSWORD", "")
	c := newCLI(t)

	_, err := c.exec("login", "-u", "ada")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "-u and -p")
}

func TestExitCode(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, 0, exitCode(nil, &buf))
	assert.Equal(t, 2, exitCode(errUsage, &buf))

	buf.Reset()
	assert.Equal(t, 1, exitCode(errors.Join(errors.New("listing"), session.ErrAuthExpired), &buf))
	assert.Contains(t, buf.String(), "run `darkwatch login`")

	buf.Reset()
	assert.Equal(t, 1, exitCode(errors.New("boom"), &buf))
	assert.Equal(t, "darkwatch: boom\n", buf.String())

	buf.Reset()
	assert.Equal(t, 130, exitCode(fmt.Errorf("request canceled: %w", context.Canceled), &buf))
	assert.Equal(t, "darkwatch: interrupted\n", buf.String())
}

// ─── dispatch and output ─────────────────────────────────────────────────────

func TestRun_Usage(t *testing.T) {
	c := newCLI(t)

	_, err := c.exec()
	assert.ErrorIs(t, err, errUsage)

	_, err = c.exec("frobnicate")
	assert.ErrorIs(t, err, errUsage)
	assert.Contains(t, c.stderr.String(), `unknown command "frobnicate"`)

	_, err = c.exec("tasks")
	assert.ErrorIs(t, err, errUsage)
	assert.Contains(t, c.stderr.String(), "download-url|history|result|status|submit|wait")

	_, err = c.exec("-o", "xml", "version")
	assert.EqualError(t, err, `unknown output format "xml"`)
}

func TestRun_YAMLOutput(t *testing.T) {
	c := newCLI(t)
	c.loginAs(t, "ada", "owner")

	out := c.mustExec(t, "-o", "yaml", "whoami")
	var u map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &u))
	assert.Equal(t, "ada", u["username"])
	assert.Equal(t, "owner", u["role"])
}

func TestRun_Version(t *testing.T) {
	c := newCLI(t)
	out := c.mustExec(t, "version")
	assert.Contains(t, out, "darkwatch dev")
}

// ─── analyses and tasks ──────────────────────────────────────────────────────

func TestAnalyzeWebsite_Wait(t *testing.T) {
	c := newCLI(t, apitest.WithTaskResult(json.RawMessage(`{"dark_patterns":[]}`)))
	c.loginAs(t, "ada", "owner")

	out := c.mustExec(t, "analyze", "website", "https://shop.example", "-wait")
	res := decodeOut[models.TaskResult](t, out)
	assert.NotEmpty(t, res.ID)
	assert.JSONEq(t, `{"dark_patterns":[]}`, string(res.ResultJSON))
	assert.Equal(t, "progress: 10%\nprogress: 50%\nprogress: 100%\n", c.stderr.String())
}

func TestAnalyzeWebsite_SinglePattern(t *testing.T) {
	c := newCLI(t)
	c.loginAs(t, "ada", "owner")

	out := c.mustExec(t, "analyze", "website", "-pattern", "confirmshaming", "https://shop.example")
	sub := decodeOut[models.SubmittedTask](t, out)
	assert.Equal(t, "confirmshaming", sub.PatternType)
	assert.Equal(t, models.TaskStatusQueued, sub.Status)
}

func TestAnalyzeDocument_Submit(t *testing.T) {
	c := newCLI(t)
	c.loginAs(t, "ada", "owner")

	path := filepath.Join(t.TempDir(), "terms.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 terms"), 0o600))

	out := c.mustExec(t, "analyze", "document", path)
	assert.NotEmpty(t, decodeOut[models.SubmittedTask](t, out).ID)

	_, err := c.exec("analyze", "document", filepath.Join(t.TempDir(), "missing.pdf"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestTasks_Lifecycle(t *testing.T) {
	c := newCLI(t)
	c.loginAs(t, "ada", "owner")

	sub := decodeOut[models.SubmittedTask](t, c.mustExec(t, "tasks", "submit", "https://shop.example", "-priority", "high"))

	st := decodeOut[map[string]any](t, c.mustExec(t, "tasks", "status", sub.ID))
	assert.Equal(t, "queued", st["status"])
	assert.EqualValues(t, 10, st["percent"])

	res := decodeOut[models.TaskResult](t, c.mustExec(t, "tasks", "wait", sub.ID))
	assert.Equal(t, sub.ID, res.ID)

	link := decodeOut[models.DownloadURL](t, c.mustExec(t, "tasks", "download-url", sub.ID))
	assert.Contains(t, link.URL, sub.ID)

	res = decodeOut[models.TaskResult](t, c.mustExec(t, "tasks", "result", sub.ID))
	assert.Equal(t, sub.ID, res.ID)
}

func TestTasks_WaitTimesOut(t *testing.T) {
	c := newCLI(t, apitest.WithTaskScript(models.TaskStatusQueued))
	c.loginAs(t, "ada", "owner")

	sub := decodeOut[models.SubmittedTask](t, c.mustExec(t, "tasks", "submit", "https://shop.example"))
	_, err := c.exec("tasks", "wait", sub.ID)
	assert.ErrorIs(t, err, task.ErrPollTimeout)
}

func TestTasks_StatusFallsBackToRecordedStatus(t *testing.T) {
	c := newCLI(t)
	c.loginAs(t, "ada", "owner")

	progress := 40
	c.app.lastStatus = func(_ context.Context, id string) (*models.Task, int64, bool, error) {
		return &models.Task{ID: id, Status: models.TaskStatusInProgress, Progress: &progress}, 3, true, nil
	}
	c.server.Close()

	st := decodeOut[map[string]any](t, c.mustExec(t, "tasks", "status", "task-1"))
	assert.Equal(t, "task-1", st["id"])
	assert.Equal(t, "in_progress", st["status"])
	assert.EqualValues(t, 40, st["percent"])
	assert.Equal(t, true, st["cached"])
	assert.EqualValues(t, 3, st["polls"])
}

func TestTasks_StatusUnreachableWithoutRecord(t *testing.T) {
	c := newCLI(t)
	c.loginAs(t, "ada", "owner")
	c.server.Close()

	_, err := c.exec("tasks", "status", "task-1")
	assert.ErrorIs(t, err, apiclient.ErrUnreachable)

	c.app.lastStatus = func(context.Context, string) (*models.Task, int64, bool, error) {
		return nil, 0, false, nil
	}
	_, err = c.exec("tasks", "status", "task-1")
	assert.ErrorIs(t, err, apiclient.ErrUnreachable)
}

func TestTasks_HistoryNeedsPostgres(t *testing.T) {
	c := newCLI(t)
	_, err := c.exec("tasks", "history")
	assert.ErrorIs(t, err, errNoHistory)
}

// ─── projects and complaints ─────────────────────────────────────────────────

func TestProjects(t *testing.T) {
	c := newCLI(t)
	c.loginAs(t, "ada", "owner")

	e := decodeOut[models.Evaluation](t, c.mustExec(t, "projects", "create", "-name", "Shop", "-url", "https://shop.example"))
	assert.Equal(t, "Shop", e.Name)
	assert.Equal(t, models.EvaluationNotEvaluated, e.EvaluationStatus)
	require.NotEmpty(t, e.TaskID)

	got := decodeOut[models.Evaluation](t, c.mustExec(t, "projects", "get", e.ID, "-task", e.TaskID))
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, e.TaskID, got.TaskID)

	got = decodeOut[models.Evaluation](t, c.mustExec(t, "projects", "update", e.ID, "-name", "Shop EU"))
	assert.Equal(t, "Shop EU", got.Name)

	sub := decodeOut[models.ProjectSubmission](t, c.mustExec(t, "projects", "submit", e.ID))
	assert.Equal(t, models.ProjectStatusSubmitted, sub.Status)

	list := decodeOut[[]models.Evaluation](t, c.mustExec(t, "projects", "list"))
	require.Len(t, list, 1)
	assert.Equal(t, models.EvaluationAIOnly, list[0].EvaluationStatus)

	summary := decodeOut[map[string]any](t, c.mustExec(t, "projects", "list", "-summary"))
	assert.EqualValues(t, 1, summary["total"])

	c.mustExec(t, "projects", "delete", e.ID)
	list = decodeOut[[]models.Evaluation](t, c.mustExec(t, "projects", "list"))
	assert.Empty(t, list)
}

func TestProjects_Catalog(t *testing.T) {
	c := newCLI(t)
	c.loginAs(t, "ada", "user")
	c.backend.AddProject(models.Project{Name: "Live", Owner: "bob", TrustScore: 88, Status: models.ProjectStatusApproved})
	c.backend.AddProject(models.Project{Name: "Hidden", Owner: "bob"})

	list := decodeOut[[]models.Evaluation](t, c.mustExec(t, "projects", "list", "-catalog"))
	require.Len(t, list, 1)
	assert.Equal(t, models.EvaluationHumanVerified, list[0].EvaluationStatus)
	assert.InDelta(t, 88.0, list[0].TransparencyScore, 0.001)
}

func TestComplaints(t *testing.T) {
	c := newCLI(t)
	c.loginAs(t, "ada", "owner")
	p := c.backend.AddProject(models.Project{Name: "Shop", Owner: "ada"})

	filed := decodeOut[models.Complaint](t, c.mustExec(t, "complaints", "submit",
		"-project", p.ID, "-type", "missing_pattern", "-subject", "Timer", "-text", "fake countdown"))
	require.NotEmpty(t, filed.ID)
	assert.Equal(t, models.ComplaintTypeMissingPattern, filed.ComplaintType)

	list := decodeOut[[]models.Complaint](t, c.mustExec(t, "complaints", "list", "-project", p.ID))
	require.Len(t, list, 1)
	assert.Equal(t, "fake countdown", list[0].Text)

	got := decodeOut[models.Complaint](t, c.mustExec(t, "complaints", "get", filed.ID))
	assert.Equal(t, models.ComplaintStatusOpen, got.Status)

	_, err := c.exec("complaints", "respond", filed.ID, "-status", "resolved", "-text", "ok")
	require.Error(t, err, "owners cannot respond")

	c.mustExec(t, "logout")
	c.loginAs(t, "rita", "regulator")
	got = decodeOut[models.Complaint](t, c.mustExec(t, "complaints", "respond", filed.ID, "-status", "dismissed", "-text", "no evidence"))
	assert.Equal(t, models.ComplaintStatusDismissed, got.Status)

	all := decodeOut[[]models.Complaint](t, c.mustExec(t, "complaints", "list"))
	assert.Len(t, all, 1)
}

// ─── statistics ──────────────────────────────────────────────────────────────

func TestDashboardAndRegulatorStats(t *testing.T) {
	c := newCLI(t)
	c.loginAs(t, "rita", "regulator")
	c.backend.AddProject(models.Project{Name: "a", TrustScore: 40})
	c.backend.AddProject(models.Project{Name: "b", TrustScore: 60})

	dash := decodeOut[models.DashboardStats](t, c.mustExec(t, "dashboard"))
	require.NotNil(t, dash.MarketIntegrityIndex)
	assert.InDelta(t, 50.0, *dash.MarketIntegrityIndex, 0.001)

	stats := decodeOut[models.RegulatorStats](t, c.mustExec(t, "regulator", "stats"))
	assert.Equal(t, 2, stats.Projects.Total)

	expanded := decodeOut[models.RegulatorExpandedStats](t, c.mustExec(t, "regulator", "stats", "-expanded", "-days", "7"))
	assert.Equal(t, 7, expanded.WindowDays)
	assert.Equal(t, 2, expanded.Projects.Summary.Total)
}

// ─── full process wiring ─────────────────────────────────────────────────────

func TestRun_FileSessionSurvivesBetweenRuns(t *testing.T) {
	backend := apitest.NewServer()
	backend.AddUser("ada", "s3cret", "owner")
	ts := backend.Start()
	defer ts.Close()

	tokenFile := filepath.Join(t.TempDir(), "session.json")
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DARKWATCH_API_BASE_URL", ts.URL+"/api")
	t.Setenv("DARKWATCH_TOKEN_STORE", "file")
	t.Setenv("DARKWATCH_TOKEN_FILE", tokenFile)
	t.Setenv("DARKWATCH_TOKEN_PASSPHRASE", "correct horse")
	t.Setenv("DARKWATCH_LOG_LEVEL", "error")

	ctx := context.Background()
	var stdout, stderr bytes.Buffer
	require.NoError(t, run(ctx, []string{"login", "-u", "ada", "-p", "s3cret"}, &stdout, &stderr))
	assert.FileExists(t, tokenFile)

	stdout.Reset()
	require.NoError(t, run(ctx, []string{"whoami"}, &stdout, &stderr))
	assert.Equal(t, "ada", decodeOut[userView](t, stdout.String()).Username)

	require.NoError(t, run(ctx, []string{"logout"}, &stdout, &stderr))
	assert.NoFileExists(t, tokenFile)
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("DARKWATCH_API_BASE_URL", "ftp://nope")
	err := run(context.Background(), []string{"version"}, &bytes.Buffer{}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}
