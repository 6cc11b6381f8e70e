package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/kiranshivaraju/darkwatch/internal/apiclient"
	"github.com/kiranshivaraju/darkwatch/internal/evaluation"
	"github.com/kiranshivaraju/darkwatch/internal/store"
	"github.com/kiranshivaraju/darkwatch/internal/task"
	"github.com/kiranshivaraju/darkwatch/pkg/models"
)

// errUsage is returned after usage text has already been printed.
var errUsage = errors.New("usage")

// errNoHistory is returned by "tasks history" without a Postgres store.
var errNoHistory = errors.New("task history requires DARKWATCH_TOKEN_STORE=postgres")

type command func(a *app, ctx context.Context, args []string) error

var commands = map[string]command{
	"login":      (*app).login,
	"logout":     (*app).logout,
	"whoami":     (*app).whoami,
	"analyze":    (*app).analyze,
	"tasks":      (*app).tasks,
	"projects":   (*app).projects,
	"complaints": (*app).complaints,
	"dashboard":  (*app).dashboard,
	"regulator":  (*app).regulator,
	"version":    (*app).version,
}

const usageText = `usage: darkwatch [-o json|yaml] <command> [args]

commands:
  login -u USER [-p PASS]         sign in (password may come from DARKWATCH_PASSWORD)
  logout                          forget the stored tokens
  whoami                          show the signed-in user
  analyze website URL             analyze a website [-project ID] [-wait]
  analyze document FILE           analyze a contract document [-project ID] [-wait]
  tasks submit|status|result|download-url|wait|history
  projects list|get|create|update|delete|submit
  complaints list|get|submit|respond
  dashboard                       role dependent dashboard figures
  regulator stats                 market statistics [-expanded] [-days N]
  version                         print the client version
`

func (a *app) usage() {
	fmt.Fprint(a.stderr, usageText)
}

// run parses the global flags and dispatches to a command.
func (a *app) run(ctx context.Context, args []string) error {
	fs := a.flags("darkwatch")
	fs.StringVar(&a.format, "o", formatJSON, "output format: json or yaml")
	fs.Usage = a.usage
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if a.format != formatJSON && a.format != formatYAML {
		return fmt.Errorf("unknown output format %q", a.format)
	}

	rest := fs.Args()
	if len(rest) == 0 {
		a.usage()
		return errUsage
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		fmt.Fprintf(a.stderr, "unknown command %q\n", rest[0])
		a.usage()
		return errUsage
	}
	return cmd(a, ctx, rest[1:])
}

func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

// parse lets flags follow positional arguments, as in
// "analyze website https://shop.example -wait".
func parse(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, errUsage
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

// subcommand dispatches args[0] to one of subs.
func (a *app) subcommand(ctx context.Context, group string, args []string, subs map[string]command) error {
	names := make([]string, 0, len(subs))
	for name := range subs {
		names = append(names, name)
	}
	sort.Strings(names)

	if len(args) == 0 {
		fmt.Fprintf(a.stderr, "usage: darkwatch %s %s\n", group, strings.Join(names, "|"))
		return errUsage
	}
	cmd, ok := subs[args[0]]
	if !ok {
		fmt.Fprintf(a.stderr, "unknown %s command %q, want one of %s\n", group, args[0], strings.Join(names, "|"))
		return errUsage
	}
	return cmd(a, ctx, args[1:])
}

// exactArgs checks the positional argument count of a command.
func exactArgs(name string, got []string, want ...string) error {
	if len(got) != len(want) {
		return fmt.Errorf("%s: expected %s", name, strings.Join(want, " "))
	}
	return nil
}

// progress reports poll progress on stderr.
func (a *app) progress(percent int) {
	fmt.Fprintf(a.stderr, "progress: %d%%\n", percent)
}

// ─── session ─────────────────────────────────────────────────────────────────

type userView struct {
	ID          int       `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	UserType    string    `json:"user_type"`
	BackendRole string    `json:"backend_role"`
	ExpiresAt   time.Time `json:"session_expires_at,omitzero"`
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := a.flags("login")
	username := fs.String("u", "", "username")
	password := fs.String("p", os.Getenv("DARKWATCH_PASSWORD"), "password")
	if _, err := parse(fs, args); err != nil {
		return err
	}
	if *username == "" || *password == "" {
		return errors.New("login: -u and -p (or DARKWATCH_PASSWORD) are required")
	}

	if err := a.session.Login(ctx, models.Credentials{Username: *username, Password: *password}); err != nil {
		return err
	}
	return a.whoami(ctx, nil)
}

func (a *app) logout(ctx context.Context, args []string) error {
	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.stderr, "logged out")
	return nil
}

func (a *app) whoami(ctx context.Context, args []string) error {
	u, err := a.service.CurrentUser(ctx)
	if err != nil {
		return err
	}
	view := userView{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		Role:        string(u.Role),
		UserType:    string(u.UserType),
		BackendRole: u.BackendRole,
	}
	// The access token may have been refreshed by the call above.
	if claims, err := a.session.Claims(ctx); err == nil {
		view.ExpiresAt = claims.ExpiresAt.UTC()
	}
	return a.render(view)
}

// ─── analyses and tasks ──────────────────────────────────────────────────────

func (a *app) analyze(ctx context.Context, args []string) error {
	return a.subcommand(ctx, "analyze", args, map[string]command{
		"website":  (*app).analyzeWebsite,
		"document": (*app).analyzeDocument,
	})
}

func (a *app) analyzeWebsite(ctx context.Context, args []string) error {
	fs := a.flags("analyze website")
	project := fs.String("project", "", "project id to attach the analysis to")
	pattern := fs.String("pattern", "", "detect a single pattern type only")
	wait := fs.Bool("wait", false, "wait for the result")
	pos, err := parse(fs, args)
	if err != nil {
		return err
	}
	if err := exactArgs("analyze website", pos, "URL"); err != nil {
		return err
	}

	if *pattern != "" {
		sub, err := a.client.DetectPattern(ctx, pos[0], *pattern, *project)
		if err != nil {
			return err
		}
		if !*wait {
			return a.render(sub)
		}
		return a.waitFor(ctx, sub.ID)
	}

	if *wait {
		res, err := a.service.AnalyzeWebsite(ctx, pos[0], *project, a.progress)
		if err != nil {
			return err
		}
		return a.render(res)
	}
	sub, err := a.client.AnalyzeWebsite(ctx, pos[0], *project)
	if err != nil {
		return err
	}
	return a.render(sub)
}

func (a *app) analyzeDocument(ctx context.Context, args []string) error {
	fs := a.flags("analyze document")
	project := fs.String("project", "", "project id to attach the analysis to")
	wait := fs.Bool("wait", false, "wait for the result")
	pos, err := parse(fs, args)
	if err != nil {
		return err
	}
	if err := exactArgs("analyze document", pos, "FILE"); err != nil {
		return err
	}

	f, err := os.Open(pos[0])
	if err != nil {
		return fmt.Errorf("opening document: %w", err)
	}
	defer f.Close()
	name := filepath.Base(pos[0])

	if *wait {
		res, err := a.service.AnalyzeDocument(ctx, name, f, *project, a.progress)
		if err != nil {
			return err
		}
		return a.render(res)
	}
	sub, err := a.client.AnalyzeDocument(ctx, name, f, *project)
	if err != nil {
		return err
	}
	return a.render(sub)
}

func (a *app) tasks(ctx context.Context, args []string) error {
	return a.subcommand(ctx, "tasks", args, map[string]command{
		"submit":       (*app).taskSubmit,
		"status":       (*app).taskStatus,
		"result":       (*app).taskResult,
		"download-url": (*app).taskDownloadURL,
		"wait":         (*app).taskWait,
		"history":      (*app).taskHistory,
	})
}

func (a *app) taskSubmit(ctx context.Context, args []string) error {
	fs := a.flags("tasks submit")
	project := fs.String("project", "", "project id")
	priority := fs.String("priority", "", "low, normal or high")
	pos, err := parse(fs, args)
	if err != nil {
		return err
	}
	if err := exactArgs("tasks submit", pos, "URL"); err != nil {
		return err
	}
	sub, err := a.client.SubmitTask(ctx, models.SubmitTaskRequest{
		URL:      pos[0],
		Project:  *project,
		Priority: models.TaskPriority(*priority),
	})
	if err != nil {
		return err
	}
	return a.render(sub)
}

type taskStatusView struct {
	*models.Task
	Percent int   `json:"percent"`
	Cached  bool  `json:"cached,omitempty"`
	Polls   int64 `json:"polls,omitempty"`
}

// taskStatus falls back to the last recorded status when the backend
// cannot be reached.
func (a *app) taskStatus(ctx context.Context, args []string) error {
	if err := exactArgs("tasks status", args, "ID"); err != nil {
		return err
	}
	t, err := a.client.TaskStatus(ctx, args[0])
	if err == nil {
		return a.render(taskStatusView{Task: t, Percent: task.Progress(t)})
	}
	if a.lastStatus == nil || !(errors.Is(err, apiclient.ErrUnreachable) || errors.Is(err, apiclient.ErrTimeout)) {
		return err
	}

	cached, polls, ok, lerr := a.lastStatus(ctx, args[0])
	if lerr != nil {
		a.logger.Warn("reading recorded task status", "task_id", args[0], "error", lerr)
		return err
	}
	if !ok {
		return err
	}
	a.logger.Warn("backend unavailable, showing recorded status", "task_id", args[0], "error", err)
	return a.render(taskStatusView{Task: cached, Percent: task.Progress(cached), Cached: true, Polls: polls})
}

func (a *app) taskResult(ctx context.Context, args []string) error {
	if err := exactArgs("tasks result", args, "ID"); err != nil {
		return err
	}
	res, err := a.client.TaskResult(ctx, args[0])
	if err != nil {
		return err
	}
	return a.render(res)
}

func (a *app) taskDownloadURL(ctx context.Context, args []string) error {
	if err := exactArgs("tasks download-url", args, "ID"); err != nil {
		return err
	}
	link, err := a.client.TaskResultDownloadURL(ctx, args[0])
	if err != nil {
		return err
	}
	return a.render(link)
}

func (a *app) taskWait(ctx context.Context, args []string) error {
	if err := exactArgs("tasks wait", args, "ID"); err != nil {
		return err
	}
	return a.waitFor(ctx, args[0])
}

func (a *app) waitFor(ctx context.Context, id string) error {
	res, err := a.poller.PollUntilComplete(ctx, id, a.progress)
	if err != nil {
		return err
	}
	return a.render(res)
}

func (a *app) taskHistory(ctx context.Context, args []string) error {
	fs := a.flags("tasks history")
	limit := fs.Int("limit", store.DefaultHistoryLimit, "number of runs to show")
	if _, err := parse(fs, args); err != nil {
		return err
	}
	if a.history == nil {
		return errNoHistory
	}
	runs, err := a.history.ListTaskRuns(ctx, *limit)
	if err != nil {
		return fmt.Errorf("listing task runs: %w", err)
	}
	return a.render(runs)
}

// ─── projects ────────────────────────────────────────────────────────────────

func (a *app) projects(ctx context.Context, args []string) error {
	return a.subcommand(ctx, "projects", args, map[string]command{
		"list":   (*app).projectList,
		"get":    (*app).projectGet,
		"create": (*app).projectCreate,
		"update": (*app).projectUpdate,
		"delete": (*app).projectDelete,
		"submit": (*app).projectSubmit,
	})
}

func (a *app) projectList(ctx context.Context, args []string) error {
	fs := a.flags("projects list")
	catalog := fs.Bool("catalog", false, "list the public catalog of approved projects")
	summary := fs.Bool("summary", false, "print counts and grouping instead of the list")
	if _, err := parse(fs, args); err != nil {
		return err
	}

	var evals []models.Evaluation
	if *catalog {
		projects, err := a.client.ProjectCatalog(ctx)
		if err != nil {
			return err
		}
		evals = make([]models.Evaluation, 0, len(projects))
		for i := range projects {
			evals = append(evals, evaluation.FromProject(&projects[i], nil))
		}
	} else {
		var err error
		if evals, err = a.service.List(ctx); err != nil {
			return err
		}
	}

	if *summary {
		return a.render(evaluation.Summarize(evals))
	}
	return a.render(evals)
}

func (a *app) projectGet(ctx context.Context, args []string) error {
	fs := a.flags("projects get")
	taskID := fs.String("task", "", "join the state of this analysis task")
	pos, err := parse(fs, args)
	if err != nil {
		return err
	}
	if err := exactArgs("projects get", pos, "ID"); err != nil {
		return err
	}
	e, err := a.service.Get(ctx, pos[0], *taskID)
	if err != nil {
		return err
	}
	return a.render(e)
}

func (a *app) projectCreate(ctx context.Context, args []string) error {
	fs := a.flags("projects create")
	name := fs.String("name", "", "project name")
	siteURL := fs.String("url", "", "site URL; when set an analysis task is queued")
	if _, err := parse(fs, args); err != nil {
		return err
	}
	if *name == "" {
		return errors.New("projects create: -name is required")
	}
	e, err := a.service.Create(ctx, models.ProjectInput{Name: *name, SiteURL: *siteURL})
	if err != nil {
		return err
	}
	return a.render(e)
}

func (a *app) projectUpdate(ctx context.Context, args []string) error {
	fs := a.flags("projects update")
	name := fs.String("name", "", "new name")
	siteURL := fs.String("url", "", "new site URL")
	pos, err := parse(fs, args)
	if err != nil {
		return err
	}
	if err := exactArgs("projects update", pos, "ID"); err != nil {
		return err
	}
	if *name == "" && *siteURL == "" {
		return errors.New("projects update: nothing to change, set -name or -url")
	}
	e, err := a.service.Update(ctx, pos[0], models.ProjectInput{Name: *name, SiteURL: *siteURL})
	if err != nil {
		return err
	}
	return a.render(e)
}

func (a *app) projectDelete(ctx context.Context, args []string) error {
	if err := exactArgs("projects delete", args, "ID"); err != nil {
		return err
	}
	if err := a.service.Delete(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(a.stderr, "deleted project %s\n", args[0])
	return nil
}

func (a *app) projectSubmit(ctx context.Context, args []string) error {
	if err := exactArgs("projects submit", args, "ID"); err != nil {
		return err
	}
	sub, err := a.client.SubmitProject(ctx, args[0])
	if err != nil {
		return err
	}
	return a.render(sub)
}

// ─── complaints ──────────────────────────────────────────────────────────────

func (a *app) complaints(ctx context.Context, args []string) error {
	return a.subcommand(ctx, "complaints", args, map[string]command{
		"list":    (*app).complaintList,
		"get":     (*app).complaintGet,
		"submit":  (*app).complaintSubmit,
		"respond": (*app).complaintRespond,
	})
}

func (a *app) complaintList(ctx context.Context, args []string) error {
	fs := a.flags("complaints list")
	project := fs.String("project", "", "only complaints about this project")
	if _, err := parse(fs, args); err != nil {
		return err
	}
	list, err := a.service.Complaints(ctx, *project)
	if err != nil {
		return err
	}
	return a.render(list)
}

func (a *app) complaintGet(ctx context.Context, args []string) error {
	if err := exactArgs("complaints get", args, "ID"); err != nil {
		return err
	}
	c, err := a.client.GetComplaint(ctx, args[0])
	if err != nil {
		return err
	}
	return a.render(c)
}

func (a *app) complaintSubmit(ctx context.Context, args []string) error {
	fs := a.flags("complaints submit")
	project := fs.String("project", "", "project the complaint is about")
	kind := fs.String("type", string(models.ComplaintTypeOther),
		"false_positive, missing_pattern, incorrect_severity or other")
	subject := fs.String("subject", "", "short subject")
	text := fs.String("text", "", "complaint text")
	if _, err := parse(fs, args); err != nil {
		return err
	}
	if *project == "" || *text == "" {
		return errors.New("complaints submit: -project and -text are required")
	}
	c, err := a.service.SubmitComplaint(ctx, *project, models.ComplaintCreate{
		ComplaintType: models.ComplaintType(*kind),
		Subject:       *subject,
		Text:          *text,
	})
	if err != nil {
		return err
	}
	return a.render(c)
}

func (a *app) complaintRespond(ctx context.Context, args []string) error {
	fs := a.flags("complaints respond")
	status := fs.String("status", "", "investigating, resolved or dismissed")
	text := fs.String("text", "", "response text")
	pos, err := parse(fs, args)
	if err != nil {
		return err
	}
	if err := exactArgs("complaints respond", pos, "ID"); err != nil {
		return err
	}
	c, err := a.client.RespondToComplaint(ctx, pos[0], models.ComplaintResponse{
		Status:       models.ComplaintStatus(*status),
		ResponseText: *text,
	})
	if err != nil {
		return err
	}
	return a.render(c)
}

// ─── statistics ──────────────────────────────────────────────────────────────

func (a *app) dashboard(ctx context.Context, args []string) error {
	stats, err := a.client.DashboardStats(ctx)
	if err != nil {
		return err
	}
	return a.render(stats)
}

func (a *app) regulator(ctx context.Context, args []string) error {
	return a.subcommand(ctx, "regulator", args, map[string]command{
		"stats": (*app).regulatorStats,
	})
}

func (a *app) regulatorStats(ctx context.Context, args []string) error {
	fs := a.flags("regulator stats")
	expanded := fs.Bool("expanded", false, "include per-day figures")
	days := fs.Int("days", 0, "window in days for -expanded (backend default when 0)")
	if _, err := parse(fs, args); err != nil {
		return err
	}
	if *expanded {
		stats, err := a.client.RegulatorExpandedStats(ctx, *days)
		if err != nil {
			return err
		}
		return a.render(stats)
	}
	stats, err := a.client.RegulatorStats(ctx)
	if err != nil {
		return err
	}
	return a.render(stats)
}

func (a *app) version(ctx context.Context, args []string) error {
	fmt.Fprintln(a.stdout, figure.NewFigure("darkwatch", "cybermedium", true).String())
	fmt.Fprintf(a.stdout, "darkwatch %s\n", version)
	return nil
}
