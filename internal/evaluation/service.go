// Package evaluation presents backend projects as dark-pattern evaluations
// and drives analyses from submission to result.
package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/darkwatch/internal/task"
	"github.com/kiranshivaraju/darkwatch/pkg/models"
)

// ErrNoResult is returned when a finished analysis carries no result payload.
var ErrNoResult = errors.New("task finished without a result")

// Backend is the subset of the API client the service needs.
type Backend interface {
	Me(ctx context.Context) (*models.User, error)

	ListProjects(ctx context.Context) ([]models.Project, error)
	GetProject(ctx context.Context, id string) (*models.Project, error)
	CreateProject(ctx context.Context, in models.ProjectInput) (*models.Project, error)
	UpdateProject(ctx context.Context, id string, in models.ProjectInput) (*models.Project, error)
	DeleteProject(ctx context.Context, id string) error

	CreateProjectComplaint(ctx context.Context, projectID string, in models.ComplaintCreate) (*models.Complaint, error)
	ListProjectComplaints(ctx context.Context, projectID string) ([]models.Complaint, error)
	ListComplaints(ctx context.Context) ([]models.Complaint, error)

	SubmitTask(ctx context.Context, req models.SubmitTaskRequest) (*models.SubmittedTask, error)
	TaskStatus(ctx context.Context, id string) (*models.Task, error)
	AnalyzeWebsite(ctx context.Context, siteURL, projectID string) (*models.SubmittedTask, error)
	AnalyzeDocument(ctx context.Context, filename string, r io.Reader, projectID string) (*models.SubmittedTask, error)
}

// Poller blocks until a submitted task finishes.
type Poller interface {
	PollUntilComplete(ctx context.Context, id string, onProgress task.ProgressFunc) (*models.TaskResult, error)
}

// Service implements the evaluation operations on top of the backend.
type Service struct {
	backend Backend
	poller  Poller
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a new evaluation service.
func NewService(backend Backend, poller Poller, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{backend: backend, poller: poller, logger: logger, now: time.Now}
}

// CurrentUser fetches the logged-in user and derives its client role and type.
func (s *Service) CurrentUser(ctx context.Context) (*models.User, error) {
	u, err := s.backend.Me(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching current user: %w", err)
	}
	u.Role = RoleFromBackend(u.BackendRole)
	if u.IsSuperuser {
		u.Role = models.RoleAdmin
	}
	u.UserType = UserTypeFor(u.Role)
	return u, nil
}

func (s *Service) List(ctx context.Context) ([]models.Evaluation, error) {
	projects, err := s.backend.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	evals := make([]models.Evaluation, 0, len(projects))
	for i := range projects {
		evals = append(evals, FromProject(&projects[i], nil))
	}
	return evals, nil
}

// Get returns one evaluation. When taskID is set the task's state is joined
// in; a failed task lookup only drops the task fields.
func (s *Service) Get(ctx context.Context, id, taskID string) (*models.Evaluation, error) {
	p, err := s.backend.GetProject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching project %s: %w", id, err)
	}

	var t *models.Task
	if taskID != "" {
		t, err = s.backend.TaskStatus(ctx, taskID)
		if err != nil {
			s.logger.Debug("task lookup failed", "project_id", id, "task_id", taskID, "error", err)
			t = nil
		}
	}

	e := FromProject(p, t)
	return &e, nil
}

// Create registers a project and, when it has a site URL, queues a task for
// it and reads the task status once.
func (s *Service) Create(ctx context.Context, in models.ProjectInput) (*models.Evaluation, error) {
	p, err := s.backend.CreateProject(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}
	if in.SiteURL == "" {
		e := FromProject(p, nil)
		return &e, nil
	}

	sub, err := s.backend.SubmitTask(ctx, models.SubmitTaskRequest{URL: in.SiteURL, Project: p.ID})
	if err != nil {
		return nil, fmt.Errorf("submitting task for project %s: %w", p.ID, err)
	}
	t, err := s.backend.TaskStatus(ctx, sub.ID)
	if err != nil {
		return nil, fmt.Errorf("reading task %s: %w", sub.ID, err)
	}

	s.logger.Info("evaluation created", "project_id", p.ID, "task_id", t.ID, "status", t.Status)
	e := FromProject(p, t)
	return &e, nil
}

func (s *Service) Update(ctx context.Context, id string, in models.ProjectInput) (*models.Evaluation, error) {
	p, err := s.backend.UpdateProject(ctx, id, in)
	if err != nil {
		return nil, fmt.Errorf("updating project %s: %w", id, err)
	}
	e := FromProject(p, nil)
	return &e, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.backend.DeleteProject(ctx, id); err != nil {
		return fmt.Errorf("deleting project %s: %w", id, err)
	}
	return nil
}

// SubmitComplaint files a complaint against an evaluation.
func (s *Service) SubmitComplaint(ctx context.Context, evaluationID string, in models.ComplaintCreate) (*models.Complaint, error) {
	c, err := s.backend.CreateProjectComplaint(ctx, evaluationID, in)
	if err != nil {
		return nil, fmt.Errorf("submitting complaint for %s: %w", evaluationID, err)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now().UTC()
	}
	return c, nil
}

// Complaints lists the complaints of one evaluation, or every complaint
// visible to the user when evaluationID is empty.
func (s *Service) Complaints(ctx context.Context, evaluationID string) ([]models.Complaint, error) {
	var (
		list []models.Complaint
		err  error
	)
	if evaluationID == "" {
		list, err = s.backend.ListComplaints(ctx)
	} else {
		list, err = s.backend.ListProjectComplaints(ctx, evaluationID)
	}
	if err != nil {
		return nil, fmt.Errorf("listing complaints: %w", err)
	}
	return list, nil
}

// AnalyzeWebsite submits a browser-agent analysis and waits for its result.
func (s *Service) AnalyzeWebsite(ctx context.Context, siteURL, projectID string, onProgress task.ProgressFunc) (*models.TaskResult, error) {
	sub, err := s.backend.AnalyzeWebsite(ctx, siteURL, projectID)
	if err != nil {
		return nil, fmt.Errorf("submitting website analysis: %w", err)
	}
	s.logger.Info("website analysis submitted", "task_id", sub.ID, "url", siteURL)
	return s.poller.PollUntilComplete(ctx, sub.ID, onProgress)
}

// DocumentAnalysis is a finished document analysis with its findings.
type DocumentAnalysis struct {
	TaskID   string                         `json:"task_id"`
	Result   *models.DocumentAnalysisResult `json:"result"`
	Patterns []models.DarkPattern           `json:"dark_patterns"`
}

// AnalyzeDocument uploads a document, waits for the analysis and converts
// non-compliant criteria into findings.
func (s *Service) AnalyzeDocument(ctx context.Context, filename string, r io.Reader, projectID string, onProgress task.ProgressFunc) (*DocumentAnalysis, error) {
	sub, err := s.backend.AnalyzeDocument(ctx, filename, r, projectID)
	if err != nil {
		return nil, fmt.Errorf("submitting document analysis: %w", err)
	}
	s.logger.Info("document analysis submitted", "task_id", sub.ID, "filename", filename)

	res, err := s.poller.PollUntilComplete(ctx, sub.ID, onProgress)
	if err != nil {
		return nil, err
	}
	if len(res.ResultJSON) == 0 || string(res.ResultJSON) == "null" {
		return nil, fmt.Errorf("task %s: %w", sub.ID, ErrNoResult)
	}

	var doc models.DocumentAnalysisResult
	if err := json.Unmarshal(res.ResultJSON, &doc); err != nil {
		return nil, fmt.Errorf("decoding document result of task %s: %w", sub.ID, err)
	}
	return &DocumentAnalysis{
		TaskID:   sub.ID,
		Result:   &doc,
		Patterns: PatternsFromDocument(&doc),
	}, nil
}
