package apitest

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kiranshivaraju/darkwatch/pkg/models"
)

const maxUploadBytes = 10 << 20

// newTask records a task owned by the current user and returns its
// acknowledgement. Callers must not hold s.mu.
func (s *Server) newTask(r *http.Request, url, projectID, patternType string) models.SubmittedTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	rec := &taskRecord{
		task: models.Task{
			ID:        newID(),
			URL:       url,
			Project:   projectID,
			Status:    models.TaskStatusNew,
			Priority:  models.TaskPriorityNormal,
			CreatedAt: &now,
			UpdatedAt: &now,
		},
		owner:  currentUser(r).Username,
		script: s.script,
		result: s.result,
	}
	s.tasks[rec.task.ID] = rec
	return models.SubmittedTask{
		ID:          rec.task.ID,
		Status:      models.TaskStatusQueued,
		Message:     "Task submitted",
		PatternType: patternType,
	}
}

// lookupTask returns the task if the current user may see it.
func (s *Server) lookupTask(r *http.Request) (*taskRecord, bool) {
	rec, ok := s.tasks[chi.URLParam(r, "taskID")]
	if !ok {
		return nil, false
	}
	u := currentUser(r)
	if rec.owner != u.Username && !isStaff(u) {
		return nil, false
	}
	return rec, true
}

// POST /v1/tasks/submit/
func (s *Server) submitTask(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitTaskRequest
	if !decode(r, &req) || req.URL == "" {
		detail(w, http.StatusBadRequest, "url is required")
		return
	}
	writeJSON(w, http.StatusAccepted, s.newTask(r, req.URL, req.Project, ""))
}

// GET /v1/tasks/{taskID}/status/ advances the task one step along its script.
func (s *Server) taskStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	rec, ok := s.lookupTask(r)
	if !ok {
		s.mu.Unlock()
		detail(w, http.StatusNotFound, "Not found.")
		return
	}
	if len(rec.script) > 0 {
		idx := rec.step
		if idx >= len(rec.script) {
			idx = len(rec.script) - 1
		}
		rec.task.Status = rec.script[idx]
		rec.step++
	}
	now := s.now().UTC()
	rec.task.UpdatedAt = &now
	if rec.task.Status == models.TaskStatusInProgress && rec.task.StartedAt == nil {
		rec.task.StartedAt = &now
	}
	if rec.task.Status.IsTerminal() && rec.task.FinishedAt == nil {
		rec.task.FinishedAt = &now
		if rec.task.Status == models.TaskStatusFailed {
			rec.task.Error = "analysis failed"
		}
	}
	t := rec.task
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, t)
}

// GET /v1/tasks/{taskID}/result/
func (s *Server) taskResult(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	rec, ok := s.lookupTask(r)
	if !ok {
		s.mu.Unlock()
		detail(w, http.StatusNotFound, "Not found.")
		return
	}
	t := rec.task
	result := rec.result
	s.mu.Unlock()

	if !t.Status.IsTerminal() {
		detail(w, http.StatusConflict, "Task is not finished.")
		return
	}
	res := models.TaskResult{
		ID:          t.ID,
		ResultS3Key: fmt.Sprintf("results/%s.json", t.ID),
		FinishedAt:  t.FinishedAt,
	}
	if t.Status == models.TaskStatusDone {
		res.ResultJSON = result
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /v1/tasks/{taskID}/result/download_url/
func (s *Server) taskDownloadURL(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	rec, ok := s.lookupTask(r)
	var t models.Task
	if ok {
		t = rec.task
	}
	s.mu.Unlock()

	if !ok {
		detail(w, http.StatusNotFound, "Not found.")
		return
	}
	if t.Status != models.TaskStatusDone {
		detail(w, http.StatusNotFound, "Result is not stored yet.")
		return
	}
	writeJSON(w, http.StatusOK, models.DownloadURL{
		URL:       fmt.Sprintf("https://results.invalid/results/%s.json?X-Amz-Expires=3600", t.ID),
		ExpiresIn: 3600,
	})
}

type agentBody struct {
	URL         string `json:"url"`
	PatternType string `json:"pattern_type"`
	ProjectID   string `json:"project_id"`
}

// agentHandler serves the URL-based agent endpoints. needsPattern rejects
// requests without a pattern_type.
func (s *Server) agentHandler(needsPattern bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body agentBody
		if !decode(r, &body) || body.URL == "" {
			detail(w, http.StatusBadRequest, "url is required")
			return
		}
		if needsPattern && body.PatternType == "" {
			detail(w, http.StatusBadRequest, "pattern_type is required")
			return
		}
		writeJSON(w, http.StatusAccepted, s.newTask(r, body.URL, body.ProjectID, body.PatternType))
	}
}

// POST /v1/agents/analyze-document/
func (s *Server) analyzeDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		detail(w, http.StatusBadRequest, "multipart body is required")
		return
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		detail(w, http.StatusBadRequest, "file is required")
		return
	}
	defer f.Close()
	if n, _ := io.Copy(io.Discard, f); n == 0 {
		detail(w, http.StatusBadRequest, "file is empty")
		return
	}
	writeJSON(w, http.StatusAccepted, s.newTask(r, "document://"+hdr.Filename, r.FormValue("project_id"), ""))
}
