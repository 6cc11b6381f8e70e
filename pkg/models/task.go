package models

import (
	"encoding/json"
	"time"
)

// TaskStatus is the lifecycle state of a backend analysis task.
type TaskStatus string

const (
	TaskStatusNew        TaskStatus = "new"
	TaskStatusQueued     TaskStatus = "queued"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusFailed     TaskStatus = "failed"
)

// IsTerminal reports whether no further transition can occur from s.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusDone || s == TaskStatusFailed
}

// TaskPriority mirrors the backend queue priority.
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityNormal TaskPriority = "normal"
	TaskPriorityHigh   TaskPriority = "high"
)

// Task tracks an async analysis job. The backend returns a task id on submission;
// the client polls GET /v1/tasks/{id}/status/ until status is done or failed.
type Task struct {
	ID         string          `json:"id"`
	URL        string          `json:"url,omitempty"`
	Project    string          `json:"project,omitempty"`
	Status     TaskStatus      `json:"status"`
	Priority   TaskPriority    `json:"priority,omitempty"`
	Progress   *int            `json:"progress,omitempty"`
	Error      string          `json:"error,omitempty"`
	ResultJSON json.RawMessage `json:"result_json,omitempty"`
	CreatedAt  *time.Time      `json:"created_at,omitempty"`
	UpdatedAt  *time.Time      `json:"updated_at,omitempty"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// TaskResult is the payload of GET /v1/tasks/{id}/result/.
type TaskResult struct {
	ID          string          `json:"id"`
	ResultJSON  json.RawMessage `json:"result_json,omitempty"`
	ResultS3Key string          `json:"result_s3_key,omitempty"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
}

// DownloadURL is a presigned link to a task result stored in object storage.
type DownloadURL struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in"`
}

// SubmittedTask is the acknowledgement returned when a task is created.
type SubmittedTask struct {
	ID          string     `json:"id"`
	Status      TaskStatus `json:"status,omitempty"`
	Message     string     `json:"message,omitempty"`
	PatternType string     `json:"pattern_type,omitempty"`
}

// SubmitTaskRequest is the body of POST /v1/tasks/submit/.
type SubmitTaskRequest struct {
	URL      string       `json:"url"`
	Project  string       `json:"project,omitempty"`
	Priority TaskPriority `json:"priority,omitempty"`
}

// TaskRun is a locally recorded observation of a polled task.
type TaskRun struct {
	TaskID      string     `db:"task_id"       json:"task_id"`
	Status      TaskStatus `db:"status"        json:"status"`
	Progress    *int       `db:"progress"      json:"progress,omitempty"`
	Error       *string    `db:"error"         json:"error,omitempty"`
	Polls       int        `db:"polls"         json:"polls"`
	FirstSeenAt time.Time  `db:"first_seen_at" json:"first_seen_at"`
	LastSeenAt  time.Time  `db:"last_seen_at"  json:"last_seen_at"`
}
