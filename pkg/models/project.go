package models

import "time"

// ProjectStatus is the review state of a project on the backend.
type ProjectStatus string

const (
	ProjectStatusDraft       ProjectStatus = "draft"
	ProjectStatusSubmitted   ProjectStatus = "submitted"
	ProjectStatusUnderReview ProjectStatus = "under_review"
	ProjectStatusApproved    ProjectStatus = "approved"
	ProjectStatusRejected    ProjectStatus = "rejected"
)

// Project is a website or document registered for evaluation.
type Project struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	SiteURL    string        `json:"site_url"`
	Status     ProjectStatus `json:"status"`
	TrustScore float64       `json:"trust_score"`
	Owner      string        `json:"owner,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  *time.Time    `json:"updated_at,omitempty"`
}

// ProjectInput is the writable subset of a project.
type ProjectInput struct {
	Name    string `json:"name,omitempty"`
	SiteURL string `json:"site_url,omitempty"`
}

// ProjectSubmission is returned by POST /v1/projects/{id}/submit/.
type ProjectSubmission struct {
	ID     string        `json:"id"`
	Status ProjectStatus `json:"status"`
}
