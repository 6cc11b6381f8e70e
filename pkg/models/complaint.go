package models

import "time"

type ComplaintType string

const (
	ComplaintTypeFalsePositive     ComplaintType = "false_positive"
	ComplaintTypeMissingPattern    ComplaintType = "missing_pattern"
	ComplaintTypeIncorrectSeverity ComplaintType = "incorrect_severity"
	ComplaintTypeOther             ComplaintType = "other"
)

type ComplaintStatus string

const (
	ComplaintStatusOpen          ComplaintStatus = "open"
	ComplaintStatusInvestigating ComplaintStatus = "investigating"
	ComplaintStatusResolved      ComplaintStatus = "resolved"
	ComplaintStatusDismissed     ComplaintStatus = "dismissed"
)

// Complaint disputes the evaluation of a project.
type Complaint struct {
	ID            string          `json:"id"`
	Project       string          `json:"project"`
	ProjectName   string          `json:"project_name,omitempty"`
	ComplaintType ComplaintType   `json:"complaint_type"`
	Subject       string          `json:"subject,omitempty"`
	Text          string          `json:"text"`
	Status        ComplaintStatus `json:"status,omitempty"`
	ResponseText  string          `json:"response_text,omitempty"`
	Author        *int            `json:"author,omitempty"`
	AuthorName    string          `json:"author_name,omitempty"`
	RespondedBy   *int            `json:"responded_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     *time.Time      `json:"updated_at,omitempty"`
	ResolvedAt    *time.Time      `json:"resolved_at,omitempty"`
}

// ComplaintCreate is the body of POST /v1/complaints/ and /v1/projects/{id}/complaints/.
type ComplaintCreate struct {
	Project       string        `json:"project,omitempty"`
	ComplaintType ComplaintType `json:"complaint_type"`
	Subject       string        `json:"subject,omitempty"`
	Text          string        `json:"text"`
}

// ComplaintResponse is a regulator's answer to a complaint.
type ComplaintResponse struct {
	ResponseText string          `json:"response_text"`
	Status       ComplaintStatus `json:"status"`
}

// Valid reports whether a regulator may set this status in a response.
func (s ComplaintStatus) Valid() bool {
	switch s {
	case ComplaintStatusInvestigating, ComplaintStatusResolved, ComplaintStatusDismissed:
		return true
	}
	return false
}
