package models

import "time"

// EvaluationStatus is the client-side view of how far a project has been verified.
type EvaluationStatus string

const (
	EvaluationNotEvaluated  EvaluationStatus = "not_evaluated"
	EvaluationAIOnly        EvaluationStatus = "ai_only"
	EvaluationHumanVerified EvaluationStatus = "human_verified"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Evaluation is the dark-pattern view of a backend Project, optionally joined
// with the state of its latest analysis task.
type Evaluation struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	SiteURL           string           `json:"site_url"`
	EvaluationType    string           `json:"evaluation_type"`
	EvaluationStatus  EvaluationStatus `json:"evaluation_status"`
	TransparencyScore float64          `json:"transparency_score"`
	DarkPatterns      []DarkPattern    `json:"dark_patterns_found"`
	EvaluationMethod  string           `json:"evaluation_method"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	TaskID            string           `json:"task_id,omitempty"`
	TaskStatus        TaskStatus       `json:"task_status,omitempty"`
	TaskProgress      *int             `json:"task_progress,omitempty"`
}

// DarkPattern is a single finding attached to an evaluation.
type DarkPattern struct {
	ID              string   `json:"id"`
	PatternType     string   `json:"pattern_type"`
	Severity        Severity `json:"severity"`
	Description     string   `json:"description"`
	Location        string   `json:"location"`
	Recommendations string   `json:"recommendations,omitempty"`
}

// DocumentAnalysisResult is the result_json of a document analysis task.
type DocumentAnalysisResult struct {
	ContractID             string               `json:"contract_id,omitempty"`
	AnalysisDate           string               `json:"analysis_date"`
	OverallComplianceScore float64              `json:"overall_compliance_score"`
	Summary                string               `json:"summary"`
	CriticalIssues         []string             `json:"critical_issues"`
	Recommendations        []string             `json:"recommendations"`
	Criteria               map[string]Criterion `json:"criteria"`
}

// Criterion is the verdict for a single legal requirement.
type Criterion struct {
	Status          string  `json:"status"`
	Explanation     string  `json:"explanation"`
	Recommendations string  `json:"recommendations"`
	ConfidenceScore float64 `json:"confidence_score"`
}
