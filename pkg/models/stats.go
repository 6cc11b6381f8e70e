package models

// DashboardStats is role dependent: regulators receive market-wide figures,
// business owners receive figures about their own projects.
type DashboardStats struct {
	MarketIntegrityIndex *float64           `json:"market_integrity_index,omitempty"`
	ActiveComplaints     *int               `json:"active_complaints,omitempty"`
	AvgResponseTimeDays  *float64           `json:"avg_response_time_days,omitempty"`
	EnforcementRate      *float64           `json:"enforcement_rate,omitempty"`
	ComplaintStats       *ComplaintStats    `json:"complaint_stats,omitempty"`
	ProjectStats         *ProjectStats      `json:"project_stats,omitempty"`
	TrustScore           *float64           `json:"trust_score,omitempty"`
	ComplianceRate       *float64           `json:"compliance_rate,omitempty"`
	TotalEvaluations     *int               `json:"total_evaluations,omitempty"`
	IssuesToResolve      *int               `json:"issues_to_resolve,omitempty"`
	VerifiedEvaluations  *int               `json:"verified_evaluations,omitempty"`
	AvgTransparency      *float64           `json:"avg_transparency_score,omitempty"`
	DarkPatternsFound    *int               `json:"dark_patterns_found,omitempty"`
	RecentEvaluations    []RecentEvaluation `json:"recent_evaluations,omitempty"`
}

type ComplaintStats struct {
	Total         int `json:"total"`
	Open          int `json:"open"`
	Investigating int `json:"investigating"`
	Resolved      int `json:"resolved"`
	Dismissed     int `json:"dismissed"`
}

type ProjectStats struct {
	AvgTrustScore      float64 `json:"avg_trust_score"`
	TotalProjects      int     `json:"total_projects"`
	HighRiskProjects   int     `json:"high_risk_projects"`
	MediumRiskProjects int     `json:"medium_risk_projects"`
	LowRiskProjects    int     `json:"low_risk_projects"`
}

type RecentEvaluation struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	SiteURL    string  `json:"site_url"`
	Status     string  `json:"status"`
	TrustScore float64 `json:"trust_score"`
	CreatedAt  string  `json:"created_at"`
}

// RegulatorStats is the payload of GET /v1/regulator/stats/.
type RegulatorStats struct {
	Projects ProjectAggregate `json:"projects"`
	ByStatus []StatusCount    `json:"by_status"`
}

// RegulatorExpandedStats is the payload of GET /v1/regulator/stats/expanded/.
type RegulatorExpandedStats struct {
	WindowDays int              `json:"window_days"`
	Projects   ExpandedProjects `json:"projects"`
}

type ExpandedProjects struct {
	Summary      ProjectAggregate `json:"summary"`
	ByStatus     []StatusCount    `json:"by_status"`
	DailyCreated []DailyCount     `json:"daily_created"`
}

type ProjectAggregate struct {
	Total    int      `json:"total"`
	AvgScore *float64 `json:"avg_score"`
}

type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"c"`
}

type DailyCount struct {
	Day   string `json:"day"`
	Count int    `json:"c"`
}
