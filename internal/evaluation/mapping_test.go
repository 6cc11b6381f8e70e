package evaluation_test

import (
	"testing"
	"time"

	"github.com/kiranshivaraju/darkwatch/internal/evaluation"
	"github.com/kiranshivaraju/darkwatch/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusForProject(t *testing.T) {
	tests := []struct {
		in   models.ProjectStatus
		want models.EvaluationStatus
	}{
		{models.ProjectStatusApproved, models.EvaluationHumanVerified},
		{models.ProjectStatusSubmitted, models.EvaluationAIOnly},
		{models.ProjectStatusUnderReview, models.EvaluationAIOnly},
		{models.ProjectStatusDraft, models.EvaluationNotEvaluated},
		{models.ProjectStatusRejected, models.EvaluationNotEvaluated},
		{"archived", models.EvaluationNotEvaluated},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, evaluation.StatusForProject(tt.in), "status %q", tt.in)
	}
}

func TestProjectStatusFor(t *testing.T) {
	assert.Equal(t, models.ProjectStatusApproved, evaluation.ProjectStatusFor(models.EvaluationHumanVerified))
	assert.Equal(t, models.ProjectStatusSubmitted, evaluation.ProjectStatusFor(models.EvaluationAIOnly))
	assert.Equal(t, models.ProjectStatusDraft, evaluation.ProjectStatusFor(models.EvaluationNotEvaluated))
	assert.Equal(t, models.ProjectStatusDraft, evaluation.ProjectStatusFor("bogus"))
}

func TestFromProject(t *testing.T) {
	created := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	p := &models.Project{
		ID:         "p-1",
		Name:       "Shop",
		SiteURL:    "https://shop.example",
		Status:     models.ProjectStatusSubmitted,
		TrustScore: 64.5,
		CreatedAt:  created,
	}

	e := evaluation.FromProject(p, nil)
	assert.Equal(t, "p-1", e.ID)
	assert.Equal(t, evaluation.TypeFree, e.EvaluationType)
	assert.Equal(t, evaluation.MethodWebsite, e.EvaluationMethod)
	assert.Equal(t, models.EvaluationAIOnly, e.EvaluationStatus)
	assert.Equal(t, 64.5, e.TransparencyScore)
	assert.Equal(t, created, e.UpdatedAt, "updated_at falls back to created_at")
	assert.NotNil(t, e.DarkPatterns)
	assert.Empty(t, e.DarkPatterns)
	assert.Empty(t, e.TaskID)

	updated := created.Add(time.Hour)
	p.UpdatedAt = &updated
	progress := 50
	e = evaluation.FromProject(p, &models.Task{ID: "t-1", Status: models.TaskStatusInProgress, Progress: &progress})
	assert.Equal(t, updated, e.UpdatedAt)
	assert.Equal(t, "t-1", e.TaskID)
	assert.Equal(t, models.TaskStatusInProgress, e.TaskStatus)
	require.NotNil(t, e.TaskProgress)
	assert.Equal(t, 50, *e.TaskProgress)
}

func TestPatternsFromDocument(t *testing.T) {
	doc := &models.DocumentAnalysisResult{
		Criteria: map[string]models.Criterion{
			"withdrawal_right": {Status: "non_compliant", Explanation: "No 14 day withdrawal notice", Recommendations: "Add notice", ConfidenceScore: 0.9},
			"price_disclosure": {Status: "non_compliant", Explanation: "Fees hidden", ConfidenceScore: 0.6},
			"data_retention":   {Status: "non_compliant", Explanation: "Unclear retention", ConfidenceScore: 0.5},
			"seller_identity":  {Status: "compliant", ConfidenceScore: 0.99},
		},
	}

	got := evaluation.PatternsFromDocument(doc)
	require.Len(t, got, 3)

	assert.Equal(t, "data_retention", got[0].ID)
	assert.Equal(t, models.SeverityMedium, got[0].Severity, "0.5 is not above the high threshold")
	assert.Equal(t, "data retention", got[0].Location)

	assert.Equal(t, "price_disclosure", got[1].ID)
	assert.Equal(t, models.SeverityHigh, got[1].Severity)

	assert.Equal(t, "withdrawal_right", got[2].ID)
	assert.Equal(t, models.SeverityCritical, got[2].Severity)
	assert.Equal(t, evaluation.PatternComplianceViolation, got[2].PatternType)
	assert.Equal(t, "No 14 day withdrawal notice", got[2].Description)
	assert.Equal(t, "Add notice", got[2].Recommendations)
}

func TestPatternsFromDocument_Empty(t *testing.T) {
	assert.Empty(t, evaluation.PatternsFromDocument(nil))
	assert.Empty(t, evaluation.PatternsFromDocument(&models.DocumentAnalysisResult{}))
}

func TestRoleAndUserType(t *testing.T) {
	tests := []struct {
		backend  string
		role     models.Role
		userType models.UserType
	}{
		{"admin", models.RoleAdmin, models.UserTypeGovernment},
		{"regulator", models.RoleRegulator, models.UserTypeGovernment},
		{"owner", models.RoleOwner, models.UserTypeBusiness},
		{"user", models.RoleIndividual, models.UserTypeIndividual},
		{"", models.RoleIndividual, models.UserTypeIndividual},
		{"auditor", models.RoleIndividual, models.UserTypeIndividual},
	}
	for _, tt := range tests {
		role := evaluation.RoleFromBackend(tt.backend)
		assert.Equal(t, tt.role, role, "backend role %q", tt.backend)
		assert.Equal(t, tt.userType, evaluation.UserTypeFor(role), "backend role %q", tt.backend)
	}
}

func TestSummarize(t *testing.T) {
	evals := []models.Evaluation{
		{ID: "a", EvaluationStatus: models.EvaluationHumanVerified, TransparencyScore: 90},
		{ID: "b", EvaluationStatus: models.EvaluationAIOnly, TransparencyScore: 60},
		{ID: "c", EvaluationStatus: models.EvaluationNotEvaluated, TransparencyScore: 0},
		{ID: "d", EvaluationStatus: models.EvaluationHumanVerified, TransparencyScore: 70},
	}

	s := evaluation.Summarize(evals)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.HumanVerified)
	assert.InDelta(t, 55.0, s.AverageTransparencyScore, 1e-9)
	assert.Len(t, s.ByStatus[models.EvaluationHumanVerified], 2)
	assert.Len(t, s.ByStatus[models.EvaluationAIOnly], 1)
	assert.Len(t, s.ByStatus[models.EvaluationNotEvaluated], 1)
}

func TestSummarize_Empty(t *testing.T) {
	s := evaluation.Summarize(nil)
	assert.Equal(t, 0, s.Total)
	assert.Equal(t, 0.0, s.AverageTransparencyScore)
	assert.Len(t, s.ByStatus, 3, "every status has a group")
}
