package evaluation

import (
	"sort"
	"strings"

	"github.com/kiranshivaraju/darkwatch/pkg/models"
)

const (
	TypeFree      = "free"
	MethodWebsite = "website"

	PatternComplianceViolation = "compliance_violation"
	criterionNonCompliant      = "non_compliant"
)

// FromProject builds the evaluation view of a project. t may be nil.
func FromProject(p *models.Project, t *models.Task) models.Evaluation {
	e := models.Evaluation{
		ID:                p.ID,
		Name:              p.Name,
		SiteURL:           p.SiteURL,
		EvaluationType:    TypeFree,
		EvaluationStatus:  StatusForProject(p.Status),
		TransparencyScore: p.TrustScore,
		DarkPatterns:      []models.DarkPattern{},
		EvaluationMethod:  MethodWebsite,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.CreatedAt,
	}
	if p.UpdatedAt != nil {
		e.UpdatedAt = *p.UpdatedAt
	}
	if t != nil {
		e.TaskID = t.ID
		e.TaskStatus = t.Status
		e.TaskProgress = t.Progress
	}
	return e
}

// StatusForProject maps a backend review state onto an evaluation status.
func StatusForProject(s models.ProjectStatus) models.EvaluationStatus {
	switch s {
	case models.ProjectStatusApproved:
		return models.EvaluationHumanVerified
	case models.ProjectStatusSubmitted, models.ProjectStatusUnderReview:
		return models.EvaluationAIOnly
	default:
		return models.EvaluationNotEvaluated
	}
}

// ProjectStatusFor is the inverse of StatusForProject. It is lossy: under_review
// and rejected have no evaluation status of their own.
func ProjectStatusFor(s models.EvaluationStatus) models.ProjectStatus {
	switch s {
	case models.EvaluationHumanVerified:
		return models.ProjectStatusApproved
	case models.EvaluationAIOnly:
		return models.ProjectStatusSubmitted
	default:
		return models.ProjectStatusDraft
	}
}

// PatternsFromDocument turns every non-compliant criterion of a document
// analysis into a compliance_violation finding, ordered by criterion key.
func PatternsFromDocument(r *models.DocumentAnalysisResult) []models.DarkPattern {
	if r == nil || len(r.Criteria) == 0 {
		return []models.DarkPattern{}
	}

	keys := make([]string, 0, len(r.Criteria))
	for k := range r.Criteria {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	patterns := []models.DarkPattern{}
	for _, k := range keys {
		c := r.Criteria[k]
		if c.Status != criterionNonCompliant {
			continue
		}
		patterns = append(patterns, models.DarkPattern{
			ID:              k,
			PatternType:     PatternComplianceViolation,
			Severity:        severityFor(c.ConfidenceScore),
			Description:     c.Explanation,
			Location:        strings.ReplaceAll(k, "_", " "),
			Recommendations: c.Recommendations,
		})
	}
	return patterns
}

func severityFor(confidence float64) models.Severity {
	switch {
	case confidence > 0.8:
		return models.SeverityCritical
	case confidence > 0.5:
		return models.SeverityHigh
	default:
		return models.SeverityMedium
	}
}

// RoleFromBackend maps the backend role string. Unknown roles and "user"
// become individual.
func RoleFromBackend(role string) models.Role {
	switch role {
	case "admin":
		return models.RoleAdmin
	case "regulator":
		return models.RoleRegulator
	case "owner":
		return models.RoleOwner
	default:
		return models.RoleIndividual
	}
}

func UserTypeFor(r models.Role) models.UserType {
	switch r {
	case models.RoleRegulator, models.RoleAdmin:
		return models.UserTypeGovernment
	case models.RoleOwner:
		return models.UserTypeBusiness
	default:
		return models.UserTypeIndividual
	}
}

// Summary aggregates a list of evaluations.
type Summary struct {
	Total                    int                                             `json:"total"`
	HumanVerified            int                                             `json:"human_verified"`
	AverageTransparencyScore float64                                         `json:"average_transparency_score"`
	ByStatus                 map[models.EvaluationStatus][]models.Evaluation `json:"by_status"`
}

// Summarize counts evaluations and groups them by status. All three statuses
// are always present in ByStatus; evaluations with any other status are
// counted but not grouped.
func Summarize(evals []models.Evaluation) Summary {
	s := Summary{
		Total: len(evals),
		ByStatus: map[models.EvaluationStatus][]models.Evaluation{
			models.EvaluationNotEvaluated:  {},
			models.EvaluationAIOnly:        {},
			models.EvaluationHumanVerified: {},
		},
	}
	var sum float64
	for _, e := range evals {
		sum += e.TransparencyScore
		if e.EvaluationStatus == models.EvaluationHumanVerified {
			s.HumanVerified++
		}
		if group, ok := s.ByStatus[e.EvaluationStatus]; ok {
			s.ByStatus[e.EvaluationStatus] = append(group, e)
		}
	}
	if len(evals) > 0 {
		s.AverageTransparencyScore = sum / float64(len(evals))
	}
	return s
}
