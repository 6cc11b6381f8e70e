package apitest

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/kiranshivaraju/darkwatch/pkg/models"
)

const (
	defaultWindowDays = 30
	maxWindowDays     = 365
	recentLimit       = 5
)

func aggregate(projects []models.Project) models.ProjectAggregate {
	agg := models.ProjectAggregate{Total: len(projects)}
	if len(projects) == 0 {
		return agg
	}
	var sum float64
	for _, p := range projects {
		sum += p.TrustScore
	}
	avg := sum / float64(len(projects))
	agg.AvgScore = &avg
	return agg
}

func countByStatus(projects []models.Project) []models.StatusCount {
	counts := map[string]int{}
	for _, p := range projects {
		counts[string(p.Status)]++
	}
	out := make([]models.StatusCount, 0, len(counts))
	for status, n := range counts {
		out = append(out, models.StatusCount{Status: status, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
	return out
}

// GET /v1/regulator/stats/
func (s *Server) regulatorStats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	all := s.projectList(func(*models.Project) bool { return true })
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, models.RegulatorStats{
		Projects: aggregate(all),
		ByStatus: countByStatus(all),
	})
}

// GET /v1/regulator/stats/expanded/?days=N
func (s *Server) regulatorExpandedStats(w http.ResponseWriter, r *http.Request) {
	days := defaultWindowDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxWindowDays {
			detail(w, http.StatusBadRequest, "days must be between 1 and 365")
			return
		}
		days = n
	}
	since := s.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)

	s.mu.Lock()
	window := s.projectList(func(p *models.Project) bool { return !p.CreatedAt.Before(since) })
	s.mu.Unlock()

	perDay := map[string]int{}
	for _, p := range window {
		perDay[p.CreatedAt.UTC().Format(time.DateOnly)]++
	}
	daily := make([]models.DailyCount, 0, len(perDay))
	for day, n := range perDay {
		daily = append(daily, models.DailyCount{Day: day, Count: n})
	}
	sort.Slice(daily, func(i, j int) bool { return daily[i].Day < daily[j].Day })

	writeJSON(w, http.StatusOK, models.RegulatorExpandedStats{
		WindowDays: days,
		Projects: models.ExpandedProjects{
			Summary:      aggregate(window),
			ByStatus:     countByStatus(window),
			DailyCreated: daily,
		},
	})
}

// GET /v1/dashboard/stats/ returns market figures to regulators, portfolio
// figures to owners and catalog figures to everyone else.
func (s *Server) dashboardStats(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case isStaff(u):
		writeJSON(w, http.StatusOK, s.marketStats())
	case u.BackendRole == "owner":
		writeJSON(w, http.StatusOK, s.ownerStats(u.Username))
	default:
		writeJSON(w, http.StatusOK, s.catalogStats())
	}
}

// Callers of the *Stats helpers hold s.mu.

func (s *Server) marketStats() models.DashboardStats {
	projects := s.projectList(func(*models.Project) bool { return true })
	complaints := s.complaintList(func(*models.Complaint) bool { return true })

	cs := models.ComplaintStats{Total: len(complaints)}
	var responseDays float64
	var answered int
	for _, c := range complaints {
		switch c.Status {
		case models.ComplaintStatusOpen:
			cs.Open++
		case models.ComplaintStatusInvestigating:
			cs.Investigating++
		case models.ComplaintStatusResolved:
			cs.Resolved++
		case models.ComplaintStatusDismissed:
			cs.Dismissed++
		}
		if c.ResolvedAt != nil {
			responseDays += c.ResolvedAt.Sub(c.CreatedAt).Hours() / 24
			answered++
		}
	}

	active := cs.Open + cs.Investigating
	integrity := 0.0
	if agg := aggregate(projects); agg.AvgScore != nil {
		integrity = *agg.AvgScore
	}
	enforcement := 0.0
	if cs.Total > 0 {
		enforcement = float64(cs.Resolved) / float64(cs.Total) * 100
	}
	avgResponse := 0.0
	if answered > 0 {
		avgResponse = responseDays / float64(answered)
	}
	return models.DashboardStats{
		MarketIntegrityIndex: &integrity,
		ActiveComplaints:     &active,
		AvgResponseTimeDays:  &avgResponse,
		EnforcementRate:      &enforcement,
		ComplaintStats:       &cs,
	}
}

func (s *Server) ownerStats(owner string) models.DashboardStats {
	projects := s.projectList(func(p *models.Project) bool { return p.Owner == owner })

	ps := models.ProjectStats{TotalProjects: len(projects)}
	var approved int
	for _, p := range projects {
		switch {
		case p.TrustScore < 50:
			ps.HighRiskProjects++
		case p.TrustScore < 75:
			ps.MediumRiskProjects++
		default:
			ps.LowRiskProjects++
		}
		if p.Status == models.ProjectStatusApproved {
			approved++
		}
	}
	if agg := aggregate(projects); agg.AvgScore != nil {
		ps.AvgTrustScore = *agg.AvgScore
	}

	issues := len(s.complaintList(func(c *models.Complaint) bool {
		p, ok := s.projects[c.Project]
		return ok && p.Owner == owner && c.Status == models.ComplaintStatusOpen
	}))
	compliance := 0.0
	if len(projects) > 0 {
		compliance = float64(approved) / float64(len(projects)) * 100
	}
	total := len(projects)
	trust := ps.AvgTrustScore
	return models.DashboardStats{
		TrustScore:        &trust,
		ComplianceRate:    &compliance,
		TotalEvaluations:  &total,
		IssuesToResolve:   &issues,
		ProjectStats:      &ps,
		RecentEvaluations: recent(projects),
	}
}

func (s *Server) catalogStats() models.DashboardStats {
	approved := s.projectList(func(p *models.Project) bool { return p.Status == models.ProjectStatusApproved })
	all := len(s.projects)
	verified := len(approved)
	avg := 0.0
	if agg := aggregate(approved); agg.AvgScore != nil {
		avg = *agg.AvgScore
	}
	return models.DashboardStats{
		TotalEvaluations:    &all,
		VerifiedEvaluations: &verified,
		AvgTransparency:     &avg,
		RecentEvaluations:   recent(approved),
	}
}

// recent returns the newest projects first, at most recentLimit of them.
func recent(projects []models.Project) []models.RecentEvaluation {
	out := make([]models.RecentEvaluation, 0, recentLimit)
	for i := len(projects) - 1; i >= 0 && len(out) < recentLimit; i-- {
		p := projects[i]
		out = append(out, models.RecentEvaluation{
			ID:         p.ID,
			Name:       p.Name,
			SiteURL:    p.SiteURL,
			Status:     string(p.Status),
			TrustScore: p.TrustScore,
			CreatedAt:  p.CreatedAt.Format(time.RFC3339),
		})
	}
	return out
}
