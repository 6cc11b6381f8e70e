package apitest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kiranshivaraju/darkwatch/pkg/models"
)

// visibleProject returns the project if the current user may see it.
// Callers hold s.mu.
func (s *Server) visibleProject(r *http.Request) (*models.Project, bool) {
	p, ok := s.projects[chi.URLParam(r, "projectID")]
	if !ok {
		return nil, false
	}
	u := currentUser(r)
	if p.Owner != u.Username && !isStaff(u) && p.Status != models.ProjectStatusApproved {
		return nil, false
	}
	return p, true
}

// canEdit reports whether the current user may modify p.
func canEdit(r *http.Request, p *models.Project) bool {
	u := currentUser(r)
	return p.Owner == u.Username || u.BackendRole == "admin"
}

// GET /v1/projects/
func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	s.mu.Lock()
	list := s.projectList(func(p *models.Project) bool {
		return isStaff(u) || p.Owner == u.Username
	})
	s.mu.Unlock()
	s.writeList(w, list, len(list))
}

// GET /v1/projects/catalog/
func (s *Server) projectCatalog(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	list := s.projectList(func(p *models.Project) bool {
		return p.Status == models.ProjectStatusApproved
	})
	s.mu.Unlock()
	s.writeList(w, list, len(list))
}

// POST /v1/projects/
func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var in models.ProjectInput
	if !decode(r, &in) || in.Name == "" {
		detail(w, http.StatusBadRequest, "name is required")
		return
	}
	p := s.AddProject(models.Project{
		Name:    in.Name,
		SiteURL: in.SiteURL,
		Owner:   currentUser(r).Username,
	})
	writeJSON(w, http.StatusCreated, p)
}

// GET /v1/projects/{projectID}/
func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	p, ok := s.visibleProject(r)
	var out models.Project
	if ok {
		out = *p
	}
	s.mu.Unlock()

	if !ok {
		detail(w, http.StatusNotFound, "Not found.")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// PATCH /v1/projects/{projectID}/
func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	var in models.ProjectInput
	if !decode(r, &in) {
		detail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.visibleProject(r)
	if !ok {
		detail(w, http.StatusNotFound, "Not found.")
		return
	}
	if !canEdit(r, p) {
		detail(w, http.StatusForbidden, "You do not have permission to perform this action.")
		return
	}
	if in.Name != "" {
		p.Name = in.Name
	}
	if in.SiteURL != "" {
		p.SiteURL = in.SiteURL
	}
	now := s.now().UTC()
	p.UpdatedAt = &now
	writeJSON(w, http.StatusOK, *p)
}

// DELETE /v1/projects/{projectID}/
func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.visibleProject(r)
	if !ok {
		detail(w, http.StatusNotFound, "Not found.")
		return
	}
	if !canEdit(r, p) {
		detail(w, http.StatusForbidden, "You do not have permission to perform this action.")
		return
	}
	delete(s.projects, p.ID)
	w.WriteHeader(http.StatusNoContent)
}

// POST /v1/projects/{projectID}/submit/
func (s *Server) submitProject(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.visibleProject(r)
	if !ok {
		detail(w, http.StatusNotFound, "Not found.")
		return
	}
	if !canEdit(r, p) {
		detail(w, http.StatusForbidden, "You do not have permission to perform this action.")
		return
	}
	if p.Status != models.ProjectStatusDraft && p.Status != models.ProjectStatusRejected {
		detail(w, http.StatusBadRequest, "Only draft or rejected projects can be submitted.")
		return
	}
	p.Status = models.ProjectStatusSubmitted
	now := s.now().UTC()
	p.UpdatedAt = &now
	writeJSON(w, http.StatusOK, models.ProjectSubmission{ID: p.ID, Status: p.Status})
}

// POST /v1/projects/{projectID}/complaints/ acknowledges with the new id only.
func (s *Server) createProjectComplaint(w http.ResponseWriter, r *http.Request) {
	var in models.ComplaintCreate
	if !decode(r, &in) || in.Text == "" {
		detail(w, http.StatusBadRequest, "text is required")
		return
	}

	s.mu.Lock()
	p, ok := s.visibleProject(r)
	var projectID string
	if ok {
		projectID = p.ID
	}
	s.mu.Unlock()
	if !ok {
		detail(w, http.StatusNotFound, "Not found.")
		return
	}

	in.Project = projectID
	c := s.addComplaint(r, in)
	writeJSON(w, http.StatusCreated, map[string]string{"id": c.ID})
}

// GET /v1/projects/{projectID}/complaints/
func (s *Server) listProjectComplaints(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	s.mu.Lock()
	p, ok := s.visibleProject(r)
	var list []models.Complaint
	if ok {
		list = s.complaintList(func(c *models.Complaint) bool {
			if c.Project != p.ID {
				return false
			}
			return isStaff(u) || p.Owner == u.Username || c.AuthorName == u.Username
		})
	}
	s.mu.Unlock()

	if !ok {
		detail(w, http.StatusNotFound, "Not found.")
		return
	}
	s.writeList(w, list, len(list))
}
