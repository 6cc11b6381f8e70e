package apitest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kiranshivaraju/darkwatch/pkg/models"
)

// addComplaint stores a complaint authored by the current user. Callers must
// not hold s.mu.
func (s *Server) addComplaint(r *http.Request, in models.ComplaintCreate) models.Complaint {
	u := currentUser(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	author := u.ID
	c := &models.Complaint{
		ID:            newID(),
		Project:       in.Project,
		ComplaintType: in.ComplaintType,
		Subject:       in.Subject,
		Text:          in.Text,
		Status:        models.ComplaintStatusOpen,
		Author:        &author,
		AuthorName:    u.Username,
		CreatedAt:     s.now().UTC(),
	}
	if c.ComplaintType == "" {
		c.ComplaintType = models.ComplaintTypeOther
	}
	if p, ok := s.projects[in.Project]; ok {
		c.ProjectName = p.Name
	}
	s.complaints[c.ID] = c
	return *c
}

// visibleComplaint returns the complaint if the current user may see it.
// Callers hold s.mu.
func (s *Server) visibleComplaint(r *http.Request) (*models.Complaint, bool) {
	c, ok := s.complaints[chi.URLParam(r, "complaintID")]
	if !ok {
		return nil, false
	}
	u := currentUser(r)
	if isStaff(u) || c.AuthorName == u.Username {
		return c, true
	}
	if p, ok := s.projects[c.Project]; ok && p.Owner == u.Username {
		return c, true
	}
	return nil, false
}

// GET /v1/complaints/
func (s *Server) listComplaints(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	s.mu.Lock()
	list := s.complaintList(func(c *models.Complaint) bool {
		if isStaff(u) || c.AuthorName == u.Username {
			return true
		}
		p, ok := s.projects[c.Project]
		return ok && p.Owner == u.Username
	})
	s.mu.Unlock()
	s.writeList(w, list, len(list))
}

// GET /v1/complaints/{complaintID}/
func (s *Server) getComplaint(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	c, ok := s.visibleComplaint(r)
	var out models.Complaint
	if ok {
		out = *c
	}
	s.mu.Unlock()

	if !ok {
		detail(w, http.StatusNotFound, "Not found.")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// POST /v1/complaints/
func (s *Server) createComplaint(w http.ResponseWriter, r *http.Request) {
	var in models.ComplaintCreate
	if !decode(r, &in) || in.Text == "" || in.Project == "" {
		detail(w, http.StatusBadRequest, "project and text are required")
		return
	}
	s.mu.Lock()
	_, exists := s.projects[in.Project]
	s.mu.Unlock()
	if !exists {
		detail(w, http.StatusBadRequest, "Invalid project.")
		return
	}
	writeJSON(w, http.StatusCreated, s.addComplaint(r, in))
}

// POST /v1/complaints/{complaintID}/respond/ is restricted to regulators.
func (s *Server) respondToComplaint(w http.ResponseWriter, r *http.Request) {
	var in models.ComplaintResponse
	if !decode(r, &in) || !in.Status.Valid() {
		detail(w, http.StatusBadRequest, "status must be investigating, resolved or dismissed")
		return
	}

	u := currentUser(r)
	s.mu.Lock()
	c, ok := s.visibleComplaint(r)
	if !ok {
		s.mu.Unlock()
		detail(w, http.StatusNotFound, "Not found.")
		return
	}
	now := s.now().UTC()
	responder := u.ID
	c.Status = in.Status
	c.ResponseText = in.ResponseText
	c.RespondedBy = &responder
	c.UpdatedAt = &now
	if in.Status == models.ComplaintStatusResolved || in.Status == models.ComplaintStatusDismissed {
		c.ResolvedAt = &now
	}
	out := *c
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "complaint": out})
}
