package apitest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handler builds the chi router with the middleware stack and all routes,
// mounted under /api like the real backend.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(s.logRequests)
	r.Use(s.recovery)

	r.Route("/api", func(r chi.Router) {
		// Public token endpoints
		r.Post("/token/", s.obtainToken)
		r.Post("/token/refresh/", s.refreshToken)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Get("/users/me/", s.me)

			r.Post("/v1/agents/analyze-document/", s.analyzeDocument)
			r.Post("/v1/agents/analyze-website/", s.agentHandler(false))
			r.Post("/v1/agents/detect-dark-patterns/", s.agentHandler(false))
			r.Post("/v1/agents/detect-pattern/", s.agentHandler(true))

			r.Post("/v1/tasks/submit/", s.submitTask)
			r.Get("/v1/tasks/{taskID}/status/", s.taskStatus)
			r.Get("/v1/tasks/{taskID}/result/", s.taskResult)
			r.Get("/v1/tasks/{taskID}/result/download_url/", s.taskDownloadURL)

			r.Get("/v1/projects/", s.listProjects)
			r.Post("/v1/projects/", s.createProject)
			r.Get("/v1/projects/catalog/", s.projectCatalog)
			r.Get("/v1/projects/{projectID}/", s.getProject)
			r.Patch("/v1/projects/{projectID}/", s.updateProject)
			r.Delete("/v1/projects/{projectID}/", s.deleteProject)
			r.Post("/v1/projects/{projectID}/submit/", s.submitProject)
			r.Get("/v1/projects/{projectID}/complaints/", s.listProjectComplaints)
			r.Post("/v1/projects/{projectID}/complaints/", s.createProjectComplaint)

			r.Get("/v1/complaints/", s.listComplaints)
			r.Post("/v1/complaints/", s.createComplaint)
			r.Get("/v1/complaints/{complaintID}/", s.getComplaint)

			r.Get("/v1/dashboard/stats/", s.dashboardStats)

			// Regulator routes
			r.Group(func(r chi.Router) {
				r.Use(requireRole("regulator", "admin"))

				r.Post("/v1/complaints/{complaintID}/respond/", s.respondToComplaint)
				r.Get("/v1/regulator/stats/", s.regulatorStats)
				r.Get("/v1/regulator/stats/expanded/", s.regulatorExpandedStats)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		detail(w, http.StatusNotFound, "Not found.")
	})

	return r
}
