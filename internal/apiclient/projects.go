package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/kiranshivaraju/darkwatch/pkg/models"
)

func projectPath(id string) string {
	return fmt.Sprintf("/v1/projects/%s/", url.PathEscape(id))
}

// ListProjects returns the projects visible to the current user.
func (c *Client) ListProjects(ctx context.Context) ([]models.Project, error) {
	var out listResponse[models.Project]
	if err := c.doJSON(ctx, http.MethodGet, "/v1/projects/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ProjectCatalog returns the public catalog of evaluated projects.
func (c *Client) ProjectCatalog(ctx context.Context) ([]models.Project, error) {
	var out listResponse[models.Project]
	if err := c.doJSON(ctx, http.MethodGet, "/v1/projects/catalog/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var out models.Project
	if err := c.doJSON(ctx, http.MethodGet, projectPath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateProject(ctx context.Context, in models.ProjectInput) (*models.Project, error) {
	var out models.Project
	if err := c.doJSON(ctx, http.MethodPost, "/v1/projects/", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProject applies a partial update; empty fields are left unchanged.
func (c *Client) UpdateProject(ctx context.Context, id string, in models.ProjectInput) (*models.Project, error) {
	var out models.Project
	if err := c.doJSON(ctx, http.MethodPatch, projectPath(id), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, projectPath(id), nil, nil)
}

// SubmitProject moves a draft project into review.
func (c *Client) SubmitProject(ctx context.Context, id string) (*models.ProjectSubmission, error) {
	var out models.ProjectSubmission
	if err := c.doJSON(ctx, http.MethodPost, projectPath(id)+"submit/", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateProjectComplaint files a complaint against a project. The backend only
// acknowledges with an id, so the returned complaint is filled from the input.
func (c *Client) CreateProjectComplaint(ctx context.Context, projectID string, in models.ComplaintCreate) (*models.Complaint, error) {
	var out models.Complaint
	body := models.ComplaintCreate{ComplaintType: in.ComplaintType, Subject: in.Subject, Text: in.Text}
	if err := c.doJSON(ctx, http.MethodPost, projectPath(projectID)+"complaints/", body, &out); err != nil {
		return nil, err
	}
	out.Project = projectID
	if out.Text == "" {
		out.Text = in.Text
	}
	if out.Subject == "" {
		out.Subject = in.Subject
	}
	if out.ComplaintType == "" {
		out.ComplaintType = in.ComplaintType
	}
	if out.ComplaintType == "" {
		out.ComplaintType = models.ComplaintTypeOther
	}
	return &out, nil
}

func (c *Client) ListProjectComplaints(ctx context.Context, projectID string) ([]models.Complaint, error) {
	var out listResponse[models.Complaint]
	if err := c.doJSON(ctx, http.MethodGet, projectPath(projectID)+"complaints/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
