package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/kiranshivaraju/darkwatch/internal/task"
	"github.com/kiranshivaraju/darkwatch/pkg/models"
)

func taskPath(id, suffix string) string {
	return fmt.Sprintf("/v1/tasks/%s/%s", url.PathEscape(id), suffix)
}

// SubmitTask queues a website for processing (POST /v1/tasks/submit/).
func (c *Client) SubmitTask(ctx context.Context, req models.SubmitTaskRequest) (*models.SubmittedTask, error) {
	var out models.SubmittedTask
	if err := c.doJSON(ctx, http.MethodPost, "/v1/tasks/submit/", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TaskStatus fetches the current state of a task (GET /v1/tasks/{id}/status/).
func (c *Client) TaskStatus(ctx context.Context, id string) (*models.Task, error) {
	var out models.Task
	if err := c.doJSON(ctx, http.MethodGet, taskPath(id, "status/"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TaskResult fetches the full result of a task (GET /v1/tasks/{id}/result/).
func (c *Client) TaskResult(ctx context.Context, id string) (*models.TaskResult, error) {
	var out models.TaskResult
	if err := c.doJSON(ctx, http.MethodGet, taskPath(id, "result/"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TaskResultDownloadURL returns a presigned link to a result stored in object
// storage (GET /v1/tasks/{id}/result/download_url/).
func (c *Client) TaskResultDownloadURL(ctx context.Context, id string) (*models.DownloadURL, error) {
	var out models.DownloadURL
	if err := c.doJSON(ctx, http.MethodGet, taskPath(id, "result/download_url/"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

var _ task.Fetcher = (*Client)(nil)

// agentRequest is the JSON body shared by the URL-based agent endpoints.
type agentRequest struct {
	URL         string `json:"url"`
	PatternType string `json:"pattern_type,omitempty"`
	ProjectID   string `json:"project_id,omitempty"`
}

// AnalyzeWebsite starts a browser-agent analysis (POST /v1/agents/analyze-website/).
func (c *Client) AnalyzeWebsite(ctx context.Context, siteURL, projectID string) (*models.SubmittedTask, error) {
	var out models.SubmittedTask
	body := agentRequest{URL: siteURL, ProjectID: projectID}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/agents/analyze-website/", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DetectDarkPatterns runs every dark-pattern agent against a site
// (POST /v1/agents/detect-dark-patterns/).
func (c *Client) DetectDarkPatterns(ctx context.Context, siteURL, projectID string) (*models.SubmittedTask, error) {
	var out models.SubmittedTask
	body := agentRequest{URL: siteURL, ProjectID: projectID}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/agents/detect-dark-patterns/", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DetectPattern runs a single dark-pattern agent (POST /v1/agents/detect-pattern/).
func (c *Client) DetectPattern(ctx context.Context, siteURL, patternType, projectID string) (*models.SubmittedTask, error) {
	var out models.SubmittedTask
	body := agentRequest{URL: siteURL, PatternType: patternType, ProjectID: projectID}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/agents/detect-pattern/", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AnalyzeDocument uploads a document for legal analysis
// (POST /v1/agents/analyze-document/, multipart). The body is buffered so the
// request can be replayed after a token refresh.
func (c *Client) AnalyzeDocument(ctx context.Context, filename string, r io.Reader, projectID string) (*models.SubmittedTask, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	if projectID != "" {
		if err := mw.WriteField("project_id", projectID); err != nil {
			return nil, fmt.Errorf("writing project_id: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/agents/analyze-document/", &buf)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out models.SubmittedTask
	if err := c.send(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
