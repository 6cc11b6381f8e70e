package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/kiranshivaraju/darkwatch/pkg/models"
)

func complaintPath(id string) string {
	return fmt.Sprintf("/v1/complaints/%s/", url.PathEscape(id))
}

// ListComplaints returns the complaints visible to the current user: their own
// for individuals and owners, all of them for regulators.
func (c *Client) ListComplaints(ctx context.Context) ([]models.Complaint, error) {
	var out listResponse[models.Complaint]
	if err := c.doJSON(ctx, http.MethodGet, "/v1/complaints/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetComplaint(ctx context.Context, id string) (*models.Complaint, error) {
	var out models.Complaint
	if err := c.doJSON(ctx, http.MethodGet, complaintPath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateComplaint(ctx context.Context, in models.ComplaintCreate) (*models.Complaint, error) {
	var out models.Complaint
	if err := c.doJSON(ctx, http.MethodPost, "/v1/complaints/", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RespondToComplaint records a regulator's response. The backend may wrap the
// updated complaint in {"complaint": ...}.
func (c *Client) RespondToComplaint(ctx context.Context, id string, in models.ComplaintResponse) (*models.Complaint, error) {
	if !in.Status.Valid() {
		return nil, fmt.Errorf("invalid response status %q", in.Status)
	}
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodPost, complaintPath(id)+"respond/", in, &raw); err != nil {
		return nil, err
	}
	return decodeComplaint(raw)
}

func decodeComplaint(raw json.RawMessage) (*models.Complaint, error) {
	var wrapped struct {
		Complaint *models.Complaint `json:"complaint"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Complaint != nil {
		return wrapped.Complaint, nil
	}
	var out models.Complaint
	if err := json.NewDecoder(bytes.NewReader(raw)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding complaint: %w", err)
	}
	return &out, nil
}
