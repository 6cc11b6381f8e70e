package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kiranshivaraju/darkwatch/pkg/models"
)

// DashboardStats returns role-dependent dashboard figures.
func (c *Client) DashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	var out models.DashboardStats
	if err := c.doJSON(ctx, http.MethodGet, "/v1/dashboard/stats/", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RegulatorStats returns market-wide project aggregates. Regulators and admins only.
func (c *Client) RegulatorStats(ctx context.Context) (*models.RegulatorStats, error) {
	var out models.RegulatorStats
	if err := c.doJSON(ctx, http.MethodGet, "/v1/regulator/stats/", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RegulatorExpandedStats adds per-day creation counts over a window. A
// non-positive days uses the backend default of 30.
func (c *Client) RegulatorExpandedStats(ctx context.Context, days int) (*models.RegulatorExpandedStats, error) {
	path := "/v1/regulator/stats/expanded/"
	if days > 0 {
		path = fmt.Sprintf("%s?days=%d", path, days)
	}
	var out models.RegulatorExpandedStats
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
