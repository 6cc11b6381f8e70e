package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kiranshivaraju/darkwatch/internal/session"
	"github.com/kiranshivaraju/darkwatch/pkg/models"
)

// TokenClient calls the token endpoints without attaching a session, so a
// refresh can never recurse into another refresh.
type TokenClient struct {
	api *Client
}

// NewTokenClient creates a TokenClient for the given API root.
func NewTokenClient(baseURL string, timeout time.Duration, opts ...Option) *TokenClient {
	return &TokenClient{api: New(baseURL, nil, timeout, opts...)}
}

// Obtain exchanges credentials for a token pair (POST /token/).
func (c *TokenClient) Obtain(ctx context.Context, creds models.Credentials) (*models.Tokens, error) {
	var tokens models.Tokens
	if err := c.api.doJSON(ctx, http.MethodPost, "/token/", creds, &tokens); err != nil {
		return nil, err
	}
	if tokens.Access == "" || tokens.Refresh == "" {
		return nil, fmt.Errorf("token response missing access or refresh token")
	}
	return &tokens, nil
}

// Refresh exchanges a refresh token for a new access token (POST /token/refresh/).
func (c *TokenClient) Refresh(ctx context.Context, refreshToken string) (string, error) {
	var resp struct {
		Access string `json:"access"`
	}
	body := map[string]string{"refresh": refreshToken}
	if err := c.api.doJSON(ctx, http.MethodPost, "/token/refresh/", body, &resp); err != nil {
		return "", err
	}
	if resp.Access == "" {
		return "", fmt.Errorf("refresh response missing access token")
	}
	return resp.Access, nil
}

var _ session.TokenExchanger = (*TokenClient)(nil)

// Me returns the authenticated user (GET /users/me/).
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var u models.User
	if err := c.doJSON(ctx, http.MethodGet, "/users/me/", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
