// Package session owns the access/refresh token pair of a logged-in user and
// refreshes the access token when the backend rejects it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kiranshivaraju/darkwatch/pkg/models"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// Sentinel errors for session failures.
var (
	ErrAuthExpired      = errors.New("session expired")
	ErrNotAuthenticated = errors.New("not authenticated")
)

// TokenExchanger talks to the backend token endpoints. It must not route
// through a Transport bound to the same Manager.
type TokenExchanger interface {
	Obtain(ctx context.Context, creds models.Credentials) (*models.Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
}

// Manager is the session context passed to everything that talks to the backend.
type Manager struct {
	store     TokenStore
	exchanger TokenExchanger
	logger    *slog.Logger
	now       func() time.Time
	refreshes singleflight.Group
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for session events.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager over the given store.
func NewManager(store TokenStore, exchanger TokenExchanger, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		exchanger: exchanger,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// IsAuthenticated decodes the stored access token locally. Missing, malformed,
// expired and subject-less tokens all count as unauthenticated.
func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	claims, err := m.Claims(ctx)
	if err != nil {
		return false
	}
	return claims.Valid(m.now())
}

// Claims returns the decoded claims of the stored access token.
func (m *Manager) Claims(ctx context.Context) (Claims, error) {
	access, err := m.accessToken(ctx)
	if err != nil {
		return Claims{}, err
	}
	return DecodeClaims(access)
}

// Token returns the stored access token. It makes Manager an oauth2.TokenSource.
func (m *Manager) Token() (*oauth2.Token, error) {
	return m.token(context.Background())
}

// AttachAuth sets the bearer header on req if an access token is stored.
// It reads the store only and never triggers a refresh.
func (m *Manager) AttachAuth(req *http.Request) {
	tok, err := m.token(req.Context())
	if err != nil {
		return
	}
	tok.SetAuthHeader(req)
}

// Login exchanges credentials for a token pair and persists both tokens.
func (m *Manager) Login(ctx context.Context, creds models.Credentials) error {
	tokens, err := m.exchanger.Obtain(ctx, creds)
	if err != nil {
		return fmt.Errorf("obtaining tokens: %w", err)
	}
	if err := m.store.Set(ctx, AccessTokenKey, tokens.Access); err != nil {
		return fmt.Errorf("storing access token: %w", err)
	}
	if err := m.store.Set(ctx, RefreshTokenKey, tokens.Refresh); err != nil {
		return fmt.Errorf("storing refresh token: %w", err)
	}
	m.logger.Info("logged in", "username", creds.Username)
	return nil
}

// Logout clears both tokens. The backend keeps no server-side session to end.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.store.Delete(ctx, AccessTokenKey, RefreshTokenKey); err != nil {
		return fmt.Errorf("clearing tokens: %w", err)
	}
	return nil
}

// Refresh exchanges the stored refresh token for a new access token and
// persists it. When no refresh token is stored or the exchange fails, both
// tokens are cleared and ErrAuthExpired is returned. Concurrent callers share
// a single exchange.
//
// The exchange runs detached from ctx: cancelling ctx returns ctx.Err() to
// this caller only and never clears the session.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	return m.refreshAfter(ctx, "")
}

// refreshAfter refreshes unless the stored access token no longer equals
// rejected, in which case another caller already refreshed and the stored
// token is returned. An empty rejected always refreshes.
func (m *Manager) refreshAfter(ctx context.Context, rejected string) (string, error) {
	ch := m.refreshes.DoChan("refresh", func() (any, error) {
		return m.refresh(context.WithoutCancel(ctx), rejected)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			m.logger.Debug("joined in-flight token refresh")
		}
		return res.Val.(string), nil
	}
}

func (m *Manager) refresh(ctx context.Context, rejected string) (string, error) {
	if rejected != "" {
		current, ok, err := m.store.Get(ctx, AccessTokenKey)
		if err == nil && ok && current != "" && current != rejected {
			return current, nil
		}
	}

	refreshToken, ok, err := m.store.Get(ctx, RefreshTokenKey)
	if err != nil {
		return "", fmt.Errorf("reading refresh token: %w", err)
	}
	if !ok || refreshToken == "" {
		m.expire(ctx)
		return "", ErrAuthExpired
	}

	access, err := m.exchanger.Refresh(ctx, refreshToken)
	if err != nil {
		// A cancelled or timed-out context says nothing about the refresh token.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("refreshing access token: %w", err)
		}
		m.logger.Warn("token refresh failed", "error", err)
		m.expire(ctx)
		return "", fmt.Errorf("%w: %v", ErrAuthExpired, err)
	}

	if err := m.store.Set(ctx, AccessTokenKey, access); err != nil {
		return "", fmt.Errorf("storing access token: %w", err)
	}
	m.logger.Debug("access token refreshed")
	return access, nil
}

// expire destroys the session after an irrecoverable refresh failure.
func (m *Manager) expire(ctx context.Context) {
	if err := m.store.Delete(ctx, AccessTokenKey, RefreshTokenKey); err != nil {
		m.logger.Error("clearing tokens after refresh failure", "error", err)
	}
}

func (m *Manager) accessToken(ctx context.Context) (string, error) {
	access, ok, err := m.store.Get(ctx, AccessTokenKey)
	if err != nil {
		return "", fmt.Errorf("reading access token: %w", err)
	}
	if !ok || access == "" {
		return "", ErrNotAuthenticated
	}
	return access, nil
}

func (m *Manager) token(ctx context.Context) (*oauth2.Token, error) {
	access, err := m.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	tok := &oauth2.Token{AccessToken: access, TokenType: "Bearer"}
	if claims, err := DecodeClaims(access); err == nil {
		tok.Expiry = claims.ExpiresAt
	}
	return tok, nil
}

var _ oauth2.TokenSource = (*Manager)(nil)
