package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kiranshivaraju/darkwatch/internal/session"
	"github.com/kiranshivaraju/darkwatch/pkg/models"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

func accessToken(t *testing.T, subject string, exp time.Time) string {
	t.Helper()
	return signToken(t, jwt.MapClaims{
		"token_type": "access",
		"user_id":    subject,
		"exp":        exp.Unix(),
	})
}

// fakeExchanger records calls to the token endpoints.
type fakeExchanger struct {
	mu           sync.Mutex
	obtainCalls  int
	refreshCalls int
	refreshedTo  string
	tokens       *models.Tokens
	err          error

	// block, when set, holds every Refresh call until it is closed.
	block chan struct{}
}

func (f *fakeExchanger) Obtain(_ context.Context, _ models.Credentials) (*models.Tokens, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.obtainCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.tokens, nil
}

func (f *fakeExchanger) Refresh(_ context.Context, _ string) (string, error) {
	f.mu.Lock()
	f.refreshCalls++
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.refreshedTo, nil
}

func (f *fakeExchanger) refreshes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

var errRefreshRejected = errors.New("token is invalid or expired")

func seededStore(t *testing.T, access, refresh string) *session.MemoryStore {
	t.Helper()
	st := session.NewMemoryStore()
	ctx := context.Background()
	if access != "" {
		require.NoError(t, st.Set(ctx, session.AccessTokenKey, access))
	}
	if refresh != "" {
		require.NoError(t, st.Set(ctx, session.RefreshTokenKey, refresh))
	}
	return st
}

func requireCleared(t *testing.T, st session.TokenStore) {
	t.Helper()
	ctx := context.Background()
	_, ok, err := st.Get(ctx, session.AccessTokenKey)
	require.NoError(t, err)
	require.False(t, ok, "access token should be cleared")
	_, ok, err = st.Get(ctx, session.RefreshTokenKey)
	require.NoError(t, err)
	require.False(t, ok, "refresh token should be cleared")
}
