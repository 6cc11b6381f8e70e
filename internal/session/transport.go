package session

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxDrainBytes bounds how much of a rejected response body is read before
// the connection is reused for the retry.
const maxDrainBytes = 4 << 10

// Transport attaches the session's bearer token to every request and, on a
// 401 response, refreshes the access token and replays the request once.
// Requests rejected with a token that has since been replaced skip the
// exchange and replay with the stored token.
type Transport struct {
	Session *Manager
	Base    http.RoundTripper
}

// NewTransport wraps base (http.DefaultTransport when nil).
func NewTransport(m *Manager, base http.RoundTripper) *Transport {
	return &Transport{Session: m, Base: base}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	first := req.Clone(req.Context())
	t.Session.AttachAuth(first)

	resp, err := t.base().RoundTrip(first)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	// A consumed body that cannot be rebuilt cannot be replayed.
	if !replayable(req) {
		return resp, nil
	}

	io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
	resp.Body.Close()

	sent := strings.TrimPrefix(first.Header.Get("Authorization"), "Bearer ")
	access, err := t.Session.refreshAfter(req.Context(), sent)
	if err != nil {
		return nil, err
	}

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewinding request body: %w", err)
		}
		retry.Body = body
	}
	retry.Header.Set("Authorization", "Bearer "+access)

	t.Session.logger.Debug("replaying request with refreshed token",
		"method", req.Method,
		"path", req.URL.Path,
	)
	return t.base().RoundTrip(retry)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

var _ http.RoundTripper = (*Transport)(nil)
