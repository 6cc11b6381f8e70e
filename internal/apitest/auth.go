package apitest

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kiranshivaraju/darkwatch/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

var errWrongTokenType = errors.New("wrong token type")

type tokenClaims struct {
	TokenType string `json:"token_type"`
	UserID    int    `json:"user_id"`
	jwt.RegisteredClaims
}

func (s *Server) sign(userID int, tokenType string, exp time.Time) (string, error) {
	claims := tokenClaims{
		TokenType: tokenType,
		UserID:    userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        newID(),
			IssuedAt:  jwt.NewNumericDate(s.now()),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) parseToken(raw, tokenType string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenType {
		return nil, errWrongTokenType
	}
	return claims, nil
}

// MintAccess issues an access token for username with an arbitrary expiry,
// letting tests start from an already expired session.
func (s *Server) MintAccess(username string, exp time.Time) (string, error) {
	s.mu.Lock()
	acc, ok := s.accounts[username]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("apitest: unknown user %q", username)
	}
	return s.sign(acc.user.ID, tokenTypeAccess, exp)
}

// MintRefresh issues a refresh token for username.
func (s *Server) MintRefresh(username string) (string, error) {
	s.mu.Lock()
	acc, ok := s.accounts[username]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("apitest: unknown user %q", username)
	}
	return s.sign(acc.user.ID, tokenTypeRefresh, s.now().Add(s.refreshTTL))
}

func (s *Server) userByID(id int) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acc := range s.accounts {
		if acc.user.ID == id {
			return acc.user, true
		}
	}
	return models.User{}, false
}

// POST /token/
func (s *Server) obtainToken(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if !decode(r, &creds) || creds.Username == "" || creds.Password == "" {
		detail(w, http.StatusBadRequest, "username and password are required")
		return
	}

	s.mu.Lock()
	acc, ok := s.accounts[creds.Username]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(acc.hash, []byte(creds.Password)) != nil {
		detail(w, http.StatusUnauthorized, "No active account found with the given credentials")
		return
	}

	access, err := s.sign(acc.user.ID, tokenTypeAccess, s.now().Add(s.accessTTL))
	if err != nil {
		detail(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	refresh, err := s.sign(acc.user.ID, tokenTypeRefresh, s.now().Add(s.refreshTTL))
	if err != nil {
		detail(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	writeJSON(w, http.StatusOK, models.Tokens{Access: access, Refresh: refresh})
}

// POST /token/refresh/
func (s *Server) refreshToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Refresh string `json:"refresh"`
	}
	if !decode(r, &body) || body.Refresh == "" {
		detail(w, http.StatusBadRequest, "refresh is required")
		return
	}

	s.mu.Lock()
	revoked := s.revoked[body.Refresh]
	s.mu.Unlock()
	if revoked {
		tokenInvalid(w)
		return
	}

	claims, err := s.parseToken(body.Refresh, tokenTypeRefresh)
	if err != nil {
		tokenInvalid(w)
		return
	}
	access, err := s.sign(claims.UserID, tokenTypeAccess, s.now().Add(s.accessTTL))
	if err != nil {
		detail(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access": access})
}

// GET /users/me/
func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentUser(r))
}
