package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformedToken is returned when a token payload cannot be decoded.
var ErrMalformedToken = errors.New("malformed token")

// subjectClaims are checked in order; the backend issues user_id.
var subjectClaims = []string{"user_id", "sub"}

// Claims is the subset of the access token payload the client relies on.
type Claims struct {
	Subject   string    `json:"subject"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Valid reports whether the claims describe a live session at now.
// A token without an expiry or a subject is never valid.
func (c Claims) Valid(now time.Time) bool {
	if c.Subject == "" || c.ExpiresAt.IsZero() {
		return false
	}
	return now.Before(c.ExpiresAt)
}

// DecodeClaims reads the payload of a JWT without verifying its signature.
// Signature checks belong to the backend; the client only needs expiry and identity.
func DecodeClaims(raw string) (Claims, error) {
	if strings.TrimSpace(raw) == "" {
		return Claims{}, ErrMalformedToken
	}

	token, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, fmt.Errorf("%w: unexpected claims type", ErrMalformedToken)
	}

	c := Claims{Subject: subjectFrom(mc)}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c, nil
}

func subjectFrom(mc jwt.MapClaims) string {
	for _, key := range subjectClaims {
		switch v := mc[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case json.Number:
			return v.String()
		}
	}
	return ""
}
