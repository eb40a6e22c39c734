package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformedToken is returned for tokens that are not three dot-separated segments
var ErrMalformedToken = errors.New("malformed token")

// TokenClaims is the subset of bearer token claims the portal reads.
//
// Claims are decoded WITHOUT signature verification. They drive navigation
// decisions only; the backend remains the authority for every API call.
type TokenClaims struct {
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
	UserType string `json:"user_type,omitempty"`
	jwt.RegisteredClaims
}

var unverifiedParser = jwt.NewParser()

// ParseClaims decodes the payload segment of a bearer token without verifying it
func ParseClaims(token string) (*TokenClaims, error) {
	token = strings.TrimSpace(token)
	if strings.Count(token, ".") != 2 {
		return nil, ErrMalformedToken
	}

	claims := &TokenClaims{}
	// the header must also decode and name a known alg; padded segments are rejected
	if _, _, err := unverifiedParser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return claims, nil
}

// IsExpired reports whether token is unusable at now. Anything that cannot be
// decoded, or that carries no exp claim, counts as expired.
func IsExpired(token string, now time.Time) bool {
	claims, err := ParseClaims(token)
	if err != nil || claims.ExpiresAt == nil {
		return true
	}
	return !claims.ExpiresAt.Time.After(now)
}

// ExpiresAt returns the exp claim of token, if it can be decoded
func ExpiresAt(token string) (time.Time, bool) {
	claims, err := ParseClaims(token)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
