// Package auth reads claims out of the backend-issued access token.
//
// The review backend signs its own HS256 tokens and is the only party that
// verifies them. This tier never holds the signing secret; it extracts claims
// without verification, strictly for session bookkeeping (aligning the cookie
// session TTL with the token expiry and remembering which user a session
// belongs to). Every call that touches backend data rides the token itself,
// so a forged token buys nothing here.
package auth

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	UserID    int64
	ExpiresAt time.Time
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)

// ParseClaims decodes the backend access token without signature
// verification and returns the user id and expiry it carries.
func ParseClaims(token string) (Claims, error) {
	parsed := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, parsed); err != nil {
		return Claims{}, ErrInvalidToken
	}

	userID, err := claimInt64(parsed, "user_id")
	if err != nil {
		return Claims{}, ErrInvalidToken
	}

	expiry, err := parsed.GetExpirationTime()
	if err != nil || expiry == nil {
		return Claims{}, ErrInvalidToken
	}
	if time.Now().After(expiry.Time) {
		return Claims{}, ErrExpiredToken
	}

	return Claims{UserID: userID, ExpiresAt: expiry.Time}, nil
}

func claimInt64(claims jwt.MapClaims, key string) (int64, error) {
	raw, ok := claims[key]
	if !ok {
		return 0, fmt.Errorf("missing claim %q", key)
	}
	switch v := raw.(type) {
	case float64:
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case string:
		var n int64
		if _, err := fmt.Sscan(v, &n); err != nil {
			return 0, fmt.Errorf("claim %q: %w", key, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("claim %q has type %T", key, raw)
	}
}

// HashToken derives the storage key for a session id so raw ids never
// appear in the session store.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return fmt.Sprintf("%x", sum)
}
