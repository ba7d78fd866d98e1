package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("backend-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestParseClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	token := signedToken(t, jwt.MapClaims{
		"user_id": 42,
		"exp":     exp.Unix(),
	})

	claims, err := ParseClaims(token)
	if err != nil {
		t.Fatalf("ParseClaims() error = %v", err)
	}
	if claims.UserID != 42 {
		t.Fatalf("unexpected user id: %d", claims.UserID)
	}
	if claims.ExpiresAt.Unix() != exp.Unix() {
		t.Fatalf("unexpected expiry: %v", claims.ExpiresAt)
	}
}

func TestParseClaimsRejectsExpired(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{
		"user_id": 42,
		"exp":     time.Now().Add(-time.Minute).Unix(),
	})

	_, err := ParseClaims(token)
	if !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestParseClaimsRejectsMissingUserID(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := ParseClaims(token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseClaimsRejectsGarbage(t *testing.T) {
	if _, err := ParseClaims("not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestHashTokenIsStable(t *testing.T) {
	a := HashToken("sess_abc")
	b := HashToken("sess_abc")
	if a != b {
		t.Fatal("expected identical hashes for identical input")
	}
	if a == HashToken("sess_def") {
		t.Fatal("expected different hashes for different input")
	}
	if len(a) != 64 {
		t.Fatalf("expected sha256 hex length 64, got %d", len(a))
	}
}
