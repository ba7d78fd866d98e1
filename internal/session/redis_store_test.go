package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	return store, s
}

func TestNewRedisStore(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestSaveAndLookupSession(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	idHash := "test-session-hash"
	data := Data{
		Token:    "backend-jwt",
		UserID:   123,
		Username: "amelie",
		Email:    "amelie@example.com",
		Role:     "supervisor",
	}

	if err := store.Save(ctx, idHash, data, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Lookup(ctx, idHash)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if got.UserID != 123 || got.Token != "backend-jwt" || got.Role != "supervisor" {
		t.Errorf("unexpected session data: %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set on save")
	}
}

func TestLookupExpiredSession(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	idHash := "expired-session"

	if err := store.Save(ctx, idHash, Data{Token: "t", UserID: 456}, time.Now().Add(time.Second)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Fast-forward time in miniredis past the TTL
	s.FastForward(2 * time.Second)

	if _, err := store.Lookup(ctx, idHash); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for expired session, got %v", err)
	}
}

func TestLookupNonExistentSession(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	if _, err := store.Lookup(context.Background(), "no-such-session"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveRejectsExpiredDeadline(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	err := store.Save(context.Background(), "h", Data{Token: "t"}, time.Now().Add(-time.Minute))
	if err == nil {
		t.Fatal("expected error saving an already-expired session")
	}
}

func TestRevokeSession(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	idHash := "revoked-session"

	if err := store.Save(ctx, idHash, Data{Token: "t", UserID: 7}, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Revoke(ctx, idHash); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if _, err := store.Lookup(ctx, idHash); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after revoke, got %v", err)
	}
}

func TestLookupDefaultsRole(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	if err := store.Save(ctx, "roleless", Data{Token: "t", UserID: 9}, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := store.Lookup(ctx, "roleless")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if got.Role != "user" {
		t.Errorf("expected default role user, got %q", got.Role)
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Save(ctx, "h", Data{Token: "t", UserID: 1}, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := store.Lookup(ctx, "h")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if got.UserID != 1 {
		t.Errorf("unexpected data: %+v", got)
	}

	if err := store.Revoke(ctx, "h"); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if _, err := store.Lookup(ctx, "h"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after revoke, got %v", err)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Save(ctx, "h", Data{Token: "t"}, time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := store.Lookup(ctx, "h"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for expired entry, got %v", err)
	}
}
