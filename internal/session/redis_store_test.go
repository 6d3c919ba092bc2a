package session

import (
	"context"
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
	t.Cleanup(func() { _ = store.Close() })
	return store, s
}

func TestNewRedisStore(t *testing.T) {
	store, _ := setupTestRedis(t)
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestNewRedisStoreRejectsBadURL(t *testing.T) {
	if _, err := NewRedisStore("not a url"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestRedisRevokeToken(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	if err := store.RevokeToken(ctx, "jti-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("RevokeToken failed: %v", err)
	}
	revoked, err := store.IsRevoked(ctx, "jti-1")
	if err != nil || !revoked {
		t.Fatalf("expected jti-1 revoked, got %v %v", revoked, err)
	}
	revoked, err = store.IsRevoked(ctx, "jti-2")
	if err != nil || revoked {
		t.Fatalf("expected jti-2 not revoked, got %v %v", revoked, err)
	}
}

func TestRedisRevocationExpiresWithToken(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()

	if err := store.RevokeToken(ctx, "jti-1", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("RevokeToken failed: %v", err)
	}
	s.FastForward(2 * time.Minute)

	revoked, err := store.IsRevoked(ctx, "jti-1")
	if err != nil || revoked {
		t.Fatalf("expected revocation to lapse, got %v %v", revoked, err)
	}
}

func TestRedisRevokeExpiredTokenIsNoop(t *testing.T) {
	store, s := setupTestRedis(t)
	if err := store.RevokeToken(context.Background(), "old", time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("RevokeToken failed: %v", err)
	}
	if s.Exists("portal:revoked:old") {
		t.Fatal("expected no key for an expired token")
	}
}

func TestRedisPreferences(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()

	if _, ok, err := store.Preference(ctx, "u1", "theme"); err != nil || ok {
		t.Fatalf("expected no preference, got ok=%v err=%v", ok, err)
	}
	if err := store.SetPreference(ctx, "u1", "theme", "dark"); err != nil {
		t.Fatalf("SetPreference failed: %v", err)
	}
	value, ok, err := store.Preference(ctx, "u1", "theme")
	if err != nil || !ok || value != "dark" {
		t.Fatalf("expected dark, got %q ok=%v err=%v", value, ok, err)
	}
	if got := s.HGet("portal:prefs:u1", "theme"); got != "dark" {
		t.Fatalf("unexpected raw value %q", got)
	}
	if _, ok, _ := store.Preference(ctx, "u2", "theme"); ok {
		t.Fatal("preferences leaked across users")
	}
}

func TestRedisStoreSurfacesConnectionErrors(t *testing.T) {
	store, s := setupTestRedis(t)
	s.Close()
	if _, err := store.IsRevoked(context.Background(), "jti"); err == nil {
		t.Fatal("expected error after redis went away")
	}
}
