package auth

import (
	"context"
	"testing"
	"time"

	"tunehall/internal/testsupport/redisstub"
)

func startRedisSessionStore(t *testing.T) *RedisSessionStore {
	t.Helper()
	srv, err := redisstub.Start(redisstub.Options{Password: "secret"})
	if err != nil {
		t.Fatalf("start redis stub: %v", err)
	}
	t.Cleanup(func() {
		_ = srv.Close()
	})
	store, err := NewRedisSessionStore(RedisSessionConfig{
		Addr:     srv.Addr(),
		Password: "secret",
	})
	if err != nil {
		t.Fatalf("new redis session store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestRedisSessionStoreRoundTrip(t *testing.T) {
	store := startRedisSessionStore(t)

	expiresAt := time.Now().Add(time.Hour).UTC()
	if err := store.Save("token-a", 42, expiresAt); err != nil {
		t.Fatalf("Save: %v", err)
	}

	record, found, err := store.Get("token-a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found {
		t.Fatal("saved session not found")
	}
	if record.UserID != 42 {
		t.Fatalf("expected user 42, got %d", record.UserID)
	}
	if record.ExpiresAt.Unix() != expiresAt.Unix() {
		t.Fatalf("expected expiry %v, got %v", expiresAt, record.ExpiresAt)
	}

	if _, found, err := store.Get("token-missing"); err != nil || found {
		t.Fatalf("missing token must report a clean miss, got found=%v err=%v", found, err)
	}
}

func TestRedisSessionStoreDelete(t *testing.T) {
	store := startRedisSessionStore(t)

	if err := store.Save("token-a", 42, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Delete("token-a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, found, err := store.Get("token-a"); err != nil || found {
		t.Fatalf("deleted session must be gone, got found=%v err=%v", found, err)
	}
}

func TestRedisSessionStoreExpiry(t *testing.T) {
	store := startRedisSessionStore(t)

	if err := store.Save("token-a", 42, time.Now().Add(50*time.Millisecond)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if _, found, err := store.Get("token-a"); err != nil || found {
		t.Fatalf("expired session must report a clean miss, got found=%v err=%v", found, err)
	}

	// A save whose expiry already passed removes rather than stores.
	if err := store.Save("token-b", 7, time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("Save past expiry: %v", err)
	}
	if _, found, err := store.Get("token-b"); err != nil || found {
		t.Fatalf("past-expiry save must not persist, got found=%v err=%v", found, err)
	}
}

func TestRedisSessionStorePing(t *testing.T) {
	store := startRedisSessionStore(t)
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestRedisSessionStoreBacksSessionManager(t *testing.T) {
	store := startRedisSessionStore(t)
	manager := NewSessionManager(time.Hour,
		WithStore(store),
		WithKeys([]byte("redis-test-key")))

	token, _, err := manager.Create(9)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	userID, _, ok, err := manager.Validate(token)
	if err != nil || !ok || userID != 9 {
		t.Fatalf("expected live session for user 9, got ok=%v user=%d err=%v", ok, userID, err)
	}

	if err := manager.Revoke(token); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, _, ok, err := manager.Validate(token); err != nil || ok {
		t.Fatalf("revoked token must be anonymous, got ok=%v err=%v", ok, err)
	}
}
