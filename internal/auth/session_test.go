package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

type failingSessionStore struct {
	saveErr error
	getErr  error
}

func (s *failingSessionStore) Save(string, int64, time.Time) error { return s.saveErr }

func (s *failingSessionStore) Get(string) (SessionRecord, bool, error) {
	return SessionRecord{}, false, s.getErr
}

func (s *failingSessionStore) Delete(string) error { return nil }

func (s *failingSessionStore) PurgeExpired(time.Time) error { return nil }

func TestSessionLifecycle(t *testing.T) {
	manager := NewSessionManager(time.Hour, WithKeys([]byte("test-signing-key")))

	token, expiresAt, err := manager.Create(42)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if token == "" {
		t.Fatal("expected a token")
	}
	if remaining := time.Until(expiresAt); remaining < 59*time.Minute || remaining > time.Hour {
		t.Fatalf("unexpected expiry horizon: %v", remaining)
	}

	userID, _, ok, err := manager.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !ok || userID != 42 {
		t.Fatalf("expected live session for user 42, got ok=%v user=%d", ok, userID)
	}

	if err := manager.Revoke(token); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, _, ok, err := manager.Validate(token); err != nil || ok {
		t.Fatalf("revoked token must be anonymous, got ok=%v err=%v", ok, err)
	}
}

func TestValidateRejectsTamperedToken(t *testing.T) {
	manager := NewSessionManager(time.Hour, WithKeys([]byte("test-signing-key")))
	token, _, err := manager.Create(7)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	payload, signature, _ := strings.Cut(token, ".")
	cases := map[string]string{
		"flipped payload byte": "A" + payload[1:] + "." + signature,
		"flipped signature":    payload + "." + "A" + signature[1:],
		"missing signature":    payload,
		"empty token":          "",
		"garbage":              "not-a-token",
	}
	for name, tampered := range cases {
		if _, _, ok, err := manager.Validate(tampered); err != nil || ok {
			t.Fatalf("%s: expected anonymous with nil error, got ok=%v err=%v", name, ok, err)
		}
	}
}

func TestValidateRejectsForeignKey(t *testing.T) {
	store := NewMemorySessionStore()
	issuer := NewSessionManager(time.Hour, WithKeys([]byte("issuer-key")), WithStore(store))
	verifier := NewSessionManager(time.Hour, WithKeys([]byte("different-key")), WithStore(store))

	token, _, err := issuer.Create(7)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, _, ok, err := verifier.Validate(token); err != nil || ok {
		t.Fatalf("foreign-key token must be anonymous, got ok=%v err=%v", ok, err)
	}
}

func TestKeyRotationKeepsOldSessionsAlive(t *testing.T) {
	store := NewMemorySessionStore()
	oldManager := NewSessionManager(time.Hour, WithKeys([]byte("old-key")), WithStore(store))
	rotated := NewSessionManager(time.Hour, WithKeys([]byte("new-key"), []byte("old-key")), WithStore(store))

	token, _, err := oldManager.Create(7)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	userID, _, ok, err := rotated.Validate(token)
	if err != nil || !ok || userID != 7 {
		t.Fatalf("rotated manager must accept old-key token, got ok=%v user=%d err=%v", ok, userID, err)
	}
}

func TestValidateExpiresByIssuanceTime(t *testing.T) {
	current := time.Now().UTC()
	now := func() time.Time { return current }
	manager := NewSessionManager(time.Hour, WithKeys([]byte("test-signing-key")), WithClock(now))

	token, _, err := manager.Create(9)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	current = current.Add(59 * time.Minute)
	if _, _, ok, err := manager.Validate(token); err != nil || !ok {
		t.Fatalf("token must be live before expiry, got ok=%v err=%v", ok, err)
	}

	current = current.Add(2 * time.Minute)
	if _, _, ok, err := manager.Validate(token); err != nil || ok {
		t.Fatalf("token must be anonymous after expiry, got ok=%v err=%v", ok, err)
	}
}

func TestValidatePropagatesStoreFailure(t *testing.T) {
	storeErr := errors.New("backend unavailable")
	manager := NewSessionManager(time.Hour,
		WithKeys([]byte("test-signing-key")),
		WithStore(&failingSessionStore{getErr: storeErr}))

	// Sign a token directly; Save succeeds because saveErr is nil.
	token, _, err := manager.Create(5)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, _, ok, err := manager.Validate(token)
	if ok {
		t.Fatal("store failure must not validate the session")
	}
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected store failure to propagate, got %v", err)
	}
}

func TestCreateRejectsInvalidUserID(t *testing.T) {
	manager := NewSessionManager(time.Hour, WithKeys([]byte("test-signing-key")))
	if _, _, err := manager.Create(0); !errors.Is(err, ErrInvalidUserID) {
		t.Fatalf("expected ErrInvalidUserID, got %v", err)
	}
}

func TestMemoryStorePurgeExpired(t *testing.T) {
	store := NewMemorySessionStore()
	now := time.Now()
	if err := store.Save("live", 1, now.Add(time.Hour)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save("stale", 2, now.Add(-time.Minute)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := store.PurgeExpired(now); err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if _, found, _ := store.Get("stale"); found {
		t.Fatal("expired session survived the purge")
	}
	if _, found, _ := store.Get("live"); !found {
		t.Fatal("live session was purged")
	}
}
