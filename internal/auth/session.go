package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// DefaultTTL is the absolute lifetime of a login session measured from
// issuance.
const DefaultTTL = time.Hour

// ErrInvalidUserID is returned when attempting to create a session without a
// user identifier.
var ErrInvalidUserID = errors.New("user id is required")

// SessionStore defines the persistence contract for issued tokens. A token
// present in the store is live; deleting it revokes the session server-side.
type SessionStore interface {
	Save(token string, userID int64, expiresAt time.Time) error
	Get(token string) (SessionRecord, bool, error)
	Delete(token string) error
	PurgeExpired(now time.Time) error
}

// SessionRecord captures a session row retrieved from the backing store.
type SessionRecord struct {
	Token     string
	UserID    int64
	ExpiresAt time.Time
}

// sessionClaims is the signed token payload. Expiry is derived from the
// issuance timestamp at read time rather than stored in the token.
type sessionClaims struct {
	UserID   int64 `json:"uid"`
	IssuedAt int64 `json:"iat"`
}

// SessionOption configures a SessionManager instance.
type SessionOption func(*SessionManager)

// WithStore injects a custom SessionStore implementation.
func WithStore(store SessionStore) SessionOption {
	return func(m *SessionManager) {
		m.store = store
	}
}

// WithKeys installs the HMAC signing keys. The first key signs new tokens;
// every key is accepted during verification, allowing rotation without
// invalidating live sessions.
func WithKeys(keys ...[]byte) SessionOption {
	return func(m *SessionManager) {
		filtered := make([][]byte, 0, len(keys))
		for _, key := range keys {
			if len(key) > 0 {
				filtered = append(filtered, key)
			}
		}
		if len(filtered) > 0 {
			m.keys = filtered
		}
	}
}

// WithClock overrides the time source, primarily for expiry tests.
func WithClock(now func() time.Time) SessionOption {
	return func(m *SessionManager) {
		if now != nil {
			m.now = now
		}
	}
}

// SessionManager issues and validates signed session tokens backed by a
// revocation store. A token is treated as anonymous unless its signature
// verifies, its issuance TTL has not elapsed, and the store still holds it.
type SessionManager struct {
	store SessionStore
	keys  [][]byte
	ttl   time.Duration
	now   func() time.Time
}

// NewSessionManager constructs a SessionManager with the provided absolute
// TTL and options. Without explicit keys a random process-local key is
// generated, which invalidates sessions on restart; production deployments
// should configure stable keys. Without a store an in-memory one is used.
func NewSessionManager(ttl time.Duration, opts ...SessionOption) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	manager := &SessionManager{
		ttl: ttl,
		now: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(manager)
		}
	}
	if manager.store == nil {
		manager.store = NewMemorySessionStore()
	}
	if len(manager.keys) == 0 {
		manager.keys = [][]byte{randomKey()}
	}
	return manager
}

// TTL exposes the configured absolute session lifetime.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Create issues a signed session token for the provided user identifier and
// records it in the backing store.
func (m *SessionManager) Create(userID int64) (string, time.Time, error) {
	if userID <= 0 {
		return "", time.Time{}, ErrInvalidUserID
	}
	now := m.now().UTC()
	token, err := m.sign(sessionClaims{UserID: userID, IssuedAt: now.Unix()})
	if err != nil {
		return "", time.Time{}, err
	}
	expiresAt := now.Add(m.ttl)
	if err := m.store.Save(token, userID, expiresAt); err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Validate checks the token signature, issuance TTL, and backing store, and
// returns the associated user when the session is live. A tampered, unsigned,
// expired, or revoked token yields ok=false with a nil error; only store
// failures surface as errors.
func (m *SessionManager) Validate(token string) (int64, time.Time, bool, error) {
	if token == "" {
		return 0, time.Time{}, false, nil
	}
	claims, ok := m.verify(token)
	if !ok {
		return 0, time.Time{}, false, nil
	}
	expiresAt := time.Unix(claims.IssuedAt, 0).UTC().Add(m.ttl)
	if m.now().After(expiresAt) {
		_ = m.store.Delete(token)
		return 0, time.Time{}, false, nil
	}
	record, found, err := m.store.Get(token)
	if err != nil {
		return 0, time.Time{}, false, err
	}
	if !found || record.UserID != claims.UserID {
		return 0, time.Time{}, false, nil
	}
	return claims.UserID, expiresAt, true, nil
}

// Revoke deletes the session token from the backing store.
func (m *SessionManager) Revoke(token string) error {
	if token == "" {
		return nil
	}
	return m.store.Delete(token)
}

// PurgeExpired removes any expired sessions from the backing store.
func (m *SessionManager) PurgeExpired() error {
	return m.store.PurgeExpired(m.now())
}

// Ping verifies the underlying session store is reachable when it exposes a
// ping method.
func (m *SessionManager) Ping(ctx context.Context) error {
	if m == nil || m.store == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if pinger, ok := m.store.(interface{ Ping(context.Context) error }); ok {
		return pinger.Ping(ctx)
	}
	return nil
}

func (m *SessionManager) sign(claims sessionClaims) (string, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + signPayload(m.keys[0], encoded), nil
}

func (m *SessionManager) verify(token string) (sessionClaims, bool) {
	payloadPart, signaturePart, ok := strings.Cut(token, ".")
	if !ok || payloadPart == "" || signaturePart == "" {
		return sessionClaims{}, false
	}
	signed := false
	for _, key := range m.keys {
		if hmac.Equal([]byte(signPayload(key, payloadPart)), []byte(signaturePart)) {
			signed = true
			break
		}
	}
	if !signed {
		return sessionClaims{}, false
	}
	payload, err := base64.RawURLEncoding.DecodeString(payloadPart)
	if err != nil {
		return sessionClaims{}, false
	}
	var claims sessionClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return sessionClaims{}, false
	}
	if claims.UserID <= 0 || claims.IssuedAt <= 0 {
		return sessionClaims{}, false
	}
	return claims, true
}

func signPayload(key []byte, payload string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func randomKey() []byte {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		// crypto/rand failures are unrecoverable for session signing.
		panic(err)
	}
	return key
}
