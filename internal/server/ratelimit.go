package server

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	LoginLimit        int
	LoginWindow       time.Duration
	LoginRedisAddr    string
	LoginRedisPass    string
	LoginRedisDB      int
	LoginRedisTimeout time.Duration
}

const (
	defaultLoginLimit      = 10
	defaultLoginWindow     = time.Minute
	defaultLoginRedisWait  = 2 * time.Second
	loginThrottleKeyPrefix = "tunehall:login:"
)

// loginAttemptStore counts login attempts per client within a rolling window.
type loginAttemptStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (int, time.Duration, error)
}

type rateLimiter struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64
	lastRefill time.Time

	loginLimit   int
	loginWindow  time.Duration
	loginStore   loginAttemptStore
	loginTimeout time.Duration
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
	}
	loginLimit := cfg.LoginLimit
	if loginLimit <= 0 {
		loginLimit = defaultLoginLimit
	}
	loginWindow := cfg.LoginWindow
	if loginWindow <= 0 {
		loginWindow = defaultLoginWindow
	}
	loginTimeout := cfg.LoginRedisTimeout
	if loginTimeout <= 0 {
		loginTimeout = defaultLoginRedisWait
	}

	var store loginAttemptStore
	if addr := strings.TrimSpace(cfg.LoginRedisAddr); addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.LoginRedisPass,
			DB:       cfg.LoginRedisDB,
		})
		store = &redisLoginStore{client: client}
	} else {
		store = newMemoryLoginStore()
	}

	return &rateLimiter{
		tokens:       float64(burst),
		maxTokens:    float64(burst),
		refillRate:   cfg.RequestsPerSecond,
		lastRefill:   time.Now(),
		loginLimit:   loginLimit,
		loginWindow:  loginWindow,
		loginStore:   store,
		loginTimeout: loginTimeout,
	}
}

// AllowRequest consumes one token from the global bucket.
func (rl *rateLimiter) AllowRequest() bool {
	if rl == nil {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := time.Now()
	elapsed := now.Sub(rl.lastRefill).Seconds()
	rl.lastRefill = now
	rl.tokens += elapsed * rl.refillRate
	if rl.tokens > rl.maxTokens {
		rl.tokens = rl.maxTokens
	}
	if rl.tokens < 1 {
		return false
	}
	rl.tokens--
	return true
}

// AllowLogin records a login attempt for the client and reports whether it is
// still within the per-window budget. A store failure is returned to the
// caller rather than silently allowing the attempt.
func (rl *rateLimiter) AllowLogin(clientIP string) (bool, time.Duration, error) {
	if rl == nil || rl.loginStore == nil {
		return true, 0, nil
	}
	key := loginThrottleKeyPrefix + clientIP
	ctx, cancel := context.WithTimeout(context.Background(), rl.loginTimeout)
	defer cancel()
	count, remaining, err := rl.loginStore.Increment(ctx, key, rl.loginWindow)
	if err != nil {
		return false, 0, fmt.Errorf("increment login attempts: %w", err)
	}
	if count > rl.loginLimit {
		return false, remaining, nil
	}
	return true, 0, nil
}

type redisLoginStore struct {
	client redis.UniversalClient
}

func (s *redisLoginStore) Increment(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
		return int(count), window, nil
	}
	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if ttl < 0 {
		// Key lost its expiry, for example after a FLUSHALL mid-window.
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
		ttl = window
	}
	return int(count), ttl, nil
}

type memoryLoginStore struct {
	mu      sync.Mutex
	windows map[string]*loginWindowState
}

type loginWindowState struct {
	count   int
	resetAt time.Time
}

func newMemoryLoginStore() *memoryLoginStore {
	return &memoryLoginStore{windows: make(map[string]*loginWindowState)}
}

func (s *memoryLoginStore) Increment(_ context.Context, key string, window time.Duration) (int, time.Duration, error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.windows[key]
	if !ok || now.After(state.resetAt) {
		state = &loginWindowState{resetAt: now.Add(window)}
		s.windows[key] = state
	}
	state.count++
	return state.count, state.resetAt.Sub(now), nil
}
