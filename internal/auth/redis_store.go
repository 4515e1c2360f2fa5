package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const defaultRedisSessionPrefix = "tunehall:session:"

// RedisSessionConfig configures the Redis-backed session store. Addrs with
// more than one entry (or a MasterName) selects a cluster or sentinel client.
type RedisSessionConfig struct {
	Addr         string
	Addrs        []string
	Username     string
	Password     string
	MasterName   string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Prefix       string
}

// RedisSessionStore persists sessions in Redis, letting replicas share
// authentication state. Redis key TTLs handle expiry, so PurgeExpired is a
// no-op.
type RedisSessionStore struct {
	client  redis.UniversalClient
	prefix  string
	timeout time.Duration
	now     func() time.Time
}

type redisSessionPayload struct {
	UserID    int64 `json:"uid"`
	ExpiresAt int64 `json:"exp"`
}

// NewRedisSessionStore connects to Redis using the provided configuration.
func NewRedisSessionStore(cfg RedisSessionConfig) (*RedisSessionStore, error) {
	addrs := make([]string, 0, len(cfg.Addrs)+1)
	for _, addr := range cfg.Addrs {
		if trimmed := strings.TrimSpace(addr); trimmed != "" {
			addrs = append(addrs, trimmed)
		}
	}
	if addr := strings.TrimSpace(cfg.Addr); addr != "" {
		addrs = append(addrs, addr)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("redis addr is required")
	}
	prefix := strings.TrimSpace(cfg.Prefix)
	if prefix == "" {
		prefix = defaultRedisSessionPrefix
	}
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		MasterName:   cfg.MasterName,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	return &RedisSessionStore{
		client:  client,
		prefix:  prefix,
		timeout: timeout,
		now:     time.Now,
	}, nil
}

func (s *RedisSessionStore) operationContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// Save records the session with a key TTL matching its expiry.
func (s *RedisSessionStore) Save(token string, userID int64, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return s.Delete(token)
	}
	payload, err := json.Marshal(redisSessionPayload{UserID: userID, ExpiresAt: expiresAt.UTC().Unix()})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	ctx, cancel := s.operationContext()
	defer cancel()
	if err := s.client.Set(ctx, s.prefix+token, payload, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Get retrieves the session record for the provided token.
func (s *RedisSessionStore) Get(token string) (SessionRecord, bool, error) {
	ctx, cancel := s.operationContext()
	defer cancel()
	raw, err := s.client.Get(ctx, s.prefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return SessionRecord{}, false, nil
		}
		return SessionRecord{}, false, fmt.Errorf("load session: %w", err)
	}
	var payload redisSessionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return SessionRecord{}, false, fmt.Errorf("decode session: %w", err)
	}
	return SessionRecord{
		Token:     token,
		UserID:    payload.UserID,
		ExpiresAt: time.Unix(payload.ExpiresAt, 0).UTC(),
	}, true, nil
}

// Delete removes the session token.
func (s *RedisSessionStore) Delete(token string) error {
	ctx, cancel := s.operationContext()
	defer cancel()
	if err := s.client.Del(ctx, s.prefix+token).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeExpired is a no-op; Redis evicts sessions via key TTLs.
func (s *RedisSessionStore) PurgeExpired(time.Time) error {
	return nil
}

// Ping verifies Redis connectivity.
func (s *RedisSessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the Redis client resources.
func (s *RedisSessionStore) Close() error {
	return s.client.Close()
}
