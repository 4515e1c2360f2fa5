package main

import (
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"tunehall/internal/api"
	"tunehall/internal/auth"
	"tunehall/internal/observability/logging"
	"tunehall/internal/observability/metrics"
	"tunehall/internal/server"
	"tunehall/internal/storage"
)

func main() {
	var (
		addr        = flag.String("addr", "", "listen address for the HTTP server (default :8080)")
		dataPath    = flag.String("data", "", "path to the JSON datastore file (default data/tunehall.json)")
		storageDrv  = flag.String("storage-driver", "", "storage driver: json or postgres")
		postgresDSN = flag.String("postgres-dsn", "", "PostgreSQL connection string for account and song storage")

		sessionTTL      = flag.Duration("session-ttl", auth.DefaultTTL, "absolute session lifetime")
		sessionKeys     = flag.String("session-keys", "", "comma-separated session signing keys; first key signs new tokens")
		sessionStoreDrv = flag.String("session-store", "", "session store driver: memory, redis, or postgres")
		sessionRedis    = flag.String("session-redis-addr", "", "redis address for the session store")
		sessionRedisPwd = flag.String("session-redis-password", "", "redis password for the session store")
		sessionPgDSN    = flag.String("session-postgres-dsn", "", "PostgreSQL connection string for the session store")
		purgeInterval   = flag.Duration("session-purge-interval", 15*time.Minute, "how often expired sessions are purged")

		cookieSecure = flag.String("cookie-secure", "auto", "session cookie Secure attribute: auto or always")

		logLevel  = flag.String("log-level", "", "log level: debug, info, warn, or error")
		logFormat = flag.String("log-format", "", "log output format: json or text")

		rateRPS         = flag.Float64("rate-limit-rps", 0, "global request rate limit per second (0 disables)")
		rateBurst       = flag.Int("rate-limit-burst", 0, "global rate limit burst size")
		loginLimit      = flag.Int("login-limit", 0, "login attempts allowed per client per window")
		loginWindow     = flag.Duration("login-window", 0, "login throttle window")
		loginRedisAddr  = flag.String("login-redis-addr", "", "redis address for the shared login throttle")
		loginRedisPwd   = flag.String("login-redis-password", "", "redis password for the login throttle")
		tlsCert         = flag.String("tls-cert", "", "path to the TLS certificate")
		tlsKey          = flag.String("tls-key", "", "path to the TLS private key")
		hstsMaxAge      = flag.Int("hsts-max-age", 0, "Strict-Transport-Security max-age in seconds (0 disables)")
		shutdownTimeout = flag.Duration("shutdown-timeout", 10*time.Second, "graceful shutdown timeout")
	)
	flag.Parse()

	logger := logging.Init(logging.Config{
		Level:  firstNonEmpty(*logLevel, os.Getenv("TUNEHALL_LOG_LEVEL")),
		Format: firstNonEmpty(*logFormat, os.Getenv("TUNEHALL_LOG_FORMAT")),
	})
	auditLogger := logging.WithComponent(logger, "audit")

	store, err := openRepository(*storageDrv, *dataPath, *postgresDSN, logger)
	if err != nil {
		logger.Error("failed to open datastore", "error", err)
		os.Exit(1)
	}

	sessionStore, sessionCleanup, err := openSessionStore(sessionStoreConfig{
		Driver:        firstNonEmpty(*sessionStoreDrv, os.Getenv("TUNEHALL_SESSION_STORE")),
		RedisAddr:     firstNonEmpty(*sessionRedis, os.Getenv("TUNEHALL_SESSION_REDIS_ADDR")),
		RedisPassword: firstNonEmpty(*sessionRedisPwd, os.Getenv("TUNEHALL_SESSION_REDIS_PASSWORD")),
		PostgresDSN:   firstNonEmpty(*sessionPgDSN, os.Getenv("TUNEHALL_SESSION_POSTGRES_DSN")),
	})
	if err != nil {
		logger.Error("failed to open session store", "error", err)
		os.Exit(1)
	}

	keys := parseSessionKeys(firstNonEmpty(*sessionKeys, os.Getenv("TUNEHALL_SESSION_KEYS")))
	if len(keys) == 0 {
		logger.Warn("no session signing keys configured; sessions will not survive a restart")
	}
	sessionTTLValue := resolveDuration(*sessionTTL, "TUNEHALL_SESSION_TTL", auth.DefaultTTL, logger)
	sessions := auth.NewSessionManager(sessionTTLValue,
		auth.WithStore(sessionStore),
		auth.WithKeys(keys...))

	handler := api.NewHandler(store, sessions)
	handler.SessionCookiePolicy = cookiePolicy(firstNonEmpty(*cookieSecure, os.Getenv("TUNEHALL_COOKIE_SECURE")))

	listenAddr := firstNonEmpty(*addr, os.Getenv("TUNEHALL_ADDR"), ":8080")
	srv, err := server.New(handler, server.Config{
		Addr: listenAddr,
		TLS: server.TLSConfig{
			CertFile: firstNonEmpty(*tlsCert, os.Getenv("TUNEHALL_TLS_CERT")),
			KeyFile:  firstNonEmpty(*tlsKey, os.Getenv("TUNEHALL_TLS_KEY")),
		},
		RateLimit: server.RateLimitConfig{
			RequestsPerSecond: resolveFloat(*rateRPS, "TUNEHALL_RATE_LIMIT_RPS", 0, logger),
			Burst:             resolveInt(*rateBurst, "TUNEHALL_RATE_LIMIT_BURST", 0, logger),
			LoginLimit:        resolveInt(*loginLimit, "TUNEHALL_LOGIN_LIMIT", 0, logger),
			LoginWindow:       resolveDuration(*loginWindow, "TUNEHALL_LOGIN_WINDOW", 0, logger),
			LoginRedisAddr:    firstNonEmpty(*loginRedisAddr, os.Getenv("TUNEHALL_LOGIN_REDIS_ADDR")),
			LoginRedisPass:    firstNonEmpty(*loginRedisPwd, os.Getenv("TUNEHALL_LOGIN_REDIS_PASSWORD")),
		},
		Security: server.SecurityConfig{
			HSTSMaxAgeSeconds: resolveInt(*hstsMaxAge, "TUNEHALL_HSTS_MAX_AGE", 0, logger),
		},
		Logger:      logger,
		AuditLogger: auditLogger,
		Metrics:     metrics.Default(),
	})
	if err != nil {
		logger.Error("failed to configure server", "error", err)
		os.Exit(1)
	}

	purgeStop := startSessionPurgeWorker(sessions, resolveDuration(*purgeInterval, "TUNEHALL_SESSION_PURGE_INTERVAL", 15*time.Minute, logger), logger)
	defer purgeStop()

	errs := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", listenAddr)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errs:
		logger.Error("server failed", "error", err)
		os.Exit(1)
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), *shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	if sessionCleanup != nil {
		sessionCleanup(ctx)
	}
	if err := store.Close(ctx); err != nil {
		logger.Error("failed to close datastore", "error", err)
	}
	logger.Info("server stopped")
}

func openRepository(driver, dataPath, dsn string, logger *slog.Logger) (storage.Repository, error) {
	driver = strings.ToLower(strings.TrimSpace(firstNonEmpty(driver, os.Getenv("TUNEHALL_STORAGE_DRIVER"))))
	dsn = firstNonEmpty(dsn, os.Getenv("TUNEHALL_POSTGRES_DSN"))
	if driver == "" {
		if dsn != "" {
			driver = "postgres"
		} else {
			driver = "json"
		}
	}
	switch driver {
	case "json":
		path := firstNonEmpty(dataPath, os.Getenv("TUNEHALL_DATA_PATH"), "data/tunehall.json")
		logger.Info("using JSON datastore", "path", path)
		return storage.NewStorage(path)
	case "postgres":
		if dsn == "" {
			return nil, fmt.Errorf("postgres driver requires a connection string")
		}
		logger.Info("using PostgreSQL datastore")
		return storage.NewPostgresRepository(storage.PostgresConfig{DSN: dsn})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

type sessionStoreConfig struct {
	Driver        string
	RedisAddr     string
	RedisPassword string
	PostgresDSN   string
}

func openSessionStore(cfg sessionStoreConfig) (auth.SessionStore, func(context.Context), error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		switch {
		case cfg.RedisAddr != "":
			driver = "redis"
		case cfg.PostgresDSN != "":
			driver = "postgres"
		default:
			driver = "memory"
		}
	}
	switch driver {
	case "memory":
		return auth.NewMemorySessionStore(), nil, nil
	case "redis":
		store, err := auth.NewRedisSessionStore(auth.RedisSessionConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, func(context.Context) { _ = store.Close() }, nil
	case "postgres":
		store, err := auth.NewPostgresSessionStore(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return store, func(ctx context.Context) { _ = store.Close(ctx) }, nil
	default:
		return nil, nil, fmt.Errorf("unknown session store driver %q", driver)
	}
}

// parseSessionKeys splits the comma-separated key list. Keys may be raw
// strings or base64 with a "base64:" prefix.
func parseSessionKeys(raw string) [][]byte {
	parts := splitAndTrim(raw)
	keys := make([][]byte, 0, len(parts))
	for _, part := range parts {
		if encoded, ok := strings.CutPrefix(part, "base64:"); ok {
			decoded, err := base64.StdEncoding.DecodeString(encoded)
			if err == nil && len(decoded) > 0 {
				keys = append(keys, decoded)
			}
			continue
		}
		keys = append(keys, []byte(part))
	}
	return keys
}

func cookiePolicy(mode string) api.SessionCookiePolicy {
	policy := api.DefaultSessionCookiePolicy()
	if strings.EqualFold(strings.TrimSpace(mode), "always") {
		policy.SecureMode = api.SessionCookieSecureAlways
	}
	return policy
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func splitAndTrim(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func resolveInt(flagValue int, envName string, fallback int, logger *slog.Logger) int {
	if flagValue != 0 {
		return flagValue
	}
	if raw := strings.TrimSpace(os.Getenv(envName)); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			logger.Warn("invalid integer in environment", "name", envName, "value", raw)
			return fallback
		}
		return parsed
	}
	return fallback
}

func resolveFloat(flagValue float64, envName string, fallback float64, logger *slog.Logger) float64 {
	if flagValue != 0 {
		return flagValue
	}
	if raw := strings.TrimSpace(os.Getenv(envName)); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			logger.Warn("invalid float in environment", "name", envName, "value", raw)
			return fallback
		}
		return parsed
	}
	return fallback
}

func resolveDuration(flagValue time.Duration, envName string, fallback time.Duration, logger *slog.Logger) time.Duration {
	if flagValue != 0 && flagValue != fallback {
		return flagValue
	}
	if raw := strings.TrimSpace(os.Getenv(envName)); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			logger.Warn("invalid duration in environment", "name", envName, "value", raw)
			return fallback
		}
		return parsed
	}
	if flagValue != 0 {
		return flagValue
	}
	return fallback
}
