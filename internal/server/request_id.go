package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"

	"tunehall/internal/observability/logging"
)

const requestIDHeader = "X-Request-ID"

// requestIDMiddleware assigns every request an identifier, honoring one
// supplied by a trusted proxy, and makes it available to downstream handlers
// via the context and the response header.
func requestIDMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = newRequestID()
		}
		w.Header().Set(requestIDHeader, requestID)
		ctx := logging.ContextWithRequestID(r.Context(), requestID)
		if logger != nil {
			ctx = logging.ContextWithLogger(ctx, logger.With("request_id", requestID))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newRequestID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(buf[:])
}

func loggerWithRequestContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger := logging.LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return logging.WithContext(ctx, fallback)
}
