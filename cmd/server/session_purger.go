package main

import (
	"log/slog"
	"time"

	"tunehall/internal/auth"
)

// startSessionPurgeWorker periodically removes expired sessions from the
// session store. Stores that expire records themselves, such as Redis, turn
// the purge into a no-op. The returned function stops the worker.
func startSessionPurgeWorker(sessions *auth.SessionManager, interval time.Duration, logger *slog.Logger) func() {
	if sessions == nil || interval <= 0 {
		return func() {}
	}
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := sessions.PurgeExpired(); err != nil && logger != nil {
					logger.Warn("session purge failed", "error", err)
				}
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}
