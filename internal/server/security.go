package server

import (
	"net/http"
	"strconv"
	"strings"
)

type SecurityConfig struct {
	ContentSecurityPolicy string
	FrameOptions          string
	ReferrerPolicy        string
	HSTSMaxAgeSeconds     int
}

const defaultContentSecurityPolicy = "default-src 'self'; frame-ancestors 'none'"

func securityHeadersMiddleware(cfg SecurityConfig, next http.Handler) http.Handler {
	csp := strings.TrimSpace(cfg.ContentSecurityPolicy)
	if csp == "" {
		csp = defaultContentSecurityPolicy
	}
	frameOptions := strings.TrimSpace(cfg.FrameOptions)
	if frameOptions == "" {
		frameOptions = "DENY"
	}
	referrerPolicy := strings.TrimSpace(cfg.ReferrerPolicy)
	if referrerPolicy == "" {
		referrerPolicy = "no-referrer"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("Content-Security-Policy", csp)
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", frameOptions)
		headers.Set("Referrer-Policy", referrerPolicy)
		if cfg.HSTSMaxAgeSeconds > 0 && r.TLS != nil {
			headers.Set("Strict-Transport-Security",
				"max-age="+strconv.Itoa(cfg.HSTSMaxAgeSeconds)+"; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}
