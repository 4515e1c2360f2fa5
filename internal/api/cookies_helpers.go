package api

import (
	"net/http"
	"strings"
	"time"
)

// SessionCookieName is the transport carrier for session tokens.
const SessionCookieName = "tunehall_session"

type SessionCookieSecureMode int

const (
	SessionCookieSecureAuto SessionCookieSecureMode = iota
	SessionCookieSecureAlways
)

type SessionCookiePolicy struct {
	SameSite   http.SameSite
	SecureMode SessionCookieSecureMode
}

func DefaultSessionCookiePolicy() SessionCookiePolicy {
	return SessionCookiePolicy{
		SameSite:   http.SameSiteStrictMode,
		SecureMode: SessionCookieSecureAuto,
	}
}

func (p SessionCookiePolicy) secure(r *http.Request) bool {
	if p.SecureMode == SessionCookieSecureAlways {
		return true
	}
	return isSecureRequest(r)
}

func (h *Handler) sessionCookiePolicy() SessionCookiePolicy {
	policy := h.SessionCookiePolicy
	if policy.SameSite == 0 {
		policy.SameSite = http.SameSiteStrictMode
	}
	return policy
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, r *http.Request, token string, expires time.Time) {
	if token == "" {
		return
	}
	policy := h.sessionCookiePolicy()
	maxAge := int(time.Until(expires).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires.UTC(),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   policy.secure(r),
		SameSite: policy.SameSite,
	})
}

// ClearSessionCookie removes the session cookie from the response using the
// handler's configured policy.
func (h *Handler) ClearSessionCookie(w http.ResponseWriter, r *http.Request) {
	policy := h.sessionCookiePolicy()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   policy.secure(r),
		SameSite: policy.SameSite,
	})
}

func isSecureRequest(r *http.Request) bool {
	if r == nil {
		return false
	}
	if r.TLS != nil {
		return true
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		for _, p := range strings.Split(proto, ",") {
			if strings.EqualFold(strings.TrimSpace(p), "https") {
				return true
			}
		}
	}
	if r.URL != nil && strings.EqualFold(r.URL.Scheme, "https") {
		return true
	}
	return false
}
