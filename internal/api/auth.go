package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"tunehall/internal/models"
)

type contextKey string

const accountContextKey contextKey = "authenticatedAccount"

// ErrNoSession reports that the request carries no live session: the token is
// absent, unsigned, tampered with, expired, or revoked. Store failures during
// validation are returned as distinct errors and must not be treated as an
// anonymous caller.
var ErrNoSession = errors.New("no valid session")

// ContextWithAccount stores the authenticated account in the provided context.
func ContextWithAccount(ctx context.Context, account models.Account) context.Context {
	return context.WithValue(ctx, accountContextKey, account)
}

// AccountFromContext retrieves the authenticated account from context if present.
func AccountFromContext(ctx context.Context) (models.Account, bool) {
	account, ok := ctx.Value(accountContextKey).(models.Account)
	return account, ok
}

// ExtractToken pulls the session token from the Authorization header or the
// session cookie.
func ExtractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// AuthenticateRequest resolves the request's session token to an account.
// ErrNoSession marks an anonymous caller; any other error is an operational
// failure of the session store or the datastore.
func (h *Handler) AuthenticateRequest(r *http.Request) (models.Account, error) {
	token := ExtractToken(r)
	if token == "" {
		return models.Account{}, ErrNoSession
	}
	userID, _, ok, err := h.sessionManager().Validate(token)
	if err != nil {
		return models.Account{}, err
	}
	if !ok {
		return models.Account{}, ErrNoSession
	}
	account, exists, err := h.Store.GetAccount(r.Context(), userID)
	if err != nil {
		return models.Account{}, err
	}
	if !exists {
		return models.Account{}, ErrNoSession
	}
	return account, nil
}

// requireAuthenticated gates handlers that serve logged-in callers only. An
// anonymous caller receives 401 so the presenter can show the
// registration/login view.
func (h *Handler) requireAuthenticated(w http.ResponseWriter, r *http.Request) (models.Account, bool) {
	if account, ok := AccountFromContext(r.Context()); ok {
		return account, true
	}
	account, err := h.AuthenticateRequest(r)
	if errors.Is(err, ErrNoSession) {
		writeError(w, http.StatusUnauthorized, errors.New("authentication required"))
		return models.Account{}, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		return models.Account{}, false
	}
	return account, true
}

// requireAnonymous gates registration and login. An authenticated caller is
// redirected to the home view instead.
func (h *Handler) requireAnonymous(w http.ResponseWriter, r *http.Request) bool {
	_, err := h.AuthenticateRequest(r)
	if err == nil {
		http.Redirect(w, r, "/api/home", http.StatusSeeOther)
		return false
	}
	if errors.Is(err, ErrNoSession) {
		return true
	}
	writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	return false
}
