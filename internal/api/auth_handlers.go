package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tunehall/internal/models"
	"tunehall/internal/storage"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type accountResponse struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt"`
}

type authResponse struct {
	ExpiresAt string          `json:"expiresAt"`
	User      accountResponse `json:"user"`
}

func newAccountResponse(account models.Account) accountResponse {
	return accountResponse{
		ID:        account.ID,
		Username:  account.Username,
		Email:     account.Email,
		CreatedAt: account.CreatedAt.Format(time.RFC3339Nano),
	}
}

func newAuthResponse(account models.Account, expires time.Time) authResponse {
	return authResponse{
		ExpiresAt: expires.UTC().Format(time.RFC3339Nano),
		User:      newAccountResponse(account),
	}
}

// Register creates an account after running every field check and returning
// the full batch of failures in one response.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}
	if !h.requireAnonymous(w, r) {
		return
	}

	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var fieldErrors []string

	email := strings.TrimSpace(req.Email)
	if !validEmailAddress(email) {
		fieldErrors = append(fieldErrors, msgInvalidEmail)
	} else {
		exists, err := h.Store.AccountEmailExists(r.Context(), email)
		if err != nil {
			slog.Error("registration uniqueness check failed", "error", err)
			writeError(w, http.StatusInternalServerError, errors.New("internal error"))
			return
		}
		if exists {
			fieldErrors = append(fieldErrors, msgEmailInUse)
		}
	}

	username, usernameOK := normalizeUsername(req.Username)
	if !usernameOK {
		fieldErrors = append(fieldErrors, msgUsernameEmpty)
	}

	password := strings.TrimSpace(req.Password)
	if len(password) < minPasswordLength {
		fieldErrors = append(fieldErrors, msgPasswordTooShort)
	}

	if len(fieldErrors) > 0 {
		writeValidationErrors(w, http.StatusUnprocessableEntity, fieldErrors)
		return
	}

	account, err := h.Store.CreateAccount(r.Context(), storage.CreateAccountParams{
		Username: username,
		Email:    email,
		Password: password,
	})
	if err != nil {
		slog.Error("registration insert failed", "email", email, "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("unable to create account"))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]accountResponse{"user": newAccountResponse(account)})
}

// Login authenticates credentials and establishes a session. Field failures
// are batched; a password mismatch after valid fields yields a single
// authentication error and no session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}
	if !h.requireAnonymous(w, r) {
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var fieldErrors []string

	email := strings.TrimSpace(req.Email)
	_, found, err := h.Store.FindAccountByEmail(r.Context(), email)
	if err != nil {
		slog.Error("login account lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		return
	}
	if !found {
		fieldErrors = append(fieldErrors, msgInvalidLoginEmail)
	}

	password := strings.TrimSpace(req.Password)
	if password == "" {
		fieldErrors = append(fieldErrors, msgPasswordEmpty)
	}

	if len(fieldErrors) > 0 {
		writeValidationErrors(w, http.StatusUnprocessableEntity, fieldErrors)
		return
	}

	account, err := h.Store.AuthenticateAccount(r.Context(), email, password)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidCredentials) {
			writeValidationErrors(w, http.StatusUnauthorized, []string{msgInvalidPassword})
			return
		}
		slog.Error("login verification failed", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		return
	}

	token, expiresAt, err := h.sessionManager().Create(account.ID)
	if err != nil {
		slog.Error("session create failed", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		return
	}

	h.setSessionCookie(w, r, token, expiresAt)
	writeJSON(w, http.StatusOK, newAuthResponse(account, expiresAt))
}

// Logout revokes the current session and clears the cookie. The next request
// with the old token behaves as anonymous.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}
	if token := ExtractToken(r); token != "" {
		if err := h.sessionManager().Revoke(token); err != nil {
			slog.Error("session revoke failed", "error", err)
			writeError(w, http.StatusInternalServerError, errors.New("internal error"))
			return
		}
	}
	h.ClearSessionCookie(w, r)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Session introspects the current session token.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}
	token := ExtractToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, errors.New("missing session token"))
		return
	}
	userID, expiresAt, ok, err := h.sessionManager().Validate(token)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		return
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, errors.New("invalid or expired session"))
		return
	}
	account, exists, err := h.Store.GetAccount(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		return
	}
	if !exists {
		writeError(w, http.StatusUnauthorized, errors.New("account not found"))
		return
	}
	writeJSON(w, http.StatusOK, newAuthResponse(account, expiresAt))
}

// Home returns the authenticated account's display name for the landing view.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}
	account, ok := h.requireAuthenticated(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": account.Username})
}
