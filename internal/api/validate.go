package api

import (
	"net/mail"
	"strings"

	"golang.org/x/text/secure/precis"
)

// User-facing validation messages, kept stable because the presenter matches
// on them.
const (
	msgInvalidEmail      = "Invalid email address!"
	msgEmailInUse        = "This E-mail already in use!"
	msgUsernameEmpty     = "Username is Empty!"
	msgPasswordTooShort  = "The password must be of minimum length 6 characters"
	msgInvalidLoginEmail = "Invalid Email Address!"
	msgPasswordEmpty     = "Password is empty!"
	msgInvalidPassword   = "Invalid Password!"
)

const minPasswordLength = 6

// validEmailAddress reports whether the input is a bare, syntactically valid
// address with a dotted domain. Display names ("Art <art@example.com>") are
// rejected.
func validEmailAddress(email string) bool {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return false
	}
	parsed, err := mail.ParseAddress(trimmed)
	if err != nil || parsed.Name != "" || parsed.Address != trimmed {
		return false
	}
	at := strings.LastIndex(parsed.Address, "@")
	if at < 1 {
		return false
	}
	domain := parsed.Address[at+1:]
	if !strings.Contains(domain, ".") {
		return false
	}
	return !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}

// normalizeUsername applies the PRECIS nickname profile: surrounding
// whitespace is stripped, interior runs collapsed, and degenerate inputs
// rejected. An empty result means the username fails validation.
func normalizeUsername(username string) (string, bool) {
	normalized, err := precis.Nickname.String(strings.TrimSpace(username))
	if err != nil || normalized == "" {
		return "", false
	}
	return normalized, true
}
