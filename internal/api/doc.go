// Package api implements the HTTP handlers for account registration,
// credential login, session lifecycle, and media lookup.
package api
