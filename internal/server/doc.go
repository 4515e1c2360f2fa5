// Package server wires the HTTP handler surface behind the middleware chain:
// security headers, request IDs, request logging, audit logging, metrics,
// rate limiting, and session resolution.
package server
