// Package connection provides the auth service client for finance-cli.
//
// This package talks to the remote identity service:
//
//   - http.go: generic JSON-over-HTTP client and status mapping
//   - auth.go: register, login, refresh, logout and profile calls
//
// Features:
//
//   - Configurable timeout and custom CA pool
//   - Bearer authentication through an oauth2.TokenSource
//   - A ULID X-Request-ID on every request, logged at debug level
//
// Failures to reach the service map to domain.ErrServiceUnreachable,
// 422 responses to domain.ErrValidationFailed and every other non-2xx
// status to domain.ErrAuthenticationFailed.
package connection
