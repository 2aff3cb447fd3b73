// Package logger provides structured logging for finance-cli.
//
// This package wraps log/slog:
//
//   - logger.go: handler configuration and the global level
//   - context.go: context-aware logging with request IDs
//   - redact.go: sensitive data redaction
//
// Logs go to stderr so they never mix with command output. JWT-shaped
// values are masked wherever they appear, and values under keys such as
// password or refresh_token are replaced entirely.
package logger
