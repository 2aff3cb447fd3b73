// Package service provides domain services for finance-cli.
//
// Domain services contain pure business logic and orchestrate operations
// on domain models. They define interfaces for storage and remote
// dependencies, allowing for dependency injection and testability.
//
// This package contains:
//
//   - SessionCache: cached credentials per user, active user and tenant,
//     refresh of expired access tokens
//   - migrate: forward migration of session files written before tenants
//
// SessionCache never logs and never retries; callers decide how to
// report failures.
package service
