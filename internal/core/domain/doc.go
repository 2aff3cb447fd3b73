// Package domain defines the core domain models for finance-cli.
//
// This package contains:
//
//   - session.go: CredentialRecord, SessionFile and the migration gap record
//   - errors.go: DomainError and the error taxonomy shared by all layers
//
// Domain models carry no IO, logging or transport dependencies.
package domain
