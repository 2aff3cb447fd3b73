// Package domain defines the core domain models for finance-cli.
//
// Domain models are pure value objects without any IO dependencies.
package domain

import (
	"sort"
	"time"
)

// CredentialRecord is the cached credential set for one user.
type CredentialRecord struct {
	// AccessToken is the short-lived bearer token.
	AccessToken string

	// RefreshToken is exchanged for a new access token once AccessToken expires.
	RefreshToken string

	// ExpiresAt is the UTC instant after which AccessToken must not be used.
	ExpiresAt time.Time

	// TenantID is the tenant the access token was minted for.
	// It is taken from the token's own claims when the record is written.
	TenantID *int64
}

// IsExpired reports whether the access token is unusable at now.
func (r *CredentialRecord) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// SessionFile is the whole persisted session document.
type SessionFile struct {
	// CurrentUser names the active user; empty means nobody is active.
	CurrentUser string

	// CurrentTenantID mirrors the tenant preference of CurrentUser.
	CurrentTenantID *int64

	// Credentials maps user email to cached credentials.
	Credentials map[string]*CredentialRecord

	// TenantPreferences maps user email to an explicitly chosen tenant.
	// Entries outlive logout so a later login restores the choice.
	TenantPreferences map[string]int64
}

// NewSessionFile returns an empty document.
func NewSessionFile() *SessionFile {
	return &SessionFile{
		Credentials:       make(map[string]*CredentialRecord),
		TenantPreferences: make(map[string]int64),
	}
}

// Current returns the credential record of the active user, or nil.
func (f *SessionFile) Current() *CredentialRecord {
	if f.CurrentUser == "" {
		return nil
	}
	return f.Credentials[f.CurrentUser]
}

// Users returns known user emails in sorted order.
func (f *SessionFile) Users() []string {
	users := make([]string, 0, len(f.Credentials))
	for email := range f.Credentials {
		users = append(users, email)
	}
	sort.Strings(users)
	return users
}

// SchemaGaps records which tenant-aware fields were missing from a
// decoded session file. A zero value means the file is fully migrated.
type SchemaGaps struct {
	TenantPreferences bool
	CurrentTenantID   bool

	// RecordTenantID lists users whose record carried no tenant_id key.
	RecordTenantID []string
}

// Empty reports whether no field was missing.
func (g *SchemaGaps) Empty() bool {
	return g == nil || (!g.TenantPreferences && !g.CurrentTenantID && len(g.RecordTenantID) == 0)
}

// SessionStatus is a read-only summary of the active session.
type SessionStatus struct {
	User          string    `json:"user" yaml:"user"`
	TenantID      *int64    `json:"tenant_id" yaml:"tenant_id"`
	HasCredential bool      `json:"has_credential" yaml:"has_credential"`
	ExpiresAt     time.Time `json:"expires_at" yaml:"expires_at"`
	Expired       bool      `json:"expired" yaml:"expired"`
	KnownUsers    int       `json:"known_users" yaml:"known_users"`
}
