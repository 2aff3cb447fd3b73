// Package service provides domain services for finance-cli.
//
// SessionCache owns the cached credentials of every known user.
package service

import (
	"context"
	"time"

	"golang.org/x/oauth2"

	"github.com/jtuchinsky/finance-planner-cli/internal/core/domain"
	"github.com/jtuchinsky/finance-planner-cli/pkg/token"
)

// SessionStore defines the persistence interface for the session document.
type SessionStore interface {
	// Load reads the document and reports which tenant-aware fields were absent.
	Load() (*domain.SessionFile, *domain.SchemaGaps, error)

	// Save replaces the persisted document.
	Save(f *domain.SessionFile) error
}

// Refresher exchanges a refresh token for a new grant.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// SessionCacheOption configures a SessionCache.
type SessionCacheOption func(*SessionCache)

// WithNowFunc overrides the clock.
func WithNowFunc(now func() time.Time) SessionCacheOption {
	return func(c *SessionCache) {
		c.now = now
	}
}

// SessionCache is the single source of truth for local credentials.
//
// Every operation is a read-modify-write of the whole document through
// the store. The cache holds no state between calls, so several
// processes sharing one file see each other's writes.
type SessionCache struct {
	store     SessionStore
	refresher Refresher
	now       func() time.Time
}

// NewSessionCache creates a new SessionCache.
// refresher may be nil, in which case expired tokens cannot be refreshed.
func NewSessionCache(store SessionStore, refresher Refresher, opts ...SessionCacheOption) *SessionCache {
	c := &SessionCache{
		store:     store,
		refresher: refresher,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// load reads the document and brings it to the current schema.
func (c *SessionCache) load() (*domain.SessionFile, error) {
	f, gaps, err := c.store.Load()
	if err != nil {
		return nil, err
	}
	if migrate(f, gaps) {
		if err := c.store.Save(f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// ============================================================================
// Save Operations
// ============================================================================

// Save stores a grant for userID and makes userID the current user.
//
// The tenant is read from the access token's tenant_id claim. When one is
// present it becomes the user's tenant preference and the current tenant.
func (c *SessionCache) Save(userID, accessToken, refreshToken string, expiresIn time.Duration) error {
	f, err := c.load()
	if err != nil {
		return err
	}
	applyGrant(f, userID, accessToken, refreshToken, c.now().Add(expiresIn))
	return c.store.Save(f)
}

// SaveToken stores an oauth2 grant for userID.
//
// Expiry is taken from ExpiresIn, then Expiry, then the token's exp claim.
// A grant with none of these is stored as already expired.
func (c *SessionCache) SaveToken(userID string, tok *oauth2.Token) error {
	f, err := c.load()
	if err != nil {
		return err
	}
	applyGrant(f, userID, tok.AccessToken, tok.RefreshToken, c.grantExpiry(tok))
	return c.store.Save(f)
}

func (c *SessionCache) grantExpiry(tok *oauth2.Token) time.Time {
	now := c.now()
	switch {
	case tok.ExpiresIn > 0:
		return now.Add(time.Duration(tok.ExpiresIn) * time.Second)
	case !tok.Expiry.IsZero():
		return tok.Expiry
	}
	if exp, ok, err := token.Expiry(tok.AccessToken); err == nil && ok {
		return exp
	}
	return now
}

func applyGrant(f *domain.SessionFile, userID, accessToken, refreshToken string, expiresAt time.Time) {
	rec := &domain.CredentialRecord{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt.UTC(),
	}
	if tenantID, ok := token.TenantID(accessToken); ok {
		rec.TenantID = &tenantID
		f.TenantPreferences[userID] = tenantID
		current := tenantID
		f.CurrentTenantID = &current
	}
	f.Credentials[userID] = rec
	f.CurrentUser = userID
}

// ============================================================================
// Read Operations
// ============================================================================

// AccessToken returns the current user's access token.
//
// It returns ("", nil) when nobody is logged in. An expired token yields
// ErrTokenExpired unless autoRefresh is set, in which case the refresh
// token is exchanged exactly once and the new grant is persisted before
// returning. A failed exchange yields ErrTokenRefreshFailed wrapping the
// refresher's error.
func (c *SessionCache) AccessToken(ctx context.Context, autoRefresh bool) (string, error) {
	f, err := c.load()
	if err != nil {
		return "", err
	}

	userID := f.CurrentUser
	rec := f.Current()
	if rec == nil {
		return "", nil
	}

	now := c.now()
	if !rec.IsExpired(now) {
		return rec.AccessToken, nil
	}
	if !autoRefresh {
		return "", domain.ErrTokenExpired
	}

	if rec.RefreshToken == "" {
		return "", domain.ErrTokenRefreshFailed.WithDetails("no refresh token stored")
	}
	if c.refresher == nil {
		return "", domain.ErrTokenRefreshFailed.WithDetails("no refresher configured")
	}

	tok, err := c.refresher.Refresh(ctx, rec.RefreshToken)
	if err != nil {
		return "", domain.ErrTokenRefreshFailed.WithCause(err)
	}
	if tok == nil || tok.AccessToken == "" {
		return "", domain.ErrTokenRefreshFailed.WithDetails("empty grant")
	}

	refreshToken := tok.RefreshToken
	if refreshToken == "" {
		refreshToken = rec.RefreshToken
	}
	applyGrant(f, userID, tok.AccessToken, refreshToken, c.grantExpiry(tok))
	if err := c.store.Save(f); err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// RefreshToken returns the current user's refresh token without any expiry check.
func (c *SessionCache) RefreshToken() (string, error) {
	f, err := c.load()
	if err != nil {
		return "", err
	}
	if rec := f.Current(); rec != nil {
		return rec.RefreshToken, nil
	}
	return "", nil
}

// ActiveUser returns the current user, or "" when none is set.
func (c *SessionCache) ActiveUser() (string, error) {
	f, err := c.load()
	if err != nil {
		return "", err
	}
	return f.CurrentUser, nil
}

// ActiveTenantID returns the current user's tenant preference.
func (c *SessionCache) ActiveTenantID() (int64, bool, error) {
	f, err := c.load()
	if err != nil {
		return 0, false, err
	}
	if f.CurrentUser == "" {
		return 0, false, nil
	}
	tenantID, ok := f.TenantPreferences[f.CurrentUser]
	return tenantID, ok, nil
}

// ListUsers returns every user with stored credentials, sorted.
func (c *SessionCache) ListUsers() ([]string, error) {
	f, err := c.load()
	if err != nil {
		return nil, err
	}
	return f.Users(), nil
}

// Status summarizes the active session.
func (c *SessionCache) Status() (*domain.SessionStatus, error) {
	f, err := c.load()
	if err != nil {
		return nil, err
	}

	status := &domain.SessionStatus{
		User:       f.CurrentUser,
		KnownUsers: len(f.Credentials),
	}
	if tenantID, ok := f.TenantPreferences[f.CurrentUser]; ok && f.CurrentUser != "" {
		status.TenantID = &tenantID
	}
	if rec := f.Current(); rec != nil {
		status.HasCredential = true
		status.ExpiresAt = rec.ExpiresAt
		status.Expired = rec.IsExpired(c.now())
	}
	return status, nil
}

// ============================================================================
// Mutating Operations
// ============================================================================

// Logout removes the stored credential of userID, or of the current user
// when userID is empty. Tenant preferences are kept.
func (c *SessionCache) Logout(userID string) error {
	f, err := c.load()
	if err != nil {
		return err
	}

	target := userID
	if target == "" {
		target = f.CurrentUser
	}
	if target == "" {
		return nil
	}

	delete(f.Credentials, target)
	if f.CurrentUser == target {
		f.CurrentUser = ""
	}
	return c.store.Save(f)
}

// LogoutAll forgets every user, including tenant preferences.
func (c *SessionCache) LogoutAll() error {
	return c.store.Save(domain.NewSessionFile())
}

// SwitchUser makes userID the current user.
func (c *SessionCache) SwitchUser(userID string) error {
	f, err := c.load()
	if err != nil {
		return err
	}
	if _, ok := f.Credentials[userID]; !ok {
		return domain.ErrUserNotFound.WithDetails(userID)
	}
	f.CurrentUser = userID
	return c.store.Save(f)
}

// SwitchTenant records tenantID as the current user's tenant and drops the
// user's credential, since it was minted for the previous tenant. The user
// stays current so the next login targets the same account.
func (c *SessionCache) SwitchTenant(tenantID int64) error {
	f, err := c.load()
	if err != nil {
		return err
	}
	if f.CurrentUser == "" {
		return domain.ErrNoActiveUser
	}

	f.TenantPreferences[f.CurrentUser] = tenantID
	current := tenantID
	f.CurrentTenantID = &current
	delete(f.Credentials, f.CurrentUser)
	return c.store.Save(f)
}

// ============================================================================
// oauth2 Integration
// ============================================================================

type cacheTokenSource struct {
	ctx         context.Context
	cache       *SessionCache
	autoRefresh bool
}

// TokenSource adapts the cache to oauth2.TokenSource so HTTP clients can
// attach the current bearer token through oauth2.Transport.
func (c *SessionCache) TokenSource(ctx context.Context, autoRefresh bool) oauth2.TokenSource {
	return &cacheTokenSource{ctx: ctx, cache: c, autoRefresh: autoRefresh}
}

// Token implements oauth2.TokenSource.
func (s *cacheTokenSource) Token() (*oauth2.Token, error) {
	access, err := s.cache.AccessToken(s.ctx, s.autoRefresh)
	if err != nil {
		return nil, err
	}
	if access == "" {
		return nil, domain.ErrNotLoggedIn
	}
	return &oauth2.Token{AccessToken: access, TokenType: "Bearer"}, nil
}
