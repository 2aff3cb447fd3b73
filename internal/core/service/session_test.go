package service

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/jtuchinsky/finance-planner-cli/internal/core/domain"
	"github.com/jtuchinsky/finance-planner-cli/internal/storage"
)

// memStore is an in-memory SessionStore that counts writes.
type memStore struct {
	file  *domain.SessionFile
	gaps  *domain.SchemaGaps
	saves int
}

func newMemStore() *memStore {
	return &memStore{file: domain.NewSessionFile()}
}

func (m *memStore) Load() (*domain.SessionFile, *domain.SchemaGaps, error) {
	gaps := m.gaps
	if gaps == nil {
		gaps = &domain.SchemaGaps{}
	}
	return cloneFile(m.file), gaps, nil
}

func (m *memStore) Save(f *domain.SessionFile) error {
	m.file = cloneFile(f)
	m.gaps = nil
	m.saves++
	return nil
}

func cloneFile(f *domain.SessionFile) *domain.SessionFile {
	out := domain.NewSessionFile()
	out.CurrentUser = f.CurrentUser
	if f.CurrentTenantID != nil {
		v := *f.CurrentTenantID
		out.CurrentTenantID = &v
	}
	for k, rec := range f.Credentials {
		cp := *rec
		if rec.TenantID != nil {
			v := *rec.TenantID
			cp.TenantID = &v
		}
		out.Credentials[k] = &cp
	}
	for k, v := range f.TenantPreferences {
		out.TenantPreferences[k] = v
	}
	return out
}

// mockRefresher returns a fixed grant or error and counts calls.
type mockRefresher struct {
	token *oauth2.Token
	err   error
	calls int
	seen  string
}

func (m *mockRefresher) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	m.calls++
	m.seen = refreshToken
	return m.token, m.err
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)}
}

func jwtWith(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	require.NoError(t, err)
	return raw
}

func TestSessionCache_SaveAndAccessToken(t *testing.T) {
	store := newMemStore()
	clock := newClock()
	cache := NewSessionCache(store, nil, WithNowFunc(clock.Now))

	access := jwtWith(t, jwt.MapClaims{"sub": "1", "tenant_id": 5})
	require.NoError(t, cache.Save("a@x.io", access, "r1", time.Hour))

	got, err := cache.AccessToken(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, access, got)

	rec := store.file.Credentials["a@x.io"]
	require.NotNil(t, rec)
	assert.Equal(t, clock.Now().Add(time.Hour), rec.ExpiresAt)
	require.NotNil(t, rec.TenantID)
	assert.Equal(t, int64(5), *rec.TenantID)
	assert.Equal(t, "a@x.io", store.file.CurrentUser)
	assert.Equal(t, int64(5), store.file.TenantPreferences["a@x.io"])
	require.NotNil(t, store.file.CurrentTenantID)
	assert.Equal(t, int64(5), *store.file.CurrentTenantID)

	tenantID, ok, err := cache.ActiveTenantID()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(5), tenantID)
}

func TestSessionCache_SaveWithoutTenantClaim(t *testing.T) {
	store := newMemStore()
	cache := NewSessionCache(store, nil)

	require.NoError(t, cache.Save("a@x.io", "opaque-token", "r", time.Hour))

	rec := store.file.Credentials["a@x.io"]
	require.NotNil(t, rec)
	assert.Nil(t, rec.TenantID)
	assert.Empty(t, store.file.TenantPreferences)
	assert.Nil(t, store.file.CurrentTenantID)
}

func TestSessionCache_SaveToken(t *testing.T) {
	clock := newClock()

	tests := []struct {
		name string
		tok  *oauth2.Token
		want time.Time
	}{
		{
			name: "expires_in seconds",
			tok:  &oauth2.Token{AccessToken: "a", RefreshToken: "r", ExpiresIn: 900},
			want: clock.Now().Add(15 * time.Minute),
		},
		{
			name: "absolute expiry",
			tok:  &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: clock.Now().Add(time.Hour)},
			want: clock.Now().Add(time.Hour),
		},
		{
			name: "exp claim",
			tok:  &oauth2.Token{AccessToken: jwtWith(t, jwt.MapClaims{"exp": clock.Now().Add(2 * time.Hour).Unix()})},
			want: clock.Now().Add(2 * time.Hour),
		},
		{
			name: "no expiry information",
			tok:  &oauth2.Token{AccessToken: "opaque"},
			want: clock.Now(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			cache := NewSessionCache(store, nil, WithNowFunc(clock.Now))

			require.NoError(t, cache.SaveToken("a@x.io", tt.tok))
			rec := store.file.Credentials["a@x.io"]
			require.NotNil(t, rec)
			assert.True(t, tt.want.Equal(rec.ExpiresAt), "ExpiresAt = %v, want %v", rec.ExpiresAt, tt.want)
		})
	}
}

func TestSessionCache_AccessTokenNoSession(t *testing.T) {
	store := newMemStore()
	cache := NewSessionCache(store, nil)

	got, err := cache.AccessToken(context.Background(), true)
	require.NoError(t, err)
	assert.Empty(t, got)

	// Current user without a record behaves the same.
	store.file.CurrentUser = "ghost@x.io"
	got, err = cache.AccessToken(context.Background(), true)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSessionCache_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, os.WriteFile(path, []byte("\x00not json at all{"), 0o600))
	cache := NewSessionCache(storage.NewFileStore(path), nil)

	got, err := cache.AccessToken(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, got)

	user, err := cache.ActiveUser()
	require.NoError(t, err)
	assert.Empty(t, user)

	access := jwtWith(t, jwt.MapClaims{"sub": "1", "tenant_id": 3})
	require.NoError(t, cache.Save("a@x.io", access, "r1", time.Hour))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, json.Valid(data), "corrupt content should be overwritten with a valid document")

	got, err = cache.AccessToken(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, access, got)
}

func TestSessionCache_ExpiryBoundary(t *testing.T) {
	store := newMemStore()
	clock := newClock()
	cache := NewSessionCache(store, nil, WithNowFunc(clock.Now))

	require.NoError(t, cache.Save("a@x.io", "a", "r", time.Minute))

	clock.Advance(time.Minute - time.Nanosecond)
	got, err := cache.AccessToken(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "a", got)

	clock.Advance(time.Nanosecond)
	_, err = cache.AccessToken(context.Background(), false)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
}

func TestSessionCache_AutoRefresh(t *testing.T) {
	store := newMemStore()
	clock := newClock()
	newAccess := jwtWith(t, jwt.MapClaims{"tenant_id": 9})
	refresher := &mockRefresher{token: &oauth2.Token{AccessToken: newAccess, RefreshToken: "r2", ExpiresIn: 1800}}
	cache := NewSessionCache(store, refresher, WithNowFunc(clock.Now))

	require.NoError(t, cache.Save("a@x.io", "old", "r1", time.Minute))
	clock.Advance(2 * time.Minute)
	savesBefore := store.saves

	got, err := cache.AccessToken(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, newAccess, got)
	assert.Equal(t, 1, refresher.calls)
	assert.Equal(t, "r1", refresher.seen)
	assert.Equal(t, savesBefore+1, store.saves)

	rec := store.file.Credentials["a@x.io"]
	assert.Equal(t, "r2", rec.RefreshToken)
	assert.Equal(t, clock.Now().Add(30*time.Minute), rec.ExpiresAt)
	assert.Equal(t, int64(9), store.file.TenantPreferences["a@x.io"])

	// The refreshed token is served from the cache without another call.
	got, err = cache.AccessToken(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, newAccess, got)
	assert.Equal(t, 1, refresher.calls)
}

func TestSessionCache_AutoRefreshKeepsRefreshToken(t *testing.T) {
	store := newMemStore()
	clock := newClock()
	refresher := &mockRefresher{token: &oauth2.Token{AccessToken: "new", ExpiresIn: 60}}
	cache := NewSessionCache(store, refresher, WithNowFunc(clock.Now))

	require.NoError(t, cache.Save("a@x.io", "old", "r1", 0))
	_, err := cache.AccessToken(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "r1", store.file.Credentials["a@x.io"].RefreshToken)
}

func TestSessionCache_RefreshFailures(t *testing.T) {
	tests := []struct {
		name      string
		refresh   string
		refresher *mockRefresher
		wantCause error
		wantCalls int
	}{
		{
			name:      "service unreachable",
			refresh:   "r1",
			refresher: &mockRefresher{err: domain.ErrServiceUnreachable.WithDetails("dial tcp")},
			wantCause: domain.ErrServiceUnreachable,
			wantCalls: 1,
		},
		{
			name:      "refresh rejected",
			refresh:   "r1",
			refresher: &mockRefresher{err: domain.ErrAuthenticationFailed},
			wantCause: domain.ErrAuthenticationFailed,
			wantCalls: 1,
		},
		{
			name:      "missing refresh token",
			refresh:   "",
			refresher: &mockRefresher{token: &oauth2.Token{AccessToken: "new"}},
			wantCalls: 0,
		},
		{
			name:      "empty grant",
			refresh:   "r1",
			refresher: &mockRefresher{token: &oauth2.Token{}},
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			clock := newClock()
			cache := NewSessionCache(store, tt.refresher, WithNowFunc(clock.Now))

			require.NoError(t, cache.Save("a@x.io", "old", tt.refresh, time.Second))
			clock.Advance(time.Minute)
			savesBefore := store.saves

			got, err := cache.AccessToken(context.Background(), true)
			assert.Empty(t, got)
			assert.ErrorIs(t, err, domain.ErrTokenRefreshFailed)
			if tt.wantCause != nil {
				assert.ErrorIs(t, err, tt.wantCause)
			}
			assert.Equal(t, tt.wantCalls, tt.refresher.calls)
			assert.Equal(t, savesBefore, store.saves, "a failed refresh must not write")
			assert.Equal(t, "old", store.file.Credentials["a@x.io"].AccessToken)
		})
	}
}

func TestSessionCache_RefreshToken(t *testing.T) {
	store := newMemStore()
	clock := newClock()
	cache := NewSessionCache(store, nil, WithNowFunc(clock.Now))

	got, err := cache.RefreshToken()
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, cache.Save("a@x.io", "a", "r1", time.Second))
	clock.Advance(time.Hour)

	got, err = cache.RefreshToken()
	require.NoError(t, err)
	assert.Equal(t, "r1", got, "refresh token is returned regardless of access expiry")
}

func TestSessionCache_Logout(t *testing.T) {
	t.Run("current user", func(t *testing.T) {
		store := newMemStore()
		cache := NewSessionCache(store, nil)
		require.NoError(t, cache.Save("a@x.io", jwtWith(t, jwt.MapClaims{"tenant_id": 3}), "r", time.Hour))

		require.NoError(t, cache.Logout(""))
		assert.Empty(t, store.file.CurrentUser)
		assert.NotContains(t, store.file.Credentials, "a@x.io")
		assert.Equal(t, int64(3), store.file.TenantPreferences["a@x.io"], "preferences survive logout")
	})

	t.Run("other user keeps current", func(t *testing.T) {
		store := newMemStore()
		cache := NewSessionCache(store, nil)
		require.NoError(t, cache.Save("b@x.io", "b", "r", time.Hour))
		require.NoError(t, cache.Save("a@x.io", "a", "r", time.Hour))

		require.NoError(t, cache.Logout("b@x.io"))
		assert.Equal(t, "a@x.io", store.file.CurrentUser)
		assert.NotContains(t, store.file.Credentials, "b@x.io")
		assert.Contains(t, store.file.Credentials, "a@x.io")
	})

	t.Run("nobody to log out", func(t *testing.T) {
		store := newMemStore()
		cache := NewSessionCache(store, nil)

		require.NoError(t, cache.Logout(""))
		assert.Zero(t, store.saves)
	})
}

func TestSessionCache_LogoutAll(t *testing.T) {
	store := newMemStore()
	cache := NewSessionCache(store, nil)
	require.NoError(t, cache.Save("a@x.io", jwtWith(t, jwt.MapClaims{"tenant_id": 3}), "r", time.Hour))
	require.NoError(t, cache.Save("b@x.io", "b", "r", time.Hour))

	require.NoError(t, cache.LogoutAll())
	assert.Empty(t, store.file.CurrentUser)
	assert.Nil(t, store.file.CurrentTenantID)
	assert.Empty(t, store.file.Credentials)
	assert.Empty(t, store.file.TenantPreferences)
}

func TestSessionCache_SwitchUser(t *testing.T) {
	store := newMemStore()
	cache := NewSessionCache(store, nil)
	require.NoError(t, cache.Save("a@x.io", jwtWith(t, jwt.MapClaims{"tenant_id": 1}), "r", time.Hour))
	require.NoError(t, cache.Save("b@x.io", jwtWith(t, jwt.MapClaims{"tenant_id": 2}), "r", time.Hour))

	err := cache.SwitchUser("nobody@x.io")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	assert.Equal(t, "b@x.io", store.file.CurrentUser)

	require.NoError(t, cache.SwitchUser("a@x.io"))
	user, err := cache.ActiveUser()
	require.NoError(t, err)
	assert.Equal(t, "a@x.io", user)
	require.NotNil(t, store.file.CurrentTenantID)
	assert.Equal(t, int64(2), *store.file.CurrentTenantID, "switching users leaves tenant fields alone")

	tenantID, ok, err := cache.ActiveTenantID()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1), tenantID)
}

func TestSessionCache_SwitchTenant(t *testing.T) {
	t.Run("no active user", func(t *testing.T) {
		cache := NewSessionCache(newMemStore(), nil)
		assert.ErrorIs(t, cache.SwitchTenant(4), domain.ErrNoActiveUser)
	})

	t.Run("drops the credential but keeps the user", func(t *testing.T) {
		store := newMemStore()
		cache := NewSessionCache(store, nil)
		require.NoError(t, cache.Save("a@x.io", jwtWith(t, jwt.MapClaims{"tenant_id": 1}), "r", time.Hour))

		require.NoError(t, cache.SwitchTenant(4))
		assert.Equal(t, "a@x.io", store.file.CurrentUser)
		assert.NotContains(t, store.file.Credentials, "a@x.io")
		assert.Equal(t, int64(4), store.file.TenantPreferences["a@x.io"])
		require.NotNil(t, store.file.CurrentTenantID)
		assert.Equal(t, int64(4), *store.file.CurrentTenantID)

		got, err := cache.AccessToken(context.Background(), true)
		require.NoError(t, err)
		assert.Empty(t, got)

		_, err = cache.TokenSource(context.Background(), true).Token()
		assert.ErrorIs(t, err, domain.ErrNotLoggedIn)
	})
}

func TestSessionCache_ListUsers(t *testing.T) {
	store := newMemStore()
	cache := NewSessionCache(store, nil)

	users, err := cache.ListUsers()
	require.NoError(t, err)
	assert.Empty(t, users)

	for _, u := range []string{"c@x.io", "a@x.io", "b@x.io"} {
		require.NoError(t, cache.Save(u, "t", "r", time.Hour))
	}
	users, err = cache.ListUsers()
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.io", "b@x.io", "c@x.io"}, users)
}

func TestSessionCache_Status(t *testing.T) {
	store := newMemStore()
	clock := newClock()
	cache := NewSessionCache(store, nil, WithNowFunc(clock.Now))

	status, err := cache.Status()
	require.NoError(t, err)
	assert.Empty(t, status.User)
	assert.False(t, status.HasCredential)

	require.NoError(t, cache.Save("a@x.io", jwtWith(t, jwt.MapClaims{"tenant_id": 8}), "r", time.Minute))
	clock.Advance(2 * time.Minute)

	status, err = cache.Status()
	require.NoError(t, err)
	assert.Equal(t, "a@x.io", status.User)
	assert.True(t, status.HasCredential)
	assert.True(t, status.Expired)
	require.NotNil(t, status.TenantID)
	assert.Equal(t, int64(8), *status.TenantID)
	assert.Equal(t, 1, status.KnownUsers)
}

func TestSessionCache_TokenSource(t *testing.T) {
	store := newMemStore()
	cache := NewSessionCache(store, nil)

	_, err := cache.TokenSource(context.Background(), false).Token()
	assert.True(t, errors.Is(err, domain.ErrNotLoggedIn))

	require.NoError(t, cache.Save("a@x.io", "bearer-value", "r", time.Hour))
	tok, err := cache.TokenSource(context.Background(), false).Token()
	require.NoError(t, err)
	assert.Equal(t, "bearer-value", tok.AccessToken)
	assert.Equal(t, "Bearer", tok.Type())
}
