package connection

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/jtuchinsky/finance-planner-cli/internal/core/domain"
)

// Auth service endpoints.
const (
	PathRegister = "/auth/register"
	PathLogin    = "/auth/login"
	PathRefresh  = "/auth/refresh"
	PathLogout   = "/auth/logout"
	PathProfile  = "/api/protected/me"
)

// RegisterRequest is the payload of a registration.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username,omitempty"`
	TenantID *int64 `json:"tenant_id,omitempty"`
}

// UserProfile is the account view returned by the auth service.
type UserProfile struct {
	ID            int64     `json:"id" yaml:"id"`
	Email         string    `json:"email" yaml:"email"`
	Username      string    `json:"username,omitempty" yaml:"username,omitempty"`
	TenantID      *int64    `json:"tenant_id,omitempty" yaml:"tenant_id,omitempty"`
	IsActive      bool      `json:"is_active" yaml:"is_active"`
	IsTOTPEnabled bool      `json:"is_totp_enabled" yaml:"is_totp_enabled"`
	CreatedAt     time.Time `json:"created_at" yaml:"created_at"`
}

// tokenResponse is the grant returned by login and refresh.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

func (r *tokenResponse) token() *oauth2.Token {
	tokenType := r.TokenType
	if tokenType == "" {
		tokenType = "bearer"
	}
	return &oauth2.Token{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    tokenType,
		ExpiresIn:    r.ExpiresIn,
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// AuthService is the client of the remote identity service.
//
// Refresh satisfies service.Refresher, so an AuthService can back a
// SessionCache directly.
type AuthService struct {
	http *HTTPClient
}

// NewAuthService creates an AuthService over client.
func NewAuthService(client *HTTPClient) *AuthService {
	return &AuthService{http: client}
}

// Register creates an account. The service answers 201 on success.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*UserProfile, error) {
	resp, err := s.http.Post(ctx, PathRegister, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode < 300 {
		resp.Body.Close()
		return nil, domain.ErrAuthenticationFailed.WithDetails("unexpected status " + resp.Status)
	}

	var profile UserProfile
	if err := ParseResponse(resp, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Login exchanges credentials for a grant.
func (s *AuthService) Login(ctx context.Context, email, password string) (*oauth2.Token, error) {
	resp, err := s.http.Post(ctx, PathLogin, map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}

	var tr tokenResponse
	if err := ParseResponse(resp, &tr); err != nil {
		if resp.StatusCode == http.StatusForbidden && strings.Contains(err.Error(), "TOTP") {
			return nil, domain.ErrAuthenticationFailed.WithDetails("account requires two-factor authentication (TOTP)")
		}
		if resp.StatusCode == http.StatusUnauthorized {
			return nil, domain.ErrAuthenticationFailed.WithDetails("invalid email or password")
		}
		return nil, err
	}
	return tr.token(), nil
}

// Refresh exchanges a refresh token for a new grant.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	resp, err := s.http.Post(ctx, PathRefresh, refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return nil, err
	}

	var tr tokenResponse
	if err := ParseResponse(resp, &tr); err != nil {
		return nil, err
	}
	return tr.token(), nil
}

// Logout revokes a refresh token. A 401 means it was already revoked.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	resp, err := s.http.Post(ctx, PathLogout, refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return err
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusUnauthorized:
		resp.Body.Close()
		return nil
	}
	return ParseResponse(resp, nil)
}

// Profile fetches the account behind the bearer token. The underlying
// HTTPClient must carry a token source.
func (s *AuthService) Profile(ctx context.Context) (*UserProfile, error) {
	resp, err := s.http.Get(ctx, PathProfile)
	if err != nil {
		return nil, err
	}

	var profile UserProfile
	if err := ParseResponse(resp, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}
