package oauth2

import (
	"context"
	"time"
)

// ProviderConfig contains the client registration used for token refresh.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
}

// TokenResponse contains tokens returned from the OAuth2 provider
type TokenResponse struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int // seconds until expiry
	Scope        string
}

// ExpiresAt calculates the absolute expiry time from ExpiresIn
func (t *TokenResponse) ExpiresAt() *time.Time {
	if t.ExpiresIn <= 0 {
		return nil
	}
	exp := time.Now().Add(time.Duration(t.ExpiresIn) * time.Second)
	return &exp
}

// Provider exchanges refresh tokens for access tokens.
type Provider interface {
	// Name returns the provider identifier (e.g. "google")
	Name() string

	Config() ProviderConfig

	// RefreshToken exchanges a refresh token for a new access token
	RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error)
}
