package oauth2

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// TokenSource provides access tokens with automatic refresh capability
type TokenSource interface {
	// Token returns a valid access token, refreshing if necessary
	Token(ctx context.Context) (string, error)

	// ForceRefresh forces a token refresh regardless of expiry status
	ForceRefresh(ctx context.Context) error

	// IsValid returns true if the current token is valid and not expired
	IsValid() bool

	// ExpiresAt returns the token expiry time, or nil if unknown/no expiry
	ExpiresAt() *time.Time
}

// RefreshingTokenSource caches an access token and renews it with a
// refresh token shortly before it expires.
type RefreshingTokenSource struct {
	mu sync.RWMutex

	provider     Provider
	refreshToken string

	accessToken string
	expiresAt   *time.Time

	// Margin before expiry to trigger refresh (default: 5 minutes)
	refreshMargin time.Duration
	now           func() time.Time
	onRefresh     func(ctx context.Context, t Token)
}

// Token is the state of a RefreshingTokenSource after a refresh.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

// RefreshingTokenSourceOption configures a RefreshingTokenSource
type RefreshingTokenSourceOption func(*RefreshingTokenSource)

// WithRefreshMargin sets the time before expiry to trigger automatic refresh
func WithRefreshMargin(d time.Duration) RefreshingTokenSourceOption {
	return func(s *RefreshingTokenSource) {
		s.refreshMargin = d
	}
}

// WithInitialToken seeds the cache with an access token that is still usable.
// A nil expiresAt forces a refresh on first use.
func WithInitialToken(accessToken string, expiresAt *time.Time) RefreshingTokenSourceOption {
	return func(s *RefreshingTokenSource) {
		s.accessToken = accessToken
		s.expiresAt = expiresAt
	}
}

// WithRefreshHook registers fn to be called after every successful refresh,
// typically to persist a rotated refresh token.
func WithRefreshHook(fn func(ctx context.Context, t Token)) RefreshingTokenSourceOption {
	return func(s *RefreshingTokenSource) {
		s.onRefresh = fn
	}
}

// NewRefreshingTokenSource creates a TokenSource backed by a refresh token.
func NewRefreshingTokenSource(provider Provider, refreshToken string, opts ...RefreshingTokenSourceOption) *RefreshingTokenSource {
	ts := &RefreshingTokenSource{
		provider:      provider,
		refreshToken:  refreshToken,
		refreshMargin: 5 * time.Minute,
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(ts)
	}

	return ts
}

// Token returns a valid access token, refreshing if necessary
func (s *RefreshingTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accessToken != "" && s.expiresAt != nil && !s.isExpiringSoon() {
		return s.accessToken, nil
	}

	if err := s.refreshLocked(ctx); err != nil {
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}
	return s.accessToken, nil
}

// ForceRefresh forces a token refresh
func (s *RefreshingTokenSource) ForceRefresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

// refreshLocked performs token refresh (caller must hold the lock)
func (s *RefreshingTokenSource) refreshLocked(ctx context.Context) error {
	if s.refreshToken == "" {
		return ErrNoRefreshToken
	}

	resp, err := s.provider.RefreshToken(ctx, s.refreshToken)
	if err != nil {
		return err
	}
	if resp.AccessToken == "" {
		return ErrNoAccessToken
	}

	// Keep existing refresh token if not rotated
	if resp.RefreshToken != "" {
		s.refreshToken = resp.RefreshToken
	}
	s.accessToken = resp.AccessToken
	s.expiresAt = resp.ExpiresAt()

	if s.onRefresh != nil {
		s.onRefresh(ctx, Token{AccessToken: s.accessToken, RefreshToken: s.refreshToken, ExpiresAt: s.expiresAt})
	}
	return nil
}

// IsValid returns true if the current token exists and is not expired
func (s *RefreshingTokenSource) IsValid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.accessToken == "" {
		return false
	}
	return !s.isExpiringSoon()
}

// ExpiresAt returns the token expiry time
func (s *RefreshingTokenSource) ExpiresAt() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

// isExpiringSoon checks if the token is expired or expiring within the refresh margin
func (s *RefreshingTokenSource) isExpiringSoon() bool {
	if s.expiresAt == nil {
		return false
	}
	return s.now().Add(s.refreshMargin).After(*s.expiresAt)
}

// StaticTokenSource provides a fixed access token without refresh capability
type StaticTokenSource struct {
	accessToken string
}

// NewStaticTokenSource creates a TokenSource with a fixed token
func NewStaticTokenSource(accessToken string) *StaticTokenSource {
	return &StaticTokenSource{accessToken: accessToken}
}

func (s *StaticTokenSource) Token(ctx context.Context) (string, error) {
	if s.accessToken == "" {
		return "", ErrNoAccessToken
	}
	return s.accessToken, nil
}

func (s *StaticTokenSource) ForceRefresh(ctx context.Context) error {
	return fmt.Errorf("static token source does not support refresh")
}

func (s *StaticTokenSource) IsValid() bool {
	return s.accessToken != ""
}

func (s *StaticTokenSource) ExpiresAt() *time.Time {
	return nil
}

var (
	_ TokenSource = (*RefreshingTokenSource)(nil)
	_ TokenSource = (*StaticTokenSource)(nil)
)
