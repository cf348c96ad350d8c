// Package tokenstore persists backend OAuth tokens so that a rotated refresh
// token and a still valid access token survive restarts.
package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/mimeroute/internal/crypto"
	"github.com/mrlokans/mimeroute/internal/entities"
	"github.com/mrlokans/mimeroute/internal/oauth2"
)

// Store keeps one sealed token per provider.
type Store struct {
	db     *gorm.DB
	sealer *crypto.Sealer
	logger *zap.Logger
	now    func() time.Time
}

func New(db *gorm.DB, sealer *crypto.Sealer, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, sealer: sealer, logger: logger, now: time.Now}
}

// Load returns the stored token of provider, or nil when none was saved.
func (s *Store) Load(ctx context.Context, provider string) (*oauth2.Token, error) {
	var row entities.OAuthToken
	err := s.db.WithContext(ctx).Where("provider = ?", provider).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}

	access, err := s.sealer.Open(row.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to open access token: %w", err)
	}
	refresh, err := s.sealer.Open(row.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to open refresh token: %w", err)
	}
	return &oauth2.Token{AccessToken: access, RefreshToken: refresh, ExpiresAt: row.ExpiresAt}, nil
}

// Save seals and upserts the token of provider.
func (s *Store) Save(ctx context.Context, provider string, t oauth2.Token) error {
	access, err := s.sealer.Seal(t.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to seal access token: %w", err)
	}
	refresh, err := s.sealer.Seal(t.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to seal refresh token: %w", err)
	}

	now := s.now()
	row := entities.OAuthToken{
		Provider:        provider,
		AccessToken:     access,
		RefreshToken:    refresh,
		ExpiresAt:       t.ExpiresAt,
		LastRefreshedAt: &now,
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{"access_token", "refresh_token", "expires_at", "last_refreshed_at", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// Delete removes the stored token of provider.
func (s *Store) Delete(ctx context.Context, provider string) error {
	if err := s.db.WithContext(ctx).Where("provider = ?", provider).Delete(&entities.OAuthToken{}).Error; err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// RefreshHook returns an oauth2 refresh hook that saves every refreshed token.
// Save failures are logged; the refreshed token stays usable in memory.
func (s *Store) RefreshHook(provider string) func(ctx context.Context, t oauth2.Token) {
	return func(ctx context.Context, t oauth2.Token) {
		if err := s.Save(context.WithoutCancel(ctx), provider, t); err != nil {
			s.logger.Error("failed to persist refreshed token", zap.String("provider", provider), zap.Error(err))
			return
		}
		s.logger.Debug("refreshed token persisted", zap.String("provider", provider))
	}
}
