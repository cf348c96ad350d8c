package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mrlokans/mimeroute/internal/config"
	"github.com/mrlokans/mimeroute/internal/crypto"
	"github.com/mrlokans/mimeroute/internal/oauth2"
	"github.com/mrlokans/mimeroute/internal/oauth2/providers"
	"github.com/mrlokans/mimeroute/internal/storage/providers/gdrive"
	"github.com/mrlokans/mimeroute/internal/tokenstore"
)

// DefaultKeyFileName is created next to the database when no key is configured.
const DefaultKeyFileName = ".mimeroute-token-key"

// ErrNoDriveCredentials is returned when neither a static access token nor
// refresh credentials are configured.
var ErrNoDriveCredentials = errors.New("drive credentials are not set: configure DRIVE_ACCESS_TOKEN or DRIVE_CLIENT_ID and DRIVE_REFRESH_TOKEN")

// NewTokenStore opens the sealed token store on db. It returns nil when
// tokens are not persisted or no refresh flow is configured.
func NewTokenStore(cfg *config.Config, db *gorm.DB, logger *zap.Logger) (*tokenstore.Store, error) {
	if db == nil || !cfg.Drive.PersistTokens || !cfg.Drive.HasRefreshCredentials() {
		return nil, nil
	}

	key := cfg.Drive.TokenEncryptionKey
	if key == "" {
		path := cfg.Drive.TokenKeyFile
		if path == "" {
			path = filepath.Join(filepath.Dir(cfg.Database.Path), DefaultKeyFileName)
		}
		var created bool
		var err error
		key, created, err = crypto.LoadOrCreateKey(path)
		if err != nil {
			return nil, err
		}
		if created {
			logger.Info("generated token encryption key", zap.String("path", path))
		}
	}

	sealer, err := crypto.NewSealerFromBase64(key)
	if err != nil {
		return nil, fmt.Errorf("invalid token encryption key: %w", err)
	}
	return tokenstore.New(db, sealer, logger.Named("tokenstore")), nil
}

// NewTokenSource picks the refresh-token flow when its credentials are set,
// and a static access token otherwise. A non-nil store seeds the source with
// the last persisted token and saves every refresh.
func NewTokenSource(ctx context.Context, cfg *config.Config, store *tokenstore.Store, logger *zap.Logger) (oauth2.TokenSource, error) {
	if cfg.Drive.HasRefreshCredentials() {
		provider := providers.NewGoogleProvider(cfg.Drive.ClientID, cfg.Drive.ClientSecret, cfg.Drive.TokenURL)
		refreshToken := cfg.Drive.RefreshToken

		var opts []oauth2.RefreshingTokenSourceOption
		if cfg.OAuth2.RefreshMargin > 0 {
			opts = append(opts, oauth2.WithRefreshMargin(cfg.OAuth2.RefreshMargin))
		}
		if cfg.Drive.AccessToken != "" {
			opts = append(opts, oauth2.WithInitialToken(cfg.Drive.AccessToken, nil))
		}

		if store != nil {
			saved, err := store.Load(ctx, provider.Name())
			if err != nil {
				logger.Warn("ignoring stored drive token", zap.Error(err))
			}
			if saved != nil {
				if saved.RefreshToken != "" {
					refreshToken = saved.RefreshToken
				}
				opts = append(opts, oauth2.WithInitialToken(saved.AccessToken, saved.ExpiresAt))
				logger.Info("loaded stored drive token")
			}
			opts = append(opts, oauth2.WithRefreshHook(store.RefreshHook(provider.Name())))
		}

		logger.Info("using refreshing drive token", zap.String("provider", provider.Name()))
		return oauth2.NewRefreshingTokenSource(provider, refreshToken, opts...), nil
	}

	if cfg.Drive.AccessToken != "" {
		logger.Info("using static drive access token")
		return oauth2.NewStaticTokenSource(cfg.Drive.AccessToken), nil
	}
	return nil, ErrNoDriveCredentials
}

// NewDriveClient creates the Google Drive backend for the configured endpoints.
func NewDriveClient(cfg *config.Config, tokens oauth2.TokenSource) *gdrive.Client {
	return gdrive.NewClient(tokens,
		gdrive.WithAPIURL(cfg.Drive.APIURL),
		gdrive.WithUploadURL(cfg.Drive.UploadURL),
		gdrive.WithThumbnailURL(cfg.Drive.ThumbnailURL),
	)
}
