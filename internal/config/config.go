package config

import (
	"time"

	"github.com/spf13/viper"
)

type AuthMode string

const (
	AuthModeNone  AuthMode = "none"  // No authentication required (default)
	AuthModeToken AuthMode = "token" // Bearer token checked against AUTH_API_TOKEN_HASH
)

type (
	Config struct {
		HTTP
		Global
		Log
		Drive
		OAuth2
		Conversion
		Database
		Audit
		Tasks
		Auth
	}

	HTTP struct {
		Port         int32
		Host         string
		MaxBodyBytes int64
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Log struct {
		Level       string
		Development bool
	}
	Drive struct {
		APIURL       string
		UploadURL    string
		ThumbnailURL string
		AccessToken  string // Static token; skips the refresh flow when set
		ClientID     string
		ClientSecret string
		RefreshToken string
		TokenURL     string

		// Refreshed tokens are sealed and stored in the database
		PersistTokens      bool
		TokenEncryptionKey string // base64 AES-256 key; read from TokenKeyFile when empty
		TokenKeyFile       string // defaults to .mimeroute-token-key next to the database
	}
	OAuth2 struct {
		RefreshEnabled bool          // Enable background token refresh
		CheckInterval  time.Duration // How often to check for expiring tokens (default: 10m)
		RefreshMargin  time.Duration // Refresh tokens expiring within this duration (default: 15m)
	}
	Conversion struct {
		DefaultFolderID string
		Strict          bool
		ThumbnailWidth  int
		MaxThumbnailIDs int
		CatalogCacheTTL time.Duration // 0 disables the catalog cache

		ThumbnailCacheDir string        // empty disables the thumbnail cache
		ThumbnailCacheTTL time.Duration // 0 keeps cached thumbnails forever
	}
	Database struct {
		Path string
	}
	Audit struct {
		Dir             string // Directory for CLI JSON reports
		RetentionDays   int    // Days to keep audit events and finished jobs (default: 30)
		CleanupSchedule string // Cron format: "0 3 * * *" = daily at 03:00
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
	Auth struct {
		Mode         AuthMode
		APITokenHash string
		BcryptCost   int

		// Rate limiting configuration
		MaxFailedAttempts int           // Max failed attempts before lockout (default: 5)
		RateLimitWindow   time.Duration // Time window for counting attempts (default: 15m)
		LockoutDuration   time.Duration // How long to lock out (default: 30m)
	}
)

// HasRefreshCredentials reports whether the refresh-token flow can be used.
func (d Drive) HasRefreshCredentials() bool {
	return d.ClientID != "" && d.RefreshToken != ""
}

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", DefaultPort)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("max_body_bytes", 32<<20)
	v.SetDefault("shutdown_timeout_in_seconds", 5)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_development", false)

	// Drive defaults; empty URLs fall back to the public endpoints
	v.SetDefault("drive_api_url", "")
	v.SetDefault("drive_upload_url", "")
	v.SetDefault("drive_thumbnail_url", "")
	v.SetDefault("drive_token_url", "")
	v.SetDefault("drive_persist_tokens", true)
	v.SetDefault("token_encryption_key", "")
	v.SetDefault("token_key_file", "")

	// OAuth2 defaults
	v.SetDefault("oauth2_refresh_enabled", true)
	v.SetDefault("oauth2_check_interval", "10m")
	v.SetDefault("oauth2_refresh_margin", "15m")

	// Conversion defaults
	v.SetDefault("conversion_default_folder_id", "root")
	v.SetDefault("conversion_strict", false)
	v.SetDefault("thumbnail_width", 1000)
	v.SetDefault("thumbnail_max_ids", 50)
	v.SetDefault("catalog_cache_ttl", "0s")
	v.SetDefault("thumbnail_cache_dir", "")
	v.SetDefault("thumbnail_cache_ttl", "24h")

	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("audit_dir", "./reports")
	v.SetDefault("audit_retention_days", 30)
	v.SetDefault("audit_cleanup_schedule", DefaultCleanupSchedule)

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	// Auth defaults
	v.SetDefault("auth_mode", "none")
	v.SetDefault("auth_api_token_hash", "")
	v.SetDefault("auth_bcrypt_cost", 12)
	v.SetDefault("auth_max_failed_attempts", 5)
	v.SetDefault("auth_rate_limit_window", "15m")
	v.SetDefault("auth_lockout_duration", "30m")

	return &Config{
		HTTP: HTTP{
			Port:         v.GetInt32("PORT"),
			Host:         v.GetString("HOST"),
			MaxBodyBytes: v.GetInt64("MAX_BODY_BYTES"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Log: Log{
			Level:       v.GetString("LOG_LEVEL"),
			Development: v.GetBool("LOG_DEVELOPMENT"),
		},
		Drive: Drive{
			APIURL:       v.GetString("DRIVE_API_URL"),
			UploadURL:    v.GetString("DRIVE_UPLOAD_URL"),
			ThumbnailURL: v.GetString("DRIVE_THUMBNAIL_URL"),
			AccessToken:  v.GetString("DRIVE_ACCESS_TOKEN"),
			ClientID:     v.GetString("DRIVE_CLIENT_ID"),
			ClientSecret: v.GetString("DRIVE_CLIENT_SECRET"),
			RefreshToken: v.GetString("DRIVE_REFRESH_TOKEN"),
			TokenURL:     v.GetString("DRIVE_TOKEN_URL"),

			PersistTokens:      v.GetBool("DRIVE_PERSIST_TOKENS"),
			TokenEncryptionKey: v.GetString("TOKEN_ENCRYPTION_KEY"),
			TokenKeyFile:       v.GetString("TOKEN_KEY_FILE"),
		},
		OAuth2: OAuth2{
			RefreshEnabled: v.GetBool("OAUTH2_REFRESH_ENABLED"),
			CheckInterval:  v.GetDuration("OAUTH2_CHECK_INTERVAL"),
			RefreshMargin:  v.GetDuration("OAUTH2_REFRESH_MARGIN"),
		},
		Conversion: Conversion{
			DefaultFolderID: v.GetString("CONVERSION_DEFAULT_FOLDER_ID"),
			Strict:          v.GetBool("CONVERSION_STRICT"),
			ThumbnailWidth:  v.GetInt("THUMBNAIL_WIDTH"),
			MaxThumbnailIDs: v.GetInt("THUMBNAIL_MAX_IDS"),
			CatalogCacheTTL: v.GetDuration("CATALOG_CACHE_TTL"),

			ThumbnailCacheDir: v.GetString("THUMBNAIL_CACHE_DIR"),
			ThumbnailCacheTTL: v.GetDuration("THUMBNAIL_CACHE_TTL"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Audit: Audit{
			Dir:             v.GetString("AUDIT_DIR"),
			RetentionDays:   v.GetInt("AUDIT_RETENTION_DAYS"),
			CleanupSchedule: v.GetString("AUDIT_CLEANUP_SCHEDULE"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
		Auth: Auth{
			Mode:              AuthMode(v.GetString("AUTH_MODE")),
			APITokenHash:      v.GetString("AUTH_API_TOKEN_HASH"),
			BcryptCost:        v.GetInt("AUTH_BCRYPT_COST"),
			MaxFailedAttempts: v.GetInt("AUTH_MAX_FAILED_ATTEMPTS"),
			RateLimitWindow:   v.GetDuration("AUTH_RATE_LIMIT_WINDOW"),
			LockoutDuration:   v.GetDuration("AUTH_LOCKOUT_DURATION"),
		},
	}
}
