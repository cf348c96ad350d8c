package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mrlokans/mimeroute/internal/audit"
	"github.com/mrlokans/mimeroute/internal/auth"
	"github.com/mrlokans/mimeroute/internal/batch"
	"github.com/mrlokans/mimeroute/internal/catalogcache"
	"github.com/mrlokans/mimeroute/internal/config"
	"github.com/mrlokans/mimeroute/internal/database"
	auditRepo "github.com/mrlokans/mimeroute/internal/database/audit"
	"github.com/mrlokans/mimeroute/internal/database/jobs"
	"github.com/mrlokans/mimeroute/internal/formats"
	http_controllers "github.com/mrlokans/mimeroute/internal/http"
	"github.com/mrlokans/mimeroute/internal/logging"
	"github.com/mrlokans/mimeroute/internal/metrics"
	"github.com/mrlokans/mimeroute/internal/oauth2"
	"github.com/mrlokans/mimeroute/internal/scheduler"
	"github.com/mrlokans/mimeroute/internal/storage"
	"github.com/mrlokans/mimeroute/internal/tasks"
	"github.com/mrlokans/mimeroute/internal/thumbnails"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// NewLogger builds the configured logger, falling back to a development
// logger when the configuration is rejected.
func NewLogger(cfg *config.Config) *zap.Logger {
	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		fallback, _ := zap.NewDevelopment()
		fallback.Error("failed to initialize logger, using development fallback", zap.Error(err))
		return fallback
	}
	return logger
}

func Serve(handler http.Handler, cfg *config.Config, logger *zap.Logger, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second
	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server", zap.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop accepting requests before the workers go away.
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}

	if onShutdown != nil {
		onShutdown(ctx)
	}

	logger.Info("server exiting")
}

func Run(cfg *config.Config, version string) {
	logger := NewLogger(cfg)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting mimeroute", zap.String("version", version))

	db, err := database.NewDatabase(cfg.Database.Path, logger.Named("database"))
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("error closing database", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := NewTokenStore(cfg, db.DB, logger)
	if err != nil {
		logger.Fatal("failed to open token store", zap.Error(err))
	}
	tokens, err := NewTokenSource(ctx, cfg, store, logger)
	if err != nil {
		logger.Fatal("failed to configure drive access", zap.Error(err))
	}
	drive := NewDriveClient(cfg, tokens)

	refresher := oauth2.NewRefreshScheduler(tokens, oauth2.RefreshConfig{
		Enabled:       cfg.OAuth2.RefreshEnabled && cfg.Drive.HasRefreshCredentials(),
		CheckInterval: cfg.OAuth2.CheckInterval,
		RefreshMargin: cfg.OAuth2.RefreshMargin,
	}, logger.Named("oauth2"))

	catalogs := catalogcache.NewSource(formats.NewFetcher(drive), db.DB, "gdrive", cfg.Conversion.CatalogCacheTTL, logger.Named("catalog"))
	if cfg.Conversion.CatalogCacheTTL > 0 {
		logger.Info("catalog cache enabled", zap.Duration("ttl", cfg.Conversion.CatalogCacheTTL))
	}

	auditService := audit.NewService(auditRepo.NewRepository(db.DB), logger.Named("audit"))
	defer auditService.Flush()
	m := metrics.New()

	converter := batch.NewService(drive, catalogs,
		batch.WithLogger(logger.Named("batch")),
		batch.WithDefaultFolder(cfg.Conversion.DefaultFolderID),
		batch.WithObserver(auditService),
		batch.WithObserver(m),
	)

	jobRepo := jobs.NewRepository(db.DB)

	go refresher.Start(ctx)

	// Initialize task queue if enabled
	var taskClient *tasks.Client
	var retention *scheduler.RetentionScheduler
	var queue http_controllers.TaskQueue
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.Config{
			Workers:         cfg.Tasks.Workers,
			ReleaseAfter:    cfg.Tasks.ReleaseAfter,
			CleanupInterval: cfg.Tasks.CleanupInterval,
		}, logger.Named("tasks"))
		if err != nil {
			logger.Fatal("failed to initialize task queue", zap.Error(err))
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				logger.Error("error closing task client", zap.Error(err))
			}
		}()

		taskClient.Register(
			tasks.NewConvertJobQueue(tasks.ConvertJobDeps{
				Jobs:      jobRepo,
				Converter: converter,
				Recorder:  auditService,
				Counter:   m,
				Logger:    logger.Named("jobs"),
			}),
			tasks.NewCleanupRetentionQueue(tasks.CleanupRetentionDeps{
				Events:   auditService,
				Jobs:     jobRepo,
				Recorder: auditService,
				Counter:  m,
				Logger:   logger.Named("retention"),
			}),
		)
		go taskClient.Start(ctx)
		queue = taskClient

		retention = scheduler.NewRetentionScheduler(taskClient, cfg.Audit.CleanupSchedule, cfg.Audit.RetentionDays, logger.Named("scheduler"))
		if err := retention.Start(ctx); err != nil {
			logger.Fatal("failed to start retention scheduler", zap.Error(err))
		}
	} else {
		logger.Warn("task queue disabled, job endpoints and retention cleanup are off")
	}

	var authMiddleware *auth.Middleware
	var limiter *auth.RateLimiter
	switch cfg.Auth.Mode {
	case config.AuthModeToken:
		if cfg.Auth.APITokenHash == "" {
			logger.Fatal("AUTH_API_TOKEN_HASH must be set when AUTH_MODE=token; generate one with 'mimeroute token'")
		}
		limiter = auth.NewRateLimiter(auth.RateLimitConfig{
			MaxAttempts:     cfg.Auth.MaxFailedAttempts,
			WindowDuration:  cfg.Auth.RateLimitWindow,
			LockoutDuration: cfg.Auth.LockoutDuration,
		})
		authMiddleware = auth.NewMiddleware(auth.ModeToken, cfg.Auth.APITokenHash, limiter, logger.Named("auth"))
		logger.Info("authentication mode: token")
	case config.AuthModeNone, "":
		logger.Info("authentication mode: none (no authentication required)")
	default:
		logger.Fatal("unknown AUTH_MODE", zap.String("mode", string(cfg.Auth.Mode)))
	}

	var thumbSource storage.ThumbnailSource = drive
	if dir := cfg.Conversion.ThumbnailCacheDir; dir != "" {
		cache, err := thumbnails.NewCache(drive, dir, cfg.Conversion.ThumbnailCacheTTL, logger.Named("thumbnail_cache"))
		if err != nil {
			logger.Fatal("failed to create thumbnail cache", zap.Error(err))
		}
		thumbSource = cache
		logger.Info("thumbnail cache enabled", zap.String("dir", dir), zap.Duration("ttl", cfg.Conversion.ThumbnailCacheTTL))
	}

	// Build router configuration with all dependencies
	routerCfg := http_controllers.RouterConfig{
		Converter:       converter,
		Database:        db,
		Logger:          logger,
		TokenState:      tokens,
		Thumbnails:      thumbnails.NewFetcher(drive, thumbSource, logger.Named("thumbnails")),
		ThumbnailWidth:  cfg.Conversion.ThumbnailWidth,
		MaxThumbnailIDs: cfg.Conversion.MaxThumbnailIDs,
		Audit:           auditService,
		Metrics:         m.Handler(),
		AuthMiddleware:  authMiddleware,
		MaxBodyBytes:    cfg.HTTP.MaxBodyBytes,
		Version:         version,
	}
	if queue != nil {
		routerCfg.Jobs = jobRepo
		routerCfg.Queue = queue
	}

	router := http_controllers.NewRouter(routerCfg)

	// Shutdown callback for graceful cleanup
	onShutdown := func(ctx context.Context) {
		if retention != nil {
			retention.Stop()
		}
		if taskClient != nil {
			taskClient.Stop(ctx)
		}
		refresher.Stop()
		if limiter != nil {
			limiter.Stop()
		}
		cancel()
	}

	Serve(router, cfg, logger, onShutdown)
}
