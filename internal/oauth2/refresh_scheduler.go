package oauth2

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RefreshConfig contains configuration for the token refresh scheduler
type RefreshConfig struct {
	Enabled       bool          // Enable background refresh
	CheckInterval time.Duration // How often to check the token (default: 10m)
	RefreshMargin time.Duration // Refresh tokens expiring within this duration (default: 15m)
}

// DefaultRefreshConfig returns sensible defaults for token refresh
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Enabled:       true,
		CheckInterval: 10 * time.Minute,
		RefreshMargin: 15 * time.Minute,
	}
}

// RefreshScheduler renews a token in the background so that conversion
// requests rarely pay for a refresh round trip.
type RefreshScheduler struct {
	mu sync.Mutex

	source TokenSource
	config RefreshConfig
	logger *zap.Logger
	now    func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewRefreshScheduler creates a new token refresh scheduler
func NewRefreshScheduler(source TokenSource, config RefreshConfig, logger *zap.Logger) *RefreshScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RefreshScheduler{
		source: source,
		config: config,
		logger: logger,
		now:    time.Now,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start runs the scheduler until Stop is called or ctx is cancelled.
func (s *RefreshScheduler) Start(ctx context.Context) {
	defer close(s.doneCh)

	if !s.config.Enabled {
		s.logger.Info("token refresh scheduler disabled")
		return
	}

	s.logger.Info("token refresh scheduler started",
		zap.Duration("interval", s.config.CheckInterval),
		zap.Duration("margin", s.config.RefreshMargin))

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	s.RefreshIfExpiring(ctx)

	for {
		select {
		case <-ticker.C:
			s.RefreshIfExpiring(ctx)
		case <-s.stopCh:
			s.logger.Info("token refresh scheduler stopping")
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop gracefully stops the scheduler
func (s *RefreshScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}

// RefreshIfExpiring refreshes the token when it is missing or expires within
// the configured margin. It reports whether a refresh happened.
func (s *RefreshScheduler) RefreshIfExpiring(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp := s.source.ExpiresAt()
	if s.source.IsValid() && (exp == nil || s.now().Add(s.config.RefreshMargin).Before(*exp)) {
		return false
	}

	if err := s.source.ForceRefresh(ctx); err != nil {
		s.logger.Warn("token refresh failed", zap.Error(err))
		return false
	}
	s.logger.Debug("token refreshed", zap.Timep("expires_at", s.source.ExpiresAt()))
	return true
}
