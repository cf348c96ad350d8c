// Package catalogcache keeps the backend's format catalog in SQLite for a
// bounded time so repeated batches skip the capabilities round trip.
package catalogcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/mimeroute/internal/entities"
	"github.com/mrlokans/mimeroute/internal/formats"
)

// Cache is a formats.Source that serves a stored catalog until it is older than the TTL.
type Cache struct {
	source  formats.Source
	db      *gorm.DB
	ttl     time.Duration
	backend string
	logger  *zap.Logger
	now     func() time.Time
}

// New wraps source. backend names the snapshot row, so several backends can share a table.
func New(source formats.Source, db *gorm.DB, backend string, ttl time.Duration, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		source:  source,
		db:      db,
		ttl:     ttl,
		backend: backend,
		logger:  logger,
		now:     time.Now,
	}
}

func (c *Cache) Catalog(ctx context.Context) (*formats.Catalog, error) {
	if cached, ok := c.load(ctx); ok {
		return cached, nil
	}

	catalog, err := c.source.Catalog(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.store(ctx, catalog); err != nil {
		c.logger.Warn("failed to store catalog snapshot", zap.String("backend", c.backend), zap.Error(err))
	}
	return catalog, nil
}

// Invalidate drops the stored snapshot.
func (c *Cache) Invalidate(ctx context.Context) error {
	return c.db.WithContext(ctx).Where("backend = ?", c.backend).Delete(&entities.CatalogSnapshot{}).Error
}

func (c *Cache) load(ctx context.Context) (*formats.Catalog, bool) {
	var snap entities.CatalogSnapshot
	err := c.db.WithContext(ctx).Where("backend = ?", c.backend).First(&snap).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			c.logger.Warn("failed to read catalog snapshot", zap.String("backend", c.backend), zap.Error(err))
		}
		return nil, false
	}

	age := c.now().Sub(snap.FetchedAt)
	if age >= c.ttl {
		c.logger.Debug("catalog snapshot expired", zap.String("backend", c.backend), zap.Duration("age", age))
		return nil, false
	}

	catalog := formats.New(nil)
	if err := json.Unmarshal([]byte(snap.Payload), catalog); err != nil {
		c.logger.Warn("discarding unreadable catalog snapshot", zap.String("backend", c.backend), zap.Error(err))
		return nil, false
	}
	return catalog, true
}

func (c *Cache) store(ctx context.Context, catalog *formats.Catalog) error {
	payload, err := json.Marshal(catalog)
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}

	snap := entities.CatalogSnapshot{
		Backend:   c.backend,
		Payload:   string(payload),
		FetchedAt: c.now(),
	}
	return c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "backend"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "fetched_at"}),
	}).Create(&snap).Error
}

// NewSource returns source unchanged when ttl is not positive, and a Cache otherwise.
func NewSource(source formats.Source, db *gorm.DB, backend string, ttl time.Duration, logger *zap.Logger) formats.Source {
	if ttl <= 0 || db == nil {
		return source
	}
	return New(source, db, backend, ttl, logger)
}

var _ formats.Source = (*Cache)(nil)
