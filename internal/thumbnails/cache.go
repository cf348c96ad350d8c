package thumbnails

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/mrlokans/mimeroute/internal/storage"
)

// Cache keeps rendered thumbnails on local disk in front of a ThumbnailSource.
type Cache struct {
	source   storage.ThumbnailSource
	cacheDir string
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewCache creates a thumbnail cache at cacheDir. Entries older than ttl are
// fetched again; a zero ttl keeps them until invalidated.
func NewCache(source storage.ThumbnailSource, cacheDir string, ttl time.Duration, logger *zap.Logger) (*Cache, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Cache{
		source:   source,
		cacheDir: cacheDir,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Thumbnail returns the cached thumbnail or renders and caches it.
func (c *Cache) Thumbnail(ctx context.Context, fileID string, width int) ([]byte, error) {
	path := filepath.Join(c.cacheDir, c.filename(fileID, width))

	if info, err := os.Stat(path); err == nil && !c.expired(info.ModTime()) {
		data, err := os.ReadFile(path)
		if err == nil {
			return data, nil
		}
		c.logger.Warn("failed to read cached thumbnail", zap.String("path", path), zap.Error(err))
	}

	data, err := c.source.Thumbnail(ctx, fileID, width)
	if err != nil {
		return nil, err
	}

	if err := c.store(path, data); err != nil {
		c.logger.Warn("failed to cache thumbnail", zap.String("file_id", fileID), zap.Error(err))
	}
	return data, nil
}

// Invalidate removes every cached width of fileID.
func (c *Cache) Invalidate(fileID string) error {
	pattern := filepath.Join(c.cacheDir, fmt.Sprintf("thumb_%s_*", fileKey(fileID)))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}

	for _, match := range matches {
		if err := os.Remove(match); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func (c *Cache) CacheDir() string {
	return c.cacheDir
}

func (c *Cache) expired(modTime time.Time) bool {
	return c.ttl > 0 && c.now().Sub(modTime) > c.ttl
}

// filename hashes the file ID since backend IDs are not guaranteed to be
// valid path components.
func (c *Cache) filename(fileID string, width int) string {
	return fmt.Sprintf("thumb_%s_w%d", fileKey(fileID), width)
}

func fileKey(fileID string) string {
	hash := sha256.Sum256([]byte(fileID))
	return fmt.Sprintf("%x", hash[:8])
}

func (c *Cache) store(path string, data []byte) error {
	// Create temp file in same directory for atomic write
	tmpFile, err := os.CreateTemp(c.cacheDir, "thumb_tmp_")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}

var _ storage.ThumbnailSource = (*Cache)(nil)
