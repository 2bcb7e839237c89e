package render

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/chartbagapp/chartbag-server/internal/domain"
	"github.com/chartbagapp/chartbag-server/internal/errors"
	"github.com/chartbagapp/chartbag-server/internal/logger"
	"github.com/chartbagapp/chartbag-server/internal/store"
)

// RendersDir is the bitmap directory name under the cache path.
const RendersDir = "renders"

// Cache serves rendered chart bitmaps. Entries are keyed by source path
// and render parameters and validated against the source file's mtime and
// size; a stale entry is pruned when queried, never in the background.
// Concurrent requests for the same key share a single render.
type Cache struct {
	dir     string
	backend Backend
	meta    *store.Store
	group   singleflight.Group
	log     *logger.Logger
}

// NewCache creates the render cache under cachePath.
func NewCache(cachePath string, backend Backend, meta *store.Store, log *logger.Logger) (*Cache, error) {
	if log == nil {
		log = logger.Discard()
	}
	dir := filepath.Join(cachePath, RendersDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir, backend: backend, meta: meta, log: log}, nil
}

// Get returns the bitmap path for the source at the given parameters,
// rendering on miss. A failed render leaves no cache entry behind.
func (c *Cache) Get(ctx context.Context, sourcePath string, params domain.RenderParams) (string, error) {
	key := domain.RenderKey(sourcePath, params)
	v, err, shared := c.group.Do(key, func() (any, error) {
		return c.lookupOrRender(ctx, key, sourcePath, params)
	})
	if err != nil {
		return "", err
	}
	if shared {
		c.log.Debug("render shared between callers", "key", key)
	}
	return v.(string), nil
}

func (c *Cache) lookupOrRender(ctx context.Context, key, sourcePath string, params domain.RenderParams) (string, error) {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return "", errors.NotFoundf("chart file %s", filepath.Base(sourcePath))
	}

	entry, err := c.meta.GetRenderEntry(key)
	if err != nil {
		c.log.Warn("render cache lookup failed", "key", key, "error", err)
	}
	if entry != nil {
		if entry.ValidFor(info.ModTime().UnixNano(), info.Size()) {
			if _, err := os.Stat(entry.BitmapPath); err == nil {
				return entry.BitmapPath, nil
			}
		}
		// Source changed since this was rendered, or the bitmap is gone.
		c.evict(entry)
	}

	dest := filepath.Join(c.dir, key+".png")
	if err := c.backend.Render(ctx, sourcePath, params.DPI, params.Page, dest); err != nil {
		os.Remove(dest)
		return "", errors.RenderFailed(sourcePath, err)
	}

	fresh := &domain.RenderEntry{
		Key:        key,
		SourcePath: sourcePath,
		Params:     params,
		BitmapPath: dest,
		SourceMod:  info.ModTime().UnixNano(),
		SourceSize: info.Size(),
		RenderedAt: time.Now().UTC(),
	}
	if err := c.meta.PutRenderEntry(fresh); err != nil {
		// The bitmap is usable even if the record was not written; the
		// next query just re-renders.
		c.log.Warn("render entry not recorded", "key", key, "error", err)
	}

	c.log.Debug("rendered", "source", sourcePath, "dpi", params.DPI, "page", params.Page)
	return dest, nil
}

func (c *Cache) evict(entry *domain.RenderEntry) {
	if err := os.Remove(entry.BitmapPath); err != nil && !os.IsNotExist(err) {
		c.log.Warn("stale bitmap not removed", "path", entry.BitmapPath, "error", err)
	}
	if err := c.meta.DeleteRenderEntry(entry.Key); err != nil {
		c.log.Warn("stale render entry not removed", "key", entry.Key, "error", err)
	}
}

// InvalidateSource drops every cached render of one source document.
// Called when the watcher sees a chart change or disappear.
func (c *Cache) InvalidateSource(ctx context.Context, sourcePath string) (int, error) {
	var stale []*domain.RenderEntry
	for entry, err := range c.meta.RenderEntries(ctx) {
		if err != nil {
			return 0, err
		}
		if entry.SourcePath == sourcePath {
			stale = append(stale, entry)
		}
	}

	for _, entry := range stale {
		c.evict(entry)
	}
	return len(stale), nil
}

// CleanupStats summarizes a bulk cleanup pass.
type CleanupStats struct {
	Scanned   int   `json:"scanned"`
	Removed   int   `json:"removed"`
	Reclaimed int64 `json:"reclaimed_bytes"`
}

// Cleanup removes entries whose source is gone or whose validity tag no
// longer matches. Runs only when explicitly invoked; queries never
// trigger it.
func (c *Cache) Cleanup(ctx context.Context) (CleanupStats, error) {
	var (
		stats CleanupStats
		stale []*domain.RenderEntry
	)

	for entry, err := range c.meta.RenderEntries(ctx) {
		if err != nil {
			return stats, err
		}
		stats.Scanned++

		if info, err := os.Stat(entry.SourcePath); err == nil {
			if entry.ValidFor(info.ModTime().UnixNano(), info.Size()) {
				continue
			}
		}
		stale = append(stale, entry)
	}

	for _, entry := range stale {
		if info, err := os.Stat(entry.BitmapPath); err == nil {
			stats.Reclaimed += info.Size()
		}
		c.evict(entry)
		stats.Removed++
	}

	if stats.Removed > 0 {
		c.log.Info("render cache cleaned",
			"scanned", stats.Scanned,
			"removed", stats.Removed,
			"reclaimed_bytes", stats.Reclaimed)
	}
	return stats, nil
}
