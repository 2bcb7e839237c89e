package render

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/bbrks/go-blurhash"
	"golang.org/x/image/draw"
	"golang.org/x/sync/singleflight"

	"github.com/chartbagapp/chartbag-server/internal/domain"
	"github.com/chartbagapp/chartbag-server/internal/errors"
	"github.com/chartbagapp/chartbag-server/internal/id"
	"github.com/chartbagapp/chartbag-server/internal/logger"
	"github.com/chartbagapp/chartbag-server/internal/store"
)

// ThumbsDir is the thumbnail directory name under the cache path.
const ThumbsDir = "thumbs"

const (
	// thumbDPI keeps the intermediate raster small; thumbnails are
	// downscaled to thumbWidth anyway.
	thumbDPI   = 36
	thumbWidth = 200
)

// thumbParams tags thumbnail entries in the metadata store so they never
// collide with full renders of the same chart.
var thumbParams = domain.RenderParams{DPI: thumbDPI, Page: 0}

// Thumbnail is a generated chart preview.
type Thumbnail struct {
	Path     string
	BlurHash string
}

// Thumbnailer produces small chart previews with BlurHash placeholders.
// Same caching rules as the render cache: validity by source mtime and
// size, one generation per key at a time, stale entries pruned at query.
type Thumbnailer struct {
	dir     string
	backend Backend
	meta    *store.Store
	group   singleflight.Group
	log     *logger.Logger
}

// NewThumbnailer creates the thumbnail cache under cachePath.
func NewThumbnailer(cachePath string, backend Backend, meta *store.Store, log *logger.Logger) (*Thumbnailer, error) {
	if log == nil {
		log = logger.Discard()
	}
	dir := filepath.Join(cachePath, ThumbsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Thumbnailer{dir: dir, backend: backend, meta: meta, log: log}, nil
}

// Get returns the thumbnail for a chart, generating it on miss.
func (t *Thumbnailer) Get(ctx context.Context, chart domain.Chart) (Thumbnail, error) {
	key := domain.RenderKey(chart.FilePath, thumbParams)
	v, err, _ := t.group.Do(key, func() (any, error) {
		return t.lookupOrGenerate(ctx, key, chart)
	})
	if err != nil {
		return Thumbnail{}, err
	}
	return v.(Thumbnail), nil
}

// Cached returns the thumbnail if a valid one already exists, without
// generating. Metadata listings use this to attach placeholders cheaply.
func (t *Thumbnailer) Cached(chart domain.Chart) (Thumbnail, bool) {
	key := domain.RenderKey(chart.FilePath, thumbParams)
	entry, err := t.meta.GetRenderEntry(key)
	if err != nil || entry == nil {
		return Thumbnail{}, false
	}
	info, err := os.Stat(chart.FilePath)
	if err != nil || !entry.ValidFor(info.ModTime().UnixNano(), info.Size()) {
		return Thumbnail{}, false
	}
	if _, err := os.Stat(entry.BitmapPath); err != nil {
		return Thumbnail{}, false
	}
	return Thumbnail{Path: entry.BitmapPath, BlurHash: entry.BlurHash}, true
}

func (t *Thumbnailer) lookupOrGenerate(ctx context.Context, key string, chart domain.Chart) (Thumbnail, error) {
	info, err := os.Stat(chart.FilePath)
	if err != nil {
		return Thumbnail{}, errors.NotFoundf("chart file %s", filepath.Base(chart.FilePath))
	}

	entry, err := t.meta.GetRenderEntry(key)
	if err != nil {
		t.log.Warn("thumbnail lookup failed", "key", key, "error", err)
	}
	if entry != nil {
		if entry.ValidFor(info.ModTime().UnixNano(), info.Size()) {
			if _, err := os.Stat(entry.BitmapPath); err == nil {
				return Thumbnail{Path: entry.BitmapPath, BlurHash: entry.BlurHash}, nil
			}
		}
		os.Remove(entry.BitmapPath)
		t.meta.DeleteRenderEntry(key)
	}

	raster := filepath.Join(t.dir, fmt.Sprintf("raster-%s.png", id.Suffix(8)))
	defer os.Remove(raster)
	if err := t.backend.Render(ctx, chart.FilePath, thumbDPI, 0, raster); err != nil {
		return Thumbnail{}, errors.RenderFailed(chart.FilePath, err)
	}

	scaled, err := scaleToWidth(raster, thumbWidth)
	if err != nil {
		return Thumbnail{}, errors.RenderFailed(chart.FilePath, err)
	}

	// 4x3 components keep the hash around 30 chars; plenty for a
	// placeholder. A hash failure degrades to no placeholder.
	hash, err := blurhash.Encode(4, 3, scaled)
	if err != nil {
		t.log.Warn("blurhash not computed", "chart", chart.ID, "error", err)
		hash = ""
	}

	dest := filepath.Join(t.dir, chart.ID+".thumb.png")
	if err := writePNG(dest, scaled); err != nil {
		return Thumbnail{}, errors.RenderFailed(chart.FilePath, err)
	}

	fresh := &domain.RenderEntry{
		Key:        key,
		SourcePath: chart.FilePath,
		Params:     thumbParams,
		BitmapPath: dest,
		SourceMod:  info.ModTime().UnixNano(),
		SourceSize: info.Size(),
		BlurHash:   hash,
		RenderedAt: time.Now().UTC(),
	}
	if err := t.meta.PutRenderEntry(fresh); err != nil {
		t.log.Warn("thumbnail entry not recorded", "key", key, "error", err)
	}

	return Thumbnail{Path: dest, BlurHash: hash}, nil
}

// scaleToWidth decodes a PNG and scales it to the target width, keeping
// the aspect ratio.
func scaleToWidth(path string, width int) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open raster: %w", err)
	}
	defer f.Close()

	src, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode raster: %w", err)
	}

	bounds := src.Bounds()
	if bounds.Dx() <= width {
		return src, nil
	}

	height := bounds.Dy() * width / bounds.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst, nil
}

// writePNG encodes through a temp file so partial writes never surface
// as finished thumbnails.
func writePNG(dest string, img image.Image) error {
	tmp := fmt.Sprintf("%s.tmp-%s", dest, id.Suffix(8))
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}

	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
