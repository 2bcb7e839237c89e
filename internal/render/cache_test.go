package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/chartbagapp/chartbag-server/internal/domain"
	"github.com/chartbagapp/chartbag-server/internal/errors"
	"github.com/chartbagapp/chartbag-server/internal/store"
)

// fakeBackend writes a small real PNG so decode paths work.
type fakeBackend struct {
	mu    sync.Mutex
	calls int
	fail  bool
	delay time.Duration
}

func (f *fakeBackend) Render(ctx context.Context, sourcePath string, dpi, page int, destPath string) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.fail {
		return fmt.Errorf("raster engine exploded")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return writeTestPNG(destPath, 300, 400)
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func writeTestPNG(path string, w, h int) error {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

func setupCache(t *testing.T, backend Backend) (*Cache, string) {
	t.Helper()

	meta, err := store.New(filepath.Join(t.TempDir(), "meta"), nil)
	if err != nil {
		t.Fatalf("open meta store: %v", err)
	}
	t.Cleanup(func() { meta.Close() })

	c, err := NewCache(t.TempDir(), backend, meta, nil)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	return c, writeSource(t)
}

func writeSource(t *testing.T) string {
	t.Helper()
	src := filepath.Join(t.TempDir(), "chart.pdf")
	if err := os.WriteFile(src, []byte("%PDF-1.4 original"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return src
}

func TestGetRendersOnceThenHits(t *testing.T) {
	backend := &fakeBackend{}
	c, src := setupCache(t, backend)
	params := domain.RenderParams{DPI: 150, Page: 0}

	first, err := c.Get(context.Background(), src, params)
	if err != nil {
		t.Fatalf("first get: %v", err)
	}
	if _, err := os.Stat(first); err != nil {
		t.Fatalf("bitmap missing: %v", err)
	}

	second, err := c.Get(context.Background(), src, params)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if first != second {
		t.Errorf("paths differ across hits: %s vs %s", first, second)
	}
	if backend.callCount() != 1 {
		t.Errorf("backend called %d times, want 1", backend.callCount())
	}
}

func TestGetDistinguishesParams(t *testing.T) {
	backend := &fakeBackend{}
	c, src := setupCache(t, backend)

	a, err := c.Get(context.Background(), src, domain.RenderParams{DPI: 150, Page: 0})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, err := c.Get(context.Background(), src, domain.RenderParams{DPI: 300, Page: 0})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if a == b {
		t.Error("different DPIs share a bitmap")
	}
	if backend.callCount() != 2 {
		t.Errorf("backend called %d times, want 2", backend.callCount())
	}
}

func TestGetReRendersWhenSourceChanges(t *testing.T) {
	backend := &fakeBackend{}
	c, src := setupCache(t, backend)
	params := domain.RenderParams{DPI: 150, Page: 0}

	if _, err := c.Get(context.Background(), src, params); err != nil {
		t.Fatalf("get: %v", err)
	}

	// New cycle, same path, different content.
	if err := os.WriteFile(src, []byte("%PDF-1.4 updated with more bytes"), 0o644); err != nil {
		t.Fatalf("rewrite source: %v", err)
	}

	if _, err := c.Get(context.Background(), src, params); err != nil {
		t.Fatalf("get after change: %v", err)
	}
	if backend.callCount() != 2 {
		t.Errorf("backend called %d times, want 2 after source change", backend.callCount())
	}
}

func TestGetSharesConcurrentRenders(t *testing.T) {
	backend := &fakeBackend{delay: 50 * time.Millisecond}
	c, src := setupCache(t, backend)
	params := domain.RenderParams{DPI: 150, Page: 0}

	var wg sync.WaitGroup
	for range 5 {
		wg.Go(func() {
			if _, err := c.Get(context.Background(), src, params); err != nil {
				t.Errorf("concurrent get: %v", err)
			}
		})
	}
	wg.Wait()

	if backend.callCount() != 1 {
		t.Errorf("backend called %d times for one key, want 1", backend.callCount())
	}
}

func TestGetMissingSource(t *testing.T) {
	backend := &fakeBackend{}
	c, _ := setupCache(t, backend)

	_, err := c.Get(context.Background(), "/nonexistent/chart.pdf", domain.RenderParams{DPI: 150})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
	if backend.callCount() != 0 {
		t.Error("backend invoked for missing source")
	}
}

func TestGetFailedRenderLeavesNoEntry(t *testing.T) {
	backend := &fakeBackend{fail: true}
	c, src := setupCache(t, backend)
	params := domain.RenderParams{DPI: 150, Page: 0}

	_, err := c.Get(context.Background(), src, params)
	if !errors.Is(err, errors.ErrRenderFailed) {
		t.Fatalf("expected RENDER_FAILED, got %v", err)
	}

	// Backend recovers; the failure must not have poisoned the cache.
	backend.fail = false
	path, err := c.Get(context.Background(), src, params)
	if err != nil {
		t.Fatalf("get after recovery: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("bitmap missing after recovery: %v", err)
	}
	if backend.callCount() != 2 {
		t.Errorf("backend called %d times, want 2", backend.callCount())
	}
}

func TestInvalidateSource(t *testing.T) {
	backend := &fakeBackend{}
	c, src := setupCache(t, backend)
	other := writeSource(t)
	params := domain.RenderParams{DPI: 150, Page: 0}

	if _, err := c.Get(context.Background(), src, params); err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := c.Get(context.Background(), other, params); err != nil {
		t.Fatalf("get: %v", err)
	}

	removed, err := c.InvalidateSource(context.Background(), src)
	if err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if removed != 1 {
		t.Errorf("invalidated %d entries, want 1", removed)
	}

	// The other source stays cached.
	if _, err := c.Get(context.Background(), other, params); err != nil {
		t.Fatalf("get other: %v", err)
	}
	if backend.callCount() != 2 {
		t.Errorf("backend called %d times, want 2 (other source still cached)", backend.callCount())
	}

	// The invalidated source re-renders.
	if _, err := c.Get(context.Background(), src, params); err != nil {
		t.Fatalf("get invalidated: %v", err)
	}
	if backend.callCount() != 3 {
		t.Errorf("backend called %d times, want 3 after invalidation", backend.callCount())
	}
}

func TestCleanup(t *testing.T) {
	backend := &fakeBackend{}
	c, src := setupCache(t, backend)
	gone := writeSource(t)
	params := domain.RenderParams{DPI: 150, Page: 0}

	if _, err := c.Get(context.Background(), src, params); err != nil {
		t.Fatalf("get: %v", err)
	}
	bitmap, err := c.Get(context.Background(), gone, params)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if err := os.Remove(gone); err != nil {
		t.Fatalf("remove source: %v", err)
	}

	stats, err := c.Cleanup(context.Background())
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if stats.Scanned != 2 {
		t.Errorf("scanned = %d, want 2", stats.Scanned)
	}
	if stats.Removed != 1 {
		t.Errorf("removed = %d, want 1", stats.Removed)
	}
	if stats.Reclaimed <= 0 {
		t.Errorf("reclaimed = %d, want > 0", stats.Reclaimed)
	}
	if _, err := os.Stat(bitmap); err == nil {
		t.Error("orphaned bitmap survived cleanup")
	}
}
