package providers

import (
	"context"
	"fmt"
	"os"

	"github.com/samber/do/v2"

	"github.com/chartbagapp/chartbag-server/internal/config"
	"github.com/chartbagapp/chartbag-server/internal/logger"
	"github.com/chartbagapp/chartbag-server/internal/pins"
	"github.com/chartbagapp/chartbag-server/internal/render"
	"github.com/chartbagapp/chartbag-server/internal/watcher"
)

// FileWatcherHandle wraps the file watcher with shutdown capability.
type FileWatcherHandle struct {
	*watcher.Watcher
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *FileWatcherHandle) Shutdown() error {
	h.cancel()
	return h.Watcher.Stop()
}

// ProvideFileWatcher provides the chart directory watcher and the bridge
// that keeps renders, pins, and SSE clients in sync with disk changes.
func ProvideFileWatcher(i do.Injector) (*FileWatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	pinCache := do.MustInvoke[*pins.Cache](i)
	renderCache := do.MustInvoke[*render.Cache](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)

	chartsDir := cfg.ChartsDir()
	if err := os.MkdirAll(chartsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create charts directory: %w", err)
	}

	w, err := watcher.New(log, watcher.Options{IgnoreHidden: true})
	if err != nil {
		return nil, err
	}
	if err := w.Watch(chartsDir); err != nil {
		return nil, err
	}

	bridge := watcher.NewBridge(w, pinCache, renderCache, sseHandle.Manager, log)

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		if err := w.Start(ctx); err != nil {
			log.Error("File watcher error", "error", err)
		}
	}()

	go func() {
		if err := bridge.Run(ctx); err != nil {
			log.Error("Watcher bridge error", "error", err)
		}
	}()

	log.Info("File watcher started", "path", chartsDir)

	return &FileWatcherHandle{
		Watcher: w,
		cancel:  cancel,
	}, nil
}
