package watcher

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/chartbagapp/chartbag-server/internal/logger"
	"github.com/chartbagapp/chartbag-server/internal/pins"
	"github.com/chartbagapp/chartbag-server/internal/render"
	"github.com/chartbagapp/chartbag-server/internal/sse"
)

// Bridge consumes settled watcher events and keeps the derived state
// consistent: stale render entries are evicted, pins pointing at vanished
// charts are pruned, and clients hear about it over SSE.
type Bridge struct {
	watcher *Watcher
	pins    *pins.Cache
	renders *render.Cache
	events  *sse.Manager
	log     *logger.Logger
}

// NewBridge wires the watcher to the pin cache, render cache and SSE manager.
func NewBridge(w *Watcher, pinCache *pins.Cache, renders *render.Cache, events *sse.Manager, log *logger.Logger) *Bridge {
	if log == nil {
		log = logger.Discard()
	}
	return &Bridge{
		watcher: w,
		pins:    pinCache,
		renders: renders,
		events:  events,
		log:     log,
	}
}

// Run consumes events until ctx is canceled or the watcher closes. It blocks.
func (b *Bridge) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-b.watcher.Events():
			if !ok {
				return nil
			}
			b.handle(ctx, ev)

		case err, ok := <-b.watcher.Errors():
			if !ok {
				return nil
			}
			b.log.Warn("watcher error", "error", err)
		}
	}
}

// handle reacts to one settled event. Only chart files matter; sidecars and
// strays are catalogued at import time, not live.
func (b *Bridge) handle(ctx context.Context, ev Event) {
	if !strings.EqualFold(filepath.Ext(ev.Path), ".pdf") {
		return
	}

	b.log.Debug("chart file event", "path", ev.Path, "type", ev.Type.String())

	switch ev.Type {
	case EventRemoved:
		b.invalidate(ctx, ev.Path)
		for _, e := range b.pins.Prune() {
			b.events.Emit(sse.NewPinRemovedEvent(e.ChartID, "pruned"))
		}
		b.events.Emit(sse.NewChartChangedEvent(ev.Path, "removed"))

	case EventAdded, EventModified:
		b.invalidate(ctx, ev.Path)
		b.events.Emit(sse.NewChartChangedEvent(ev.Path, "modified"))
	}
}

func (b *Bridge) invalidate(ctx context.Context, path string) {
	n, err := b.renders.InvalidateSource(ctx, path)
	if err != nil {
		b.log.Warn("render invalidation failed", "path", path, "error", err)
		return
	}
	if n > 0 {
		b.log.Info("invalidated renders for changed chart", "path", path, "entries", n)
	}
}
