package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chartbagapp/chartbag-server/internal/domain"
	"github.com/chartbagapp/chartbag-server/internal/pins"
	"github.com/chartbagapp/chartbag-server/internal/render"
	"github.com/chartbagapp/chartbag-server/internal/sse"
	"github.com/chartbagapp/chartbag-server/internal/store"
)

type bridgeFixture struct {
	bridge  *Bridge
	pins    *pins.Cache
	renders *render.Cache
	meta    *store.Store
	client  *sse.Client
	chart   domain.Chart
	key     string
	bitmap  string
}

// setupBridge builds a bridge over real caches: a pinned chart file on
// disk, a seeded render entry for it, and a connected SSE client.
func setupBridge(t *testing.T) *bridgeFixture {
	t.Helper()

	root := t.TempDir()
	chartDir := filepath.Join(root, "charts", "ZBAA", "ADC")
	if err := os.MkdirAll(chartDir, 0o755); err != nil {
		t.Fatalf("mkdir charts: %v", err)
	}
	chartPath := filepath.Join(chartDir, "ZBAA-1A.pdf")
	if err := os.WriteFile(chartPath, []byte("%PDF-1.4 chart"), 0o644); err != nil {
		t.Fatalf("write chart: %v", err)
	}

	chart := domain.Chart{
		ID:          "ZBAA_adc_aerodrome-chart",
		Code:        "ZBAA-1A",
		Name:        "AERODROME CHART",
		FilePath:    chartPath,
		Category:    "ADC",
		AirportCode: "ZBAA",
	}

	dataDir := filepath.Join(root, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatalf("mkdir data: %v", err)
	}
	pinCache := pins.NewCache(dataDir, 5, nil)
	pinCache.Load()
	if _, err := pinCache.Pin(chart); err != nil {
		t.Fatalf("pin chart: %v", err)
	}

	meta, err := store.New(filepath.Join(root, "meta"), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { meta.Close() })

	renders, err := render.NewCache(filepath.Join(root, "cache"), nil, meta, nil)
	if err != nil {
		t.Fatalf("new render cache: %v", err)
	}

	params := domain.RenderParams{DPI: 150, Page: 0}
	key := domain.RenderKey(chartPath, params)
	bitmap := filepath.Join(root, "cache", render.RendersDir, key+".png")
	if err := os.WriteFile(bitmap, []byte("bitmap"), 0o644); err != nil {
		t.Fatalf("write bitmap: %v", err)
	}
	fi, err := os.Stat(chartPath)
	if err != nil {
		t.Fatalf("stat chart: %v", err)
	}
	entry := &domain.RenderEntry{
		Key:        key,
		SourcePath: chartPath,
		Params:     params,
		BitmapPath: bitmap,
		SourceMod:  fi.ModTime().UnixNano(),
		SourceSize: fi.Size(),
		RenderedAt: time.Now(),
	}
	if err := meta.PutRenderEntry(entry); err != nil {
		t.Fatalf("put render entry: %v", err)
	}

	manager := sse.NewManager(nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go manager.Start(ctx)
	client, err := manager.Connect()
	if err != nil {
		t.Fatalf("connect client: %v", err)
	}

	return &bridgeFixture{
		bridge:  NewBridge(nil, pinCache, renders, manager, nil),
		pins:    pinCache,
		renders: renders,
		meta:    meta,
		client:  client,
		chart:   chart,
		key:     key,
		bitmap:  bitmap,
	}
}

func nextSSEEvent(t *testing.T, client *sse.Client, timeout time.Duration) sse.Event {
	t.Helper()
	select {
	case ev := <-client.EventChan:
		return ev
	case <-time.After(timeout):
		t.Fatal("timed out waiting for sse event")
		return sse.Event{}
	}
}

func TestRemovedChartPrunesPinsAndRenders(t *testing.T) {
	fx := setupBridge(t)
	ctx := context.Background()

	if err := os.Remove(fx.chart.FilePath); err != nil {
		t.Fatalf("remove chart: %v", err)
	}
	fx.bridge.handle(ctx, Event{Type: EventRemoved, Path: fx.chart.FilePath})

	ev := nextSSEEvent(t, fx.client, 2*time.Second)
	if ev.Type != sse.EventPinRemoved {
		t.Fatalf("first event = %s, want %s", ev.Type, sse.EventPinRemoved)
	}
	pinData, ok := ev.Data.(sse.PinRemovedEventData)
	if !ok {
		t.Fatalf("pin event data type %T", ev.Data)
	}
	if pinData.ChartID != fx.chart.ID {
		t.Errorf("pruned chart id = %q, want %q", pinData.ChartID, fx.chart.ID)
	}
	if pinData.Reason != "pruned" {
		t.Errorf("reason = %q, want pruned", pinData.Reason)
	}

	ev = nextSSEEvent(t, fx.client, 2*time.Second)
	if ev.Type != sse.EventChartChanged {
		t.Fatalf("second event = %s, want %s", ev.Type, sse.EventChartChanged)
	}
	chartData, ok := ev.Data.(sse.ChartChangedEventData)
	if !ok {
		t.Fatalf("chart event data type %T", ev.Data)
	}
	if chartData.Change != "removed" {
		t.Errorf("change = %q, want removed", chartData.Change)
	}
	if chartData.Path != fx.chart.FilePath {
		t.Errorf("path = %q, want %q", chartData.Path, fx.chart.FilePath)
	}

	if n := fx.pins.Len(); n != 0 {
		t.Errorf("pins after prune = %d, want 0", n)
	}
	entry, err := fx.meta.GetRenderEntry(fx.key)
	if err != nil {
		t.Fatalf("get render entry: %v", err)
	}
	if entry != nil {
		t.Error("render entry still present after removal")
	}
	if _, err := os.Stat(fx.bitmap); !os.IsNotExist(err) {
		t.Errorf("bitmap still present, stat err = %v", err)
	}
}

func TestModifiedChartInvalidatesRenders(t *testing.T) {
	fx := setupBridge(t)
	ctx := context.Background()

	if err := os.WriteFile(fx.chart.FilePath, []byte("%PDF-1.4 chart revised"), 0o644); err != nil {
		t.Fatalf("rewrite chart: %v", err)
	}
	fx.bridge.handle(ctx, Event{Type: EventModified, Path: fx.chart.FilePath})

	ev := nextSSEEvent(t, fx.client, 2*time.Second)
	if ev.Type != sse.EventChartChanged {
		t.Fatalf("event = %s, want %s", ev.Type, sse.EventChartChanged)
	}
	chartData, ok := ev.Data.(sse.ChartChangedEventData)
	if !ok {
		t.Fatalf("chart event data type %T", ev.Data)
	}
	if chartData.Change != "modified" {
		t.Errorf("change = %q, want modified", chartData.Change)
	}

	if n := fx.pins.Len(); n != 1 {
		t.Errorf("pins = %d, want 1 untouched", n)
	}
	entry, err := fx.meta.GetRenderEntry(fx.key)
	if err != nil {
		t.Fatalf("get render entry: %v", err)
	}
	if entry != nil {
		t.Error("stale render entry survived modification")
	}
}

func TestBridgeIgnoresNonChartFiles(t *testing.T) {
	fx := setupBridge(t)
	ctx := context.Background()

	path := filepath.Join(filepath.Dir(fx.chart.FilePath), "airports.json")
	fx.bridge.handle(ctx, Event{Type: EventAdded, Path: path})
	fx.bridge.handle(ctx, Event{Type: EventRemoved, Path: path})

	select {
	case ev := <-fx.client.EventChan:
		t.Fatalf("unexpected event %s for non-chart file", ev.Type)
	case <-time.After(300 * time.Millisecond):
	}

	entry, err := fx.meta.GetRenderEntry(fx.key)
	if err != nil {
		t.Fatalf("get render entry: %v", err)
	}
	if entry == nil {
		t.Error("render entry lost on unrelated file event")
	}
}
