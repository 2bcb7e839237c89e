// Package pins keeps the user's pinned charts: a small bounded list that
// survives restarts and never evicts on its own.
package pins

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"encoding/json/v2"

	"github.com/chartbagapp/chartbag-server/internal/domain"
	"github.com/chartbagapp/chartbag-server/internal/errors"
	"github.com/chartbagapp/chartbag-server/internal/id"
	"github.com/chartbagapp/chartbag-server/internal/logger"
)

// PinsFile is the pin list name under the data path.
const PinsFile = "pins.json"

// Cache is the pinned chart list. All mutations persist before they are
// visible, so a crash never loses an acknowledged pin.
type Cache struct {
	mu      sync.Mutex
	path    string
	max     int
	entries []domain.PinEntry
	log     *logger.Logger
}

// NewCache creates a pin cache persisting under dataPath, holding at most
// max entries.
func NewCache(dataPath string, max int, log *logger.Logger) *Cache {
	if log == nil {
		log = logger.Discard()
	}
	return &Cache{
		path: filepath.Join(dataPath, PinsFile),
		max:  max,
		log:  log,
	}
}

// Load reads the persisted list. Missing or unreadable files start the
// cache empty. Entries whose chart file no longer exists are dropped,
// and the pruned list is written back.
func (c *Cache) Load() {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.Open(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.log.Warn("pin list unreadable, starting empty", "path", c.path, "error", err)
		}
		c.entries = nil
		return
	}
	defer f.Close()

	var loaded []domain.PinEntry
	if err := json.UnmarshalRead(f, &loaded); err != nil {
		c.log.Warn("pin list corrupt, starting empty", "path", c.path, "error", err)
		c.entries = nil
		return
	}

	kept := loaded[:0]
	for _, e := range loaded {
		if _, err := os.Stat(e.FilePath); err != nil {
			c.log.Warn("pruning pin for missing chart", "chart", e.ChartID, "file", e.FilePath)
			continue
		}
		kept = append(kept, e)
	}

	c.entries = kept
	if len(kept) < len(loaded) {
		if err := c.persistLocked(); err != nil {
			c.log.Warn("pruned pin list not persisted", "error", err)
		}
	}
}

// Pin adds a chart to the list. A full list or an already pinned chart is
// rejected; existing pins are never evicted to make room.
func (c *Cache) Pin(chart domain.Chart) (domain.PinEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries {
		if e.ChartID == chart.ID {
			return domain.PinEntry{}, errors.PinRejectedDuplicate(chart.ID)
		}
	}
	if len(c.entries) >= c.max {
		return domain.PinEntry{}, errors.PinRejectedFull(c.max)
	}

	entry := domain.NewPinEntry(chart, time.Now())

	next := append(slices.Clone(c.entries), entry)
	if err := c.persist(next); err != nil {
		return domain.PinEntry{}, err
	}
	c.entries = next

	c.log.Info("chart pinned", "chart", chart.ID, "pins", len(c.entries), "max", c.max)
	return entry, nil
}

// Unpin removes a chart from the list.
func (c *Cache) Unpin(chartID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := slices.IndexFunc(c.entries, func(e domain.PinEntry) bool {
		return e.ChartID == chartID
	})
	if idx < 0 {
		return errors.PinNotFound(chartID)
	}

	next := slices.Delete(slices.Clone(c.entries), idx, idx+1)
	if err := c.persist(next); err != nil {
		return err
	}
	c.entries = next

	c.log.Info("chart unpinned", "chart", chartID, "pins", len(c.entries))
	return nil
}

// List returns the pins in the order they were added.
func (c *Cache) List() []domain.PinEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.entries)
}

// IsPinned reports whether the chart is on the list.
func (c *Cache) IsPinned(chartID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e.ChartID == chartID {
			return true
		}
	}
	return false
}

// Len returns the current pin count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Max returns the configured capacity.
func (c *Cache) Max() int {
	return c.max
}

// Prune drops pins whose chart file has gone missing and returns the
// removed entries. Called after catalog swaps and on watcher delete events.
func (c *Cache) Prune() []domain.PinEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := make([]domain.PinEntry, 0, len(c.entries))
	var removed []domain.PinEntry
	for _, e := range c.entries {
		if _, err := os.Stat(e.FilePath); err != nil {
			c.log.Warn("pruning pin for missing chart", "chart", e.ChartID, "file", e.FilePath)
			removed = append(removed, e)
			continue
		}
		kept = append(kept, e)
	}

	if len(removed) == 0 {
		return nil
	}
	if err := c.persist(kept); err != nil {
		c.log.Warn("pruned pin list not persisted", "error", err)
	}
	c.entries = kept
	return removed
}

// persist writes the given list atomically, leaving c.entries untouched
// so a write failure rolls the mutation back.
func (c *Cache) persist(entries []domain.PinEntry) error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "persist pin list")
	}

	tmp := filepath.Join(dir, fmt.Sprintf("%s.tmp-%s", PinsFile, id.Suffix(8)))
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "persist pin list")
	}

	if err := json.MarshalWrite(f, entries); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrap(err, errors.CodeInternal, "persist pin list")
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrap(err, errors.CodeInternal, "persist pin list")
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, errors.CodeInternal, "persist pin list")
	}

	if err := os.Rename(tmp, c.path); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, errors.CodeInternal, "persist pin list")
	}
	return nil
}

func (c *Cache) persistLocked() error {
	return c.persist(c.entries)
}
