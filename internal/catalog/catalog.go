// Package catalog builds, queries, and persists the chart catalog.
//
// A catalog is one import generation: the cataloger turns extracted files
// into a Snapshot, the index store persists snapshots atomically, and
// Catalog serves reads. Readers always see a complete generation: the
// in-memory state is replaced wholesale under a write lock, never merged.
package catalog

import (
	"sort"
	"sync"
	"time"

	"github.com/chartbagapp/chartbag-server/internal/domain"
)

// SnapshotVersion is the persisted index format version.
const SnapshotVersion = 1

// Snapshot is one complete catalog generation.
type Snapshot struct {
	Version     int              `json:"version"`
	AIRAC       string           `json:"airac,omitempty"`
	GeneratedAt time.Time        `json:"generated_at"`
	Airports    []domain.Airport `json:"airports"`
	Charts      []domain.Chart   `json:"charts"`
}

// EmptySnapshot is the zero generation used before any import.
func EmptySnapshot() *Snapshot {
	return &Snapshot{Version: SnapshotVersion, GeneratedAt: time.Time{}}
}

// Catalog is the in-memory view of the current generation.
type Catalog struct {
	mu        sync.RWMutex
	snap      *Snapshot
	byID      map[string]domain.Chart
	byAirport map[string][]domain.Chart
	airports  map[string]domain.Airport
}

// New returns an empty catalog.
func New() *Catalog {
	c := &Catalog{}
	c.Swap(EmptySnapshot())
	return c
}

// Swap replaces the whole generation. The new snapshot becomes visible to
// every reader at once.
func (c *Catalog) Swap(snap *Snapshot) {
	byID := make(map[string]domain.Chart, len(snap.Charts))
	byAirport := make(map[string][]domain.Chart)
	airports := make(map[string]domain.Airport, len(snap.Airports))

	for _, chart := range snap.Charts {
		byID[chart.ID] = chart
		byAirport[chart.AirportCode] = append(byAirport[chart.AirportCode], chart)
	}
	for _, a := range snap.Airports {
		airports[a.Code] = a
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = snap
	c.byID = byID
	c.byAirport = byAirport
	c.airports = airports
}

// Snapshot returns the current generation. Callers must not mutate it.
func (c *Catalog) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Airports lists airports sorted by code.
func (c *Catalog) Airports() []domain.Airport {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Airport, len(c.snap.Airports))
	copy(out, c.snap.Airports)
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Airport looks up one airport by code.
func (c *Catalog) Airport(code string) (domain.Airport, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.airports[code]
	return a, ok
}

// ChartsForAirport returns the airport's charts sorted by category then name.
func (c *Catalog) ChartsForAirport(code string) []domain.Chart {
	c.mu.RLock()
	defer c.mu.RUnlock()

	charts := c.byAirport[code]
	out := make([]domain.Chart, len(charts))
	copy(out, charts)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Chart looks up one chart by ID.
func (c *Catalog) Chart(id string) (domain.Chart, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	chart, ok := c.byID[id]
	return chart, ok
}

// Len returns the number of charts in the current generation.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}
