package domain

import "time"

// PinEntry is one user-curated chart shortcut. Entries keep insertion
// order; the list is bounded by the configured maximum.
type PinEntry struct {
	ChartID     string    `json:"chart_id"`
	Name        string    `json:"name"`
	FilePath    string    `json:"file_path"`
	AirportCode string    `json:"airport_code"`
	Category    string    `json:"category"`
	Thumbnail   string    `json:"thumbnail"`
	PinnedAt    time.Time `json:"pinned_at"`
}

// NewPinEntry snapshots the chart fields a shortcut needs. Pins survive
// catalog swaps, so they copy rather than reference.
func NewPinEntry(c Chart, now time.Time) PinEntry {
	return PinEntry{
		ChartID:     c.ID,
		Name:        c.Name,
		FilePath:    c.FilePath,
		AirportCode: c.AirportCode,
		Category:    c.Category,
		Thumbnail:   c.ThumbnailPath,
		PinnedAt:    now.UTC(),
	}
}
