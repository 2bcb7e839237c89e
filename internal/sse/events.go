// Package sse implements Server-Sent Events so EFB clients track imports,
// catalog swaps and pin changes without polling.
package sse

import (
	"time"

	"github.com/chartbagapp/chartbag-server/internal/domain"
)

// EventType represents the type of SSE event.
type EventType string

const (
	// EventImportStarted fires when an import job begins.
	EventImportStarted EventType = "import.started"
	// EventImportProgress carries a progress snapshot during an import.
	EventImportProgress EventType = "import.progress"
	// EventImportCompleted fires when an import job finishes successfully.
	EventImportCompleted EventType = "import.completed"
	// EventImportFailed fires when an import job aborts.
	EventImportFailed EventType = "import.failed"

	// EventCatalogReplaced fires after a new catalog generation is live.
	// Clients re-fetch airports and drop cached chart lists on this.
	EventCatalogReplaced EventType = "catalog.replaced"

	// EventPinAdded fires when a chart is pinned.
	EventPinAdded EventType = "pin.added"
	// EventPinRemoved fires when a pin is removed, by hand or by pruning.
	EventPinRemoved EventType = "pin.removed"

	// EventChartChanged fires when the watcher sees a chart file change
	// or vanish outside an import.
	EventChartChanged EventType = "chart.changed"

	// EventHeartbeat is a connection keepalive.
	EventHeartbeat EventType = "heartbeat"
)

// Event is one SSE event. Data holds the payload as a JSON object so clients
// deserialize directly.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`
}

// ImportStartedEventData is the payload for import.started.
type ImportStartedEventData struct {
	JobID       string    `json:"job_id"`
	ArchivePath string    `json:"archive_path"`
	StartedAt   time.Time `json:"started_at"`
}

// ImportProgressEventData is the payload for import.progress.
type ImportProgressEventData struct {
	JobID  string              `json:"job_id"`
	Status domain.ImportStatus `json:"status"`
}

// ImportCompletedEventData is the payload for import.completed.
type ImportCompletedEventData struct {
	JobID   string               `json:"job_id"`
	Summary domain.ImportSummary `json:"summary"`
}

// ImportFailedEventData is the payload for import.failed.
type ImportFailedEventData struct {
	JobID string `json:"job_id"`
	Error string `json:"error"`
}

// CatalogReplacedEventData is the payload for catalog.replaced.
type CatalogReplacedEventData struct {
	AIRAC        string    `json:"airac,omitempty"`
	AirportCount int       `json:"airport_count"`
	ChartCount   int       `json:"chart_count"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// PinEventData is the payload for pin.added.
type PinEventData struct {
	Pin domain.PinEntry `json:"pin"`
}

// PinRemovedEventData is the payload for pin.removed.
type PinRemovedEventData struct {
	ChartID string `json:"chart_id"`
	Reason  string `json:"reason"` // "unpinned" or "pruned"
}

// ChartChangedEventData is the payload for chart.changed.
type ChartChangedEventData struct {
	Path   string `json:"path"`
	Change string `json:"change"` // "modified" or "removed"
}

// HeartbeatEventData is the payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// NewImportStartedEvent creates an import.started event.
func NewImportStartedEvent(job *domain.ImportJob) Event {
	return Event{
		Type: EventImportStarted,
		Data: ImportStartedEventData{
			JobID:       job.ID,
			ArchivePath: job.ArchivePath,
			StartedAt:   job.StartedAt,
		},
		Timestamp: time.Now(),
	}
}

// NewImportProgressEvent creates an import.progress event.
func NewImportProgressEvent(jobID string, status domain.ImportStatus) Event {
	return Event{
		Type: EventImportProgress,
		Data: ImportProgressEventData{
			JobID:  jobID,
			Status: status,
		},
		Timestamp: time.Now(),
	}
}

// NewImportCompletedEvent creates an import.completed event.
func NewImportCompletedEvent(jobID string, summary domain.ImportSummary) Event {
	return Event{
		Type: EventImportCompleted,
		Data: ImportCompletedEventData{
			JobID:   jobID,
			Summary: summary,
		},
		Timestamp: time.Now(),
	}
}

// NewImportFailedEvent creates an import.failed event.
func NewImportFailedEvent(jobID, errMsg string) Event {
	return Event{
		Type: EventImportFailed,
		Data: ImportFailedEventData{
			JobID: jobID,
			Error: errMsg,
		},
		Timestamp: time.Now(),
	}
}

// NewCatalogReplacedEvent creates a catalog.replaced event.
func NewCatalogReplacedEvent(airac string, airports, charts int, generatedAt time.Time) Event {
	return Event{
		Type: EventCatalogReplaced,
		Data: CatalogReplacedEventData{
			AIRAC:        airac,
			AirportCount: airports,
			ChartCount:   charts,
			GeneratedAt:  generatedAt,
		},
		Timestamp: time.Now(),
	}
}

// NewPinAddedEvent creates a pin.added event.
func NewPinAddedEvent(pin domain.PinEntry) Event {
	return Event{
		Type:      EventPinAdded,
		Data:      PinEventData{Pin: pin},
		Timestamp: time.Now(),
	}
}

// NewPinRemovedEvent creates a pin.removed event.
func NewPinRemovedEvent(chartID, reason string) Event {
	return Event{
		Type: EventPinRemoved,
		Data: PinRemovedEventData{
			ChartID: chartID,
			Reason:  reason,
		},
		Timestamp: time.Now(),
	}
}

// NewChartChangedEvent creates a chart.changed event.
func NewChartChangedEvent(path, change string) Event {
	return Event{
		Type: EventChartChanged,
		Data: ChartChangedEventData{
			Path:   path,
			Change: change,
		},
		Timestamp: time.Now(),
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return Event{
		Type: EventHeartbeat,
		Data: HeartbeatEventData{
			ServerTime: time.Now(),
		},
		Timestamp: time.Now(),
	}
}
