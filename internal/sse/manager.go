package sse

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/chartbagapp/chartbag-server/internal/id"
	"github.com/chartbagapp/chartbag-server/internal/logger"
)

// Client is one connected SSE subscriber.
type Client struct {
	ConnectedAt time.Time
	EventChan   chan Event
	Done        chan struct{}
	ID          string
}

// Manager fans events out to connected clients. Every client gets every
// event; a cockpit LAN has a handful of tablets, not tenants.
type Manager struct {
	clients           map[string]*Client
	events            chan Event
	log               *logger.Logger
	wg                sync.WaitGroup
	heartbeatInterval time.Duration
	mu                sync.RWMutex

	// Shutdown state, protected by shutdownMu. Emit holds the read lock
	// through its send so Shutdown cannot close the channel mid-send.
	shutdownMu sync.RWMutex
	shutdown   bool

	// Import state mirror, protected by importMu.
	importMu    sync.RWMutex
	isImporting bool
}

// NewManager creates an SSE Manager.
func NewManager(log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Discard()
	}
	return &Manager{
		clients:           make(map[string]*Client),
		events:            make(chan Event, 256),
		log:               log,
		heartbeatInterval: 30 * time.Second,
	}
}

// Start runs the broadcast loop until ctx is canceled. Call once at server
// startup in a goroutine.
func (m *Manager) Start(ctx context.Context) {
	m.wg.Add(1)
	defer m.wg.Done()

	m.log.Info("sse manager starting")

	heartbeatTicker := time.NewTicker(m.heartbeatInterval)
	defer heartbeatTicker.Stop()

	for {
		select {
		case event := <-m.events:
			m.broadcast(event)

		case <-heartbeatTicker.C:
			m.broadcast(NewHeartbeatEvent())

		case <-ctx.Done():
			m.log.Info("sse manager stopping")
			m.closeAllClients()
			return
		}
	}
}

// Shutdown stops accepting events, drains what is queued, and closes all
// clients.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.log.Info("sse manager shutdown initiated")

	m.shutdownMu.Lock()
	m.shutdown = true
	close(m.events)
	m.shutdownMu.Unlock()

	done := make(chan struct{})
	go func() {
		for event := range m.events {
			m.broadcast(event)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.log.Warn("sse event drain timeout, some events may be lost")
	}

	m.wg.Wait()

	m.log.Info("sse manager shutdown complete")
	return nil
}

// broadcast sends an event to every connected client.
func (m *Manager) broadcast(event Event) {
	switch event.Type {
	case EventImportStarted:
		m.importMu.Lock()
		m.isImporting = true
		m.importMu.Unlock()
	case EventImportCompleted, EventImportFailed:
		m.importMu.Lock()
		m.isImporting = false
		m.importMu.Unlock()
	}

	var delivered, dropped int

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, client := range m.clients {
		// Non-blocking send; a stuck tablet must not stall the rest.
		select {
		case client.EventChan <- event:
			delivered++
		default:
			dropped++
			m.log.Warn("dropped event for slow client",
				"client_id", client.ID,
				"event_type", string(event.Type))
		}
	}

	if event.Type != EventHeartbeat {
		m.log.Debug("event broadcast",
			"event_type", string(event.Type),
			"delivered", delivered,
			"dropped", dropped)
	}
}

// Connect registers a new client.
func (m *Manager) Connect() (*Client, error) {
	clientID, err := id.Generate("sse")
	if err != nil {
		return nil, err
	}

	client := &Client{
		ID:          clientID,
		EventChan:   make(chan Event, 100),
		Done:        make(chan struct{}),
		ConnectedAt: time.Now(),
	}

	m.mu.Lock()
	m.clients[client.ID] = client
	totalClients := len(m.clients)
	m.mu.Unlock()

	m.log.Info("sse client connected",
		"client_id", clientID,
		"total_clients", totalClients)
	return client, nil
}

// Disconnect removes a client and closes its channels.
func (m *Manager) Disconnect(clientID string) {
	m.mu.Lock()
	client, ok := m.clients[clientID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.clients, clientID)
	totalClients := len(m.clients)
	m.mu.Unlock()

	close(client.Done)
	close(client.EventChan)

	m.log.Info("sse client disconnected",
		"client_id", clientID,
		"duration", time.Since(client.ConnectedAt),
		"total_clients", totalClients)
}

// Emit queues an event for broadcast. Safe to call from any goroutine;
// events emitted after Shutdown are silently dropped.
func (m *Manager) Emit(event Event) {
	m.shutdownMu.RLock()
	defer m.shutdownMu.RUnlock()

	if m.shutdown {
		return
	}

	select {
	case m.events <- event:
	default:
		// Should not happen with a 256-event buffer outside import storms.
		m.log.Error("sse event channel full, dropping event",
			"event_type", string(event.Type))
	}
}

// Clients iterates over connected clients.
func (m *Manager) Clients() iter.Seq[*Client] {
	return func(yield func(*Client) bool) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		for _, client := range m.clients {
			if !yield(client) {
				return
			}
		}
	}
}

// ClientCount returns the number of connected clients.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// IsImporting reports whether an import is in flight.
func (m *Manager) IsImporting() bool {
	m.importMu.RLock()
	defer m.importMu.RUnlock()
	return m.isImporting
}

// SetImporting sets the import state synchronously. The importer calls this
// directly so the flag never lags the queued import.started event.
func (m *Manager) SetImporting(importing bool) {
	m.importMu.Lock()
	defer m.importMu.Unlock()
	m.isImporting = importing
}

// closeAllClients closes every client connection during shutdown.
func (m *Manager) closeAllClients() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, client := range m.clients {
		close(client.Done)
		close(client.EventChan)
	}
	m.clients = make(map[string]*Client)

	m.log.Info("all sse clients disconnected")
}
