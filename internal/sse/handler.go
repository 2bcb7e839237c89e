package sse

import (
	"encoding/json/v2"
	"fmt"
	"net/http"
	"time"

	"github.com/chartbagapp/chartbag-server/internal/logger"
)

// Handler serves SSE connections at GET /api/events.
type Handler struct {
	manager *Manager
	log     *logger.Logger
}

// NewHandler creates an SSE Handler.
func NewHandler(manager *Manager, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{
		manager: manager,
		log:     log,
	}
}

// ServeHTTP streams events until the client disconnects.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.Context().Err() != nil {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable proxy buffering

	rc := http.NewResponseController(w)

	if err := rc.Flush(); err != nil {
		h.log.Error("failed to flush headers", "error", err)
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	client, err := h.manager.Connect()
	if err != nil {
		h.log.Error("failed to register sse client", "error", err)
		http.Error(w, "Failed to establish connection", http.StatusInternalServerError)
		return
	}
	defer h.manager.Disconnect(client.ID)

	clientLog := h.log.With("client_id", client.ID)

	if err := h.sendEvent(w, rc, "connected", map[string]string{
		"client_id": client.ID,
	}); err != nil {
		clientLog.Warn("failed to send connection message", "error", err)
		return
	}

	ctx := r.Context()

	// Handler-side heartbeat keeps intermediaries from timing the
	// connection out even when the manager queue is quiet.
	heartbeatTicker := time.NewTicker(30 * time.Second)
	defer heartbeatTicker.Stop()

	for {
		select {
		case event, ok := <-client.EventChan:
			if !ok {
				return
			}
			if err := h.sendEvent(w, rc, string(event.Type), event); err != nil {
				clientLog.Info("client disconnected during send")
				return
			}

		case <-heartbeatTicker.C:
			heartbeat := NewHeartbeatEvent()
			if err := h.sendEvent(w, rc, string(heartbeat.Type), heartbeat); err != nil {
				clientLog.Info("client disconnected during heartbeat")
				return
			}

		case <-client.Done:
			clientLog.Info("client closed by manager")
			return

		case <-ctx.Done():
			clientLog.Info("client context canceled")
			return
		}
	}
}

// sendEvent writes one event in SSE wire format and flushes it.
func (h *Handler) sendEvent(w http.ResponseWriter, rc *http.ResponseController, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", jsonData); err != nil {
		return err
	}

	if err := rc.Flush(); err != nil {
		return err
	}

	// Reset the write deadline after each successful write so an idle but
	// healthy connection stays up.
	if err := rc.SetWriteDeadline(time.Now().Add(60 * time.Second)); err != nil {
		h.log.Debug("failed to set write deadline", "error", err)
	}

	return nil
}
