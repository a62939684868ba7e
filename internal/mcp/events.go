package mcp

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ProgressEvent is one unit of dispatch progress, published to every
// connected /events client while a unified_search or run_pipeline call
// is in flight (observability only — never part of a tool's own return
// value, per the DOMAIN STACK note on gorilla/websocket).
type ProgressEvent struct {
	Kind       string    `json:"kind"` // "provider_finished"
	Provider   string    `json:"provider"`
	Records    int       `json:"records,omitempty"`
	Err        string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms,omitempty"`
	At         time.Time `json:"at"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// EventHub fans ProgressEvents out to every connected websocket client.
// A nil *EventHub is valid and Publish becomes a no-op, matching
// internal/metrics's nil-safe pattern so components can hold an
// unconditional EventHub field.
type EventHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewEventHub returns an empty hub.
func NewEventHub() *EventHub {
	return &EventHub{clients: make(map[*websocket.Conn]struct{})}
}

// HandleWebsocket upgrades r to a websocket connection and registers it
// as an event subscriber until it disconnects.
func (h *EventHub) HandleWebsocket(w http.ResponseWriter, r *http.Request) {
	if h == nil {
		http.Error(w, "event stream disabled", http.StatusNotImplemented)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("mcp: websocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	// Drain and discard any client-sent frames; this is a push-only feed,
	// but reading is required to notice the connection closing.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Publish broadcasts event to every currently connected client,
// dropping (not blocking on) any client whose write fails.
func (h *EventHub) Publish(event ProgressEvent) {
	if h == nil {
		return
	}
	b, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}
