// Package sse pushes session events to browsers as Server-Sent Events.
package sse

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/hydro-dashboard/internal/domain"
	"github.com/couchcryptid/hydro-dashboard/internal/session"
)

// clientBuffer is the number of messages a slow client may fall behind
// before messages to it are dropped.
const clientBuffer = 64

// Message is one Server-Sent Event.
type Message struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type client struct {
	sessionID string
	ch        chan Message
}

// Hub fans messages out to the clients streaming each session.
type Hub struct {
	logger *slog.Logger
	nextID atomic.Int64

	mu      sync.RWMutex
	clients map[string]*client
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[string]*client),
	}
}

// AddClient registers clientID as a listener for sessionID. A client already
// registered under the same id is disconnected first.
func (h *Hub) AddClient(clientID, sessionID string) <-chan Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.clients[clientID]; ok {
		close(existing.ch)
		delete(h.clients, clientID)
	}

	c := &client{sessionID: sessionID, ch: make(chan Message, clientBuffer)}
	h.clients[clientID] = c
	h.logger.Debug("sse client connected", "client_id", clientID, "session_id", sessionID, "total", len(h.clients))
	return c.ch
}

// RemoveClient unregisters a client and closes its channel.
func (h *Hub) RemoveClient(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.clients[clientID]; ok {
		close(c.ch)
		delete(h.clients, clientID)
		h.logger.Debug("sse client disconnected", "client_id", clientID, "remaining", len(h.clients))
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish sends msg to every client of sessionID. Clients whose buffer is
// full miss the message.
func (h *Hub) Publish(sessionID string, msg Message) {
	msg = h.stamp(msg)
	msg.SessionID = sessionID

	h.mu.RLock()
	defer h.mu.RUnlock()

	for clientID, c := range h.clients {
		if c.sessionID != sessionID {
			continue
		}
		select {
		case c.ch <- msg:
		default:
			h.logger.Warn("sse client channel full, skipping message", "client_id", clientID, "type", msg.Type)
		}
	}
}

// DisconnectSession closes every client of sessionID.
func (h *Hub) DisconnectSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for clientID, c := range h.clients {
		if c.sessionID == sessionID {
			close(c.ch)
			delete(h.clients, clientID)
		}
	}
}

// Listen is a session.Listener that forwards every session event to the
// clients of that session.
func (h *Hub) Listen(e session.Event) {
	msg := Message{Type: string(e.Type), Timestamp: e.At}
	switch e.Type {
	case session.EventSourceChanged:
		msg.Data = e.Source
	default:
		msg.Data = e.Inputs
	}
	h.Publish(e.SessionID, msg)

	if e.Type == session.EventSessionClosed {
		h.DisconnectSession(e.SessionID)
	}
}

func (h *Hub) stamp(msg Message) Message {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = domain.Now()
	}
	if msg.ID == 0 {
		msg.ID = h.nextID.Add(1)
	}
	return msg
}
