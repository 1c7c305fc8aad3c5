package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// DefaultKeepalive is how often an idle stream receives a comment line.
const DefaultKeepalive = 30 * time.Second

// Stream serves one SSE connection for sessionID until the client goes away
// or the hub disconnects it. initial, when non-nil, is written first so the
// client starts from a full view.
func (h *Hub) Stream(w http.ResponseWriter, r *http.Request, sessionID string, initial any, keepalive time.Duration) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	clientID := uuid.NewString()
	messages := h.AddClient(clientID, sessionID)
	defer h.RemoveClient(clientID)

	logger := h.logger.With("client_id", clientID, "session_id", sessionID)

	connected := h.stamp(Message{Type: "connected", SessionID: sessionID, Data: initial})
	if err := writeMessage(w, connected); err != nil {
		logger.Warn("write initial sse message", "error", err)
		return
	}
	flusher.Flush()

	if keepalive <= 0 {
		keepalive = DefaultKeepalive
	}
	ticker := time.NewTicker(keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case msg, ok := <-messages:
			if !ok {
				return
			}
			if err := writeMessage(w, msg); err != nil {
				logger.Warn("write sse message", "error", err)
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := io.WriteString(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeMessage writes msg in the text/event-stream format.
func writeMessage(w io.Writer, msg Message) error {
	data := []byte("{}")
	if msg.Data != nil {
		var err error
		data, err = json.Marshal(msg.Data)
		if err != nil {
			return fmt.Errorf("marshal sse data: %w", err)
		}
	}

	_, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", msg.ID, msg.Type, data)
	return err
}
