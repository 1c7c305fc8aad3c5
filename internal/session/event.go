package session

import (
	"time"

	"github.com/couchcryptid/hydro-dashboard/internal/datasource"
	"github.com/couchcryptid/hydro-dashboard/internal/domain"
)

// EventType distinguishes the notifications a session emits.
type EventType string

const (
	EventSessionCreated EventType = "session_created"
	EventSessionClosed  EventType = "session_closed"
	EventInputChanged   EventType = "input_changed"
	EventSourceChanged  EventType = "source_changed"
)

// Inputs is the user-controlled part of a view.
type Inputs struct {
	Category domain.Category   `json:"category"`
	Search   string            `json:"search"`
	Window   domain.DateWindow `json:"window"`
}

// Event is a view change. Source is set for EventSourceChanged, Inputs for
// every other type.
type Event struct {
	Type      EventType           `json:"type"`
	SessionID string              `json:"session_id"`
	At        time.Time           `json:"at"`
	Source    *datasource.Summary `json:"source,omitempty"`
	Inputs    *Inputs             `json:"inputs,omitempty"`
}

// Listener receives events from every session of a registry. Listeners run
// synchronously on the goroutine that caused the change and must not block.
type Listener func(Event)
