package session

import "time"

// Event names.
const (
	EventLoad             = "load"
	EventCompletionStart  = "completion_start"
	EventCompletionDone   = "completion_done"
	EventCompletionFailed = "completion_failed"
	EventBusy             = "busy"
	EventSyntheticAck     = "synthetic_ack"
	EventWindowTrimmed    = "context_window_trimmed"
	EventRelease          = "release"
)

// Event represents a session lifecycle event.
// Minimal and stable: name + session ID and optional fields.
type Event struct {
	Name      string         `json:"name"`
	SessionID string         `json:"session_id"`
	Time      time.Time      `json:"time"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// EventPublisher receives events from the session. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

func (s *Session) publish(name string, fields map[string]any) {
	s.pub.Publish(Event{Name: name, SessionID: s.id, Time: time.Now(), Fields: fields})
}
