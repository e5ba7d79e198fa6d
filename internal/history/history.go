package history

import (
	"context"
	"time"
)

// EventType defines the kind of launcher event.
type EventType string

const (
	EventDiscovered      EventType = "discovered"       // a live prior instance was found
	EventStale           EventType = "stale"            // marker pointed at a dead pid or held garbage
	EventMismatch        EventType = "mismatch"         // marker pid is alive but not ours
	EventTerminated      EventType = "terminated"       // prior instance stopped
	EventTerminateFailed EventType = "terminate_failed" // prior instance survived SIGTERM and SIGKILL
	EventClaimed         EventType = "claimed"          // this process wrote the marker
	EventExited          EventType = "exited"           // this process released the marker
)

// Event is a launcher lifecycle event exported to external systems.
// PID is the process the event is about; Detail carries free-form context
// such as the exit outcome or the termination mode.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	PID        int       `json:"pid"`
	Name       string    `json:"name"`
	Detail     string    `json:"detail,omitempty"`
}

// Sink is a destination for history events (audit/analytics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// Close closes s if it holds resources.
func Close(s Sink) error {
	if c, ok := s.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
