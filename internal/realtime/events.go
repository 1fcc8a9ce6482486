package realtime

// Event names pushed to connections.
const (
	EventTasksUpdated = "tasks_updated"
	EventUnauthorized = "unauthorized"
	EventError        = "error"
)

// Event is the envelope for everything sent to a connection.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func NewErrorEvent(message string) Event {
	return Event{
		Event: EventError,
		Data:  ErrorPayload{Message: message},
	}
}

// Conn is one live client connection. The registry and dispatcher only
// ever talk to this interface, so the same core serves any transport.
type Conn interface {
	// Send queues an event for delivery. It must be safe to call
	// concurrently and must not block on a slow peer.
	Send(event Event) error

	// Close tears the connection down. Idempotent.
	Close()
}
