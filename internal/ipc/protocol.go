package ipc

// MessageType identifies a relay message.
type MessageType string

const (
	// MessageTypeEvent carries an auth-surface event to the main process.
	MessageTypeEvent MessageType = "event"
	// MessageTypeAck acknowledges an event.
	MessageTypeAck MessageType = "ack"
)

// EventMessage is sent by an authentication surface running in another
// process, typically a helper that intercepted the provider redirect. The
// main process republishes it on its window bus.
type EventMessage struct {
	Type    MessageType `json:"type"`
	Topic   string      `json:"topic"`
	Code    string      `json:"code,omitempty"`
	State   string      `json:"state,omitempty"`
	Message string      `json:"message,omitempty"`
}

// Ack is sent back to the surface after the event was republished.
type Ack struct {
	Type   MessageType `json:"type"`
	Status string      `json:"status"` // "ok" or "error"
	Error  string      `json:"error,omitempty"`
}

// Ack status constants
const (
	StatusOK    = "ok"
	StatusError = "error"
)
