// Package protocol defines the wire-level event names shared between the
// watcher, the supervisor, and the HTTP/SSE surface.
package protocol

// EventType names every typed event the watcher and scheduler emit.
type EventType string

const (
	EventWorkflowAdded   EventType = "workflow:added"
	EventWorkflowChanged EventType = "workflow:changed"
	EventWorkflowRemoved EventType = "workflow:removed"

	EventPersonaAdded   EventType = "persona:added"
	EventPersonaChanged EventType = "persona:changed"
	EventPersonaRemoved EventType = "persona:removed"

	EventDMReceived     EventType = "dm:received"
	EventChannelMessage EventType = "channel:message"
	EventJobTrigger     EventType = "job:trigger"
	EventSSEConnected   EventType = "connected"
)

// Event is the payload carried on the watcher's internal event channel and,
// for the SSE-relevant subset, serialized as one `data:` JSON line.
type Event struct {
	Type      EventType `json:"type"`
	Path      string    `json:"path,omitempty"`
	Channel   string    `json:"channel,omitempty"`
	MessageID string    `json:"messageId,omitempty"`

	// MessagePath is the local filesystem path of the source message file,
	// for in-process consumers only; never serialized to SSE clients
	// per spec.md §4.8/§6's {type, channel, messageId} shape.
	MessagePath string `json:"-"`
}

// SSERelevant reports whether e should be forwarded to SSE subscribers
// (only dm:received and channel:message are, per spec.md §4.8).
func (e Event) SSERelevant() bool {
	return e.Type == EventDMReceived || e.Type == EventChannelMessage
}
