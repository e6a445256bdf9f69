package api

import "time"

// EventType classifies messages on the real-time channel.
type EventType string

const (
	// EventSnapshot carries the full current state of all servers. Sent as
	// the first message after (re)subscribe and after a forced resync.
	EventSnapshot EventType = "snapshot"

	// EventServerCreated announces a newly created server definition.
	EventServerCreated EventType = "server_created"

	// EventStatusChanged announces a lifecycle status transition.
	EventStatusChanged EventType = "status_changed"

	// EventMetricsUpdated carries a fresh metrics sample for a running server.
	EventMetricsUpdated EventType = "metrics_updated"

	// EventServerRemoved announces a deleted server definition.
	EventServerRemoved EventType = "server_removed"

	// EventHeartbeat is the periodic liveness signal. Clients that miss
	// several consecutive heartbeats should re-subscribe.
	EventHeartbeat EventType = "heartbeat"
)

// StatusEvent is the unit of the real-time channel. For snapshot events
// Servers is populated and the per-server fields are empty; for all other
// types ServerID identifies the subject.
//
// Delivery is at-least-once with per-server ordering: a session observes
// events for one server in production order, but no ordering holds across
// servers.
type StatusEvent struct {
	Type       EventType    `json:"type"`
	ServerID   string       `json:"serverId,omitempty"`
	Status     ServerStatus `json:"status,omitempty"`
	Metrics    *Metrics     `json:"metrics,omitempty"`
	Diagnostic string       `json:"diagnostic,omitempty"`
	Servers    []*Server    `json:"servers,omitempty"`
	Timestamp  time.Time    `json:"timestamp"`
}

// EventSink consumes status events. The supervisor and collector publish
// into a sink; the broadcaster implements it. Publish must never block the
// caller.
type EventSink interface {
	Publish(event StatusEvent)
}

// SinkFunc adapts a function to the EventSink interface.
type SinkFunc func(event StatusEvent)

// Publish implements EventSink.
func (f SinkFunc) Publish(event StatusEvent) { f(event) }
