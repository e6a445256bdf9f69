// Package broadcast is the real-time side of the dashboard: it fans status
// events out to any number of subscribed sessions with at-least-once
// delivery and per-publication ordering.
//
// Sessions subscribe with a snapshot of current state already queued, then
// receive live events. Backpressure is handled by convergence rather than
// blocking: an overflowing session loses its backlog and gets a new
// snapshot, and sessions that cannot even take heartbeats are evicted.
package broadcast
