// Package server is the thin HTTP host layer: REST endpoints for server
// and lifecycle commands under /api/v1, a WebSocket endpoint bridging
// broadcaster sessions, a Prometheus /metrics handler and /healthz.
package server
