// Package supervisor owns the lifecycle of managed MCP server processes.
//
// It enforces the state machine stopped -> starting -> running -> stopping
// -> stopped, with error reachable from any state and recoverable through a
// new start. Operations accept or reject transitions synchronously and do
// the slow work (spawning, readiness probing, graceful termination) in
// per-server goroutines, so one misbehaving server never blocks operations
// on another.
//
// A starting server is confirmed running by a readiness probe against its
// configured port; once running it is watched for process exit and probed
// for protocol-level health. Crashes move the server to error and, when
// autoStart is set, arm an exponential-backoff restart with a capped
// attempt budget.
package supervisor
