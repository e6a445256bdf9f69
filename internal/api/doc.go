// Package api defines the shared vocabulary of the dashboard core: the
// Server entity and its lifecycle status machine, metrics samples, the
// real-time event contract, and the error taxonomy returned by commands.
//
// Every other internal package depends on api and api depends on nothing,
// which keeps the component boundaries acyclic: the registry and supervisor
// produce api values, the broadcaster fans them out, and the transport
// layer serializes them unchanged.
//
// # Error taxonomy
//
// Synchronous command errors are one of ValidationError, ConflictError or
// NotFoundError; use the IsValidation/IsConflict/IsNotFound helpers, which
// unwrap. Timeout and process failures of asynchronous operations are never
// returned as errors: they surface through the status field (error or
// stopped, with a diagnostic) and the event stream.
package api
