// Package app assembles the core: registry, supervisor, collector and
// broadcaster behind one command surface that transports call into. Bulk
// operations fan out concurrently and report per-server results.
package app
