// Package logging provides a thin structured logging layer over log/slog.
//
// Every log call carries a subsystem tag so that output from the registry,
// supervisor, collector and broadcaster can be told apart in a single
// stream. Initialize once at startup with Init; the package falls back to a
// stderr logger if a subsystem logs before initialization.
package logging
