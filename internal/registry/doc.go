// Package registry owns server definitions: validation on create and
// configure, durable persistence (one yaml file per server), query support
// and the last-known status cache that the supervisor and collector write
// into.
//
// The registry validates static rules (name uniqueness, host syntax, port
// range) and the live rule that a (host, port) pair may only be held by one
// running server. It never drives lifecycle itself; the supervisor does.
package registry
