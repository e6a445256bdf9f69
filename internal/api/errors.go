package api

import (
	"errors"
	"fmt"
)

// ValidationError indicates a malformed server configuration (bad name,
// host or port). It is returned synchronously from create/configure and
// leaves the entity unchanged.
type ValidationError struct {
	// Field names the offending config field (e.g. "name", "host", "port").
	Field string

	// Message describes why the value was rejected.
	Message string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid configuration: %s", e.Message)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation checks if an error is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ConflictError indicates an operation that is valid in principle but
// collides with current state: a port already bound by a running server,
// delete while not stopped, or a lifecycle command issued while the server
// is busy in starting/stopping.
type ConflictError struct {
	// ServerID identifies the server the conflict applies to, if known.
	ServerID string

	// Message describes the conflict.
	Message string
}

// Error implements the error interface for ConflictError.
func (e *ConflictError) Error() string {
	if e.ServerID == "" {
		return e.Message
	}
	return fmt.Sprintf("server %s: %s", e.ServerID, e.Message)
}

// NewConflictError creates a ConflictError for the given server.
func NewConflictError(serverID, format string, args ...interface{}) *ConflictError {
	return &ConflictError{ServerID: serverID, Message: fmt.Sprintf(format, args...)}
}

// IsConflict checks if an error is or wraps a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// NotFoundError indicates an unknown server id or name.
type NotFoundError struct {
	// ResourceType categorizes what was looked up (normally "server").
	ResourceType string

	// ResourceName is the identifier that failed to resolve.
	ResourceName string
}

// Error implements the error interface for NotFoundError.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.ResourceType, e.ResourceName)
}

// NewServerNotFoundError creates a NotFoundError for a server id.
func NewServerNotFoundError(id string) *NotFoundError {
	return &NotFoundError{ResourceType: "server", ResourceName: id}
}

// IsNotFound checks if an error is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}
