package protocol

import (
	"errors"
	"fmt"
)

// Sentinel errors for the protocol package.
var (
	// ErrMissingType indicates the envelope had no string type field.
	ErrMissingType = errors.New("protocol: missing type field")

	// ErrMalformedEvent indicates an animation_event payload failed validation.
	ErrMalformedEvent = errors.New("protocol: malformed animation event")
)

// ProtocolError represents a validation failure on an inbound message.
// The message is dropped and counted; it never propagates as a crash.
type ProtocolError struct {
	// Reason describes what failed to validate.
	Reason string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("protocol: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("protocol: %s", e.Reason)
}

// Unwrap returns the underlying cause.
func (e *ProtocolError) Unwrap() error {
	return e.Cause
}

// IsProtocolError reports whether err is a message validation failure.
func IsProtocolError(err error) bool {
	var perr *ProtocolError
	return errors.As(err, &perr)
}
