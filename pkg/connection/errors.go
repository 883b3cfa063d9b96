package connection

import (
	"errors"
	"fmt"
)

// Sentinel errors for the connection package.
var (
	// ErrNoURL indicates the endpoint URL was not provided.
	ErrNoURL = errors.New("connection: endpoint URL is required")

	// ErrMaxReconnectExceeded indicates the reconnection budget is spent.
	// This is terminal; no further automatic attempts are made.
	ErrMaxReconnectExceeded = errors.New("connection: max reconnect attempts exceeded")
)

// TransportError represents a connect failure, timeout or unexpected close.
type TransportError struct {
	// Op is the operation that failed ("dial", "read", "write").
	Op string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("connection: %s failed: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error {
	return e.Cause
}
