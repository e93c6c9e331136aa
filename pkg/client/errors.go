package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrOffline is returned when the network is unavailable. The UI
	// renders an inline offline message for it, never a stack trace.
	ErrOffline = errors.New("network unavailable")

	// ErrNotFound is returned for 404 responses, including ISBN
	// lookups that match nothing.
	ErrNotFound = errors.New("not found")
)

// ErrorClass represents a classification of request errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassOffline represents the synthesized offline payload.
	ErrorClassOffline ErrorClass = "offline"
)

// APIError is a non-2xx response from the catalog backend. Detail
// carries the server's error message verbatim when present, for
// display in a transient notification.
type APIError struct {
	StatusCode int
	Class      ErrorClass
	Detail     string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	detail := e.Detail
	if detail == "" {
		detail = fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("catalog %s error (status %d): %s: %v", e.Class, e.StatusCode, detail, e.Err)
	}
	return fmt.Sprintf("catalog %s error (status %d): %s", e.Class, e.StatusCode, detail)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Message returns the user-facing text: the server detail verbatim, or
// the generic HTTP-status fallback.
func (e *APIError) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// shouldRetry determines if an error class should be retried. Client
// errors and offline states are final; retrying cannot fix them.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassServer, ErrorClassNetwork:
		return true
	default:
		return false
	}
}
