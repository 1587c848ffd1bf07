// Package errors provides custom error types for the Agent Chat client.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	ErrNotConnected   = errors.New("socket is not connected")
	ErrAlreadyClosed  = errors.New("connection already closed")
	ErrEmptyMessage   = errors.New("message text and attachments are both empty")
	ErrExchangeActive = errors.New("an exchange is already in flight")
	ErrInvalidPayload = errors.New("invalid event payload")
)

// SocketError represents a transport-level failure on the persistent channel
type SocketError struct {
	Op      string // "dial", "emit", "read"
	Message string
	Err     error
}

func (e *SocketError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("socket %s failed: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("socket %s failed: %s", e.Op, e.Message)
}

func (e *SocketError) Unwrap() error {
	return e.Err
}

// Is allows comparison with the ErrNotConnected sentinel
func (e *SocketError) Is(target error) bool {
	if target == ErrNotConnected && e.Op == "emit" {
		return true
	}
	_, ok := target.(*SocketError)
	return ok
}

// NewSocketError creates a new SocketError
func NewSocketError(op, message string, err error) *SocketError {
	return &SocketError{Op: op, Message: message, Err: err}
}

// APIError represents a REST request failure
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("API error [%d] at %s: %s", e.StatusCode, e.Endpoint, e.Message)
	}
	return fmt.Sprintf("API error at %s: %s", e.Endpoint, e.Message)
}

// NewAPIError creates a new APIError
func NewAPIError(statusCode int, endpoint, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Endpoint:   endpoint,
		Message:    message,
	}
}

// UploadError represents a failed attachment upload. It names the file so
// the failure can be surfaced per-attachment.
type UploadError struct {
	FileName string
	Message  string
	Err      error
}

func (e *UploadError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upload of %q failed", e.FileName)
	}
	return fmt.Sprintf("upload of %q failed: %s", e.FileName, e.Message)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// NewUploadError creates a new UploadError
func NewUploadError(fileName, message string, err error) *UploadError {
	return &UploadError{FileName: fileName, Message: message, Err: err}
}

// BackendError represents a chat_error event or an error reported in a
// REST response body
type BackendError struct {
	Message string
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return "backend reported an error"
	}
	return fmt.Sprintf("backend error: %s", e.Message)
}

// NewBackendError creates a new BackendError
func NewBackendError(message string) *BackendError {
	return &BackendError{Message: message}
}

// NetworkError wraps a low-level transport failure on the REST path
type NetworkError struct {
	Op       string
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s at %s: %v", e.Op, e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new NetworkError
func NewNetworkError(op, endpoint string, err error) *NetworkError {
	return &NetworkError{Op: op, Endpoint: endpoint, Err: err}
}

// IsTransportUnavailable reports whether err means the persistent channel
// could not carry the request, i.e. the fallback path should be used.
func IsTransportUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotConnected) {
		return true
	}
	var se *SocketError
	return errors.As(err, &se)
}
