// Package models holds the wire types of the HTTP API surface.
package models

import (
	"encoding/json"
	"net/http"
	"time"
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	// Status is the HTTP status code, repeated in the body for clients
	// that log payloads without headers.
	Status int `json:"status"`

	// Message is a human-readable description of the failure.
	Message string `json:"message"`

	// Path and Method identify the failing request.
	Path   string `json:"path"`
	Method string `json:"method"`

	// Timestamp is when the error was produced, UTC.
	Timestamp time.Time `json:"timestamp"`

	// RequestID is the correlation identifier for debugging.
	RequestID string `json:"requestId,omitempty"`
}

// NewError creates an error body for a request.
func NewError(r *http.Request, status int, message, requestID string) *ErrorResponse {
	return &ErrorResponse{
		Status:    status,
		Message:   message,
		Path:      r.URL.Path,
		Method:    r.Method,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// Write writes the error as JSON to the ResponseWriter.
func (e *ErrorResponse) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	if e.RequestID != "" {
		w.Header().Set("X-Request-Id", e.RequestID)
	}
	w.WriteHeader(e.Status)
	_ = json.NewEncoder(w).Encode(e)
}
