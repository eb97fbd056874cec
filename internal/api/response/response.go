// Package response provides utilities for HTTP response handling.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/swellcast/swellcast/internal/api/middleware"
	"github.com/swellcast/swellcast/internal/api/models"
	"github.com/swellcast/swellcast/internal/apperr"
)

// JSON writes a JSON response with the given status code.
// Includes X-Request-Id header for correlation.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	requestID := middleware.GetRequestID(r.Context())
	if requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Error writes an error body with the given status and message.
func Error(w http.ResponseWriter, r *http.Request, status int, message string) {
	requestID := middleware.GetRequestID(r.Context())
	models.NewError(r, status, message, requestID).Write(w)
}

// FromError maps a domain error onto the HTTP error taxonomy and
// writes it. Internal errors hide their message; everything else is
// safe to surface verbatim.
func FromError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	message := apperr.MessageOf(err)
	if status == http.StatusInternalServerError {
		message = "an unexpected error occurred"
	}
	Error(w, r, status, message)
}

// StatusOf maps a domain error kind to its HTTP status.
func StatusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindOutOfGrid:
		return http.StatusBadRequest
	case apperr.KindUpstreamUnavailable:
		return http.StatusBadGateway
	case apperr.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// BadRequest writes a 400 Bad Request error response.
func BadRequest(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, http.StatusBadRequest, message)
}

// NotFound writes a 404 Not Found error response.
func NotFound(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, http.StatusNotFound, message)
}

// InternalError writes a 500 Internal Server Error response.
func InternalError(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, http.StatusInternalServerError, message)
}
