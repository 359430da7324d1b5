// Package shared provides helpers used by all API handlers: the response
// envelope, request decoding and context accessors.
package shared

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Response is the envelope every endpoint returns. Success responses
// carry Data and optionally Meta; error responses carry Error.
type Response struct {
	Success bool       `json:"success"`
	Message string     `json:"message,omitempty"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
	Meta    *Meta      `json:"meta,omitempty"`
}

// ErrorBody is the error payload: a stable machine-readable code plus
// optional per-field details for validation failures.
type ErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Meta carries pagination metadata for list responses.
type Meta struct {
	Page  int `json:"page"`
	Size  int `json:"size"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// RespondWithJSON writes a success envelope with the given status code.
func RespondWithJSON(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// RespondWithPage writes a success envelope with pagination metadata.
func RespondWithPage(w http.ResponseWriter, message string, data any, meta Meta) {
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    &meta,
	})
}

// RespondWithError writes an error envelope with the given status code.
func RespondWithError(w http.ResponseWriter, status int, code, message string, fields map[string]string) {
	writeJSON(w, status, Response{
		Success: false,
		Message: message,
		Error: &ErrorBody{
			Code:    code,
			Message: message,
			Fields:  fields,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		// Headers are already out; nothing to do but log.
		slog.Default().Error("failed to encode response", "error", err)
	}
}
