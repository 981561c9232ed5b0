// Package errors defines the wire shape of HTTP error responses served by
// the worker status server.
package errors

import (
	"encoding/json"
	"net/http"
)

// HTTPErrorResponse is the standard error envelope.
type HTTPErrorResponse struct {
	Error HTTPError `json:"error"`
}

// HTTPError carries a stable code plus a human-readable message.
type HTTPError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Stable error codes.
const (
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeInternal         = "INTERNAL_ERROR"
)

// WriteJSON writes an error envelope with the given status.
func WriteJSON(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(HTTPErrorResponse{
		Error: HTTPError{Code: code, Message: message},
	})
}

// NotFoundHandler serves the standard 404 envelope.
func NotFoundHandler(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusNotFound, CodeNotFound, "resource not found")
}

// MethodNotAllowedHandler serves the standard 405 envelope.
func MethodNotAllowedHandler(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed")
}
