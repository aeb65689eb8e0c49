package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/prashantji77/youtube-video-summarizer/internal/helper"
)

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// RequireMethod writes a 405 with message and returns false when r does
// not use method.
func RequireMethod(w http.ResponseWriter, r *http.Request, method, message string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		WriteError(w, r, http.StatusMethodNotAllowed, message)
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes an ErrorResponse tagged with the request id from r.
func WriteError(w http.ResponseWriter, r *http.Request, statusCode int, message string) error {
	return WriteJSON(w, statusCode, ErrorResponse{
		Error:     message,
		RequestID: helper.RequestIDFrom(r.Context()),
	})
}

// HealthHandler handles GET /health.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
