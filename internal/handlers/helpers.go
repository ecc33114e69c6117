package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// maxErrorMessageLength caps error text returned to clients. Upstream messages pass
// through verbatim and can be long.
const maxErrorMessageLength = 500

// envelope is the REST response shape shared by every /api/v1 endpoint.
type envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// respondJSON sends data inside the success envelope
func respondJSON(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data, Timestamp: now()})
}

// respondJSONError sends an error envelope with a length-capped message
func respondJSONError(w http.ResponseWriter, status int, errorType, message string) {
	writeJSON(w, status, envelope{
		Error:     errorType,
		Message:   sanitizeErrorMessage(message),
		Timestamp: now(),
	})
}

// writeJSON sends a bare JSON body without the success envelope.
func writeJSON(w http.ResponseWriter, status int, body any) {
	payload, err := json.Marshal(body)
	if err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(payload, '\n'))
}

// sanitizeErrorMessage truncates overly long error text on a rune boundary
func sanitizeErrorMessage(message string) string {
	if len(message) <= maxErrorMessageLength {
		return message
	}
	return strings.ToValidUTF8(message[:maxErrorMessageLength], "") + "..."
}
