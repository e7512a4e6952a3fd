package respond

import (
	"encoding/json"
	"net/http"
)

// Envelope is the standard API response wrapper used across handlers. Reason is a stable,
// machine-readable error code; Message is meant for people.
type Envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Reason  string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// JSON writes a success or informational response using the common envelope.
func JSON(w http.ResponseWriter, status int, message string, data any) {
	write(w, status, Envelope{Code: status, Message: message, Data: data})
}

// Error writes an error response without a reason code.
func Error(w http.ResponseWriter, status int, message string) {
	Fail(w, status, "", message)
}

// Fail writes an error response carrying reason so clients can branch without parsing message.
func Fail(w http.ResponseWriter, status int, reason, message string) {
	write(w, status, Envelope{Code: status, Message: message, Reason: reason})
}

func write(w http.ResponseWriter, status int, payload Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	// Headers are already sent.
	_ = json.NewEncoder(w).Encode(payload)
}
