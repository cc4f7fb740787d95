package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// Envelope wraps every response payload with an explicit success flag,
// message, and timestamp.
type Envelope struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	env := Envelope{
		Success:   status < http.StatusBadRequest,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	_ = json.NewEncoder(w).Encode(env)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, message, nil)
}
