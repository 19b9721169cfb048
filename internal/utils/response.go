package utils

import (
	"encoding/json"
	"net/http"
	"time"

	"festival-ticketing/internal/apperrors"
)

type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func WriteSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	WriteJSON(w, status, APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// WriteError maps service errors to status codes via the error
// taxonomy and renders them in the common envelope.
func WriteError(w http.ResponseWriter, err error) {
	WriteJSON(w, apperrors.HTTPStatus(err), APIResponse{
		Success:   false,
		Error:     err.Error(),
		Timestamp: time.Now(),
	})
}
