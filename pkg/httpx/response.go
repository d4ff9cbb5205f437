package httpx

import (
	"encoding/json"
	"net/http"
)

// Envelope is the body shape of every API response, success or not.
type Envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// WriteJSON writes v as JSON with caching disabled.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData writes a success envelope.
func WriteData(w http.ResponseWriter, code int, data any, message string) {
	WriteJSON(w, code, Envelope{
		StatusCode: code,
		Data:       data,
		Message:    message,
		Success:    code < 400,
	})
}

// WriteError writes a failure envelope with null data.
func WriteError(w http.ResponseWriter, code int, message string) {
	WriteJSON(w, code, Envelope{
		StatusCode: code,
		Message:    message,
		Success:    false,
	})
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}
