// Package utils holds the JSON response helpers shared by the API and
// the auth gateway.
package utils

import (
	"encoding/json"
	"net/http"
)

type errBody struct {
	Error string `json:"error"`
}

// WriteJSON writes v as an application/json body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes an {"error": msg} body with the given status.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, errBody{Error: msg})
}
