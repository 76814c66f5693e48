// Package handler wires the HTTP surface: routing, request validation,
// auth middleware, and the JSON response envelope.
package handler

import (
	"encoding/json"
	"net/http"
)

// fieldError is a single validation failure reported to the client.
type fieldError struct {
	Field string `json:"field"`
	Msg   string `json:"msg"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}

func writeFieldErrors(w http.ResponseWriter, errs []fieldError) {
	writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "errors": errs})
}

func writeServerError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, "Server error")
}
