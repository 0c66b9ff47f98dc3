package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tobiadeyemi/Resolva/internal/core"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps the error taxonomy onto HTTP statuses. Unknown errors
// stay opaque to the client.
func writeError(w http.ResponseWriter, err error) {
	var status int
	var msg string
	switch {
	case errors.Is(err, core.ErrValidation):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, core.ErrNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, core.ErrPermission):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, core.ErrExternal):
		status, msg = http.StatusBadGateway, "an upstream service is unavailable"
	default:
		status, msg = http.StatusInternalServerError, "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
