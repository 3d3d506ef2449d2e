package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/knowreal/knowreal-backend/internal/services"
)

// Response is the envelope every JSON endpoint answers with.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Response{Success: false, Message: message})
}

// writeError maps service errors onto a status and the failure envelope.
// Store details never leave the server.
func writeError(w http.ResponseWriter, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, Response{Success: false, Message: verr.Message, Field: verr.Field})
	case errors.Is(err, services.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"success":  false,
			"message":  "Authentication required",
			"redirect": "/auth/login",
		})
	case errors.Is(err, services.ErrInvalidCredentials):
		writeFailure(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrAccountInactive):
		writeFailure(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrDreamNotFound):
		writeFailure(w, http.StatusNotFound, "Dream not found")
	case errors.Is(err, services.ErrUsernameTaken):
		writeFailure(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrStoreUnavailable):
		writeFailure(w, http.StatusInternalServerError, services.ErrStoreUnavailable.Error())
	default:
		log.Printf("Unhandled error: %v", err)
		writeFailure(w, http.StatusInternalServerError, "Internal server error")
	}
}
