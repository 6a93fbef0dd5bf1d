package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"cloudsyncdrive/internal/domain"
)

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[Handler] failed to encode response: %v", err)
	}
}

// respondError сопоставляет доменные ошибки с HTTP-статусами.
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrQuotaExceeded):
		status = http.StatusInsufficientStorage
	case errors.Is(err, domain.ErrInvalidOperation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrStorageIO):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		log.Printf("[Handler] internal error: %v", err)
	}

	respondJSON(w, status, map[string]string{"error": err.Error()})
}
