package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"cloudsyncdrive/internal/auth"
	"cloudsyncdrive/internal/domain"
	"cloudsyncdrive/internal/service"
)

type QuotaHandler struct {
	quotaService *service.StorageQuotaService
}

func NewQuotaHandler(quotaService *service.StorageQuotaService) *QuotaHandler {
	return &QuotaHandler{quotaService: quotaService}
}

func (h *QuotaHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		respondError(w, domain.ErrUnauthorized)
		return
	}

	info, err := h.quotaService.GetQuotaInfo(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, info)
}

type updateQuotaRequest struct {
	StorageLimit int64 `json:"storage_limit"`
}

func (h *QuotaHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		respondError(w, domain.ErrUnauthorized)
		return
	}

	var req updateQuotaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, fmt.Errorf("%w: invalid request body", domain.ErrInvalidOperation))
		return
	}

	if err := h.quotaService.UpdateQuotaLimit(r.Context(), userID, req.StorageLimit); err != nil {
		respondError(w, err)
		return
	}

	info, err := h.quotaService.GetQuotaInfo(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, info)
}
