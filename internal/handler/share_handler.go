package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"cloudsyncdrive/internal/auth"
	"cloudsyncdrive/internal/domain"
	"cloudsyncdrive/internal/service"
)

type ShareHandler struct {
	shareService *service.ShareService
}

func NewShareHandler(shareService *service.ShareService) *ShareHandler {
	return &ShareHandler{shareService: shareService}
}

func (h *ShareHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		respondError(w, domain.ErrUnauthorized)
		return
	}

	var req service.ShareCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, fmt.Errorf("%w: invalid request body", domain.ErrInvalidOperation))
		return
	}

	share, err := h.shareService.CreateShare(r.Context(), req, userID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, share)
}

func (h *ShareHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		respondError(w, domain.ErrUnauthorized)
		return
	}

	shares, err := h.shareService.ListMine(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, shares)
}

func (h *ShareHandler) ListSharedWithMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		respondError(w, domain.ErrUnauthorized)
		return
	}

	shares, err := h.shareService.ListSharedWithMe(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, shares)
}

// Download скачивает файл адресного share; доступно получателю и создателю.
func (h *ShareHandler) Download(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		respondError(w, domain.ErrUnauthorized)
		return
	}

	shareID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, fmt.Errorf("%w: invalid share id", domain.ErrInvalidOperation))
		return
	}

	download, err := h.shareService.DownloadForRecipient(r.Context(), shareID, userID)
	if err != nil {
		respondError(w, err)
		return
	}

	serveDownload(w, download)
}

type updateExpiryRequest struct {
	ExpiresAt *time.Time `json:"expires_at"`
}

// UpdateExpiry меняет срок действия share; nil в expires_at делает её бессрочной.
func (h *ShareHandler) UpdateExpiry(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		respondError(w, domain.ErrUnauthorized)
		return
	}

	shareID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, fmt.Errorf("%w: invalid share id", domain.ErrInvalidOperation))
		return
	}

	var req updateExpiryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, fmt.Errorf("%w: invalid request body", domain.ErrInvalidOperation))
		return
	}

	share, err := h.shareService.UpdateExpiry(r.Context(), shareID, userID, req.ExpiresAt)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, share)
}

func (h *ShareHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		respondError(w, domain.ErrUnauthorized)
		return
	}

	shareID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, fmt.Errorf("%w: invalid share id", domain.ErrInvalidOperation))
		return
	}

	if err := h.shareService.Revoke(r.Context(), shareID, userID); err != nil {
		respondError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Resolve отдаёт метаданные публичной ссылки без авторизации.
func (h *ShareHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	share, err := h.shareService.ResolveToken(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, share)
}

// DownloadShared скачивает файл по публичному токену без авторизации.
func (h *ShareHandler) DownloadShared(w http.ResponseWriter, r *http.Request) {
	download, err := h.shareService.DownloadShared(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		respondError(w, err)
		return
	}

	serveDownload(w, download)
}
