package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"cloudsyncdrive/internal/auth"
	"cloudsyncdrive/internal/domain"
	"cloudsyncdrive/internal/service"
)

type FolderHandler struct {
	folderService *service.FolderService
}

func NewFolderHandler(folderService *service.FolderService) *FolderHandler {
	return &FolderHandler{folderService: folderService}
}

type createFolderRequest struct {
	Name     string `json:"name"`
	ParentID *int64 `json:"parent_id,omitempty"`
}

type renameFolderRequest struct {
	Name string `json:"name"`
}

func (h *FolderHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		respondError(w, domain.ErrUnauthorized)
		return
	}

	var req createFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, fmt.Errorf("%w: invalid request body", domain.ErrInvalidOperation))
		return
	}

	folder, err := h.folderService.CreateFolder(r.Context(), req.Name, req.ParentID, userID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, folder)
}

// List отдаёт корневые папки либо содержимое папки из ?parent_id=.
func (h *FolderHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		respondError(w, domain.ErrUnauthorized)
		return
	}

	var (
		folders []domain.Folder
		err     error
	)
	if raw := r.URL.Query().Get("parent_id"); raw != "" {
		parentID, parseErr := strconv.ParseInt(raw, 10, 64)
		if parseErr != nil {
			respondError(w, fmt.Errorf("%w: invalid parent_id", domain.ErrInvalidOperation))
			return
		}
		folders, err = h.folderService.GetSubfolders(r.Context(), parentID, userID)
	} else {
		folders, err = h.folderService.GetRootFolders(r.Context(), userID)
	}
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, folders)
}

func (h *FolderHandler) Tree(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		respondError(w, domain.ErrUnauthorized)
		return
	}

	tree, err := h.folderService.GetFolderTree(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, tree)
}

func (h *FolderHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		respondError(w, domain.ErrUnauthorized)
		return
	}

	folderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, fmt.Errorf("%w: invalid folder id", domain.ErrInvalidOperation))
		return
	}

	folder, err := h.folderService.GetFolder(r.Context(), folderID, userID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, folder)
}

func (h *FolderHandler) Rename(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		respondError(w, domain.ErrUnauthorized)
		return
	}

	folderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, fmt.Errorf("%w: invalid folder id", domain.ErrInvalidOperation))
		return
	}

	var req renameFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, fmt.Errorf("%w: invalid request body", domain.ErrInvalidOperation))
		return
	}

	folder, err := h.folderService.RenameFolder(r.Context(), folderID, req.Name, userID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, folder)
}

func (h *FolderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		respondError(w, domain.ErrUnauthorized)
		return
	}

	folderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, fmt.Errorf("%w: invalid folder id", domain.ErrInvalidOperation))
		return
	}

	if err := h.folderService.DeleteFolder(r.Context(), folderID, userID); err != nil {
		respondError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
