package handler

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"cloudsyncdrive/internal/auth"
	"cloudsyncdrive/internal/domain"
	"cloudsyncdrive/internal/service"
)

// maxUploadMemory ограничивает объём multipart-формы, держащейся в памяти.
const maxUploadMemory = 32 << 20

type FileHandler struct {
	fileService *service.FileService
}

func NewFileHandler(fileService *service.FileService) *FileHandler {
	return &FileHandler{fileService: fileService}
}

// Upload принимает файл из multipart-формы (поле "file", опционально "folder_id").
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		respondError(w, domain.ErrUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		respondError(w, fmt.Errorf("%w: invalid multipart form", domain.ErrInvalidOperation))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, fmt.Errorf("%w: missing file field", domain.ErrInvalidOperation))
		return
	}
	defer file.Close()

	var folderID *int64
	if raw := r.FormValue("folder_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondError(w, fmt.Errorf("%w: invalid folder_id", domain.ErrInvalidOperation))
			return
		}
		folderID = &id
	}

	created, err := h.fileService.UploadFile(r.Context(), domain.FileUpload{
		Name:     header.Filename,
		MIMEType: header.Header.Get("Content-Type"),
		Size:     header.Size,
		FolderID: folderID,
		OwnerID:  userID,
		Content:  file,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, created)
}

// Update заменяет содержимое файла новой версией.
func (h *FileHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		respondError(w, domain.ErrUnauthorized)
		return
	}

	fileUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		respondError(w, fmt.Errorf("%w: invalid file uuid", domain.ErrInvalidOperation))
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		respondError(w, fmt.Errorf("%w: invalid multipart form", domain.ErrInvalidOperation))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, fmt.Errorf("%w: missing file field", domain.ErrInvalidOperation))
		return
	}
	defer file.Close()

	updated, err := h.fileService.UpdateFile(r.Context(), fileUUID, domain.FileUpload{
		Name:     header.Filename,
		MIMEType: header.Header.Get("Content-Type"),
		Size:     header.Size,
		OwnerID:  userID,
		Content:  file,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, updated)
}

func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		respondError(w, domain.ErrUnauthorized)
		return
	}

	fileUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		respondError(w, fmt.Errorf("%w: invalid file uuid", domain.ErrInvalidOperation))
		return
	}

	download, err := h.fileService.DownloadFile(r.Context(), fileUUID, userID)
	if err != nil {
		respondError(w, err)
		return
	}

	serveDownload(w, download)
}

func (h *FileHandler) DownloadVersion(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		respondError(w, domain.ErrUnauthorized)
		return
	}

	fileUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		respondError(w, fmt.Errorf("%w: invalid file uuid", domain.ErrInvalidOperation))
		return
	}

	versionNumber, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil {
		respondError(w, fmt.Errorf("%w: invalid version number", domain.ErrInvalidOperation))
		return
	}

	download, err := h.fileService.DownloadFileVersion(r.Context(), fileUUID, versionNumber, userID)
	if err != nil {
		respondError(w, err)
		return
	}

	serveDownload(w, download)
}

func (h *FileHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		respondError(w, domain.ErrUnauthorized)
		return
	}

	fileUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		respondError(w, fmt.Errorf("%w: invalid file uuid", domain.ErrInvalidOperation))
		return
	}

	versions, err := h.fileService.GetFileVersions(r.Context(), fileUUID, userID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, versions)
}

func (h *FileHandler) RestoreVersion(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		respondError(w, domain.ErrUnauthorized)
		return
	}

	fileUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		respondError(w, fmt.Errorf("%w: invalid file uuid", domain.ErrInvalidOperation))
		return
	}

	versionNumber, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil {
		respondError(w, fmt.Errorf("%w: invalid version number", domain.ErrInvalidOperation))
		return
	}

	restored, err := h.fileService.RestoreFileVersion(r.Context(), fileUUID, versionNumber, userID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, restored)
}

func (h *FileHandler) GetInfo(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		respondError(w, domain.ErrUnauthorized)
		return
	}

	fileUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		respondError(w, fmt.Errorf("%w: invalid file uuid", domain.ErrInvalidOperation))
		return
	}

	file, err := h.fileService.GetFileInfo(r.Context(), fileUUID, userID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, file)
}

// List отдаёт файлы пользователя; при ?folder_id= выбирается конкретная папка.
func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		respondError(w, domain.ErrUnauthorized)
		return
	}

	var (
		files []domain.File
		err   error
	)
	if raw := r.URL.Query().Get("folder_id"); raw != "" {
		folderID, parseErr := strconv.ParseInt(raw, 10, 64)
		if parseErr != nil {
			respondError(w, fmt.Errorf("%w: invalid folder_id", domain.ErrInvalidOperation))
			return
		}
		files, err = h.fileService.GetFilesInFolder(r.Context(), folderID, userID)
	} else {
		files, err = h.fileService.GetUserFiles(r.Context(), userID)
	}
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, files)
}

// ListInFolder отдаёт файлы конкретной папки.
func (h *FileHandler) ListInFolder(w http.ResponseWriter, r *http.Request) {
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

	files, err := h.fileService.GetFilesInFolder(r.Context(), folderID, userID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, files)
}

// Search ищет файлы пользователя по подстроке имени (?q=).
func (h *FileHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		respondError(w, domain.ErrUnauthorized)
		return
	}

	files, err := h.fileService.SearchFiles(r.Context(), userID, r.URL.Query().Get("q"))
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, files)
}

// SearchByType отдаёт файлы пользователя с указанным MIME-типом (?mime_type=).
func (h *FileHandler) SearchByType(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		respondError(w, domain.ErrUnauthorized)
		return
	}

	files, err := h.fileService.GetFilesByMIMEType(r.Context(), userID, r.URL.Query().Get("mime_type"))
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, files)
}

// Recent отдаёт последние загруженные файлы (?limit=, по умолчанию 10).
func (h *FileHandler) Recent(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		respondError(w, domain.ErrUnauthorized)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, fmt.Errorf("%w: invalid limit", domain.ErrInvalidOperation))
			return
		}
		limit = parsed
	}

	files, err := h.fileService.GetRecentFiles(r.Context(), userID, limit)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, files)
}

func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		respondError(w, domain.ErrUnauthorized)
		return
	}

	fileUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		respondError(w, fmt.Errorf("%w: invalid file uuid", domain.ErrInvalidOperation))
		return
	}

	if err := h.fileService.DeleteFile(r.Context(), fileUUID, userID); err != nil {
		respondError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func serveDownload(w http.ResponseWriter, download *domain.FileDownload) {
	defer download.Content.Close()

	contentType := download.File.MIMEType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download.File.Name))
	w.Header().Set("Content-Length", strconv.FormatInt(download.File.SizeBytes, 10))

	if _, err := io.Copy(w, download.Content); err != nil {
		log.Printf("[FileHandler] ошибка при отдаче файла %s: %v", download.File.UUID, err)
	}
}
