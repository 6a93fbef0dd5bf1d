package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"

	"cloudsyncdrive/internal/domain"
)

type ShareService struct {
	shareStore  ShareStore
	fileStore   FileStore
	folderStore FolderStore
	userStore   UserStore
	fileService *FileService
	activity    *ActivityService
	baseURL     string
}

type ShareCreateRequest struct {
	FileUUID        *uuid.UUID             `json:"file_uuid,omitempty"`
	FolderID        *int64                 `json:"folder_id,omitempty"`
	SharedWithEmail string                 `json:"shared_with_email,omitempty"`
	Permission      domain.SharePermission `json:"permission,omitempty"`
	Public          bool                   `json:"public,omitempty"`
	ExpiresAt       *time.Time             `json:"expires_at,omitempty"`
}

type ShareResponse struct {
	Share    *domain.Share `json:"share"`
	ShareURL string        `json:"share_url,omitempty"`
}

func NewShareService(
	shareStore ShareStore,
	fileStore FileStore,
	folderStore FolderStore,
	userStore UserStore,
	fileService *FileService,
	activity *ActivityService,
	baseURL string,
) *ShareService {
	return &ShareService{
		shareStore:  shareStore,
		fileStore:   fileStore,
		folderStore: folderStore,
		userStore:   userStore,
		fileService: fileService,
		activity:    activity,
		baseURL:     baseURL,
	}
}

// CreateShare выдает доступ к файлу или папке: либо публичная ссылка
// с токеном, либо адресная — конкретному пользователю по email.
func (s *ShareService) CreateShare(ctx context.Context, req ShareCreateRequest, userID int64) (*ShareResponse, error) {
	// Разрешен ровно один из двух ресурсов
	if (req.FileUUID == nil && req.FolderID == nil) || (req.FileUUID != nil && req.FolderID != nil) {
		return nil, fmt.Errorf("%w: must specify either file_uuid or folder_id, not both", domain.ErrInvalidOperation)
	}

	if req.FileUUID != nil {
		file, err := s.fileStore.GetByUUID(ctx, *req.FileUUID)
		if err != nil {
			return nil, err
		}
		if file.OwnerID != userID {
			return nil, fmt.Errorf("%w: cannot share file you don't own", domain.ErrUnauthorized)
		}
	}

	if req.FolderID != nil {
		if _, err := s.folderStore.GetByIDAndOwner(ctx, *req.FolderID, userID); err != nil {
			return nil, err
		}
	}

	permission := req.Permission
	if permission == "" {
		permission = domain.PermissionView
	}

	share := &domain.Share{
		FileUUID:   req.FileUUID,
		FolderID:   req.FolderID,
		SharedByID: userID,
		Permission: permission,
		ExpiresAt:  req.ExpiresAt,
	}

	if req.Public || req.SharedWithEmail == "" {
		// Публичная ссылка
		token := uuid.New().String()
		share.ShareToken = &token
	} else {
		recipient, err := s.userStore.GetByEmail(ctx, req.SharedWithEmail)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("%w: user with email %s", domain.ErrNotFound, req.SharedWithEmail)
			}
			return nil, err
		}
		share.SharedWithID = &recipient.ID
	}

	if err := s.shareStore.Create(ctx, share); err != nil {
		return nil, err
	}

	s.activity.Record(ctx, userID, domain.ActivityShare, s.entityType(share), s.entityID(share))

	log.Printf("[ShareService] Share created: id=%d, public=%t", share.ID, share.ShareToken != nil)

	return &ShareResponse{Share: share, ShareURL: s.shareURL(share)}, nil
}

// ResolveToken возвращает публичный share по токену с учетом срока действия.
func (s *ShareService) ResolveToken(ctx context.Context, token string) (*domain.Share, error) {
	share, err := s.shareStore.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if share.Expired(time.Now()) {
		return nil, fmt.Errorf("%w: share link expired", domain.ErrNotFound)
	}
	return share, nil
}

// DownloadShared отдает содержимое расшаренного файла по публичному токену.
func (s *ShareService) DownloadShared(ctx context.Context, token string) (*domain.FileDownload, error) {
	share, err := s.ResolveToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if share.FileUUID == nil {
		return nil, fmt.Errorf("%w: share is not a file share", domain.ErrInvalidOperation)
	}

	file, err := s.fileStore.GetByUUID(ctx, *share.FileUUID)
	if err != nil {
		return nil, err
	}

	// Скачивание от имени владельца: токен уже и есть право доступа
	return s.fileService.DownloadFile(ctx, file.UUID, file.OwnerID)
}

func (s *ShareService) ListMine(ctx context.Context, userID int64) ([]domain.Share, error) {
	return s.shareStore.ListBySharedBy(ctx, userID)
}

func (s *ShareService) ListSharedWithMe(ctx context.Context, userID int64) ([]domain.Share, error) {
	return s.shareStore.ListBySharedWith(ctx, userID)
}

// DownloadForRecipient отдает содержимое адресного share его получателю
// или создателю. Публичные ссылки сюда не приходят — у них свой маршрут.
func (s *ShareService) DownloadForRecipient(ctx context.Context, shareID, userID int64) (*domain.FileDownload, error) {
	share, err := s.shareStore.GetByID(ctx, shareID)
	if err != nil {
		return nil, err
	}
	if share.SharedByID != userID && (share.SharedWithID == nil || *share.SharedWithID != userID) {
		return nil, fmt.Errorf("%w: share %d", domain.ErrUnauthorized, shareID)
	}
	if share.Expired(time.Now()) {
		return nil, fmt.Errorf("%w: share expired", domain.ErrNotFound)
	}
	if share.FileUUID == nil {
		return nil, fmt.Errorf("%w: share is not a file share", domain.ErrInvalidOperation)
	}

	file, err := s.fileStore.GetByUUID(ctx, *share.FileUUID)
	if err != nil {
		return nil, err
	}

	// Share и есть право доступа: скачиваем от имени владельца файла
	return s.fileService.DownloadFile(ctx, file.UUID, file.OwnerID)
}

// UpdateExpiry меняет срок действия share; доступно только создателю.
// nil снимает ограничение срока.
func (s *ShareService) UpdateExpiry(ctx context.Context, shareID, userID int64, expiresAt *time.Time) (*domain.Share, error) {
	share, err := s.shareStore.GetByID(ctx, shareID)
	if err != nil {
		return nil, err
	}
	if share.SharedByID != userID {
		return nil, fmt.Errorf("%w: share %d", domain.ErrUnauthorized, shareID)
	}

	if err := s.shareStore.UpdateExpiry(ctx, shareID, expiresAt); err != nil {
		return nil, err
	}
	share.ExpiresAt = expiresAt

	log.Printf("[ShareService] Share expiry updated: id=%d", shareID)

	return share, nil
}

// Revoke удаляет share; отозвать может только его создатель.
func (s *ShareService) Revoke(ctx context.Context, shareID, userID int64) error {
	share, err := s.shareStore.GetByID(ctx, shareID)
	if err != nil {
		return err
	}
	if share.SharedByID != userID {
		return fmt.Errorf("%w: share %d", domain.ErrUnauthorized, shareID)
	}
	return s.shareStore.Delete(ctx, shareID)
}

func (s *ShareService) shareURL(share *domain.Share) string {
	if share.ShareToken == nil || s.baseURL == "" {
		return ""
	}
	return s.baseURL + "/public/shares/" + *share.ShareToken
}

func (s *ShareService) entityType(share *domain.Share) string {
	if share.FileUUID != nil {
		return domain.EntityTypeFile
	}
	return domain.EntityTypeFolder
}

func (s *ShareService) entityID(share *domain.Share) string {
	if share.FileUUID != nil {
		return share.FileUUID.String()
	}
	return strconv.FormatInt(*share.FolderID, 10)
}
