package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"cloudsyncdrive/internal/domain"
)

// Интерфейсы персистентности объявлены на стороне потребителя;
// реализации живут в пакете repository.

type FileStore interface {
	Create(ctx context.Context, file *domain.File) error
	GetByUUID(ctx context.Context, fileUUID uuid.UUID) (*domain.File, error)
	FindByChecksum(ctx context.Context, checksum string) (*domain.File, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]domain.File, error)
	ListByFolder(ctx context.Context, ownerID, folderID int64) ([]domain.File, error)
	SearchByName(ctx context.Context, ownerID int64, name string) ([]domain.File, error)
	ListByMIMEType(ctx context.Context, ownerID int64, mimeType string) ([]domain.File, error)
	ListRecent(ctx context.Context, ownerID int64, limit int) ([]domain.File, error)
	ApplyUpdate(ctx context.Context, file *domain.File, snapshot *domain.FileVersion) error
	SoftDelete(ctx context.Context, fileUUID uuid.UUID, deletedAt time.Time) error
	GetVersions(ctx context.Context, fileUUID uuid.UUID) ([]domain.FileVersion, error)
	GetVersion(ctx context.Context, fileUUID uuid.UUID, versionNumber int) (*domain.FileVersion, error)
	DeleteVersion(ctx context.Context, versionID int64) error
}

type UserStore interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateLastLogin(ctx context.Context, id int64, loginAt time.Time) error
	ChargeStorage(ctx context.Context, ownerID int64, deltaBytes int64) error
	UpdateStorageLimit(ctx context.Context, ownerID int64, newLimit int64) error
}

type FolderStore interface {
	Create(ctx context.Context, folder *domain.Folder) error
	GetByIDAndOwner(ctx context.Context, id, ownerID int64) (*domain.Folder, error)
	ListRoots(ctx context.Context, ownerID int64) ([]domain.Folder, error)
	ListChildren(ctx context.Context, ownerID, parentID int64) ([]domain.Folder, error)
	Rename(ctx context.Context, id int64, newName, newPath string) error
	Delete(ctx context.Context, id int64) error
	CountFiles(ctx context.Context, folderID int64) (int, error)
}

type ShareStore interface {
	Create(ctx context.Context, share *domain.Share) error
	GetByID(ctx context.Context, id int64) (*domain.Share, error)
	GetByToken(ctx context.Context, token string) (*domain.Share, error)
	ListBySharedBy(ctx context.Context, userID int64) ([]domain.Share, error)
	ListBySharedWith(ctx context.Context, userID int64) ([]domain.Share, error)
	UpdateExpiry(ctx context.Context, id int64, expiresAt *time.Time) error
	Delete(ctx context.Context, id int64) error
}

type ActivityStore interface {
	Create(ctx context.Context, activity *domain.Activity) error
	ListByUser(ctx context.Context, userID int64, limit int) ([]domain.Activity, error)
}
