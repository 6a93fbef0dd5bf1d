package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"cloudsyncdrive/internal/domain"
)

type FileRepository struct {
	db *sqlx.DB
}

func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) Create(ctx context.Context, file *domain.File) error {
	query := `
        INSERT INTO files (uuid, name, mime_type, size_bytes, folder_id, owner_id, storage_key, checksum, version_number, state)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		file.UUID,
		file.Name,
		file.MIMEType,
		file.SizeBytes,
		file.FolderID,
		file.OwnerID,
		file.StorageKey,
		file.Checksum,
		file.VersionNumber,
		file.State,
	).Scan(&file.CreatedAt, &file.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert file: %w", err)
	}

	return nil
}

// GetByUUID возвращает не удалённый файл.
func (r *FileRepository) GetByUUID(ctx context.Context, fileUUID uuid.UUID) (*domain.File, error) {
	var file domain.File
	query := `SELECT * FROM files WHERE uuid = $1 AND state = 'ACTIVE'`

	err := r.db.GetContext(ctx, &file, query, fileUUID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: file %s", domain.ErrNotFound, fileUUID)
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}

	return &file, nil
}

// FindByChecksum ищет любой не удалённый файл с таким содержимым
// (для дедупликации владелец не важен). Возвращает nil, если совпадений нет.
func (r *FileRepository) FindByChecksum(ctx context.Context, checksum string) (*domain.File, error) {
	var file domain.File
	query := `
        SELECT * FROM files
        WHERE checksum = $1 AND state = 'ACTIVE'
        ORDER BY created_at
        LIMIT 1`

	err := r.db.GetContext(ctx, &file, query, checksum)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find file by checksum: %w", err)
	}

	return &file, nil
}

func (r *FileRepository) ListByOwner(ctx context.Context, ownerID int64) ([]domain.File, error) {
	var files []domain.File
	query := `SELECT * FROM files WHERE owner_id = $1 AND state = 'ACTIVE' ORDER BY name`

	err := r.db.SelectContext(ctx, &files, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	return files, nil
}

func (r *FileRepository) ListByFolder(ctx context.Context, ownerID, folderID int64) ([]domain.File, error) {
	var files []domain.File
	query := `
        SELECT * FROM files
        WHERE owner_id = $1 AND folder_id = $2 AND state = 'ACTIVE'
        ORDER BY name`

	err := r.db.SelectContext(ctx, &files, query, ownerID, folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files in folder: %w", err)
	}

	return files, nil
}

func (r *FileRepository) SearchByName(ctx context.Context, ownerID int64, name string) ([]domain.File, error) {
	var files []domain.File
	query := `
        SELECT * FROM files
        WHERE owner_id = $1 AND name ILIKE '%' || $2 || '%' AND state = 'ACTIVE'
        ORDER BY name`

	err := r.db.SelectContext(ctx, &files, query, ownerID, name)
	if err != nil {
		return nil, fmt.Errorf("failed to search files: %w", err)
	}

	return files, nil
}

func (r *FileRepository) ListByMIMEType(ctx context.Context, ownerID int64, mimeType string) ([]domain.File, error) {
	var files []domain.File
	query := `
        SELECT * FROM files
        WHERE owner_id = $1 AND mime_type = $2 AND state = 'ACTIVE'
        ORDER BY name`

	err := r.db.SelectContext(ctx, &files, query, ownerID, mimeType)
	if err != nil {
		return nil, fmt.Errorf("failed to list files by type: %w", err)
	}

	return files, nil
}

func (r *FileRepository) ListRecent(ctx context.Context, ownerID int64, limit int) ([]domain.File, error) {
	var files []domain.File
	query := `
        SELECT * FROM files
        WHERE owner_id = $1 AND state = 'ACTIVE'
        ORDER BY created_at DESC
        LIMIT $2`

	err := r.db.SelectContext(ctx, &files, query, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent files: %w", err)
	}

	return files, nil
}

// ApplyUpdate атомарно фиксирует перезапись файла: снимок прежнего состояния
// и новое состояние строки files пишутся в одной транзакции. Проверка
// version_number защищает от параллельной перезаписи той же строки.
func (r *FileRepository) ApplyUpdate(ctx context.Context, file *domain.File, snapshot *domain.FileVersion) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	versionQuery := `
        INSERT INTO file_versions (file_uuid, version_number, storage_key, size_bytes, checksum)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at`

	err = tx.QueryRowContext(
		ctx,
		versionQuery,
		snapshot.FileUUID,
		snapshot.VersionNumber,
		snapshot.StorageKey,
		snapshot.SizeBytes,
		snapshot.Checksum,
	).Scan(&snapshot.ID, &snapshot.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create file version: %w", err)
	}

	updateQuery := `
        UPDATE files
        SET storage_key = $1,
            size_bytes = $2,
            checksum = $3,
            version_number = $4,
            updated_at = CURRENT_TIMESTAMP
        WHERE uuid = $5 AND version_number = $6 AND state = 'ACTIVE'`

	result, err := tx.ExecContext(
		ctx,
		updateQuery,
		file.StorageKey,
		file.SizeBytes,
		file.Checksum,
		file.VersionNumber,
		file.UUID,
		snapshot.VersionNumber,
	)
	if err != nil {
		return fmt.Errorf("failed to update file: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: file %s was modified concurrently", domain.ErrConflict, file.UUID)
	}

	return tx.Commit()
}

func (r *FileRepository) SoftDelete(ctx context.Context, fileUUID uuid.UUID, deletedAt time.Time) error {
	query := `
        UPDATE files
        SET state = 'DELETED',
            deleted_at = $1,
            updated_at = CURRENT_TIMESTAMP
        WHERE uuid = $2 AND state = 'ACTIVE'`

	result, err := r.db.ExecContext(ctx, query, deletedAt, fileUUID)
	if err != nil {
		return fmt.Errorf("failed to soft delete file: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: file %s", domain.ErrNotFound, fileUUID)
	}

	return nil
}

// GetVersions возвращает снимки файла, новые первыми.
func (r *FileRepository) GetVersions(ctx context.Context, fileUUID uuid.UUID) ([]domain.FileVersion, error) {
	var versions []domain.FileVersion
	query := `
        SELECT * FROM file_versions
        WHERE file_uuid = $1
        ORDER BY version_number DESC`

	err := r.db.SelectContext(ctx, &versions, query, fileUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to get file versions: %w", err)
	}

	return versions, nil
}

func (r *FileRepository) GetVersion(ctx context.Context, fileUUID uuid.UUID, versionNumber int) (*domain.FileVersion, error) {
	var version domain.FileVersion
	query := `SELECT * FROM file_versions WHERE file_uuid = $1 AND version_number = $2`

	err := r.db.GetContext(ctx, &version, query, fileUUID, versionNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: version %d of file %s", domain.ErrNotFound, versionNumber, fileUUID)
		}
		return nil, fmt.Errorf("failed to get file version: %w", err)
	}

	return &version, nil
}

func (r *FileRepository) DeleteVersion(ctx context.Context, versionID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM file_versions WHERE id = $1`, versionID)
	if err != nil {
		return fmt.Errorf("failed to delete file version: %w", err)
	}
	return nil
}
