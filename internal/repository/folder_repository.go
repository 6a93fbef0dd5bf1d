package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"cloudsyncdrive/internal/domain"
)

type FolderRepository struct {
	db *sqlx.DB
}

func NewFolderRepository(db *sqlx.DB) *FolderRepository {
	return &FolderRepository{db: db}
}

func (r *FolderRepository) Create(ctx context.Context, folder *domain.Folder) error {
	query := `
        INSERT INTO folders (name, owner_id, parent_id, path)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		folder.Name,
		folder.OwnerID,
		folder.ParentID,
		folder.Path,
	).Scan(&folder.ID, &folder.CreatedAt, &folder.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create folder: %w", err)
	}

	return nil
}

// GetByIDAndOwner возвращает папку только её владельцу.
func (r *FolderRepository) GetByIDAndOwner(ctx context.Context, id, ownerID int64) (*domain.Folder, error) {
	var folder domain.Folder
	query := `SELECT * FROM folders WHERE id = $1 AND owner_id = $2`

	err := r.db.GetContext(ctx, &folder, query, id, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: folder %d", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get folder: %w", err)
	}

	return &folder, nil
}

func (r *FolderRepository) ListRoots(ctx context.Context, ownerID int64) ([]domain.Folder, error) {
	var folders []domain.Folder
	query := `SELECT * FROM folders WHERE owner_id = $1 AND parent_id IS NULL ORDER BY name`

	err := r.db.SelectContext(ctx, &folders, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list root folders: %w", err)
	}

	return folders, nil
}

func (r *FolderRepository) ListChildren(ctx context.Context, ownerID, parentID int64) ([]domain.Folder, error) {
	var folders []domain.Folder
	query := `SELECT * FROM folders WHERE owner_id = $1 AND parent_id = $2 ORDER BY name`

	err := r.db.SelectContext(ctx, &folders, query, ownerID, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subfolders: %w", err)
	}

	return folders, nil
}

func (r *FolderRepository) Rename(ctx context.Context, id int64, newName, newPath string) error {
	query := `
        UPDATE folders
        SET name = $1,
            path = $2,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, newName, newPath, id)
	if err != nil {
		return fmt.Errorf("failed to rename folder: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: folder %d", domain.ErrNotFound, id)
	}

	return nil
}

func (r *FolderRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM folders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
	}
	return nil
}

// CountFiles считает не удалённые файлы в папке.
func (r *FolderRepository) CountFiles(ctx context.Context, folderID int64) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM files WHERE folder_id = $1 AND state = 'ACTIVE'`

	err := r.db.GetContext(ctx, &count, query, folderID)
	if err != nil {
		return 0, fmt.Errorf("failed to count files in folder: %w", err)
	}

	return count, nil
}
