package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"cloudsyncdrive/internal/domain"
)

type ShareRepository struct {
	db *sqlx.DB
}

func NewShareRepository(db *sqlx.DB) *ShareRepository {
	return &ShareRepository{db: db}
}

func (r *ShareRepository) Create(ctx context.Context, share *domain.Share) error {
	query := `
        INSERT INTO shares (file_uuid, folder_id, shared_by_id, shared_with_id, permission, share_token, expires_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		share.FileUUID,
		share.FolderID,
		share.SharedByID,
		share.SharedWithID,
		share.Permission,
		share.ShareToken,
		share.ExpiresAt,
	).Scan(&share.ID, &share.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create share: %w", err)
	}

	return nil
}

func (r *ShareRepository) GetByID(ctx context.Context, id int64) (*domain.Share, error) {
	var share domain.Share
	query := `SELECT * FROM shares WHERE id = $1`

	err := r.db.GetContext(ctx, &share, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: share %d", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get share: %w", err)
	}

	return &share, nil
}

func (r *ShareRepository) GetByToken(ctx context.Context, token string) (*domain.Share, error) {
	var share domain.Share
	query := `SELECT * FROM shares WHERE share_token = $1`

	err := r.db.GetContext(ctx, &share, query, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: share token", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get share by token: %w", err)
	}

	return &share, nil
}

func (r *ShareRepository) ListBySharedBy(ctx context.Context, userID int64) ([]domain.Share, error) {
	var shares []domain.Share
	query := `SELECT * FROM shares WHERE shared_by_id = $1 ORDER BY created_at DESC`

	err := r.db.SelectContext(ctx, &shares, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shares: %w", err)
	}

	return shares, nil
}

func (r *ShareRepository) ListBySharedWith(ctx context.Context, userID int64) ([]domain.Share, error) {
	var shares []domain.Share
	query := `SELECT * FROM shares WHERE shared_with_id = $1 ORDER BY created_at DESC`

	err := r.db.SelectContext(ctx, &shares, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shares: %w", err)
	}

	return shares, nil
}

func (r *ShareRepository) UpdateExpiry(ctx context.Context, id int64, expiresAt *time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE shares SET expires_at = $1 WHERE id = $2`, expiresAt, id)
	if err != nil {
		return fmt.Errorf("failed to update share expiry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: share %d", domain.ErrNotFound, id)
	}

	return nil
}

func (r *ShareRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM shares WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete share: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: share %d", domain.ErrNotFound, id)
	}

	return nil
}
