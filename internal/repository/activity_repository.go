package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"cloudsyncdrive/internal/domain"
)

type ActivityRepository struct {
	db *sqlx.DB
}

func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) Create(ctx context.Context, activity *domain.Activity) error {
	query := `
        INSERT INTO activities (user_id, action, entity_type, entity_id)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		activity.UserID,
		activity.Action,
		activity.EntityType,
		activity.EntityID,
	).Scan(&activity.ID, &activity.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create activity: %w", err)
	}

	return nil
}

func (r *ActivityRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]domain.Activity, error) {
	var activities []domain.Activity
	query := `SELECT * FROM activities WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	err := r.db.SelectContext(ctx, &activities, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}

	return activities, nil
}
