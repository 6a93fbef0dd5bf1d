package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"cloudsyncdrive/internal/domain"
)

type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
        INSERT INTO users (email, password_hash, full_name, storage_used, storage_limit)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		user.Email,
		user.PasswordHash,
		user.FullName,
		user.StorageUsed,
		user.StorageLimit,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("%w: email %s", domain.ErrConflict, user.Email)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	var user domain.User
	query := `SELECT * FROM users WHERE id = $1`

	err := r.db.GetContext(ctx, &user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %d", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	query := `SELECT * FROM users WHERE email = $1`

	err := r.db.GetContext(ctx, &user, query, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, email)
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return &user, nil
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, id int64, loginAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_login_at = $1 WHERE id = $2`,
		loginAt, id)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// ChargeStorage атомарно изменяет счётчик занятого места. Проверка лимита и
// применение дельты выполняются одним UPDATE: блокировка строки сериализует
// параллельные загрузки одного владельца, и две из них не могут пройти
// проверку по устаревшему значению. Отрицательная дельта проходит всегда.
func (r *UserRepository) ChargeStorage(ctx context.Context, ownerID int64, deltaBytes int64) error {
	query := `
        UPDATE users
        SET storage_used = GREATEST(0, storage_used + $1)
        WHERE id = $2 AND ($1 <= 0 OR storage_used + $1 <= storage_limit)`

	result, err := r.db.ExecContext(ctx, query, deltaBytes, ownerID)
	if err != nil {
		return fmt.Errorf("failed to charge storage: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		// Различаем отсутствующего пользователя и превышение квоты
		if _, err := r.GetByID(ctx, ownerID); err != nil {
			return err
		}
		return fmt.Errorf("%w: owner %d", domain.ErrQuotaExceeded, ownerID)
	}

	return nil
}

func (r *UserRepository) UpdateStorageLimit(ctx context.Context, ownerID int64, newLimit int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET storage_limit = $1 WHERE id = $2`,
		newLimit, ownerID)
	if err != nil {
		return fmt.Errorf("failed to update storage limit: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: user %d", domain.ErrNotFound, ownerID)
	}

	return nil
}
