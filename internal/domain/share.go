package domain

import (
	"time"

	"github.com/google/uuid"
)

type SharePermission string

const (
	PermissionView SharePermission = "VIEW"
	PermissionEdit SharePermission = "EDIT"
)

type Share struct {
	ID           int64           `json:"id" db:"id"`
	FileUUID     *uuid.UUID      `json:"file_uuid,omitempty" db:"file_uuid"`
	FolderID     *int64          `json:"folder_id,omitempty" db:"folder_id"`
	SharedByID   int64           `json:"shared_by_id" db:"shared_by_id"`
	SharedWithID *int64          `json:"shared_with_id,omitempty" db:"shared_with_id"` // nil для публичной ссылки
	Permission   SharePermission `json:"permission" db:"permission"`
	ShareToken   *string         `json:"share_token,omitempty" db:"share_token"`
	ExpiresAt    *time.Time      `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// Expired сообщает, истёк ли срок действия ссылки.
func (s *Share) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && s.ExpiresAt.Before(now)
}
