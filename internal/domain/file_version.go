package domain

import (
	"time"

	"github.com/google/uuid"
)

// FileVersion хранит снимок состояния файла до перезаписи.
// VersionNumber — номер, который файл имел до изменения, создавшего снимок.
type FileVersion struct {
	ID            int64     `json:"id" db:"id"`
	FileUUID      uuid.UUID `json:"file_uuid" db:"file_uuid"`
	VersionNumber int       `json:"version_number" db:"version_number"`
	StorageKey    string    `json:"-" db:"storage_key"`
	SizeBytes     int64     `json:"size_bytes" db:"size_bytes"`
	Checksum      string    `json:"checksum" db:"checksum"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
