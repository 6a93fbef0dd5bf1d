package domain

import (
	"io"
	"time"

	"github.com/google/uuid"
)

// FileState — явное состояние жизненного цикла файла.
type FileState string

const (
	FileStateActive  FileState = "ACTIVE"
	FileStateDeleted FileState = "DELETED"
)

type File struct {
	UUID          uuid.UUID  `json:"uuid" db:"uuid"`
	Name          string     `json:"name" db:"name"`
	MIMEType      string     `json:"mime_type" db:"mime_type"`
	SizeBytes     int64      `json:"size_bytes" db:"size_bytes"`
	FolderID      *int64     `json:"folder_id,omitempty" db:"folder_id"`
	OwnerID       int64      `json:"owner_id" db:"owner_id"`
	StorageKey    string     `json:"-" db:"storage_key"`
	Checksum      string     `json:"checksum" db:"checksum"`
	VersionNumber int        `json:"version_number" db:"version_number"`
	State         FileState  `json:"state" db:"state"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// Deleted сообщает, помечен ли файл как удалённый (soft delete).
func (f *File) Deleted() bool {
	return f.State == FileStateDeleted
}

// FileUpload описывает входящий контент для загрузки или обновления файла.
type FileUpload struct {
	Name     string
	MIMEType string
	Size     int64
	FolderID *int64
	OwnerID  int64
	Content  io.Reader
}

// FileDownload связывает метаданные файла с потоком его содержимого.
type FileDownload struct {
	File    *File
	Content io.ReadCloser
}
