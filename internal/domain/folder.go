package domain

import "time"

type Folder struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	OwnerID   int64     `json:"owner_id" db:"owner_id"`
	ParentID  *int64    `json:"parent_id,omitempty" db:"parent_id"`
	Path      string    `json:"path" db:"path"` // материализованный путь вида /docs/reports
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// FolderNode — узел дерева папок с подсчётом файлов.
type FolderNode struct {
	ID         *int64       `json:"id"`
	Name       string       `json:"name"`
	Path       string       `json:"path"`
	ParentID   *int64       `json:"parent_id,omitempty"`
	FilesCount int          `json:"files_count"`
	Subfolders []FolderNode `json:"subfolders"`
}
