package domain

import "time"

type ActivityType string

const (
	ActivityUpload         ActivityType = "UPLOAD"
	ActivityDownload       ActivityType = "DOWNLOAD"
	ActivityDelete         ActivityType = "DELETE"
	ActivityRestoreVersion ActivityType = "RESTORE_VERSION"
	ActivityCreateFolder   ActivityType = "CREATE_FOLDER"
	ActivityRename         ActivityType = "RENAME"
	ActivityShare          ActivityType = "SHARE"
)

const (
	EntityTypeFile   = "FILE"
	EntityTypeFolder = "FOLDER"
)

type Activity struct {
	ID         int64        `json:"id" db:"id"`
	UserID     int64        `json:"user_id" db:"user_id"`
	Action     ActivityType `json:"action" db:"action"`
	EntityType string       `json:"entity_type" db:"entity_type"`
	EntityID   string       `json:"entity_id" db:"entity_id"`
	CreatedAt  time.Time    `json:"created_at" db:"created_at"`
}
