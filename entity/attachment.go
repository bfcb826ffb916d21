package entity

import (
	"time"
)

type Attachment struct {
	ID          uint   `gorm:"primarykey"`
	OwnerUserID string `gorm:"not null;index"`
	StorageKey  string `gorm:"not null;uniqueIndex"`
	DisplayName string
	ContentType string
	ByteSize    int64
	PublicRef   string
	CreatedAt   time.Time
}
