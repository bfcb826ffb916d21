package entity

import (
	"time"
)

type ReadMarker struct {
	ThreadID     uint      `gorm:"primarykey"`
	UserID       string    `gorm:"primarykey;index"`
	LastOpenedAt time.Time `gorm:"not null"`
}
