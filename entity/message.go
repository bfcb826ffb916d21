package entity

import (
	"strings"
	"time"
)

// Message is immutable once appended. The JSON form is the realtime insert record.
type Message struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	ThreadID     uint      `gorm:"not null;index:idx_messages_thread_order,priority:1;uniqueIndex:idx_messages_thread_seq,priority:1" json:"thread_id"`
	Seq          uint64    `gorm:"not null;uniqueIndex:idx_messages_thread_seq,priority:2" json:"seq"`
	SenderID     string    `gorm:"not null" json:"sender_id"`
	Body         string    `gorm:"type:text" json:"body"`
	AttachmentID *uint     `json:"attachment_ref"`
	CreatedAt    time.Time `gorm:"not null;index:idx_messages_thread_order,priority:2" json:"created_at"`
}

func (m *Message) HasContent() bool {
	return strings.TrimSpace(m.Body) != "" || m.AttachmentID != nil
}

// Before reports whether m sorts strictly before o in thread order.
func (m *Message) Before(o *Message) bool {
	if m.CreatedAt.Equal(o.CreatedAt) {
		return m.ID < o.ID
	}
	return m.CreatedAt.Before(o.CreatedAt)
}
