package entity

import (
	"time"
)

type ParticipantRole string

const (
	ParticipantRoleMember   ParticipantRole = "member"
	ParticipantRoleRaiser   ParticipantRole = "raiser"
	ParticipantRoleAssignee ParticipantRole = "assignee"
)

type Participant struct {
	ThreadID uint            `gorm:"primarykey"`
	UserID   string          `gorm:"primarykey;index"`
	Role     ParticipantRole `gorm:"not null;default:member"`
	JoinedAt time.Time       `gorm:"autoCreateTime"`
}
