package entity

import (
	"fmt"
	"slices"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ThreadKind string

const (
	ThreadKindDirect        ThreadKind = "direct"
	ThreadKindGroup         ThreadKind = "group"
	ThreadKindComplaintCase ThreadKind = "complaint_case"
)

func (k ThreadKind) Valid() bool {
	switch k {
	case ThreadKindDirect, ThreadKindGroup, ThreadKindComplaintCase:
		return true
	}
	return false
}

type Thread struct {
	gorm.Model

	Kind        ThreadKind `gorm:"index;not null"`
	Subject     *string
	CreatedBy   string `gorm:"not null"`
	Description string `gorm:"type:text"`

	// Complaint case only.
	Status     *CaseStatus
	RaiserID   string
	AssigneeID string

	// DirectKey is the normalized unordered pair of a direct thread. NULL for other kinds.
	DirectKey *string `gorm:"uniqueIndex"`

	LastSeq       uint64 `gorm:"not null;default:0"`
	LastMessageAt *time.Time

	Metadata datatypes.JSONType[map[string]any]

	Participants []Participant `gorm:"foreignKey:ThreadID"`
}

// DirectKeyOf normalizes an unordered user pair so that (a,b) and (b,a) collide.
// The first id is length-prefixed, so ids containing the separator cannot alias another pair.
func DirectKeyOf(userA, userB string) string {
	pair := []string{userA, userB}
	slices.Sort(pair)
	return fmt.Sprintf("%d:%s|%s", len(pair[0]), pair[0], pair[1])
}

// IsDirectBetween reports whether t is the direct thread of exactly userA and userB.
func (t *Thread) IsDirectBetween(userA, userB string) bool {
	if t.Kind != ThreadKindDirect || len(t.Participants) != 2 {
		return false
	}
	return t.HasParticipant(userA) && t.HasParticipant(userB)
}

func (t *Thread) HasParticipant(userID string) bool {
	return slices.ContainsFunc(t.Participants, func(p Participant) bool {
		return p.UserID == userID
	})
}

func (t *Thread) ParticipantIDs() []string {
	ids := make([]string, 0, len(t.Participants))
	for _, p := range t.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}
