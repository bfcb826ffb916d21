package entity

import (
	"time"

	"github.com/habiliai/lodgechat/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Role string

const (
	RoleTenant Role = "tenant"
	RoleOwner  Role = "owner"
	RoleStaff  Role = "staff"
	RoleAdmin  Role = "admin"
)

// Profile is the identity row for a user of any role.
type Profile struct {
	UserID      string    `gorm:"primarykey" json:"user_id" yaml:"user_id"`
	Role        Role      `gorm:"not null" json:"role" yaml:"role"`
	DisplayName string    `json:"display_name" yaml:"display_name"`
	UpdatedAt   time.Time `json:"-" yaml:"-"`
}

func (p *Profile) Upsert(db *gorm.DB) error {
	return errors.Wrapf(db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "display_name", "updated_at"}),
	}).Create(p).Error, "failed to upsert profile %s", p.UserID)
}
