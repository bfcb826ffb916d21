package directory

import (
	"context"

	"github.com/jcooky/go-din"
	"gorm.io/gorm"

	"github.com/habiliai/lodgechat/entity"
	"github.com/habiliai/lodgechat/errors"
	"github.com/habiliai/lodgechat/internal/db"
)

// Identity looks up profiles of many users at once. Users it does not know are
// simply absent from the result.
type Identity interface {
	LookupProfiles(ctx context.Context, userIds []string) (map[string]entity.Profile, error)
}

type dbIdentity struct {
	db *gorm.DB
}

var (
	_ Identity = (*dbIdentity)(nil)
)

func NewDBIdentity(db *gorm.DB) Identity {
	return &dbIdentity{db: db}
}

func (i *dbIdentity) LookupProfiles(ctx context.Context, userIds []string) (map[string]entity.Profile, error) {
	profiles := make(map[string]entity.Profile, len(userIds))
	if len(userIds) == 0 {
		return profiles, nil
	}

	_, tx := db.OpenSession(ctx, i.db)

	var rows []entity.Profile
	if err := tx.Where("user_id IN ?", userIds).Find(&rows).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to find profiles")
	}
	for _, row := range rows {
		profiles[row.UserID] = row
	}

	return profiles, nil
}

func UpsertProfile(ctx context.Context, gormDB *gorm.DB, profile *entity.Profile) error {
	if profile.UserID == "" {
		return errors.Wrapf(errors.ErrInvalidParams, "profile needs a user id")
	}
	switch profile.Role {
	case entity.RoleTenant, entity.RoleOwner, entity.RoleStaff, entity.RoleAdmin:
	default:
		return errors.Wrapf(errors.ErrInvalidParams, "unknown role %q for %s", profile.Role, profile.UserID)
	}

	_, tx := db.OpenSession(ctx, gormDB)
	return profile.Upsert(tx)
}

func init() {
	din.RegisterT(func(c *din.Container) (Identity, error) {
		return NewDBIdentity(din.MustGet[*gorm.DB](c, db.Key)), nil
	})
}
