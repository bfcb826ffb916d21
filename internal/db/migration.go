package db

import (
	"context"

	"github.com/habiliai/lodgechat/entity"
	"github.com/habiliai/lodgechat/errors"
	"gorm.io/gorm"
)

func AutoMigrate(ctx context.Context, db *gorm.DB) error {
	_, tx := OpenSession(ctx, db)

	return errors.WithStack(tx.AutoMigrate(
		&entity.Profile{},
		&entity.Thread{},
		&entity.Participant{},
		&entity.Attachment{},
		&entity.Message{},
		&entity.ReadMarker{},
	))
}

func DropAll(ctx context.Context, db *gorm.DB) error {
	_, tx := OpenSession(ctx, db)
	return errors.WithStack(tx.Migrator().DropTable(
		&entity.ReadMarker{},
		&entity.Message{},
		&entity.Attachment{},
		&entity.Participant{},
		&entity.Thread{},
		&entity.Profile{},
	))
}
