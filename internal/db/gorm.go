package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/habiliai/lodgechat/config"
	"github.com/habiliai/lodgechat/internal/mylog"
	"github.com/jcooky/go-din"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Key = din.NewRandomName()
)

// OpenDB opens postgres for postgres:// urls and sqlite for sqlite:// urls or an empty url.
// An empty url yields a private in-memory database.
func OpenDB(databaseUrl string) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}

	switch {
	case strings.HasPrefix(databaseUrl, "postgres://"), strings.HasPrefix(databaseUrl, "postgresql://"):
		db, err := gorm.Open(postgres.Open(databaseUrl), gormConfig)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		return db, nil
	default:
		dsn := strings.TrimPrefix(databaseUrl, "sqlite://")
		if dsn == "" {
			dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
		}
		if strings.Contains(dsn, "?") {
			dsn += "&_foreign_keys=on&_busy_timeout=5000"
		} else {
			dsn += "?_foreign_keys=on&_busy_timeout=5000"
		}
		db, err := gorm.Open(sqlite.Open(dsn), gormConfig)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, errors.WithStack(err)
		}
		// sqlite has a single writer; one connection turns lock contention into queueing
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetConnMaxLifetime(time.Duration(0))
		return db, nil
	}
}

func CloseDB(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrapf(err, "failed to get db")
	}
	if err := sqlDB.Close(); err != nil {
		return errors.Wrapf(err, "failed to close db")
	}

	return nil
}

func init() {
	din.Register(Key, func(c *din.Container) (any, error) {
		logger, err := din.Get[*mylog.Logger](c, mylog.Key)
		if err != nil {
			return nil, err
		}

		cfg, err := din.GetT[*config.ServerConfig](c)
		if err != nil {
			return nil, err
		}

		logger.Info("initialize database")
		db, err := OpenDB(cfg.DatabaseUrl)
		if err != nil {
			return nil, err
		}

		if c.Env == din.EnvTest {
			if err := DropAll(c, db); err != nil {
				return nil, errors.Wrapf(err, "failed to drop database")
			}
		}
		if cfg.DatabaseAutoMigrate || c.Env == din.EnvTest {
			if err := AutoMigrate(c, db); err != nil {
				return nil, errors.Wrapf(err, "failed to migrate database")
			}
		}

		go func() {
			<-c.Done()
			if err := CloseDB(db); err != nil {
				logger.Warn("failed to close database", mylog.Err(err))
			}
			logger.Info("database closed")
		}()

		return db, nil
	})
}
