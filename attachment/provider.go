package attachment

import (
	"log/slog"

	"github.com/jcooky/go-din"
	"gorm.io/gorm"

	"github.com/habiliai/lodgechat/config"
	"github.com/habiliai/lodgechat/errors"
	"github.com/habiliai/lodgechat/internal/db"
	"github.com/habiliai/lodgechat/internal/mylog"
)

func init() {
	din.RegisterT(func(c *din.Container) (*PebbleStorage, error) {
		logger := din.MustGet[*slog.Logger](c, mylog.Key)
		conf := din.MustGetT[*config.StorageConfig](c)

		storage, err := OpenPebbleStorage(conf.PebblePath, conf.PublicBaseUrl)
		if err != nil {
			return nil, err
		}
		go func() {
			<-c.Done()
			if err := storage.Close(); err != nil {
				logger.Warn("failed to close pebble storage", mylog.Err(err))
			}
		}()

		return storage, nil
	})

	din.RegisterT(func(c *din.Container) (Storage, error) {
		conf := din.MustGetT[*config.StorageConfig](c)

		switch conf.Backend {
		case config.StorageBackendSupabase:
			if conf.SupabaseUrl == "" || conf.SupabaseServiceRoleKey == "" {
				return nil, errors.New("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required for the supabase storage backend")
			}
			return NewSupabaseStorage(conf.SupabaseUrl, conf.SupabaseServiceRoleKey, conf.SupabaseBucket), nil
		case config.StorageBackendPebble, "":
			storage, err := din.GetT[*PebbleStorage](c)
			if err != nil {
				return nil, err
			}
			return storage, nil
		default:
			return nil, errors.Errorf("unknown storage backend %q", conf.Backend)
		}
	})

	din.RegisterT(func(c *din.Container) (Resolver, error) {
		logger, err := din.Get[*slog.Logger](c, mylog.Key)
		if err != nil {
			return nil, err
		}
		conf := din.MustGetT[*config.StorageConfig](c)

		maxBytes, err := conf.MaxAttachmentBytes()
		if err != nil {
			return nil, err
		}

		return NewResolver(logger, din.MustGet[*gorm.DB](c, db.Key), din.MustGetT[Storage](c), maxBytes), nil
	})
}
