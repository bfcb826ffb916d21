package delivery

import (
	"github.com/jcooky/go-din"
	"github.com/redis/go-redis/v9"

	"github.com/habiliai/lodgechat/config"
	"github.com/habiliai/lodgechat/errors"
	"github.com/habiliai/lodgechat/internal/mylog"
)

func init() {
	din.RegisterT(func(c *din.Container) (*Dispatcher, error) {
		logger, err := din.Get[*mylog.Logger](c, mylog.Key)
		if err != nil {
			return nil, err
		}

		return NewDispatcher(logger), nil
	})

	din.RegisterT(func(c *din.Container) (Publisher, error) {
		logger := din.MustGet[*mylog.Logger](c, mylog.Key)
		dispatcher := din.MustGetT[*Dispatcher](c)
		conf := din.MustGetT[*config.RealtimeConfig](c)

		if !conf.RelayEnabled || conf.RedisUrl == "" {
			return dispatcher, nil
		}

		opt, err := redis.ParseURL(conf.RedisUrl)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse redis url")
		}
		client := redis.NewClient(opt)
		relay := NewRedisRelay(logger, client, dispatcher)

		go func() {
			if err := relay.Run(c); err != nil {
				logger.Error("realtime relay stopped", mylog.Err(err))
			}
		}()
		go func() {
			<-c.Done()
			if err := client.Close(); err != nil {
				logger.Warn("failed to close redis client", mylog.Err(err))
			}
		}()

		logger.Info("realtime relay enabled")
		return relay, nil
	})
}
