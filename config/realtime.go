package config

import (
	"github.com/jcooky/go-din"
)

type RealtimeConfig struct {
	// RedisUrl enables the cross-instance relay and the notification queue when set.
	RedisUrl         string `env:"REDIS_URL"`
	RelayEnabled     bool   `env:"REALTIME_RELAY_ENABLED"`
	SubscriberBuffer int    `env:"REALTIME_SUBSCRIBER_BUFFER"`
	NotifyQueue      string `env:"NOTIFY_QUEUE"`
}

func NewRealtimeConfig() *RealtimeConfig {
	return &RealtimeConfig{
		SubscriberBuffer: 64,
		NotifyQueue:      "notifications",
	}
}

func init() {
	din.RegisterT(func(c *din.Container) (*RealtimeConfig, error) {
		conf := NewRealtimeConfig()
		if err := resolveConfig(conf, c.Env == din.EnvTest); err != nil {
			return nil, err
		}
		if c.Env == din.EnvTest {
			conf.RedisUrl = ""
			conf.RelayEnabled = false
		}
		return conf, nil
	})
}
