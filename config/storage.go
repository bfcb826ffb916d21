package config

import (
	"github.com/dustin/go-humanize"
	"github.com/jcooky/go-din"

	"github.com/habiliai/lodgechat/errors"
)

type StorageBackend string

const (
	StorageBackendPebble   StorageBackend = "pebble"
	StorageBackendSupabase StorageBackend = "supabase"
)

type StorageConfig struct {
	Backend StorageBackend `env:"STORAGE_BACKEND"`

	// PebblePath is the directory of the embedded blob store. Empty means in-memory.
	PebblePath string `env:"STORAGE_PEBBLE_PATH"`
	// PublicBaseUrl prefixes the /files/{key} urls served for the pebble backend.
	PublicBaseUrl string `env:"STORAGE_PUBLIC_BASE_URL"`

	SupabaseUrl            string `env:"SUPABASE_URL"`
	SupabaseServiceRoleKey string `env:"SUPABASE_SERVICE_ROLE_KEY"`
	SupabaseBucket         string `env:"SUPABASE_BUCKET"`

	// MaxAttachmentSize accepts humanized sizes such as "10MiB" or "512kB".
	MaxAttachmentSize string `env:"MAX_ATTACHMENT_SIZE"`
}

func NewStorageConfig() *StorageConfig {
	return &StorageConfig{
		Backend:           StorageBackendPebble,
		PebblePath:        "",
		PublicBaseUrl:     "http://localhost:9080",
		SupabaseBucket:    "attachments",
		MaxAttachmentSize: "10MiB",
	}
}

func (c *StorageConfig) MaxAttachmentBytes() (int64, error) {
	n, err := humanize.ParseBytes(c.MaxAttachmentSize)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid MAX_ATTACHMENT_SIZE %q", c.MaxAttachmentSize)
	}
	return int64(n), nil
}

func init() {
	din.RegisterT(func(c *din.Container) (*StorageConfig, error) {
		conf := NewStorageConfig()
		if err := resolveConfig(conf, c.Env == din.EnvTest); err != nil {
			return nil, err
		}
		if c.Env == din.EnvTest {
			conf.Backend = StorageBackendPebble
			conf.PebblePath = ""
		}
		return conf, nil
	})
}
