package main

import (
	"os"

	"github.com/goccy/go-yaml"
	"github.com/jcooky/go-din"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/habiliai/lodgechat/directory"
	"github.com/habiliai/lodgechat/entity"
	"github.com/habiliai/lodgechat/errors"
	"github.com/habiliai/lodgechat/internal/db"
	"github.com/habiliai/lodgechat/internal/mylog"
)

type seedFile struct {
	Profiles []entity.Profile `yaml:"profiles"`
}

func loadSeedFile(filename string) ([]entity.Profile, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read seed file: %s", filename)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal seed file: %s", filename)
	}

	return seed.Profiles, nil
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <profiles.yaml>",
		Short: "Upsert user profiles into the directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := loadSeedFile(args[0])
			if err != nil {
				return err
			}

			c := din.NewContainer(cmd.Context(), din.EnvProd)
			defer c.Close()

			logger := din.MustGet[*mylog.Logger](c, mylog.Key)
			conn, err := din.Get[*gorm.DB](c, db.Key)
			if err != nil {
				return err
			}

			for i := range profiles {
				if err := directory.UpsertProfile(c, conn, &profiles[i]); err != nil {
					return errors.Wrapf(err, "profile %q", profiles[i].UserID)
				}
			}

			logger.Info("profiles seeded", "count", len(profiles))
			return nil
		},
	}
}
