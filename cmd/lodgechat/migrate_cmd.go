package main

import (
	"github.com/jcooky/go-din"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/habiliai/lodgechat/internal/db"
	"github.com/habiliai/lodgechat/internal/mylog"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := din.NewContainer(cmd.Context(), din.EnvProd)
			defer c.Close()

			logger := din.MustGet[*mylog.Logger](c, mylog.Key)
			conn, err := din.Get[*gorm.DB](c, db.Key)
			if err != nil {
				return err
			}

			if err := db.AutoMigrate(c, conn); err != nil {
				return err
			}

			logger.Info("database migrated")
			return nil
		},
	}
}
