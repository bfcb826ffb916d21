package main

import (
	"github.com/jcooky/go-din"
	"github.com/spf13/cobra"

	"github.com/habiliai/lodgechat/config"
	"github.com/habiliai/lodgechat/errors"
	"github.com/habiliai/lodgechat/internal/mylog"
	"github.com/habiliai/lodgechat/notify"
)

func newNotifyWorkerCmd() *cobra.Command {
	flags := &struct {
		concurrency int
	}{}
	cmd := &cobra.Command{
		Use:   "notify-worker",
		Short: "Consume new message notifications from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := din.NewContainer(cmd.Context(), din.EnvProd)
			defer c.Close()

			conf := din.MustGetT[*config.RealtimeConfig](c)
			logger := din.MustGet[*mylog.Logger](c, mylog.Key)
			if conf.RedisUrl == "" {
				return errors.New("REDIS_URL is required for the notification worker")
			}

			return notify.RunWorker(c, logger, conf.RedisUrl, conf.NotifyQueue, flags.concurrency, notify.LogSink(logger))
		},
	}

	cmd.Flags().IntVar(&flags.concurrency, "concurrency", 4, "Number of notifications handled at once")

	return cmd
}
