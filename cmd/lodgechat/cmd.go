package main

import (
	"github.com/spf13/cobra"
)

func newCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "lodgechat",
		Short:        "Messaging for tenants, owners and staff of a property",
		SilenceUsage: true,
	}

	cmd.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newSeedCmd(),
		newSchemaCmd(),
		newNotifyWorkerCmd(),
		newThreadCmd(),
	)

	return cmd
}
