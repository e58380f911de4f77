package main

import (
	"github.com/spf13/cobra"

	"fanboxed/internal/daemon"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:   "fanboxed",
		Short: "Download creator posts as zip archives",
		Long: "fanboxed saves posts from the content API as zip archives containing the\n" +
			"cover, the description, and every page. Run downloads directly with\n" +
			"`fanboxed download`, or queue them on a background daemon.",
		Version:       daemon.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(
		newDownloadCommand(ctx),
		newShowCommand(ctx),
		newDaemonCommand(ctx),
		newQueueCommand(ctx),
		newHistoryCommand(ctx),
		newConfigCommand(ctx),
		newTestNotifyCommand(ctx),
	)

	return rootCmd
}
