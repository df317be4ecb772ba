package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"nginline.dev/pkg/nginline/internal/domain"
)

// watchCmd represents the watch command.
var watchCmd = newWatchCmd()

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [paths...]",
		Short: "Re-inline documents when they or their referenced files change",
		Long:  watchLongDescription,
		RunE: func(cmd *cobra.Command, args []string) error {
			inline, err := inlineArgs(args)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return workflow.Watch(ctx, domain.WatchArgs{InlineArgs: inline})
		},
	}

	return cmd
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
