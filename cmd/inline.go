package cmd

import (
	"github.com/spf13/cobra"
)

var inlineDryRunFlag bool

// inlineCmd represents the inline command.
var inlineCmd = newInlineCmd()

func newInlineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inline [paths...]",
		Short: "Inline referenced templates and styles",
		Long:  inlineLongDescription,
		RunE: func(cmd *cobra.Command, args []string) error {
			inline, err := inlineArgs(args)
			if err != nil {
				return err
			}

			inline.DryRun = inlineDryRunFlag

			_, err = workflow.Inline(cmd.Context(), inline)

			return err
		},
	}

	cmd.Flags().BoolVar(&inlineDryRunFlag, dryRunFlagName, false, "print a unified diff instead of writing documents")

	return cmd
}

func init() {
	rootCmd.AddCommand(inlineCmd)
}
