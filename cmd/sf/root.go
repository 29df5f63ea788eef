package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/setupforge/setupforge/internal/messages"
	"github.com/setupforge/setupforge/internal/terminal"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           messages.RootUse,
		Short:         messages.RootShort,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if !terminal.ColorEnabled() {
				color.NoColor = true
			}
		},
	}
	cmd.PersistentFlags().BoolP("verbose", "v", false, messages.FlagVerbose)

	cmd.AddCommand(newInstallCmd())
	cmd.AddCommand(newUninstallCmd())
	cmd.AddCommand(newPlanCmd())
	cmd.AddCommand(newVerifyCmd())
	return cmd
}
