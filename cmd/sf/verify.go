package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/setupforge/setupforge/internal/manifest"
	"github.com/setupforge/setupforge/internal/messages"
	"github.com/setupforge/setupforge/internal/record"
	"github.com/setupforge/setupforge/internal/verify"
)

func newVerifyCmd() *cobra.Command {
	var appID string
	cmd := &cobra.Command{
		Use:   messages.VerifyUse,
		Short: messages.VerifyShort,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(appID) == "" {
				return fmt.Errorf("%w: "+messages.UninstallAppIDRequired, manifest.ErrValidation)
			}
			store, err := record.NewStore("")
			if err != nil {
				return err
			}
			report, err := verify.Run(store, appID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			problems := 0
			for _, res := range report.Results {
				switch res.Status {
				case verify.StatusFail:
					problems++
					color.New(color.FgRed).Fprintf(out, messages.VerifyIssueFmt, res.Status, res.Message)
					if res.Recommendation != "" {
						fmt.Fprintf(out, messages.VerifyIssueFmt, res.Status, res.Recommendation)
					}
				case verify.StatusWarn:
					color.New(color.FgYellow).Fprintf(out, messages.VerifyIssueFmt, res.Status, res.Message)
				}
			}
			if report.Clean() {
				color.New(color.FgGreen).Fprintf(out, messages.VerifyCleanFmt, appID, len(report.Results))
				return nil
			}
			color.New(color.FgRed).Fprintf(out, messages.VerifyDirtyFmt, appID, problems)
			return &SilentExitError{Code: exitFilesystem}
		},
	}
	cmd.Flags().StringVar(&appID, "app-id", "", messages.UninstallFlagAppID)
	return cmd
}
