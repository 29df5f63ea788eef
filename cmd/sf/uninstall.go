package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/setupforge/setupforge/internal/engine"
	"github.com/setupforge/setupforge/internal/logging"
	"github.com/setupforge/setupforge/internal/manifest"
	"github.com/setupforge/setupforge/internal/messages"
	"github.com/setupforge/setupforge/internal/record"
)

func newUninstallCmd() *cobra.Command {
	var appID string
	cmd := &cobra.Command{
		Use:   messages.UninstallUse,
		Short: messages.UninstallShort,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(appID) == "" {
				return fmt.Errorf("%w: "+messages.UninstallAppIDRequired, manifest.ErrValidation)
			}
			verbose, _ := cmd.Flags().GetBool("verbose")
			logger, err := logging.New(verbose)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			store, err := record.NewStore("")
			if err != nil {
				return err
			}
			eng, err := engine.New(engine.Options{Logger: logger, Store: store})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			res, uninstallErr := eng.Uninstall(ctx, appID)
			out := cmd.OutOrStdout()
			if res.Status == engine.StatusComplete {
				removed := 0
				for _, item := range res.Items {
					if item.Err == nil {
						removed++
					}
				}
				color.New(color.FgGreen).Fprintf(out, messages.UninstallDoneFmt, appID, removed)
			}
			for _, item := range res.Items {
				if item.Err != nil {
					fmt.Fprintf(out, messages.UninstallLeftoverFmt, item.Path, item.Err)
				}
			}
			return uninstallErr
		},
	}
	cmd.Flags().StringVar(&appID, "app-id", "", messages.UninstallFlagAppID)
	return cmd
}
