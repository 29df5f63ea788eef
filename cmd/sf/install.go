package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/setupforge/setupforge/internal/deploy"
	"github.com/setupforge/setupforge/internal/engine"
	"github.com/setupforge/setupforge/internal/logging"
	"github.com/setupforge/setupforge/internal/manifest"
	"github.com/setupforge/setupforge/internal/messages"
	"github.com/setupforge/setupforge/internal/record"
)

func newInstallCmd() *cobra.Command {
	var (
		manifestPath string
		lang         string
		dir          string
		tasksFlag    string
		modeFlag     string
		workers      int
	)
	cmd := &cobra.Command{
		Use:   messages.InstallUse,
		Short: messages.InstallShort,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(manifestPath) == "" {
				return fmt.Errorf("%w: "+messages.InstallManifestRequired, manifest.ErrValidation)
			}
			mode, err := deploy.ParseMode(modeFlag)
			if err != nil {
				return fmt.Errorf("%w: %v", manifest.ErrValidation, err)
			}
			if workers < 1 {
				return fmt.Errorf("%w: "+messages.InstallInvalidWorkersFmt, manifest.ErrValidation, workers)
			}

			verbose, _ := cmd.Flags().GetBool("verbose")
			logger, err := logging.New(verbose)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			m, err := manifest.Load(manifestPath)
			if err != nil {
				return err
			}
			env, err := sessionEnv(manifestPath)
			if err != nil {
				return fmt.Errorf("%w: %v", manifest.ErrValidation, err)
			}
			if dir == "" {
				dir = env[envInstallRoot]
			}
			if lang == "" {
				lang = env[envLang]
			}
			var tasks []string
			if cmd.Flags().Changed("tasks") {
				tasks = splitTasks(tasksFlag)
			}

			store, err := record.NewStore(env[envStateDir])
			if err != nil {
				return err
			}
			eng, err := engine.New(engine.Options{Logger: logger, Store: store})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			res, installErr := eng.Install(ctx, engine.InstallRequest{
				Manifest:    m,
				InstallRoot: dir,
				Language:    lang,
				Tasks:       tasks,
				Mode:        mode,
				Workers:     workers,
			})
			out := cmd.OutOrStdout()
			loc := engine.SessionLocalizer(m, lang)
			switch res.Status {
			case engine.StatusComplete:
				color.New(color.FgGreen).Fprintf(out, messages.InstallDoneFmt,
					loc.Resolve(m.Setup.Name), m.Setup.Version,
					len(res.Record.Files), len(res.Record.Shortcuts))
			case engine.StatusPartial:
				succeeded, failed := 0, 0
				for _, item := range res.Items {
					if item.Err != nil {
						failed++
					} else {
						succeeded++
					}
				}
				color.New(color.FgYellow).Fprintf(out, messages.InstallPartialFmt,
					loc.Resolve(m.Setup.Name), succeeded, failed)
				for _, item := range res.Items {
					if item.Err != nil {
						fmt.Fprintf(out, messages.InstallFailedItemFmt, item.Path, item.Err)
					}
				}
			}
			return installErr
		},
	}
	cmd.Flags().StringVar(&manifestPath, "manifest", "", messages.InstallFlagManifest)
	cmd.Flags().StringVar(&lang, "lang", "", messages.InstallFlagLang)
	cmd.Flags().StringVar(&dir, "dir", "", messages.InstallFlagDir)
	cmd.Flags().StringVar(&tasksFlag, "tasks", "", messages.InstallFlagTasks)
	cmd.Flags().StringVar(&modeFlag, "mode", string(deploy.ModeAtomic), messages.InstallFlagMode)
	cmd.Flags().IntVar(&workers, "workers", 1, messages.InstallFlagWorkers)
	return cmd
}

// splitTasks parses the --tasks value. An explicitly empty value means "no
// optional tasks", distinct from the flag being absent.
func splitTasks(raw string) []string {
	tasks := []string{}
	for _, part := range strings.Split(raw, ",") {
		if name := strings.TrimSpace(part); name != "" {
			tasks = append(tasks, name)
		}
	}
	return tasks
}
