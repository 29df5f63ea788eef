package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	udiff "github.com/aymanbagabas/go-udiff"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/setupforge/setupforge/internal/engine"
	"github.com/setupforge/setupforge/internal/manifest"
	"github.com/setupforge/setupforge/internal/messages"
	"github.com/setupforge/setupforge/internal/plan"
	"github.com/setupforge/setupforge/internal/record"
)

const defaultDiffLines = 40

func newPlanCmd() *cobra.Command {
	var (
		manifestPath string
		lang         string
		dir          string
		tasksFlag    string
		diffLines    int
	)
	cmd := &cobra.Command{
		Use:   messages.PlanUse,
		Short: messages.PlanShort,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(manifestPath) == "" {
				return fmt.Errorf("%w: "+messages.InstallManifestRequired, manifest.ErrValidation)
			}
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
			eng, err := engine.New(engine.Options{Store: store})
			if err != nil {
				return err
			}
			p, err := eng.Plan(engine.InstallRequest{
				Manifest:    m,
				InstallRoot: dir,
				Language:    lang,
				Tasks:       tasks,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			loc := engine.SessionLocalizer(m, lang)
			color.New(color.Bold).Fprintf(out, messages.PlanHeaderFmt, loc.Resolve(m.Setup.Name), m.Setup.Version, len(p.Ops))
			for _, tk := range m.Tasks {
				if tk.Description != "" {
					fmt.Fprintf(out, messages.PlanTaskLineFmt, tk.Name, loc.Resolve(tk.Description))
				}
			}
			for _, op := range p.Ops {
				fmt.Fprintf(out, messages.PlanOpLineFmt, op.Kind, op.Path)
			}
			for _, op := range p.Ops {
				if op.Kind != plan.KindCopyFile {
					continue
				}
				printOverwriteDiff(cmd, op, diffLines)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&manifestPath, "manifest", "", messages.InstallFlagManifest)
	cmd.Flags().StringVar(&lang, "lang", "", messages.InstallFlagLang)
	cmd.Flags().StringVar(&dir, "dir", "", messages.InstallFlagDir)
	cmd.Flags().StringVar(&tasksFlag, "tasks", "", messages.InstallFlagTasks)
	cmd.Flags().IntVar(&diffLines, "diff-lines", defaultDiffLines, messages.PlanFlagDiffLines)
	return cmd
}

// printOverwriteDiff shows a unified diff for a copy that would replace an
// existing text destination. Binary content and fresh destinations are
// skipped.
func printOverwriteDiff(cmd *cobra.Command, op plan.Operation, maxLines int) {
	current, err := os.ReadFile(op.Path)
	if err != nil {
		return
	}
	next, err := os.ReadFile(op.Source)
	if err != nil {
		return
	}
	if bytes.Equal(current, next) || looksBinary(current) || looksBinary(next) {
		return
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, messages.PlanDiffHeaderFmt, op.RelPath)
	diff := udiff.Unified(op.RelPath+" (current)", op.RelPath+" (planned)", string(current), string(next))
	lines := strings.Split(strings.TrimRight(diff, "\n"), "\n")
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[:maxLines]
		fmt.Fprintln(out, strings.Join(lines, "\n"))
		fmt.Fprint(out, messages.PlanDiffTruncated)
		return
	}
	fmt.Fprintln(out, strings.Join(lines, "\n"))
}

func looksBinary(data []byte) bool {
	return bytes.IndexByte(data, 0) >= 0
}
