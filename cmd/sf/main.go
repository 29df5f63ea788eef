package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/setupforge/setupforge/internal/deploy"
	"github.com/setupforge/setupforge/internal/engine"
	"github.com/setupforge/setupforge/internal/manifest"
	"github.com/setupforge/setupforge/internal/messages"
	"github.com/setupforge/setupforge/internal/record"
)

var executeFunc = execute

// Version, Commit, and BuildDate are overridden at build time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Exit codes reported by the CLI.
const (
	exitOK         = 0
	exitValidation = 1
	exitFilesystem = 2
	exitPartial    = 3
	exitCancelled  = 4
)

func main() {
	runMain(os.Args, os.Stdout, os.Stderr, os.Exit)
}

// SilentExitError reports an exit code without emitting error output.
type SilentExitError struct {
	Code int
}

func (e SilentExitError) Error() string {
	return fmt.Sprintf("exit %d", e.Code)
}

// execute runs the CLI command with the provided args and output writers.
func execute(args []string, stdout io.Writer, stderr io.Writer) error {
	cmd := newRootCmd()
	cmd.Version = versionString()
	cmd.SetVersionTemplate(messages.VersionTemplate)
	if len(args) > 1 {
		cmd.SetArgs(args[1:])
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.Execute()
}

// runMain executes the CLI and translates the returned error into an exit code.
func runMain(args []string, stdout io.Writer, stderr io.Writer, exit func(int)) {
	err := executeFunc(args, stdout, stderr)
	if err == nil {
		exit(exitOK)
		return
	}
	var silent *SilentExitError
	if errors.As(err, &silent) {
		exit(silent.Code)
		return
	}
	_, _ = fmt.Fprintln(stderr, err)
	exit(exitCodeFor(err))
}

// exitCodeFor classifies an error into the documented exit codes: descriptor
// and argument problems are validation failures, everything touching the
// filesystem is a filesystem failure, committed-with-failures sessions are
// partial, and cancellation is its own code.
func exitCodeFor(err error) int {
	if err == nil {
		return exitOK
	}
	if errors.Is(err, engine.ErrCancelled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return exitCancelled
	}
	var partial *deploy.PartialInstallError
	if errors.As(err, &partial) {
		return exitPartial
	}
	var perm *deploy.PermissionError
	if errors.As(err, &perm) {
		return exitFilesystem
	}
	if errors.Is(err, manifest.ErrValidation) ||
		errors.Is(err, manifest.ErrResourceMissing) ||
		errors.Is(err, manifest.ErrCyclicReference) ||
		errors.Is(err, record.ErrNotFound) {
		return exitValidation
	}
	return exitFilesystem
}

// versionString formats Version with optional commit and build date metadata.
func versionString() string {
	meta := []string{}
	if Commit != "" && Commit != "unknown" {
		meta = append(meta, fmt.Sprintf(messages.VersionCommitFmt, Commit))
	}
	if BuildDate != "" && BuildDate != "unknown" {
		meta = append(meta, fmt.Sprintf(messages.VersionBuildFmt, BuildDate))
	}
	if len(meta) == 0 {
		return Version
	}
	return fmt.Sprintf(messages.VersionFullFmt, Version, strings.Join(meta, ", "))
}
