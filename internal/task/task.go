// Package task resolves optional-task selections and launches post-install
// run actions.
package task

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/setupforge/setupforge/internal/manifest"
	"github.com/setupforge/setupforge/internal/messages"
)

// Selections is the resolved set of enabled task names.
type Selections map[string]bool

// Resolve computes the enabled tasks for an install. With no override the
// manifest's default flags apply; an override replaces the defaults entirely,
// so tasks absent from it are disabled even when selected by default.
func Resolve(m *manifest.Manifest, override []string) (Selections, error) {
	sel := make(Selections, len(m.Tasks))
	if override == nil {
		for _, t := range m.Tasks {
			sel[t.Name] = t.DefaultSelected
		}
		return sel, nil
	}
	for _, t := range m.Tasks {
		sel[t.Name] = false
	}
	for _, raw := range override {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		if _, ok := m.TaskByName(name); !ok {
			return nil, fmt.Errorf("%w: "+messages.EngineUnknownTaskFlagFmt, manifest.ErrValidation, name)
		}
		sel[name] = true
	}
	return sel, nil
}

// Enabled reports whether a file or icon gated on taskName applies. An empty
// gate always applies.
func (s Selections) Enabled(taskName string) bool {
	if taskName == "" {
		return true
	}
	return s[taskName]
}

// Names returns the enabled task names in sorted order, for the record.
func (s Selections) Names() []string {
	names := make([]string, 0, len(s))
	for name, on := range s {
		if on {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Runner launches run actions after a fully successful install.
type Runner struct {
	logger *zap.Logger
	// start replaces process launch in tests.
	start func(ctx context.Context, target string, wait manifest.WaitMode) error
}

func NewRunner(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{logger: logger}
	r.start = r.launch
	return r
}

// RunAll executes the actions in declaration order. A blocking action's
// non-zero exit is advisory: it is logged and the remaining actions still run.
// A failure to start any action is returned.
func (r *Runner) RunAll(ctx context.Context, actions []manifest.RunAction) error {
	for _, action := range actions {
		if err := ctx.Err(); err != nil {
			return err
		}
		wait := action.Wait
		if wait == "" {
			wait = manifest.WaitBlocking
		}
		r.logger.Info("running post-install action",
			zap.String("target", action.Target),
			zap.String("wait", string(wait)))
		if err := r.start(ctx, action.Target, wait); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) launch(ctx context.Context, target string, wait manifest.WaitMode) error {
	if wait == manifest.WaitNone {
		cmd := exec.Command(target)
		if err := cmd.Start(); err != nil {
			return fmt.Errorf(messages.TaskStartFailedFmt, target, err)
		}
		return cmd.Process.Release()
	}
	cmd := exec.CommandContext(ctx, target)
	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			r.logger.Warn(fmt.Sprintf(messages.TaskRunFailedFmt, target, err))
			return nil
		}
		return fmt.Errorf(messages.TaskStartFailedFmt, target, err)
	}
	return nil
}
