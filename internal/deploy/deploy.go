package deploy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"github.com/setupforge/setupforge/internal/messages"
	"github.com/setupforge/setupforge/internal/plan"
)

// Mode selects the failure policy for a run.
type Mode string

const (
	// ModeAtomic rolls back every operation completed in this run on the
	// first failure, restoring pre-run state.
	ModeAtomic Mode = "atomic"
	// ModeBestEffort continues past per-file failures and reports them
	// together at the end.
	ModeBestEffort Mode = "best-effort"
)

// ParseMode validates a caller-supplied mode string.
func ParseMode(raw string) (Mode, error) {
	switch Mode(raw) {
	case ModeAtomic:
		return ModeAtomic, nil
	case ModeBestEffort:
		return ModeBestEffort, nil
	default:
		return "", fmt.Errorf(messages.InstallInvalidModeFmt, raw)
	}
}

// Options controls plan execution.
type Options struct {
	Mode Mode
	// Workers >1 enables parallel copies across disjoint destination
	// directories in best-effort mode. Atomic mode always runs
	// sequentially so the rollback journal reflects a single order.
	Workers int
	System  System
	Logger  *zap.Logger
}

// OpResult is the outcome of one executed operation.
type OpResult struct {
	Op plan.Operation
	// Err is nil on success.
	Err error
	// Created reports whether a mkdir actually created the directory, so
	// only engine-created directories enter the install record.
	Created bool
	// Hash is the sha256 of copied content, recorded for verification.
	Hash string
}

// Result collects the outcomes of a run in plan order.
type Result struct {
	Outcomes  []OpResult
	Cancelled bool
	// RolledBack reports that atomic mode restored pre-run state.
	RolledBack bool
}

// Succeeded returns the outcomes that completed without error.
func (r Result) Succeeded() []OpResult {
	out := make([]OpResult, 0, len(r.Outcomes))
	for _, res := range r.Outcomes {
		if res.Err == nil {
			out = append(out, res)
		}
	}
	return out
}

// Failed returns the outcomes that errored.
func (r Result) Failed() []OpResult {
	out := make([]OpResult, 0)
	for _, res := range r.Outcomes {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Execute runs the file operations of a plan under the configured mode.
// Re-running the same plan after a partial failure converges to the same
// final state: copies replace, mkdirs tolerate existing directories, and
// deletes tolerate absent targets.
func Execute(ctx context.Context, ops []plan.Operation, opts Options) (Result, error) {
	if opts.System == nil {
		return Result{}, fmt.Errorf(messages.DeploySystemRequired)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Mode == "" {
		opts.Mode = ModeAtomic
	}

	exec := &executor{sys: opts.System, logger: logger, atomic: opts.Mode == ModeAtomic}
	if opts.Mode == ModeBestEffort && opts.Workers > 1 {
		return exec.runParallel(ctx, ops, opts.Workers)
	}
	return exec.runSequential(ctx, ops)
}

type executor struct {
	sys     System
	logger  *zap.Logger
	atomic  bool
	journal []journalEntry
}

func (e *executor) runSequential(ctx context.Context, ops []plan.Operation) (Result, error) {
	result := Result{Outcomes: make([]OpResult, 0, len(ops))}
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			result.Cancelled = true
			if e.atomic {
				return e.failAtomic(result, err)
			}
			return result, err
		}
		res := e.apply(op)
		result.Outcomes = append(result.Outcomes, res)
		if res.Err != nil {
			e.logger.Warn("operation failed",
				zap.String("kind", string(op.Kind)),
				zap.String("path", op.Path),
				zap.Error(res.Err))
			if e.atomic {
				return e.failAtomic(result, res.Err)
			}
			continue
		}
		e.logger.Debug("operation applied",
			zap.String("kind", string(op.Kind)),
			zap.String("path", op.Path))
	}
	if !e.atomic {
		if failed := result.Failed(); len(failed) > 0 {
			return result, partialError(result)
		}
	}
	return result, nil
}

// failAtomic rolls back this run's completed operations and reports the
// triggering error, or a fatal RollbackError when restoration itself fails.
func (e *executor) failAtomic(result Result, cause error) (Result, error) {
	if err := e.rollback(); err != nil {
		var rbErr *RollbackError
		if errors.As(err, &rbErr) {
			rbErr.Cause = cause
			return result, rbErr
		}
		return result, &RollbackError{Cause: cause, RollbackCause: err}
	}
	result.RolledBack = true
	return result, cause
}

func partialError(result Result) *PartialInstallError {
	perr := &PartialInstallError{Failed: make(map[string]error)}
	for _, res := range result.Outcomes {
		if res.Err != nil {
			perr.Failed[res.Op.Path] = res.Err
		} else {
			perr.Succeeded = append(perr.Succeeded, res.Op.Path)
		}
	}
	return perr
}

// apply executes a single operation, journaling pre-images in atomic mode.
func (e *executor) apply(op plan.Operation) OpResult {
	res := OpResult{Op: op}
	switch op.Kind {
	case plan.KindMkdir:
		created, err := e.applyMkdir(op)
		res.Created = created
		res.Err = err
	case plan.KindCopyFile:
		hash, err := e.applyCopy(op)
		res.Hash = hash
		res.Err = err
	case plan.KindCleanupDelete, plan.KindDeleteFile:
		res.Err = e.applyDelete(op)
	case plan.KindRemoveDirIfEmpty:
		res.Err = e.applyRmdirIfEmpty(op)
	default:
		res.Err = fmt.Errorf(messages.DeployUnknownOpFmt, op.Kind)
	}
	if res.Err != nil && errors.Is(res.Err, fs.ErrPermission) {
		res.Err = &PermissionError{Path: op.Path, Err: res.Err}
	}
	return res
}

func (e *executor) applyMkdir(op plan.Operation) (bool, error) {
	_, statErr := e.sys.Stat(op.Path)
	existed := statErr == nil
	if err := e.sys.MkdirAll(op.Path, 0o755); err != nil {
		return false, fmt.Errorf(messages.DeployCreateDirFmt, op.Path, err)
	}
	if !existed && e.atomic {
		e.journal = append(e.journal, journalEntry{kind: entryDirCreated, path: op.Path})
	}
	return !existed, nil
}

func (e *executor) applyCopy(op plan.Operation) (string, error) {
	data, err := e.sys.ReadFile(op.Source)
	if err != nil {
		return "", fmt.Errorf(messages.DeployCopyFmt, op.Source, op.Path, err)
	}
	perm := os.FileMode(0o644)
	if info, err := e.sys.Stat(op.Source); err == nil {
		perm = info.Mode().Perm()
	}
	if e.atomic {
		e.journalPreImage(op.Path)
		if op.SourceVersion != "" {
			e.journalPreImage(plan.VersionSidecarPath(op.Path))
		}
	}
	if err := e.sys.WriteFileAtomic(op.Path, data, perm); err != nil {
		return "", fmt.Errorf(messages.DeployCopyFmt, op.Source, op.Path, err)
	}
	if op.SourceVersion != "" {
		sidecar := plan.VersionSidecarPath(op.Path)
		if err := e.sys.WriteFileAtomic(sidecar, []byte(op.SourceVersion+"\n"), 0o644); err != nil {
			return "", fmt.Errorf(messages.DeployWriteVersionFmt, op.Path, err)
		}
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func (e *executor) applyDelete(op plan.Operation) error {
	if e.atomic {
		e.journalPreImage(op.Path)
	}
	if err := e.sys.Remove(op.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf(messages.DeployDeleteFmt, op.Path, err)
	}
	return nil
}

func (e *executor) applyRmdirIfEmpty(op plan.Operation) error {
	err := e.sys.Remove(op.Path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	// A non-empty directory is left in place: uninstall only prunes
	// directories nothing else still uses.
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) && !errors.Is(err, os.ErrPermission) {
		return nil
	}
	return fmt.Errorf(messages.DeployDeleteFmt, op.Path, err)
}
