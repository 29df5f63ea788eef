// Package engine orchestrates the full install and uninstall sessions: task
// resolution, planning, deployment, shortcut management, record persistence,
// and post-install actions. All session state is explicit; the engine holds
// no globals.
package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/setupforge/setupforge/internal/deploy"
	"github.com/setupforge/setupforge/internal/locale"
	"github.com/setupforge/setupforge/internal/manifest"
	"github.com/setupforge/setupforge/internal/messages"
	"github.com/setupforge/setupforge/internal/plan"
	"github.com/setupforge/setupforge/internal/record"
	"github.com/setupforge/setupforge/internal/shortcut"
	"github.com/setupforge/setupforge/internal/task"
)

// ErrCancelled marks a session stopped by the caller's context before the
// commit barrier. No record is written for a cancelled session.
var ErrCancelled = errors.New(messages.EngineInstallCancelled)

// Status reports how a session ended.
type Status string

const (
	// StatusComplete means every planned operation succeeded.
	StatusComplete Status = "complete"
	// StatusPartial means a best-effort session committed with failures.
	StatusPartial Status = "partial"
	// StatusIncomplete means the session stopped before commit: an atomic
	// failure after rollback, or a cancellation. No record is written.
	StatusIncomplete Status = "incomplete"
)

// Options wires the engine's collaborators. Store is required; the rest
// default to real implementations.
type Options struct {
	Logger    *zap.Logger
	FS        plan.FS
	System    deploy.System
	Shortcuts *shortcut.Manager
	Runner    *task.Runner
	Store     *record.Store
	// Arch is the target architecture file rules match against. Defaults
	// to the host architecture.
	Arch string
	// Now supplies record timestamps.
	Now func() time.Time
}

// Engine runs install and uninstall sessions.
type Engine struct {
	logger    *zap.Logger
	fs        plan.FS
	system    deploy.System
	shortcuts *shortcut.Manager
	runner    *task.Runner
	store     *record.Store
	arch      string
	now       func() time.Time
}

func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("record store is required")
	}
	e := &Engine{
		logger:    opts.Logger,
		fs:        opts.FS,
		system:    opts.System,
		shortcuts: opts.Shortcuts,
		runner:    opts.Runner,
		store:     opts.Store,
		arch:      opts.Arch,
		now:       opts.Now,
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.fs == nil {
		e.fs = plan.RealFS{}
	}
	if e.system == nil {
		e.system = deploy.RealSystem{}
	}
	if e.shortcuts == nil {
		e.shortcuts = shortcut.NewManager(shortcut.RealSystem{}, e.logger)
	}
	if e.runner == nil {
		e.runner = task.NewRunner(e.logger)
	}
	if e.arch == "" {
		e.arch = runtime.GOARCH
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e, nil
}

// InstallRequest describes one install session.
type InstallRequest struct {
	Manifest *manifest.Manifest
	// InstallRoot overrides the manifest's default directory when set.
	InstallRoot string
	// ShortcutDir overrides the engine-owned shortcut directory.
	ShortcutDir string
	// Language selects a declared language; empty means the default.
	Language string
	// Tasks replaces the default task selection; nil keeps defaults.
	Tasks []string
	Mode  deploy.Mode
	// Workers >1 enables parallel copying in best-effort mode.
	Workers int
}

// ItemOutcome is the per-artifact result of a session operation.
type ItemOutcome struct {
	Kind plan.Kind
	Path string
	Err  error
}

// InstallResult is the session outcome: the computed plan, per-item results,
// and the committed record when one was written.
type InstallResult struct {
	Plan   plan.Plan
	Items  []ItemOutcome
	Status Status
	Record *record.InstallRecord
}

// SessionLocalizer builds the message resolver for a session: the selected
// language's catalog first, the manifest's default language as fallback.
// Catalog paths are relative to the manifest's base directory.
func SessionLocalizer(m *manifest.Manifest, lang string) *locale.Localizer {
	if m == nil {
		return locale.New("", "")
	}
	if lang == "" {
		lang = m.DefaultLanguage()
	}
	catalogPath := func(code string) string {
		for _, l := range m.Languages {
			if l.Code != code || l.MessagesPath == "" {
				continue
			}
			if filepath.IsAbs(l.MessagesPath) {
				return l.MessagesPath
			}
			return filepath.Join(m.BaseDir, filepath.FromSlash(l.MessagesPath))
		}
		return ""
	}
	active := catalogPath(lang)
	fallback := ""
	if def := m.DefaultLanguage(); def != lang {
		fallback = catalogPath(def)
	}
	return locale.New(active, fallback)
}

// Install runs one full install session. The returned error classifies the
// failure; the result carries per-item detail even on error.
func (e *Engine) Install(ctx context.Context, req InstallRequest) (InstallResult, error) {
	m := req.Manifest
	if m == nil {
		return InstallResult{Status: StatusIncomplete}, fmt.Errorf("%w: "+messages.EngineManifestRequired, manifest.ErrValidation)
	}

	lang := req.Language
	if lang == "" {
		lang = m.DefaultLanguage()
	} else if !m.HasLanguage(lang) {
		return InstallResult{Status: StatusIncomplete}, fmt.Errorf("%w: "+messages.EngineUnknownLanguageFmt, manifest.ErrValidation, lang)
	}

	selections, err := task.Resolve(m, req.Tasks)
	if err != nil {
		return InstallResult{Status: StatusIncomplete}, err
	}

	p, prior, err := e.buildPlan(m, req, selections)
	if err != nil {
		return InstallResult{Status: StatusIncomplete}, err
	}
	result := InstallResult{Plan: p, Status: StatusIncomplete}

	e.logger.Info("starting install",
		zap.String("app_id", m.Setup.AppID),
		zap.String("version", m.Setup.Version),
		zap.String("root", p.InstallRoot),
		zap.String("mode", string(req.Mode)),
		zap.Bool("upgrade", prior != nil))

	deployRes, deployErr := deploy.Execute(ctx, p.FileOps(), deploy.Options{
		Mode:    req.Mode,
		Workers: req.Workers,
		System:  e.system,
		Logger:  e.logger,
	})
	for _, out := range deployRes.Outcomes {
		result.Items = append(result.Items, ItemOutcome{Kind: out.Op.Kind, Path: out.Op.Path, Err: out.Err})
	}

	if deployRes.Cancelled {
		return result, fmt.Errorf("%w: %w", ErrCancelled, context.Cause(ctx))
	}
	var partial *deploy.PartialInstallError
	if deployErr != nil && !errors.As(deployErr, &partial) {
		// Atomic failure: the journal restored pre-run state, nothing to
		// record.
		return result, deployErr
	}

	// Deploy barrier passed: shortcuts, record, then run actions.
	loc := SessionLocalizer(m, lang)
	shortcuts, shortcutErrs := e.writeShortcuts(m, req, p, loc, &result)

	rec := e.buildRecord(m, req, p, lang, selections, deployRes, prior, shortcuts)
	if deployErr != nil || len(shortcutErrs) > 0 {
		rec.Status = record.StatusPartial
		result.Status = StatusPartial
	} else {
		rec.Status = record.StatusComplete
		result.Status = StatusComplete
	}
	if err := e.store.Save(rec); err != nil {
		result.Status = StatusIncomplete
		return result, err
	}
	result.Record = &rec

	if result.Status == StatusComplete {
		if err := e.runActions(ctx, p); err != nil {
			return result, err
		}
		return result, nil
	}
	if deployErr != nil {
		return result, deployErr
	}
	return result, shortcutErrs[0]
}

// Plan computes the install plan for req without mutating anything, for
// dry-run previews.
func (e *Engine) Plan(req InstallRequest) (plan.Plan, error) {
	m := req.Manifest
	if m == nil {
		return plan.Plan{}, fmt.Errorf("%w: "+messages.EngineManifestRequired, manifest.ErrValidation)
	}
	if req.Language != "" && !m.HasLanguage(req.Language) {
		return plan.Plan{}, fmt.Errorf("%w: "+messages.EngineUnknownLanguageFmt, manifest.ErrValidation, req.Language)
	}
	selections, err := task.Resolve(m, req.Tasks)
	if err != nil {
		return plan.Plan{}, err
	}
	p, _, err := e.buildPlan(m, req, selections)
	return p, err
}

func (e *Engine) buildPlan(m *manifest.Manifest, req InstallRequest, selections task.Selections) (plan.Plan, *record.InstallRecord, error) {
	root := req.InstallRoot
	if root == "" {
		root = m.Setup.DefaultDir
	}
	shortcutDir := req.ShortcutDir
	if shortcutDir == "" {
		shortcutDir = filepath.Join(filepath.Dir(e.store.Dir()), "shortcuts")
	}

	var prior *record.InstallRecord
	rec, err := e.store.Load(m.Setup.AppID)
	switch {
	case err == nil:
		prior = &rec
	case errors.Is(err, record.ErrNotFound):
	default:
		return plan.Plan{}, nil, err
	}

	p, err := plan.Build(m, plan.State{
		InstallRoot: root,
		ShortcutDir: shortcutDir,
		Arch:        e.arch,
		Prior:       prior,
		FS:          e.fs,
	}, selections)
	if err != nil {
		return plan.Plan{}, nil, err
	}
	return p, prior, nil
}

// writeShortcuts creates the planned entry files, re-basing targets declared
// under the manifest's default directory onto the actual install root.
// Display names resolve through the session Localizer so a catalog can
// translate them; an untranslated name passes through unchanged.
func (e *Engine) writeShortcuts(m *manifest.Manifest, req InstallRequest, p plan.Plan, loc *locale.Localizer, result *InstallResult) ([]record.Shortcut, []error) {
	var written []record.Shortcut
	var errs []error
	for _, op := range p.ShortcutOps() {
		entry := shortcut.Entry{
			Name:       loc.Resolve(op.Icon.Name),
			Target:     op.Icon.Target,
			WorkingDir: p.InstallRoot,
		}
		if target, err := plan.RebaseTarget(m.Setup.DefaultDir, p.InstallRoot, op.Icon.Target); err == nil {
			entry.Target = target
		}
		if m.Setup.IconPath != "" {
			if icon, err := plan.RebaseTarget(m.Setup.DefaultDir, p.InstallRoot, m.Setup.IconPath); err == nil {
				entry.Icon = icon
			}
		}
		hash, err := e.shortcuts.Write(op.Path, entry)
		result.Items = append(result.Items, ItemOutcome{Kind: op.Kind, Path: op.Path, Err: err})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		written = append(written, record.Shortcut{Path: op.Path, Hash: hash})
	}
	return written, errs
}

func (e *Engine) buildRecord(m *manifest.Manifest, req InstallRequest, p plan.Plan, lang string, selections task.Selections, deployRes deploy.Result, prior *record.InstallRecord, shortcuts []record.Shortcut) record.InstallRecord {
	now := e.now().UTC().Format(time.RFC3339)
	rec := record.InstallRecord{
		SchemaVersion: record.SchemaVersion,
		AppID:         m.Setup.AppID,
		Name:          m.Setup.Name,
		Version:       m.Setup.Version,
		Publisher:     m.Setup.Publisher,
		InstallRoot:   p.InstallRoot,
		Language:      lang,
		Compression:   string(m.Setup.Compression),
		Shortcuts:     shortcuts,
		Tasks:         selections.Names(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if prior != nil {
		rec.CreatedAt = prior.CreatedAt
	}
	// Overlapping file rules can deliver the same destination more than
	// once; the record keeps one artifact per path, with the hash of the
	// last write since that is what ended up on disk.
	fileIdx := make(map[string]int)
	addFile := func(a record.Artifact) {
		if i, ok := fileIdx[a.Path]; ok {
			rec.Files[i] = a
			return
		}
		fileIdx[a.Path] = len(rec.Files)
		rec.Files = append(rec.Files, a)
	}
	for _, out := range deployRes.Outcomes {
		if out.Err != nil {
			continue
		}
		switch out.Op.Kind {
		case plan.KindCopyFile:
			addFile(record.Artifact{Path: out.Op.RelPath, Hash: out.Hash})
			if out.Op.SourceVersion != "" {
				// The sidecar is an engine artifact too; recording it
				// lets uninstall clear the version metadata.
				addFile(record.Artifact{Path: out.Op.RelPath + ".version"})
			}
		case plan.KindMkdir:
			if out.Created {
				rec.Dirs = append(rec.Dirs, out.Op.RelPath)
			}
		}
	}
	if prior != nil && prior.InstallRoot == p.InstallRoot {
		rec.Dirs = mergeDirs(prior.Dirs, rec.Dirs)
	}
	return rec
}

// mergeDirs keeps directories an earlier install created so an upgrade's
// inverse can still prune them.
func mergeDirs(prior, current []string) []string {
	seen := make(map[string]struct{}, len(current))
	for _, dir := range current {
		seen[dir] = struct{}{}
	}
	for _, dir := range prior {
		if _, ok := seen[dir]; !ok {
			current = append(current, dir)
		}
	}
	return current
}

func (e *Engine) runActions(ctx context.Context, p plan.Plan) error {
	ops := p.RunOps()
	if len(ops) == 0 {
		return nil
	}
	actions := make([]manifest.RunAction, 0, len(ops))
	for _, op := range ops {
		actions = append(actions, *op.Run)
	}
	return e.runner.RunAll(ctx, actions)
}

// UninstallResult is the per-item outcome of an uninstall session.
type UninstallResult struct {
	Items []ItemOutcome
	// Leftovers counts foreign-modified shortcut entries deliberately left
	// in place; they are not failures.
	Leftovers int
	Status    Status
}

// Uninstall removes everything the record attributes to appID, in reverse
// dependency order. Per-item failures are reported individually and do not
// abort the remaining cleanup; the record is deleted only when no item
// failed.
func (e *Engine) Uninstall(ctx context.Context, appID string) (UninstallResult, error) {
	rec, err := e.store.Load(appID)
	if err != nil {
		return UninstallResult{Status: StatusIncomplete}, err
	}
	inv, err := plan.Inverse(rec)
	if err != nil {
		return UninstallResult{Status: StatusIncomplete}, err
	}

	e.logger.Info("starting uninstall",
		zap.String("app_id", rec.AppID),
		zap.String("version", rec.Version),
		zap.String("root", rec.InstallRoot))

	result := UninstallResult{Status: StatusIncomplete}
	hashes := make(map[string]string, len(rec.Shortcuts))
	for _, sc := range rec.Shortcuts {
		hashes[sc.Path] = sc.Hash
	}

	var failed bool
	var firstErr error
	fileOps := make([]plan.Operation, 0, len(inv.Ops))
	for _, op := range inv.Ops {
		if op.Kind != plan.KindDeleteShortcut {
			fileOps = append(fileOps, op)
			continue
		}
		removed, err := e.shortcuts.Remove(op.Path, hashes[op.Path])
		result.Items = append(result.Items, ItemOutcome{Kind: op.Kind, Path: op.Path, Err: err})
		if err != nil {
			failed = true
			if firstErr == nil {
				firstErr = err
			}
		} else if !removed {
			result.Leftovers++
		}
	}

	deployRes, deployErr := deploy.Execute(ctx, fileOps, deploy.Options{
		Mode:   deploy.ModeBestEffort,
		System: e.system,
		Logger: e.logger,
	})
	for _, out := range deployRes.Outcomes {
		result.Items = append(result.Items, ItemOutcome{Kind: out.Op.Kind, Path: out.Op.Path, Err: out.Err})
		if out.Err != nil {
			failed = true
		}
	}
	if deployRes.Cancelled {
		return result, fmt.Errorf("%w: %w", ErrCancelled, context.Cause(ctx))
	}
	if deployErr != nil {
		failed = true
		if firstErr == nil {
			firstErr = deployErr
		}
	}

	if failed {
		result.Status = StatusPartial
		return result, firstErr
	}
	// Every recorded artifact is gone (or deliberately left); the record is
	// the last thing to go.
	if err := e.store.Delete(rec.AppID); err != nil {
		return result, err
	}
	result.Status = StatusComplete
	if result.Leftovers > 0 {
		e.logger.Warn(fmt.Sprintf(messages.EngineUninstallLeftoversFmt, result.Leftovers))
	}
	return result, nil
}
