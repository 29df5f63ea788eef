package plan

import (
	"fmt"
	"io/fs"
	gopath "path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"github.com/setupforge/setupforge/internal/manifest"
	"github.com/setupforge/setupforge/internal/messages"
	"github.com/setupforge/setupforge/internal/record"
	"github.com/setupforge/setupforge/internal/version"
)

// State is the observed environment a plan is computed against.
type State struct {
	// InstallRoot is the resolved root for this session (override or the
	// manifest default). File rule destinations are re-based onto it.
	InstallRoot string
	// ShortcutDir is the engine-owned directory shortcut entries live in.
	ShortcutDir string
	// Arch is the target architecture file rules are matched against.
	Arch string
	// Prior is the install record from a previous run of the same app id,
	// nil on fresh install.
	Prior *record.InstallRecord
	// FS is the read-only filesystem view.
	FS FS
}

// Build computes the ordered install plan for m. selected maps task name to
// selection; rules gated on an unselected task are omitted from the plan
// entirely. The result is deterministic for fixed inputs.
func Build(m *manifest.Manifest, state State, selected map[string]bool) (Plan, error) {
	if m == nil {
		return Plan{}, fmt.Errorf(messages.EngineManifestRequired)
	}
	if strings.TrimSpace(state.InstallRoot) == "" {
		return Plan{}, fmt.Errorf(messages.PlanRootRequired)
	}
	if state.FS == nil {
		return Plan{}, fmt.Errorf(messages.PlanSystemRequired)
	}

	p := Plan{
		AppID:       m.Setup.AppID,
		Version:     m.Setup.Version,
		InstallRoot: state.InstallRoot,
	}

	cleanup, err := cleanupOps(m, state)
	if err != nil {
		return Plan{}, err
	}
	p.Ops = append(p.Ops, cleanup...)

	copies, dirs, err := copyOps(m, state, selected)
	if err != nil {
		return Plan{}, err
	}
	p.Ops = append(p.Ops, mkdirOps(state.InstallRoot, dirs)...)
	p.Ops = append(p.Ops, copies...)

	for i := range m.Icons {
		icon := m.Icons[i]
		if icon.Task != "" && !selected[icon.Task] {
			continue
		}
		p.Ops = append(p.Ops, Operation{
			Kind: KindWriteShortcut,
			Path: ShortcutPath(state.ShortcutDir, icon.Name),
			Icon: &m.Icons[i],
		})
	}

	for i := range m.Run {
		p.Ops = append(p.Ops, Operation{
			Kind: KindRunAction,
			Path: m.Run[i].Target,
			Run:  &m.Run[i],
		})
	}
	return p, nil
}

// cleanupOps scopes the pre-install wipe to artifacts the prior install
// recorded. The whole-directory deletion a descriptor might suggest is
// deliberately not performed: a shared or non-empty install root must never
// lose files this engine did not create.
func cleanupOps(m *manifest.Manifest, state State) ([]Operation, error) {
	if state.Prior == nil || len(m.InstallDelete.Scope) == 0 {
		return nil, nil
	}
	matchers := make([]glob.Glob, 0, len(m.InstallDelete.Scope))
	for _, pattern := range m.InstallDelete.Scope {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf(messages.PlanInvalidDeleteScopeFmt, pattern, err)
		}
		matchers = append(matchers, g)
	}
	ops := make([]Operation, 0)
	for _, artifact := range state.Prior.Files {
		for _, g := range matchers {
			if g.Match(artifact.Path) {
				ops = append(ops, Operation{
					Kind:    KindCleanupDelete,
					Path:    filepath.Join(state.Prior.InstallRoot, filepath.FromSlash(artifact.Path)),
					RelPath: artifact.Path,
				})
				break
			}
		}
	}
	sortDeepestFirst(ops)
	return ops, nil
}

// copyOps expands file rules into per-file copy operations and collects the
// destination directories they require.
func copyOps(m *manifest.Manifest, state State, selected map[string]bool) ([]Operation, map[string]struct{}, error) {
	ops := make([]Operation, 0)
	dirs := make(map[string]struct{})
	for _, rule := range m.Files {
		if rule.Task != "" && !selected[rule.Task] {
			continue
		}
		match, err := archMatches(rule.Arch, state.Arch)
		if err != nil {
			return nil, nil, err
		}
		if !match {
			continue
		}
		destRel, err := rebaseDest(m.Setup.DefaultDir, rule.DestDir)
		if err != nil {
			return nil, nil, err
		}
		pattern := rule.Source
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(m.BaseDir, pattern)
		}
		matches, err := state.FS.Glob(pattern)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: "+messages.ManifestSourceGlobFmt, manifest.ErrValidation, rule.Source, err)
		}
		if len(matches) == 0 {
			return nil, nil, fmt.Errorf("%w: "+messages.ManifestSourceMissingFmt, manifest.ErrResourceMissing, rule.Source, m.BaseDir)
		}
		sort.Strings(matches)
		dirs[destRel] = struct{}{}
		for _, src := range matches {
			info, err := state.FS.Stat(src)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: "+messages.ManifestSourceMissingFmt, manifest.ErrResourceMissing, rule.Source, m.BaseDir)
			}
			if info.IsDir() {
				if !rule.Recurse {
					continue
				}
				if err := appendTreeCopies(&ops, dirs, state, rule, m.Setup.Version, src, destRel); err != nil {
					return nil, nil, err
				}
				continue
			}
			appendCopy(&ops, state, rule, m.Setup.Version, src, joinRel(destRel, info.Name()))
		}
	}
	return ops, dirs, nil
}

// appendTreeCopies mirrors the full source subtree under destRel, preserving
// relative structure.
func appendTreeCopies(ops *[]Operation, dirs map[string]struct{}, state State, rule manifest.FileRule, srcVersion string, srcDir string, destRel string) error {
	base := filepath.Base(srcDir)
	return state.FS.WalkDir(srcDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(srcDir, p)
		if relErr != nil {
			return relErr
		}
		target := joinRel(destRel, base)
		if rel != "." {
			target = joinRel(target, filepath.ToSlash(rel))
		}
		if d.IsDir() {
			dirs[target] = struct{}{}
			return nil
		}
		appendCopy(ops, state, rule, srcVersion, p, target)
		return nil
	})
}

// appendCopy emits one copy operation unless the version-aware policy decides
// the destination is already current.
func appendCopy(ops *[]Operation, state State, rule manifest.FileRule, srcVersion string, src string, destRel string) {
	destAbs := filepath.Join(state.InstallRoot, filepath.FromSlash(destRel))
	op := Operation{
		Kind:      KindCopyFile,
		Path:      destAbs,
		RelPath:   destRel,
		Source:    src,
		Overwrite: rule.Overwrite,
	}
	if rule.Overwrite == manifest.OverwriteVersionAware {
		op.SourceVersion = srcVersion
		if destCurrent(state, destAbs, srcVersion) {
			return
		}
	}
	*ops = append(*ops, op)
}

// destCurrent reports whether the destination's recorded version is at least
// srcVersion. A missing destination or unreadable sidecar always copies.
func destCurrent(state State, destAbs string, srcVersion string) bool {
	if _, err := state.FS.Stat(destAbs); err != nil {
		return false
	}
	data, err := state.FS.ReadFile(VersionSidecarPath(destAbs))
	if err != nil {
		return false
	}
	return version.AtLeast(strings.TrimSpace(string(data)), srcVersion)
}

// mkdirOps emits directory creation for the install root and each required
// destination directory, shallowest first so parents exist before children.
func mkdirOps(root string, dirs map[string]struct{}) []Operation {
	rels := make([]string, 0, len(dirs)+1)
	seen := map[string]struct{}{}
	add := func(rel string) {
		if _, ok := seen[rel]; !ok {
			seen[rel] = struct{}{}
			rels = append(rels, rel)
		}
	}
	add(".")
	for dir := range dirs {
		// Record the full ancestor chain so the inverse plan can prune
		// every directory this install introduced.
		for cur := dir; cur != "." && cur != "/" && cur != ""; cur = gopath.Dir(cur) {
			add(cur)
		}
	}
	sort.Slice(rels, func(i, j int) bool {
		di, dj := strings.Count(rels[i], "/"), strings.Count(rels[j], "/")
		if di == dj {
			return rels[i] < rels[j]
		}
		return di < dj
	})
	ops := make([]Operation, 0, len(rels))
	for _, rel := range rels {
		abs := root
		if rel != "." {
			abs = filepath.Join(root, filepath.FromSlash(rel))
		}
		ops = append(ops, Operation{Kind: KindMkdir, Path: abs, RelPath: rel})
	}
	return ops
}

// archMatches checks the closed arch variant set exhaustively. The zero
// value means unconstrained, same as an explicit "any".
func archMatches(ruleArch manifest.Arch, target string) (bool, error) {
	switch ruleArch {
	case "", manifest.ArchAny:
		return true, nil
	case manifest.ArchAmd64, manifest.ArchArm64, manifest.Arch386:
		return string(ruleArch) == target, nil
	default:
		return false, fmt.Errorf("%w: unsupported arch constraint %q", manifest.ErrValidation, ruleArch)
	}
}

// rebaseDest converts a manifest destination into a root-relative path so a
// --dir override transplants the declared layout unchanged.
func rebaseDest(declaredRoot string, dest string) (string, error) {
	rel, err := filepath.Rel(filepath.Clean(declaredRoot), filepath.Clean(dest))
	if err != nil {
		return "", fmt.Errorf("%w: "+messages.ManifestDestEscapesRootFmt, manifest.ErrValidation, dest)
	}
	rel = filepath.ToSlash(filepath.Clean(rel))
	if rel == ".." || strings.HasPrefix(rel, "../") || filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: "+messages.ManifestDestEscapesRootFmt, manifest.ErrValidation, dest)
	}
	return rel, nil
}

// RebaseTarget transplants a path declared under the manifest's default
// directory onto the session's actual install root. Targets outside the
// declared root are rejected.
func RebaseTarget(declaredRoot, actualRoot, target string) (string, error) {
	rel, err := rebaseDest(declaredRoot, target)
	if err != nil {
		return "", err
	}
	if rel == "." {
		return actualRoot, nil
	}
	return filepath.Join(actualRoot, filepath.FromSlash(rel)), nil
}

// sortDeepestFirst orders deletion targets children-before-parents.
func sortDeepestFirst(ops []Operation) {
	sort.Slice(ops, func(i, j int) bool {
		di, dj := strings.Count(ops[i].RelPath, "/"), strings.Count(ops[j].RelPath, "/")
		if di == dj {
			return ops[i].RelPath > ops[j].RelPath
		}
		return di > dj
	})
}

// VersionSidecarPath names the sidecar carrying a destination's version
// metadata for the version-aware overwrite policy.
func VersionSidecarPath(dest string) string {
	return dest + ".version"
}

// ShortcutPath names the engine-owned entry file for an icon display name.
func ShortcutPath(shortcutDir string, iconName string) string {
	slug := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ' ', ':':
			return '_'
		}
		return r
	}, iconName)
	return filepath.Join(shortcutDir, slug+".entry")
}

// joinRel joins "/"-separated root-relative paths, collapsing a leading ".".
func joinRel(parts ...string) string {
	return gopath.Clean(gopath.Join(parts...))
}
