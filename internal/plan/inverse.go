package plan

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/setupforge/setupforge/internal/record"
)

// Inverse computes the exact inverse of a recorded install: shortcuts first,
// then files, then the directories the install created, deepest first, each
// removed only when empty. The record, not the manifest, is authoritative.
func Inverse(rec record.InstallRecord) (Plan, error) {
	if err := rec.Validate(); err != nil {
		return Plan{}, err
	}
	p := Plan{
		AppID:       rec.AppID,
		Version:     rec.Version,
		InstallRoot: rec.InstallRoot,
	}

	shortcuts := append([]record.Shortcut(nil), rec.Shortcuts...)
	sort.Slice(shortcuts, func(i, j int) bool { return shortcuts[i].Path < shortcuts[j].Path })
	for _, sc := range shortcuts {
		p.Ops = append(p.Ops, Operation{Kind: KindDeleteShortcut, Path: sc.Path})
	}

	files := make([]Operation, 0, len(rec.Files))
	for _, artifact := range rec.Files {
		files = append(files, Operation{
			Kind:    KindDeleteFile,
			Path:    filepath.Join(rec.InstallRoot, filepath.FromSlash(artifact.Path)),
			RelPath: artifact.Path,
		})
	}
	sortDeepestFirst(files)
	p.Ops = append(p.Ops, files...)

	dirs := make([]Operation, 0, len(rec.Dirs))
	for _, rel := range rec.Dirs {
		abs := rec.InstallRoot
		if rel != "." {
			abs = filepath.Join(rec.InstallRoot, filepath.FromSlash(rel))
		}
		dirs = append(dirs, Operation{Kind: KindRemoveDirIfEmpty, Path: abs, RelPath: rel})
	}
	sort.Slice(dirs, func(i, j int) bool {
		di, dj := strings.Count(dirs[i].RelPath, "/"), strings.Count(dirs[j].RelPath, "/")
		// "." sorts last so the root is pruned only after its children.
		if (dirs[i].RelPath == ".") != (dirs[j].RelPath == ".") {
			return dirs[j].RelPath == "."
		}
		if di == dj {
			return dirs[i].RelPath > dirs[j].RelPath
		}
		return di > dj
	})
	p.Ops = append(p.Ops, dirs...)
	return p, nil
}
