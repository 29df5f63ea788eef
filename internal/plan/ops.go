// Package plan computes deterministic install and uninstall operation lists.
//
// Plan computation is a pure function of the manifest, the observed
// filesystem state, and the task selections: same inputs, same plan. Nothing
// in this package mutates the filesystem.
package plan

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/setupforge/setupforge/internal/manifest"
)

// Kind identifies an operation in a plan.
type Kind string

const (
	// KindCleanupDelete removes a previously-recorded artifact before a
	// fresh or upgrade install.
	KindCleanupDelete Kind = "cleanup-delete"
	// KindMkdir creates a destination directory.
	KindMkdir Kind = "mkdir"
	// KindCopyFile copies one source file to one destination path.
	KindCopyFile Kind = "copy-file"
	// KindWriteShortcut creates an engine-owned shortcut entry.
	KindWriteShortcut Kind = "write-shortcut"
	// KindRunAction launches a post-install process.
	KindRunAction Kind = "run-action"

	// KindDeleteShortcut removes an engine-created shortcut entry.
	KindDeleteShortcut Kind = "delete-shortcut"
	// KindDeleteFile removes an installed file.
	KindDeleteFile Kind = "delete-file"
	// KindRemoveDirIfEmpty removes a created directory when nothing is left in it.
	KindRemoveDirIfEmpty Kind = "rmdir-if-empty"
)

// Operation is one step of a plan. Fields beyond Kind and Path are populated
// per kind: Source/Overwrite/SourceVersion for copies, Icon for shortcut
// writes, Run for run actions.
type Operation struct {
	Kind          Kind
	Path          string // absolute target path
	RelPath       string // path relative to the install root, "/" separated
	Source        string // absolute source path for copy ops
	Overwrite     manifest.OverwritePolicy
	SourceVersion string
	Icon          *manifest.IconEntry
	Run           *manifest.RunAction
}

// Plan is an ordered operation list plus the inputs it was derived from.
type Plan struct {
	AppID       string
	Version     string
	InstallRoot string
	Ops         []Operation
}

// FileOps returns the subset of operations the deployer executes, in order.
func (p Plan) FileOps() []Operation {
	return p.filter(KindCleanupDelete, KindMkdir, KindCopyFile, KindDeleteFile, KindRemoveDirIfEmpty)
}

// ShortcutOps returns shortcut create/delete operations, in order.
func (p Plan) ShortcutOps() []Operation {
	return p.filter(KindWriteShortcut, KindDeleteShortcut)
}

// RunOps returns post-install run operations, in order.
func (p Plan) RunOps() []Operation {
	return p.filter(KindRunAction)
}

func (p Plan) filter(kinds ...Kind) []Operation {
	want := make(map[Kind]struct{}, len(kinds))
	for _, k := range kinds {
		want[k] = struct{}{}
	}
	out := make([]Operation, 0, len(p.Ops))
	for _, op := range p.Ops {
		if _, ok := want[op.Kind]; ok {
			out = append(out, op)
		}
	}
	return out
}

// FS is the read-only filesystem view the planner consults. It is
// intentionally package-local so planner tests can model destination state
// without shared global state; the deployer defines its own System interface
// with the mutating operations it needs.
type FS interface {
	Stat(name string) (os.FileInfo, error)
	ReadFile(name string) ([]byte, error)
	Glob(pattern string) ([]string, error)
	WalkDir(root string, fn fs.WalkDirFunc) error
}

// RealFS implements FS using the OS filesystem.
type RealFS struct{}

// Stat returns a FileInfo describing the named file.
func (RealFS) Stat(name string) (os.FileInfo, error) { return os.Stat(name) }

// ReadFile reads the named file and returns the contents.
func (RealFS) ReadFile(name string) ([]byte, error) { return os.ReadFile(name) }

// Glob returns the names matching pattern, in sorted order.
func (RealFS) Glob(pattern string) ([]string, error) { return filepath.Glob(pattern) }

// WalkDir walks the file tree rooted at root in lexical order.
func (RealFS) WalkDir(root string, fn fs.WalkDirFunc) error { return filepath.WalkDir(root, fn) }
