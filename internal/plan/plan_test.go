package plan

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/setupforge/setupforge/internal/manifest"
	"github.com/setupforge/setupforge/internal/record"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func baseManifest(baseDir string) *manifest.Manifest {
	return &manifest.Manifest{
		Setup: manifest.Setup{
			AppID:      "demo-app",
			Name:       "Demo",
			Version:    "2.0.0",
			DefaultDir: "/opt/demo",
		},
		Tasks: []manifest.Task{{Name: "desktopicon", DefaultSelected: true}},
		Files: []manifest.FileRule{
			{Source: "payload/demo.bin", DestDir: "/opt/demo", Overwrite: manifest.OverwriteAlways, Arch: manifest.ArchAny},
		},
		Icons: []manifest.IconEntry{
			{Name: "Demo", Target: "/opt/demo/demo.bin", Task: "desktopicon"},
		},
		Run:     []manifest.RunAction{{Target: "/opt/demo/demo.bin", Wait: manifest.WaitNone}},
		BaseDir: baseDir,
	}
}

func testState(t *testing.T) State {
	t.Helper()
	return State{
		InstallRoot: filepath.Join(t.TempDir(), "root"),
		ShortcutDir: filepath.Join(t.TempDir(), "shortcuts"),
		Arch:        "amd64",
		FS:          RealFS{},
	}
}

func kinds(p Plan) []Kind {
	out := make([]Kind, 0, len(p.Ops))
	for _, op := range p.Ops {
		out = append(out, op.Kind)
	}
	return out
}

func TestBuildOrderAndDeterminism(t *testing.T) {
	baseDir := t.TempDir()
	writeFile(t, filepath.Join(baseDir, "payload", "demo.bin"), "payload")
	m := baseManifest(baseDir)
	state := testState(t)

	first, err := Build(m, state, map[string]bool{"desktopicon": true})
	require.NoError(t, err)
	second, err := Build(m, state, map[string]bool{"desktopicon": true})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	assert.Equal(t, []Kind{KindMkdir, KindCopyFile, KindWriteShortcut, KindRunAction}, kinds(first))
	assert.Equal(t, state.InstallRoot, first.Ops[0].Path)
	assert.Equal(t, filepath.Join(state.InstallRoot, "demo.bin"), first.Ops[1].Path)
}

func TestBuildTaskGatingOmitsRules(t *testing.T) {
	baseDir := t.TempDir()
	writeFile(t, filepath.Join(baseDir, "payload", "demo.bin"), "payload")
	writeFile(t, filepath.Join(baseDir, "payload", "icon.ico"), "ico")
	m := baseManifest(baseDir)
	m.Files = append(m.Files, manifest.FileRule{
		Source:  "payload/icon.ico",
		DestDir: "/opt/demo",
		Task:    "desktopicon",
		Arch:    manifest.ArchAny,
	})
	state := testState(t)

	selected, err := Build(m, state, map[string]bool{"desktopicon": true})
	require.NoError(t, err)
	deselected, err := Build(m, state, map[string]bool{"desktopicon": false})
	require.NoError(t, err)

	// The gated copy and its shortcut are absent from the plan entirely,
	// not present-but-skipped.
	assert.Len(t, selected.FileOps(), 3)
	assert.Len(t, selected.ShortcutOps(), 1)
	assert.Len(t, deselected.FileOps(), 2)
	assert.Empty(t, deselected.ShortcutOps())
}

func TestBuildArchGating(t *testing.T) {
	baseDir := t.TempDir()
	writeFile(t, filepath.Join(baseDir, "payload", "demo.bin"), "payload")
	writeFile(t, filepath.Join(baseDir, "payload", "arm.bin"), "arm")
	m := baseManifest(baseDir)
	m.Files = append(m.Files, manifest.FileRule{
		Source:  "payload/arm.bin",
		DestDir: "/opt/demo",
		Arch:    manifest.ArchArm64,
	})
	state := testState(t)

	p, err := Build(m, state, nil)
	require.NoError(t, err)
	for _, op := range p.FileOps() {
		assert.NotContains(t, op.Path, "arm.bin")
	}

	state.Arch = "arm64"
	p, err = Build(m, state, nil)
	require.NoError(t, err)
	found := false
	for _, op := range p.FileOps() {
		found = found || filepath.Base(op.Path) == "arm.bin"
	}
	assert.True(t, found)
}

func TestBuildZeroArchMeansAny(t *testing.T) {
	baseDir := t.TempDir()
	writeFile(t, filepath.Join(baseDir, "payload", "demo.bin"), "payload")
	m := baseManifest(baseDir)
	m.Files[0].Arch = ""

	p, err := Build(m, testState(t), nil)
	require.NoError(t, err)
	found := false
	for _, op := range p.FileOps() {
		found = found || filepath.Base(op.Path) == "demo.bin"
	}
	assert.True(t, found)
}

func TestBuildRejectsUnknownArch(t *testing.T) {
	baseDir := t.TempDir()
	writeFile(t, filepath.Join(baseDir, "payload", "demo.bin"), "payload")
	m := baseManifest(baseDir)
	m.Files[0].Arch = manifest.Arch("sparc")

	_, err := Build(m, testState(t), nil)
	assert.ErrorIs(t, err, manifest.ErrValidation)
}

func TestBuildVersionAwareSkipsCurrentDest(t *testing.T) {
	baseDir := t.TempDir()
	writeFile(t, filepath.Join(baseDir, "payload", "demo.bin"), "payload")
	m := baseManifest(baseDir)
	m.Files[0].Overwrite = manifest.OverwriteVersionAware
	state := testState(t)

	dest := filepath.Join(state.InstallRoot, "demo.bin")
	writeFile(t, dest, "already here")
	writeFile(t, VersionSidecarPath(dest), "2.0.0\n")

	p, err := Build(m, state, nil)
	require.NoError(t, err)
	for _, op := range p.FileOps() {
		assert.NotEqual(t, KindCopyFile, op.Kind)
	}

	// An older destination version copies again.
	writeFile(t, VersionSidecarPath(dest), "1.9.0\n")
	p, err = Build(m, state, nil)
	require.NoError(t, err)
	copies := 0
	for _, op := range p.FileOps() {
		if op.Kind == KindCopyFile {
			copies++
			assert.Equal(t, "2.0.0", op.SourceVersion)
		}
	}
	assert.Equal(t, 1, copies)
}

func TestBuildVersionAwareCorruptSidecarCopies(t *testing.T) {
	baseDir := t.TempDir()
	writeFile(t, filepath.Join(baseDir, "payload", "demo.bin"), "payload")
	m := baseManifest(baseDir)
	m.Files[0].Overwrite = manifest.OverwriteVersionAware
	state := testState(t)

	dest := filepath.Join(state.InstallRoot, "demo.bin")
	writeFile(t, dest, "already here")
	writeFile(t, VersionSidecarPath(dest), "garbage")

	p, err := Build(m, state, nil)
	require.NoError(t, err)
	copies := 0
	for _, op := range p.FileOps() {
		if op.Kind == KindCopyFile {
			copies++
		}
	}
	assert.Equal(t, 1, copies)
}

func TestBuildRecurseMirrorsTree(t *testing.T) {
	baseDir := t.TempDir()
	writeFile(t, filepath.Join(baseDir, "tree", "docs", "readme.txt"), "r")
	writeFile(t, filepath.Join(baseDir, "tree", "docs", "sub", "deep.txt"), "d")
	m := baseManifest(baseDir)
	m.Files = []manifest.FileRule{
		{Source: "tree/docs", DestDir: "/opt/demo", Recurse: true, Arch: manifest.ArchAny},
	}
	state := testState(t)

	p, err := Build(m, state, nil)
	require.NoError(t, err)

	var rels []string
	for _, op := range p.FileOps() {
		if op.Kind == KindCopyFile {
			rels = append(rels, op.RelPath)
		}
	}
	assert.ElementsMatch(t, []string{"docs/readme.txt", "docs/sub/deep.txt"}, rels)

	// Parent directories come shallowest-first.
	var dirs []string
	for _, op := range p.FileOps() {
		if op.Kind == KindMkdir {
			dirs = append(dirs, op.RelPath)
		}
	}
	assert.Equal(t, []string{".", "docs", "docs/sub"}, dirs)
}

func TestBuildNonRecursiveSkipsDirMatch(t *testing.T) {
	baseDir := t.TempDir()
	writeFile(t, filepath.Join(baseDir, "tree", "docs", "readme.txt"), "r")
	m := baseManifest(baseDir)
	m.Files = []manifest.FileRule{
		{Source: "tree/*", DestDir: "/opt/demo", Arch: manifest.ArchAny},
	}

	_, err := Build(m, testState(t), nil)
	// The only match is a directory and recurse is off, so no copies
	// survive, but the glob itself matched.
	require.NoError(t, err)
}

func TestBuildMissingSource(t *testing.T) {
	m := baseManifest(t.TempDir())
	_, err := Build(m, testState(t), nil)
	assert.ErrorIs(t, err, manifest.ErrResourceMissing)
}

func TestBuildDirOverrideRebasesDest(t *testing.T) {
	baseDir := t.TempDir()
	writeFile(t, filepath.Join(baseDir, "payload", "demo.bin"), "payload")
	m := baseManifest(baseDir)
	m.Files[0].DestDir = "/opt/demo/bin"
	state := testState(t)

	p, err := Build(m, state, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(state.InstallRoot, "bin", "demo.bin"), p.FileOps()[len(p.FileOps())-1].Path)
}

func TestBuildCleanupScopedToPriorRecord(t *testing.T) {
	baseDir := t.TempDir()
	writeFile(t, filepath.Join(baseDir, "payload", "demo.bin"), "payload")
	m := baseManifest(baseDir)
	m.InstallDelete.Scope = []string{"legacy/**"}
	state := testState(t)
	now := time.Now().UTC().Format(time.RFC3339)
	state.Prior = &record.InstallRecord{
		SchemaVersion: record.SchemaVersion,
		AppID:         "demo-app",
		Version:       "1.0.0",
		InstallRoot:   state.InstallRoot,
		Language:      "en",
		Status:        record.StatusComplete,
		Files: []record.Artifact{
			{Path: "legacy/old.dll"},
			{Path: "legacy/deep/older.dll"},
			{Path: "demo.bin"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	p, err := Build(m, state, nil)
	require.NoError(t, err)

	var cleanups []string
	for _, op := range p.Ops {
		if op.Kind == KindCleanupDelete {
			cleanups = append(cleanups, op.RelPath)
		}
	}
	// Only recorded artifacts inside the scope, children before parents.
	assert.Equal(t, []string{"legacy/deep/older.dll", "legacy/old.dll"}, cleanups)
}

func TestBuildCleanupSkippedOnFreshInstall(t *testing.T) {
	baseDir := t.TempDir()
	writeFile(t, filepath.Join(baseDir, "payload", "demo.bin"), "payload")
	m := baseManifest(baseDir)
	m.InstallDelete.Scope = []string{"**"}

	p, err := Build(m, testState(t), nil)
	require.NoError(t, err)
	for _, op := range p.Ops {
		assert.NotEqual(t, KindCleanupDelete, op.Kind)
	}
}

func TestBuildInvalidDeleteScope(t *testing.T) {
	baseDir := t.TempDir()
	writeFile(t, filepath.Join(baseDir, "payload", "demo.bin"), "payload")
	m := baseManifest(baseDir)
	m.InstallDelete.Scope = []string{"[broken"}
	state := testState(t)
	now := time.Now().UTC().Format(time.RFC3339)
	state.Prior = &record.InstallRecord{
		SchemaVersion: record.SchemaVersion,
		AppID:         "demo-app",
		Version:       "1.0.0",
		InstallRoot:   state.InstallRoot,
		Language:      "en",
		Status:        record.StatusComplete,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	_, err := Build(m, state, nil)
	assert.Error(t, err)
}

func TestInverseOrdering(t *testing.T) {
	now := time.Now().UTC().Format(time.RFC3339)
	rec := record.InstallRecord{
		SchemaVersion: record.SchemaVersion,
		AppID:         "demo-app",
		Version:       "1.0.0",
		InstallRoot:   "/opt/demo",
		Language:      "en",
		Status:        record.StatusComplete,
		Files: []record.Artifact{
			{Path: "demo.bin"},
			{Path: "data/deep/file.dat"},
			{Path: "data/top.dat"},
		},
		Dirs:      []string{".", "data", "data/deep"},
		Shortcuts: []record.Shortcut{{Path: "/shortcuts/Demo.entry", Hash: "abc"}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	p, err := Inverse(rec)
	require.NoError(t, err)

	assert.Equal(t, []Kind{
		KindDeleteShortcut,
		KindDeleteFile, KindDeleteFile, KindDeleteFile,
		KindRemoveDirIfEmpty, KindRemoveDirIfEmpty, KindRemoveDirIfEmpty,
	}, kinds(p))

	// Files deepest-first, directories deepest-first with the root last.
	assert.Equal(t, "data/deep/file.dat", p.Ops[1].RelPath)
	assert.Equal(t, "data/deep", p.Ops[4].RelPath)
	assert.Equal(t, "data", p.Ops[5].RelPath)
	assert.Equal(t, ".", p.Ops[6].RelPath)
}

func TestInverseRejectsInvalidRecord(t *testing.T) {
	_, err := Inverse(record.InstallRecord{})
	assert.Error(t, err)
}

func TestShortcutPathSlug(t *testing.T) {
	path := ShortcutPath("/shortcuts", "Example Corp/Demo App: Editor")
	assert.Equal(t, filepath.Join("/shortcuts", "Example_Corp_Demo_App__Editor.entry"), path)
}

func TestBuildRequiresRootAndFS(t *testing.T) {
	m := baseManifest(t.TempDir())
	_, err := Build(m, State{FS: RealFS{}}, nil)
	assert.Error(t, err)
	_, err = Build(m, State{InstallRoot: "/tmp/x"}, nil)
	assert.Error(t, err)
	_, err = Build(nil, State{InstallRoot: "/tmp/x", FS: RealFS{}}, nil)
	assert.Error(t, err)
}
