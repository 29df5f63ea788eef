package deploy

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/setupforge/setupforge/internal/plan"
)

// memSystem is an in-memory System with per-path fault injection.
type memSystem struct {
	mu        sync.Mutex
	files     map[string][]byte
	dirs      map[string]bool
	failWrite map[string]error
	failRead  map[string]error
}

func newMemSystem() *memSystem {
	return &memSystem{
		files:     map[string][]byte{},
		dirs:      map[string]bool{},
		failWrite: map[string]error{},
		failRead:  map[string]error{},
	}
}

type memInfo struct {
	name string
	dir  bool
	size int64
}

func (i memInfo) Name() string       { return i.name }
func (i memInfo) Size() int64        { return i.size }
func (i memInfo) Mode() fs.FileMode  { return 0o644 }
func (i memInfo) ModTime() time.Time { return time.Time{} }
func (i memInfo) IsDir() bool        { return i.dir }
func (i memInfo) Sys() any           { return nil }

func (m *memSystem) Stat(name string) (os.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if data, ok := m.files[name]; ok {
		return memInfo{name: name, size: int64(len(data))}, nil
	}
	if m.dirs[name] {
		return memInfo{name: name, dir: true}, nil
	}
	return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
}

func (m *memSystem) ReadFile(name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failRead[name]; err != nil {
		return nil, err
	}
	data, ok := m.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return append([]byte(nil), data...), nil
}

func (m *memSystem) MkdirAll(path string, _ os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirs[path] = true
	return nil
}

func (m *memSystem) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[name]; ok {
		delete(m.files, name)
		return nil
	}
	if m.dirs[name] {
		delete(m.dirs, name)
		return nil
	}
	return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrNotExist}
}

func (m *memSystem) WriteFileAtomic(name string, data []byte, _ os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failWrite[name]; err != nil {
		return err
	}
	m.files[name] = append([]byte(nil), data...)
	return nil
}

func (m *memSystem) snapshot() map[string][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]byte, len(m.files))
	for k, v := range m.files {
		out[k] = append([]byte(nil), v...)
	}
	return out
}

// writeOnceSystem allows one write to a guarded path, then fails the rest.
type writeOnceSystem struct {
	*memSystem
	guarded string
	wrote   bool
}

func failAfterFirstWrite(sys *memSystem, path string) *writeOnceSystem {
	return &writeOnceSystem{memSystem: sys, guarded: path}
}

func (w *writeOnceSystem) WriteFileAtomic(name string, data []byte, perm os.FileMode) error {
	if name == w.guarded {
		if w.wrote {
			return errors.New("disk full")
		}
		w.wrote = true
	}
	return w.memSystem.WriteFileAtomic(name, data, perm)
}

func copyOp(src, dest string) plan.Operation {
	return plan.Operation{Kind: plan.KindCopyFile, Source: src, Path: dest}
}

func TestExecuteCopiesAndHashes(t *testing.T) {
	sys := newMemSystem()
	sys.files["/src/app.bin"] = []byte("payload")

	res, err := Execute(context.Background(), []plan.Operation{
		{Kind: plan.KindMkdir, Path: "/opt/app"},
		copyOp("/src/app.bin", "/opt/app/app.bin"),
	}, Options{System: sys})
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 2)

	assert.True(t, res.Outcomes[0].Created)
	assert.NotEmpty(t, res.Outcomes[1].Hash)
	assert.Equal(t, []byte("payload"), sys.files["/opt/app/app.bin"])
}

func TestExecuteMkdirExistingNotCreated(t *testing.T) {
	sys := newMemSystem()
	sys.dirs["/opt/app"] = true

	res, err := Execute(context.Background(), []plan.Operation{
		{Kind: plan.KindMkdir, Path: "/opt/app"},
	}, Options{System: sys})
	require.NoError(t, err)
	assert.False(t, res.Outcomes[0].Created)
}

func TestExecuteWritesVersionSidecar(t *testing.T) {
	sys := newMemSystem()
	sys.files["/src/app.bin"] = []byte("v2")

	op := copyOp("/src/app.bin", "/opt/app/app.bin")
	op.SourceVersion = "2.1.0"
	_, err := Execute(context.Background(), []plan.Operation{op}, Options{System: sys})
	require.NoError(t, err)
	assert.Equal(t, []byte("2.1.0\n"), sys.files["/opt/app/app.bin.version"])
}

func TestExecuteAtomicRollsBackOnFailure(t *testing.T) {
	sys := newMemSystem()
	sys.files["/src/a"] = []byte("a")
	sys.files["/src/b"] = []byte("b")
	sys.files["/src/c"] = []byte("c")
	sys.files["/opt/app/b"] = []byte("old-b")
	before := sys.snapshot()
	sys.failWrite["/opt/app/c"] = errors.New("disk full")

	res, err := Execute(context.Background(), []plan.Operation{
		{Kind: plan.KindMkdir, Path: "/opt/app"},
		copyOp("/src/a", "/opt/app/a"),
		copyOp("/src/b", "/opt/app/b"),
		copyOp("/src/c", "/opt/app/c"),
	}, Options{System: sys, Mode: ModeAtomic})
	require.Error(t, err)
	assert.True(t, res.RolledBack)

	// Every touched path is back to its pre-run state.
	assert.Equal(t, before, sys.snapshot())
	assert.False(t, sys.dirs["/opt/app"])
}

func TestExecuteAtomicRollbackFailureIsFatal(t *testing.T) {
	sys := newMemSystem()
	sys.files["/src/a"] = []byte("a")
	sys.files["/src/b"] = []byte("b")
	sys.files["/opt/a"] = []byte("old-a")
	// The copy of b fails, and restoring a's pre-image fails too: the
	// first write to /opt/a succeeds, every later one reports disk full.
	sys.failWrite["/opt/b"] = errors.New("disk full")
	_, err := Execute(context.Background(), []plan.Operation{
		copyOp("/src/a", "/opt/a"),
		copyOp("/src/b", "/opt/b"),
	}, Options{System: failAfterFirstWrite(sys, "/opt/a"), Mode: ModeAtomic})
	var rbErr *RollbackError
	require.ErrorAs(t, err, &rbErr)
	assert.Contains(t, rbErr.Indeterminate, "/opt/a")
}

func TestExecuteBestEffortCollectsFailures(t *testing.T) {
	sys := newMemSystem()
	sys.files["/src/a"] = []byte("a")
	sys.files["/src/c"] = []byte("c")
	sys.failWrite["/opt/b"] = errors.New("permission denied")
	sys.files["/src/b"] = []byte("b")

	res, err := Execute(context.Background(), []plan.Operation{
		copyOp("/src/a", "/opt/a"),
		copyOp("/src/b", "/opt/b"),
		copyOp("/src/c", "/opt/c"),
	}, Options{System: sys, Mode: ModeBestEffort})

	var perr *PartialInstallError
	require.ErrorAs(t, err, &perr)
	assert.ElementsMatch(t, []string{"/opt/a", "/opt/c"}, perr.Succeeded)
	assert.Contains(t, perr.Failed, "/opt/b")
	assert.False(t, res.RolledBack)
	assert.Equal(t, []byte("c"), sys.files["/opt/c"])
}

func TestExecuteClassifiesPermissionErrors(t *testing.T) {
	sys := newMemSystem()
	sys.files["/src/a"] = []byte("a")
	sys.failWrite["/opt/a"] = &fs.PathError{Op: "open", Path: "/opt/a", Err: fs.ErrPermission}

	res, err := Execute(context.Background(), []plan.Operation{
		copyOp("/src/a", "/opt/a"),
	}, Options{System: sys, Mode: ModeBestEffort})

	var perr *PartialInstallError
	require.ErrorAs(t, err, &perr)
	var permErr *PermissionError
	require.ErrorAs(t, res.Outcomes[0].Err, &permErr)
	assert.Equal(t, "/opt/a", permErr.Path)
	assert.ErrorIs(t, permErr, fs.ErrPermission)
}

func TestExecuteAtomicCancelRollsBack(t *testing.T) {
	sys := newMemSystem()
	sys.files["/src/a"] = []byte("a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Execute(ctx, []plan.Operation{
		copyOp("/src/a", "/opt/a"),
	}, Options{System: sys, Mode: ModeAtomic})
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, res.Cancelled)
	assert.NotContains(t, sys.files, "/opt/a")
}

func TestExecuteDeleteTolerateMissing(t *testing.T) {
	sys := newMemSystem()
	res, err := Execute(context.Background(), []plan.Operation{
		{Kind: plan.KindDeleteFile, Path: "/opt/gone"},
	}, Options{System: sys})
	require.NoError(t, err)
	assert.NoError(t, res.Outcomes[0].Err)
}

func TestExecuteParallelBestEffort(t *testing.T) {
	sys := newMemSystem()
	ops := []plan.Operation{{Kind: plan.KindMkdir, Path: "/opt/app"}}
	want := map[string][]byte{}
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		src := "/src/" + name
		dest := "/opt/app/" + name
		sys.files[src] = []byte(name)
		want[dest] = []byte(name)
		ops = append(ops, copyOp(src, dest))
	}

	res, err := Execute(context.Background(), ops, Options{
		System:  sys,
		Mode:    ModeBestEffort,
		Workers: 4,
	})
	require.NoError(t, err)
	require.Len(t, res.Outcomes, len(ops))

	// Outcomes stay in plan order regardless of worker scheduling.
	got := make([]string, 0, len(ops))
	for _, out := range res.Outcomes {
		got = append(got, out.Op.Path)
		require.NoError(t, out.Err)
	}
	assert.True(t, sort.StringsAreSorted(got[1:]))
	for dest, data := range want {
		assert.Equal(t, data, sys.files[dest])
	}
}

func TestParseMode(t *testing.T) {
	for raw, want := range map[string]Mode{
		"atomic":      ModeAtomic,
		"best-effort": ModeBestEffort,
	} {
		got, err := ParseMode(raw)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseMode("yolo")
	assert.Error(t, err)
}
