package verify

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/setupforge/setupforge/internal/record"
)

func hashOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func seedRecord(t *testing.T, root string) (*record.Store, record.InstallRecord) {
	t.Helper()
	store, err := record.NewStore(filepath.Join(t.TempDir(), "records"))
	require.NoError(t, err)

	payload := []byte("payload")
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "app.bin"), payload, 0o644))

	entry := []byte("name = 'Demo'\n")
	scPath := filepath.Join(t.TempDir(), "Demo.entry")
	require.NoError(t, os.WriteFile(scPath, entry, 0o644))

	now := time.Now().UTC().Format(time.RFC3339)
	rec := record.InstallRecord{
		SchemaVersion: record.SchemaVersion,
		AppID:         "demo-app",
		Name:          "Demo",
		Version:       "1.0.0",
		InstallRoot:   root,
		Language:      "en",
		Status:        record.StatusComplete,
		Files:         []record.Artifact{{Path: "app.bin", Hash: hashOf(payload)}},
		Shortcuts:     []record.Shortcut{{Path: scPath, Hash: hashOf(entry)}},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, store.Save(rec))
	return store, rec
}

func TestRunCleanInstall(t *testing.T) {
	root := filepath.Join(t.TempDir(), "app")
	store, _ := seedRecord(t, root)

	report, err := Run(store, "demo-app")
	require.NoError(t, err)
	assert.True(t, report.Clean())
}

func TestRunMissingFile(t *testing.T) {
	root := filepath.Join(t.TempDir(), "app")
	store, _ := seedRecord(t, root)
	require.NoError(t, os.Remove(filepath.Join(root, "app.bin")))

	report, err := Run(store, "demo-app")
	require.NoError(t, err)
	assert.False(t, report.Clean())
}

func TestRunModifiedFile(t *testing.T) {
	root := filepath.Join(t.TempDir(), "app")
	store, _ := seedRecord(t, root)
	require.NoError(t, os.WriteFile(filepath.Join(root, "app.bin"), []byte("tampered"), 0o644))

	report, err := Run(store, "demo-app")
	require.NoError(t, err)
	assert.False(t, report.Clean())
}

func TestRunForeignShortcutWarns(t *testing.T) {
	root := filepath.Join(t.TempDir(), "app")
	store, rec := seedRecord(t, root)
	require.NoError(t, os.WriteFile(rec.Shortcuts[0].Path, []byte("name = 'Edited'\n"), 0o644))

	report, err := Run(store, "demo-app")
	require.NoError(t, err)
	// A foreign edit is a warning, not a failure.
	assert.True(t, report.Clean())
	var warned bool
	for _, res := range report.Results {
		warned = warned || res.Status == StatusWarn
	}
	assert.True(t, warned)
}

func TestRunMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "app")
	store, _ := seedRecord(t, root)
	require.NoError(t, os.RemoveAll(root))

	report, err := Run(store, "demo-app")
	require.NoError(t, err)
	assert.False(t, report.Clean())
}

func TestRunUnknownApp(t *testing.T) {
	store, err := record.NewStore(t.TempDir())
	require.NoError(t, err)
	_, err = Run(store, "nope")
	assert.ErrorIs(t, err, record.ErrNotFound)
}
