package task

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/setupforge/setupforge/internal/manifest"
	"github.com/setupforge/setupforge/internal/testutil"
)

func TestRunAllLaunchesRealProcesses(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "ran")
	stub := testutil.WriteStubTouching(t, dir, "post-install", marker)

	runner := NewRunner(nil)
	err := runner.RunAll(context.Background(), []manifest.RunAction{
		{Target: stub, Wait: manifest.WaitBlocking},
	})
	require.NoError(t, err)
	assert.FileExists(t, marker)
}

func TestRunAllNonZeroExitIsAdvisory(t *testing.T) {
	stub := testutil.WriteStubWithExit(t, t.TempDir(), "failing", 3)

	runner := NewRunner(nil)
	err := runner.RunAll(context.Background(), []manifest.RunAction{
		{Target: stub, Wait: manifest.WaitBlocking},
	})
	// The exit code is logged, never surfaced as a failure.
	assert.NoError(t, err)
}

func TestRunAllMissingTargetFails(t *testing.T) {
	runner := NewRunner(nil)
	err := runner.RunAll(context.Background(), []manifest.RunAction{
		{Target: filepath.Join(t.TempDir(), "absent"), Wait: manifest.WaitBlocking},
	})
	assert.Error(t, err)
}

func TestRunAllNowaitReleases(t *testing.T) {
	stub := testutil.WriteStub(t, t.TempDir(), "background")

	runner := NewRunner(nil)
	err := runner.RunAll(context.Background(), []manifest.RunAction{
		{Target: stub, Wait: manifest.WaitNone},
	})
	assert.NoError(t, err)
}
