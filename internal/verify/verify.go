// Package verify runs offline integrity checks of a recorded install
// against the filesystem: every recorded file and shortcut must exist and
// match its recorded content hash.
package verify

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/setupforge/setupforge/internal/messages"
	"github.com/setupforge/setupforge/internal/record"
)

// Status classifies one check result.
type Status string

const (
	StatusOK   Status = "OK"
	StatusWarn Status = "WARN"
	StatusFail Status = "FAIL"
)

// Result is one verification finding.
type Result struct {
	Status         Status
	CheckName      string
	Message        string
	Recommendation string
}

// Report is the full set of findings for one app.
type Report struct {
	Results []Result
}

// Clean reports whether no check failed. Warnings do not make a report
// unclean.
func (r Report) Clean() bool {
	for _, res := range r.Results {
		if res.Status == StatusFail {
			return false
		}
	}
	return true
}

// Run loads the record for appID from store and checks every recorded
// artifact. A missing record is an error; individual artifact problems are
// findings, not errors.
func Run(store *record.Store, appID string) (Report, error) {
	rec, err := store.Load(appID)
	if err != nil {
		return Report{}, err
	}

	var report Report
	report.Results = append(report.Results, Result{
		Status:    StatusOK,
		CheckName: messages.VerifyCheckNameRecord,
		Message:   fmt.Sprintf(messages.VerifyRecordOKFmt, rec.AppID, rec.Version),
	})

	if _, err := os.Stat(rec.InstallRoot); err != nil {
		report.Results = append(report.Results, Result{
			Status:         StatusFail,
			CheckName:      messages.VerifyCheckNameFiles,
			Message:        fmt.Sprintf(messages.VerifyRootMissingFmt, rec.InstallRoot),
			Recommendation: messages.VerifyRecommendReinstall,
		})
		return report, nil
	}

	for _, artifact := range rec.Files {
		report.Results = append(report.Results, checkFile(rec.InstallRoot, artifact))
	}
	for _, sc := range rec.Shortcuts {
		report.Results = append(report.Results, checkShortcut(sc))
	}
	return report, nil
}

func checkFile(root string, artifact record.Artifact) Result {
	abs := filepath.Join(root, filepath.FromSlash(artifact.Path))
	data, err := os.ReadFile(abs)
	if errors.Is(err, os.ErrNotExist) {
		return Result{
			Status:         StatusFail,
			CheckName:      messages.VerifyCheckNameFiles,
			Message:        fmt.Sprintf(messages.VerifyFileMissingFmt, artifact.Path),
			Recommendation: messages.VerifyRecommendReinstall,
		}
	}
	if err != nil {
		return Result{
			Status:         StatusFail,
			CheckName:      messages.VerifyCheckNameFiles,
			Message:        fmt.Sprintf(messages.VerifyFileUnreadableFmt, artifact.Path, err),
			Recommendation: messages.VerifyRecommendReinstall,
		}
	}
	if artifact.Hash == "" {
		// Sidecar metadata files are recorded without a hash.
		return Result{
			Status:    StatusOK,
			CheckName: messages.VerifyCheckNameFiles,
			Message:   fmt.Sprintf(messages.VerifyFileUnhashedFmt, artifact.Path),
		}
	}
	sum := sha256.Sum256(data)
	if hex.EncodeToString(sum[:]) != artifact.Hash {
		return Result{
			Status:         StatusFail,
			CheckName:      messages.VerifyCheckNameFiles,
			Message:        fmt.Sprintf(messages.VerifyFileModifiedFmt, artifact.Path),
			Recommendation: messages.VerifyRecommendReinstall,
		}
	}
	return Result{
		Status:    StatusOK,
		CheckName: messages.VerifyCheckNameFiles,
		Message:   fmt.Sprintf(messages.VerifyFileOKFmt, artifact.Path),
	}
}

func checkShortcut(sc record.Shortcut) Result {
	data, err := os.ReadFile(sc.Path)
	if err != nil {
		return Result{
			Status:         StatusFail,
			CheckName:      messages.VerifyCheckNameShortcuts,
			Message:        fmt.Sprintf(messages.VerifyShortcutMissingFmt, sc.Path),
			Recommendation: messages.VerifyRecommendReinstall,
		}
	}
	sum := sha256.Sum256(data)
	if hex.EncodeToString(sum[:]) != sc.Hash {
		// A foreign edit is worth knowing about but uninstall already
		// tolerates it.
		return Result{
			Status:    StatusWarn,
			CheckName: messages.VerifyCheckNameShortcuts,
			Message:   fmt.Sprintf(messages.VerifyShortcutModifiedFmt, sc.Path),
		}
	}
	return Result{
		Status:    StatusOK,
		CheckName: messages.VerifyCheckNameShortcuts,
		Message:   fmt.Sprintf(messages.VerifyShortcutOKFmt, sc.Path),
	}
}
