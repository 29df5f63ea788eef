// Package record persists install records, the authoritative ground truth of
// what an install actually created. Uninstall plans are computed from the
// record, never from the manifest that produced it.
package record

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/setupforge/setupforge/internal/messages"
)

// SchemaVersion is the install record JSON schema version.
const SchemaVersion = 1

// Status reports how the recorded install completed.
type Status string

const (
	// StatusComplete marks an install where every planned operation succeeded.
	StatusComplete Status = "complete"
	// StatusPartial marks a committed best-effort install with per-file
	// failures; only succeeded artifacts are recorded.
	StatusPartial Status = "partial"
)

// Artifact is one file the engine deployed, relative to the install root.
type Artifact struct {
	Path string `json:"path"`
	Hash string `json:"hash,omitempty"`
}

// Shortcut is one engine-created shortcut entry, by absolute path. Hash
// guards removal: entries modified outside the engine are never deleted.
type Shortcut struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
}

// InstallRecord is the persisted result of a successful (or committed
// partial) install, keyed by AppID.
type InstallRecord struct {
	SchemaVersion int    `json:"schema_version"`
	AppID         string `json:"app_id"`
	Name          string `json:"name"`
	Version       string `json:"version"`
	Publisher     string `json:"publisher,omitempty"`
	InstallRoot   string `json:"install_root"`
	Language      string `json:"language"`
	Compression   string `json:"compression,omitempty"`
	Status        Status `json:"status"`

	Files     []Artifact `json:"files"`
	Dirs      []string   `json:"dirs,omitempty"`
	Shortcuts []Shortcut `json:"shortcuts,omitempty"`
	Tasks     []string   `json:"tasks,omitempty"`

	CreatedAt string `json:"created_at_utc"`
	UpdatedAt string `json:"updated_at_utc"`
}

// ErrNotFound reports that no record exists for the requested app id.
var ErrNotFound = errors.New("install record not found")

// Validate checks structural invariants before a record is trusted.
func (r InstallRecord) Validate() error {
	if r.SchemaVersion != SchemaVersion {
		return fmt.Errorf("unsupported schema_version %d", r.SchemaVersion)
	}
	if strings.TrimSpace(r.AppID) == "" {
		return fmt.Errorf(messages.RecordAppIDRequired)
	}
	if strings.TrimSpace(r.InstallRoot) == "" {
		return fmt.Errorf("install_root is required")
	}
	switch r.Status {
	case StatusComplete, StatusPartial:
	default:
		return fmt.Errorf("unsupported status %q", r.Status)
	}
	if _, err := time.Parse(time.RFC3339, r.CreatedAt); err != nil {
		return fmt.Errorf("invalid created_at_utc %q: %w", r.CreatedAt, err)
	}
	if _, err := time.Parse(time.RFC3339, r.UpdatedAt); err != nil {
		return fmt.Errorf("invalid updated_at_utc %q: %w", r.UpdatedAt, err)
	}
	seen := make(map[string]struct{}, len(r.Files))
	for _, file := range r.Files {
		if strings.TrimSpace(file.Path) == "" {
			return fmt.Errorf("artifact path is required")
		}
		if strings.HasPrefix(file.Path, "/") || strings.Contains(file.Path, "..") {
			return fmt.Errorf("artifact path %q must be relative and inside the install root", file.Path)
		}
		if _, dup := seen[file.Path]; dup {
			return fmt.Errorf("duplicate artifact path %q", file.Path)
		}
		seen[file.Path] = struct{}{}
	}
	for _, sc := range r.Shortcuts {
		if strings.TrimSpace(sc.Path) == "" {
			return fmt.Errorf("shortcut path is required")
		}
		if strings.TrimSpace(sc.Hash) == "" {
			return fmt.Errorf("shortcut %s hash is required", sc.Path)
		}
	}
	return nil
}
