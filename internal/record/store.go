package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	homedir "github.com/mitchellh/go-homedir"

	"github.com/setupforge/setupforge/internal/fsutil"
	"github.com/setupforge/setupforge/internal/messages"
)

// EnvStateDir overrides the record store directory.
const EnvStateDir = "SF_STATE_DIR"

const defaultStateSubdir = ".setupforge/records"

// Store reads and writes install records in a durable, engine-owned
// directory, one JSON file per app id.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. An empty dir resolves to
// $SF_STATE_DIR, falling back to <home>/.setupforge/records.
func NewStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) != "" {
		return &Store{dir: dir}, nil
	}
	if env := strings.TrimSpace(os.Getenv(EnvStateDir)); env != "" {
		return &Store{dir: env}, nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return nil, fmt.Errorf(messages.RecordStoreDirFmt, err)
	}
	return &Store{dir: filepath.Join(home, filepath.FromSlash(defaultStateSubdir))}, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the record file path for appID.
func (s *Store) Path(appID string) (string, error) {
	appID = strings.TrimSpace(appID)
	if appID == "" {
		return "", fmt.Errorf(messages.RecordAppIDRequired)
	}
	// Reject path traversal: appID must be a bare filename component.
	if filepath.Base(appID) != appID {
		return "", fmt.Errorf(messages.RecordInvalidAppIDFmt, appID)
	}
	return filepath.Join(s.dir, appID+".json"), nil
}

// Load reads and validates the record for appID. A missing record returns an
// error wrapping ErrNotFound.
func (s *Store) Load(appID string) (InstallRecord, error) {
	path, err := s.Path(appID)
	if err != nil {
		return InstallRecord{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return InstallRecord{}, fmt.Errorf("%w: "+messages.RecordNotFoundFmt, ErrNotFound, appID, s.dir)
		}
		return InstallRecord{}, err
	}
	var rec InstallRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return InstallRecord{}, fmt.Errorf(messages.RecordDecodeFmt, path, err)
	}
	if err := rec.Validate(); err != nil {
		return InstallRecord{}, fmt.Errorf(messages.RecordDecodeFmt, path, err)
	}
	return rec, nil
}

// Exists reports whether a record exists for appID.
func (s *Store) Exists(appID string) (bool, error) {
	_, err := s.Load(appID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

// Save validates and atomically writes rec, overwriting any prior record for
// the same app id.
func (s *Store) Save(rec InstallRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	path, err := s.Path(rec.AppID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf(messages.RecordWriteFmt, path, err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf(messages.RecordEncodeFmt, err)
	}
	data = append(data, '\n')
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf(messages.RecordWriteFmt, path, err)
	}
	return nil
}

// Delete removes the record for appID. Deleting an absent record is a no-op.
func (s *Store) Delete(appID string) error {
	path, err := s.Path(appID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf(messages.RecordDeleteFmt, path, err)
	}
	return nil
}
