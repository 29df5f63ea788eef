// Package shortcut writes and removes the launcher entry files the engine
// owns. Entries are small TOML documents; removal is guarded by the content
// hash recorded at install time so files modified by anything else are left
// in place.
package shortcut

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"

	"github.com/setupforge/setupforge/internal/fsutil"
	"github.com/setupforge/setupforge/internal/messages"
)

// Entry is the serialized form of one launcher entry.
type Entry struct {
	Name       string `toml:"name"`
	Target     string `toml:"target"`
	WorkingDir string `toml:"working_dir,omitempty"`
	Icon       string `toml:"icon,omitempty"`
	Arguments  string `toml:"arguments,omitempty"`
}

// System is the filesystem surface the manager needs.
type System interface {
	ReadFile(name string) ([]byte, error)
	WriteFileAtomic(name string, data []byte, perm os.FileMode) error
	MkdirAll(path string, perm os.FileMode) error
	Remove(name string) error
}

// RealSystem backs System with the host filesystem.
type RealSystem struct{}

func (RealSystem) ReadFile(name string) ([]byte, error) { return os.ReadFile(name) }

func (RealSystem) WriteFileAtomic(name string, data []byte, perm os.FileMode) error {
	return fsutil.WriteFileAtomic(name, data, perm)
}

func (RealSystem) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }

func (RealSystem) Remove(name string) error { return os.Remove(name) }

// Manager writes and removes entry files.
type Manager struct {
	sys    System
	logger *zap.Logger
}

func NewManager(sys System, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{sys: sys, logger: logger}
}

// Write serializes the entry to path and returns the content hash that
// Remove later requires.
func (m *Manager) Write(path string, entry Entry) (string, error) {
	data, err := toml.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf(messages.ShortcutWriteFmt, path, err)
	}
	if err := m.sys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf(messages.ShortcutWriteFmt, path, err)
	}
	if err := m.sys.WriteFileAtomic(path, data, 0o644); err != nil {
		return "", fmt.Errorf(messages.ShortcutWriteFmt, path, err)
	}
	return Hash(data), nil
}

// Remove deletes the entry at path only when its current content still
// matches expectedHash. A missing file counts as removed; a file with
// different content is left alone and reported as not removed.
func (m *Manager) Remove(path, expectedHash string) (bool, error) {
	data, err := m.sys.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if Hash(data) != expectedHash {
		m.logger.Warn(fmt.Sprintf(messages.ShortcutSkippedForeignFmt, path))
		return false, nil
	}
	if err := m.sys.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return true, nil
		}
		return false, err
	}
	return true, nil
}

// Hash returns the hex sha256 of an entry file's content.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
