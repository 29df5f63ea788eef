package deploy

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/setupforge/setupforge/internal/messages"
)

type entryKind int

const (
	// entryFilePre captures a file's pre-run content and mode.
	entryFilePre entryKind = iota
	// entryAbsent records that the path did not exist before this run.
	entryAbsent
	// entryDirCreated records a directory this run created.
	entryDirCreated
)

// journalEntry is one pre-image captured before a mutation in atomic mode.
type journalEntry struct {
	kind    entryKind
	path    string
	content []byte
	perm    os.FileMode
}

// journalPreImage captures the state of path before it is mutated.
func (e *executor) journalPreImage(path string) {
	data, err := e.sys.ReadFile(path)
	if err != nil {
		e.journal = append(e.journal, journalEntry{kind: entryAbsent, path: path})
		return
	}
	perm := os.FileMode(0o644)
	if info, statErr := e.sys.Stat(path); statErr == nil {
		perm = info.Mode().Perm()
	}
	e.journal = append(e.journal, journalEntry{kind: entryFilePre, path: path, content: data, perm: perm})
}

// rollback restores journaled pre-images in reverse order. Any restoration
// failure aborts with a RollbackError naming the paths still unprocessed.
func (e *executor) rollback() error {
	for i := len(e.journal) - 1; i >= 0; i-- {
		entry := e.journal[i]
		if err := e.restore(entry); err != nil {
			remaining := make([]string, 0, i+1)
			for j := i; j >= 0; j-- {
				remaining = append(remaining, e.journal[j].path)
			}
			return &RollbackError{RollbackCause: err, Indeterminate: remaining}
		}
		e.logger.Debug("rolled back", zap.String("path", entry.path))
	}
	e.journal = e.journal[:0]
	return nil
}

func (e *executor) restore(entry journalEntry) error {
	switch entry.kind {
	case entryFilePre:
		if err := e.sys.WriteFileAtomic(entry.path, entry.content, entry.perm); err != nil {
			return fmt.Errorf(messages.DeployRollbackRestoreFmt, entry.path, err)
		}
	case entryAbsent, entryDirCreated:
		if err := e.sys.Remove(entry.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf(messages.DeployRollbackResetFmt, entry.path, err)
		}
	}
	return nil
}
