package deploy

import (
	"fmt"
	"strings"
)

// PermissionError reports a target path the engine was not allowed to
// write or remove.
type PermissionError struct {
	Path string
	Err  error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied for %s: %v", e.Path, e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// PartialInstallError reports a best-effort run that finished with per-file
// failures. Succeeded and Failed name the affected destinations.
type PartialInstallError struct {
	Succeeded []string
	Failed    map[string]error
}

func (e *PartialInstallError) Error() string {
	failed := make([]string, 0, len(e.Failed))
	for path := range e.Failed {
		failed = append(failed, path)
	}
	return fmt.Sprintf("install finished with %d failures (%s); %d operations succeeded",
		len(e.Failed), strings.Join(failed, ", "), len(e.Succeeded))
}

// RollbackError reports that an atomic-mode rollback itself failed. It is
// fatal: Indeterminate names the artifacts left in an unknown state.
type RollbackError struct {
	Cause         error
	RollbackCause error
	Indeterminate []string
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("rollback failed after %v: %v; artifacts in indeterminate state: %s",
		e.Cause, e.RollbackCause, strings.Join(e.Indeterminate, ", "))
}

func (e *RollbackError) Unwrap() error { return e.RollbackCause }
