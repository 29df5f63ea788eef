package manifest

import "errors"

// ErrValidation wraps malformed or incomplete descriptor failures
// (as opposed to TOML syntax or filesystem errors). Callers use
// errors.Is(err, ErrValidation) to map the failure to an exit code.
var ErrValidation = errors.New("manifest validation failed")

// ErrResourceMissing wraps failures where a declared source pattern matches
// no file on disk.
var ErrResourceMissing = errors.New("declared source missing")

// ErrCyclicReference wraps placeholder substitution cycles. It is always
// raised before any plan is built.
var ErrCyclicReference = errors.New("cyclic placeholder reference")
