// Package version normalizes and compares application versions.
//
// Manifest versions are semver-shaped but tolerant of shorthand like "1.2":
// Normalize canonicalizes them to X.Y.Z so upgrade detection and the
// version-aware overwrite policy compare on a single, total order.
package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Normalize canonicalizes raw into X.Y.Z form, tolerating a leading "v" and
// missing minor/patch segments.
func Normalize(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("version is empty")
	}
	v, err := semver.NewVersion(trimmed)
	if err != nil {
		return "", fmt.Errorf("invalid version %q: %w", raw, err)
	}
	return v.String(), nil
}

// Compare returns -1, 0, or 1 ordering a against b.
// Both arguments must be normalizable; Compare errors otherwise.
func Compare(a string, b string) (int, error) {
	va, err := semver.NewVersion(strings.TrimSpace(a))
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", a, err)
	}
	vb, err := semver.NewVersion(strings.TrimSpace(b))
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", b, err)
	}
	return va.Compare(vb), nil
}

// AtLeast reports whether a >= b. Unparseable versions report false rather
// than erroring, so a corrupt destination sidecar falls back to overwriting.
func AtLeast(a string, b string) bool {
	cmp, err := Compare(a, b)
	if err != nil {
		return false
	}
	return cmp >= 0
}
