package manifest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/setupforge/setupforge/internal/messages"
)

// Load reads, parses, validates, and expands the descriptor at path, then
// verifies that every declared source pattern matches at least one file
// relative to the descriptor's directory.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf(messages.ManifestMissingFileFmt, path, err)
	}
	m, err := Parse(data, path)
	if err != nil {
		return nil, err
	}
	baseDir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	m.BaseDir = baseDir
	if err := m.checkSources(); err != nil {
		return nil, err
	}
	return m, nil
}

// Parse parses and validates descriptor TOML data from a source identifier.
// data is the TOML content; source is used in error messages. The returned
// manifest has all placeholders expanded.
func Parse(data []byte, source string) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf(messages.ManifestInvalidFmt, source, err)
	}
	if err := decodeStrict(data); err != nil {
		return nil, fmt.Errorf("%w: "+messages.ManifestUnrecognizedKeysFmt+" "+messages.ManifestValidationGuidance, ErrValidation, source, err)
	}
	if err := m.expandPlaceholders(); err != nil {
		return nil, err
	}
	if err := m.Validate(source); err != nil {
		return nil, err
	}
	return &m, nil
}

// ParseLenient parses descriptor TOML without validation or expansion.
// Returns an error only on TOML syntax errors, making it suitable for
// tooling that needs to inspect partially valid descriptors.
func ParseLenient(data []byte, source string) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf(messages.ManifestInvalidFmt, source, err)
	}
	return &m, nil
}

// decodeStrict re-decodes the TOML data with strict unknown-field rejection.
// This catches keys that toml.Unmarshal silently ignores (e.g. a typo'd
// overwite on a file rule).
func decodeStrict(data []byte) error {
	var m Manifest
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	return decoder.Decode(&m)
}

// checkSources verifies each file rule's source pattern matches at least one
// existing file under BaseDir.
func (m *Manifest) checkSources() error {
	for _, rule := range m.Files {
		pattern := rule.Source
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(m.BaseDir, pattern)
		}
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return fmt.Errorf("%w: "+messages.ManifestSourceGlobFmt, ErrValidation, rule.Source, err)
		}
		if len(matches) == 0 {
			return fmt.Errorf("%w: "+messages.ManifestSourceMissingFmt, ErrResourceMissing, rule.Source, m.BaseDir)
		}
	}
	return nil
}
