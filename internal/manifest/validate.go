package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/setupforge/setupforge/internal/messages"
	"github.com/setupforge/setupforge/internal/version"
)

// Validate checks the expanded manifest for completeness and safety.
// source names the descriptor in error messages. All failures wrap
// ErrValidation.
func (m *Manifest) Validate(source string) error {
	if err := m.validateSetup(); err != nil {
		return fmt.Errorf("%w: %s: %w "+messages.ManifestValidationGuidance, ErrValidation, source, err)
	}
	if err := m.validateSections(); err != nil {
		return fmt.Errorf("%w: %s: %w "+messages.ManifestValidationGuidance, ErrValidation, source, err)
	}
	return nil
}

func (m *Manifest) validateSetup() error {
	if strings.TrimSpace(m.Setup.AppID) == "" {
		return fmt.Errorf(messages.ManifestAppIDRequired)
	}
	if strings.TrimSpace(m.Setup.Name) == "" {
		return fmt.Errorf(messages.ManifestNameRequired)
	}
	if strings.TrimSpace(m.Setup.Version) == "" {
		return fmt.Errorf(messages.ManifestVersionRequired)
	}
	normalized, err := version.Normalize(m.Setup.Version)
	if err != nil {
		return fmt.Errorf(messages.ManifestInvalidVersionFmt, m.Setup.Version, err)
	}
	m.Setup.Version = normalized
	if strings.TrimSpace(m.Setup.DefaultDir) == "" {
		return fmt.Errorf(messages.ManifestDefaultDirRequired)
	}
	if m.Setup.Compression == "" {
		m.Setup.Compression = CompressionNone
	}
	switch m.Setup.Compression {
	case CompressionNone, CompressionZip, CompressionLZMA:
	default:
		return fmt.Errorf(messages.ManifestInvalidCompressionFmt, m.Setup.Compression, "none, zip, lzma")
	}
	return nil
}

func (m *Manifest) validateSections() error {
	seenLangs := make(map[string]struct{}, len(m.Languages))
	for i, lang := range m.Languages {
		if strings.TrimSpace(lang.Code) == "" {
			return fmt.Errorf(messages.ManifestLanguageCodeRequired, i)
		}
		if _, dup := seenLangs[lang.Code]; dup {
			return fmt.Errorf(messages.ManifestDuplicateLanguageFmt, lang.Code)
		}
		seenLangs[lang.Code] = struct{}{}
	}

	seenTasks := make(map[string]struct{}, len(m.Tasks))
	for i, task := range m.Tasks {
		if strings.TrimSpace(task.Name) == "" {
			return fmt.Errorf(messages.ManifestTaskNameRequired, i)
		}
		if _, dup := seenTasks[task.Name]; dup {
			return fmt.Errorf(messages.ManifestDuplicateTaskFmt, task.Name)
		}
		seenTasks[task.Name] = struct{}{}
	}

	for i := range m.Files {
		rule := &m.Files[i]
		if strings.TrimSpace(rule.Source) == "" {
			return fmt.Errorf(messages.ManifestFileSourceRequired, i)
		}
		if strings.TrimSpace(rule.DestDir) == "" {
			return fmt.Errorf(messages.ManifestFileDestRequired, i)
		}
		if rule.Overwrite == "" {
			rule.Overwrite = OverwriteAlways
		}
		switch rule.Overwrite {
		case OverwriteAlways, OverwriteVersionAware:
		default:
			return fmt.Errorf(messages.ManifestInvalidOverwriteFmt, i, rule.Overwrite, "always, version-aware")
		}
		if rule.Arch == "" {
			rule.Arch = ArchAny
		}
		switch rule.Arch {
		case ArchAny, ArchAmd64, ArchArm64, Arch386:
		default:
			return fmt.Errorf(messages.ManifestInvalidArchFmt, i, rule.Arch, "any, amd64, arm64, 386")
		}
		if rule.Task != "" {
			if _, ok := seenTasks[rule.Task]; !ok {
				return fmt.Errorf(messages.ManifestUnknownTaskFmt, fmt.Sprintf("files[%d]", i), rule.Task)
			}
		}
		if err := destWithinRoot(m.Setup.DefaultDir, rule.DestDir); err != nil {
			return err
		}
	}

	for i, icon := range m.Icons {
		if strings.TrimSpace(icon.Name) == "" {
			return fmt.Errorf(messages.ManifestIconNameRequired, i)
		}
		if strings.TrimSpace(icon.Target) == "" {
			return fmt.Errorf(messages.ManifestIconTargetRequired, i)
		}
		if icon.Task != "" {
			if _, ok := seenTasks[icon.Task]; !ok {
				return fmt.Errorf(messages.ManifestUnknownTaskFmt, fmt.Sprintf("icons[%d]", i), icon.Task)
			}
		}
	}

	for i := range m.Run {
		action := &m.Run[i]
		if strings.TrimSpace(action.Target) == "" {
			return fmt.Errorf(messages.ManifestRunTargetRequired, i)
		}
		if action.Wait == "" {
			action.Wait = WaitBlocking
		}
		switch action.Wait {
		case WaitBlocking, WaitNone:
		default:
			return fmt.Errorf(messages.ManifestInvalidWaitModeFmt, i, action.Wait, "blocking, nowait")
		}
	}
	return nil
}

// destWithinRoot verifies dest normalizes to root or a path under it.
func destWithinRoot(root string, dest string) error {
	cleanRoot := filepath.Clean(root)
	cleanDest := filepath.Clean(dest)
	rel, err := filepath.Rel(cleanRoot, cleanDest)
	if err != nil {
		return fmt.Errorf(messages.ManifestDestEscapesRootFmt, dest)
	}
	rel = filepath.Clean(rel)
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) || filepath.IsAbs(rel) {
		return fmt.Errorf(messages.ManifestDestEscapesRootFmt, dest)
	}
	return nil
}
