// Package manifest parses and validates install descriptors.
//
// A descriptor is a TOML document with a [setup] block plus optional
// [[languages]], [[tasks]], [[files]], [[icons]], [[run]], [install_delete],
// and [defines] sections. Parsing produces an immutable Manifest; nothing in
// this package mutates the filesystem.
package manifest

// OverwritePolicy controls how a file rule treats an existing destination.
type OverwritePolicy string

const (
	// OverwriteAlways replaces destination content unconditionally.
	OverwriteAlways OverwritePolicy = "always"
	// OverwriteVersionAware skips the copy when the destination's recorded
	// version is at least the manifest version.
	OverwriteVersionAware OverwritePolicy = "version-aware"
)

// Arch constrains a file rule to a target architecture.
type Arch string

const (
	ArchAny   Arch = "any"
	ArchAmd64 Arch = "amd64"
	ArchArm64 Arch = "arm64"
	Arch386   Arch = "386"
)

// WaitMode controls whether a run action blocks until the process exits.
type WaitMode string

const (
	// WaitBlocking waits for process exit and reports the exit code as advisory.
	WaitBlocking WaitMode = "blocking"
	// WaitNone starts the process and releases the handle immediately.
	WaitNone WaitMode = "nowait"
)

// Compression names the payload compression mode. Codec internals are outside
// the engine; the value is validated and carried through to the record.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZip  Compression = "zip"
	CompressionLZMA Compression = "lzma"
)

// Setup holds application-level metadata from the [setup] block.
type Setup struct {
	AppID            string      `toml:"app_id"`
	Name             string      `toml:"name"`
	Version          string      `toml:"version"`
	Publisher        string      `toml:"publisher,omitempty"`
	URL              string      `toml:"url,omitempty"`
	SupportURL       string      `toml:"support_url,omitempty"`
	DefaultDir       string      `toml:"default_dir"`
	DefaultGroupName string      `toml:"default_group,omitempty"`
	IconPath         string      `toml:"icon,omitempty"`
	Compression      Compression `toml:"compression,omitempty"`
}

// Language declares a selectable install language.
type Language struct {
	Code         string `toml:"code"`
	MessagesPath string `toml:"messages,omitempty"`
}

// Task is a user-toggleable optional unit of install behavior.
type Task struct {
	Name            string `toml:"name"`
	Description     string `toml:"description,omitempty"`
	Group           string `toml:"group,omitempty"`
	DefaultSelected bool   `toml:"default,omitempty"`
}

// FileRule maps a source pattern to a destination directory.
type FileRule struct {
	Source    string          `toml:"source"`
	DestDir   string          `toml:"dest_dir"`
	Overwrite OverwritePolicy `toml:"overwrite,omitempty"`
	Recurse   bool            `toml:"recurse,omitempty"`
	Arch      Arch            `toml:"arch,omitempty"`
	Task      string          `toml:"task,omitempty"`
}

// IconEntry declares a shortcut pointing at an installed target.
type IconEntry struct {
	Name   string `toml:"name"`
	Target string `toml:"target"`
	Task   string `toml:"task,omitempty"`
}

// RunAction declares a process launched after a successful install.
type RunAction struct {
	Target      string   `toml:"target"`
	Description string   `toml:"description,omitempty"`
	Wait        WaitMode `toml:"wait,omitempty"`
}

// InstallDelete scopes the pre-install cleanup of previously-owned artifacts.
type InstallDelete struct {
	Scope []string `toml:"scope,omitempty"`
}

// Manifest is the validated, fully expanded model of a descriptor.
type Manifest struct {
	Setup         Setup             `toml:"setup"`
	Languages     []Language        `toml:"languages,omitempty"`
	Tasks         []Task            `toml:"tasks,omitempty"`
	Files         []FileRule        `toml:"files,omitempty"`
	Icons         []IconEntry       `toml:"icons,omitempty"`
	Run           []RunAction       `toml:"run,omitempty"`
	InstallDelete InstallDelete     `toml:"install_delete,omitempty"`
	Defines       map[string]string `toml:"defines,omitempty"`

	// BaseDir is the directory containing the descriptor; source patterns
	// resolve relative to it. Set by Load, empty after a bare Parse.
	BaseDir string `toml:"-"`
}

// TaskByName returns the declared task with the given name.
func (m *Manifest) TaskByName(name string) (Task, bool) {
	for _, task := range m.Tasks {
		if task.Name == name {
			return task, true
		}
	}
	return Task{}, false
}

// DefaultLanguage returns the first declared language code, or "en" when the
// manifest declares none.
func (m *Manifest) DefaultLanguage() string {
	if len(m.Languages) == 0 {
		return "en"
	}
	return m.Languages[0].Code
}

// HasLanguage reports whether code is a declared language. A manifest with no
// [[languages]] section accepts only the implicit default.
func (m *Manifest) HasLanguage(code string) bool {
	if len(m.Languages) == 0 {
		return code == "en"
	}
	for _, lang := range m.Languages {
		if lang.Code == code {
			return true
		}
	}
	return false
}
