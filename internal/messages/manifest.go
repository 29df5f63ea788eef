package messages

// Manifest parsing and validation messages.
const (
	ManifestMissingFileFmt      = "failed to read manifest %s: %w"
	ManifestInvalidFmt          = "invalid manifest %s: %w"
	ManifestUnrecognizedKeysFmt = "manifest %s contains unrecognized keys: %w"
	ManifestValidationGuidance  = "Fix the manifest and run `sf plan` to preview the install."

	ManifestAppIDRequired         = "setup.app_id is required"
	ManifestNameRequired          = "setup.name is required"
	ManifestVersionRequired       = "setup.version is required"
	ManifestInvalidVersionFmt     = "setup.version %q is not a valid version: %v"
	ManifestDefaultDirRequired    = "setup.default_dir is required"
	ManifestInvalidCompressionFmt = "setup.compression %q must be one of %s"

	ManifestLanguageCodeRequired  = "languages[%d].code is required"
	ManifestDuplicateLanguageFmt  = "duplicate language code %q"
	ManifestTaskNameRequired      = "tasks[%d].name is required"
	ManifestDuplicateTaskFmt      = "duplicate task name %q"
	ManifestFileSourceRequired    = "files[%d].source is required"
	ManifestFileDestRequired      = "files[%d].dest_dir is required"
	ManifestInvalidOverwriteFmt   = "files[%d].overwrite %q must be one of %s"
	ManifestInvalidArchFmt        = "files[%d].arch %q must be one of %s"
	ManifestUnknownTaskFmt        = "%s references undeclared task %q"
	ManifestIconNameRequired      = "icons[%d].name is required"
	ManifestIconTargetRequired    = "icons[%d].target is required"
	ManifestRunTargetRequired     = "run[%d].target is required"
	ManifestInvalidWaitModeFmt    = "run[%d].wait %q must be one of %s"
	ManifestDestEscapesRootFmt    = "destination %q resolves outside the install root"
	ManifestSourceMissingFmt      = "source pattern %q matched no files under %s"
	ManifestSourceGlobFmt         = "source pattern %q is invalid: %w"

	ManifestUnknownPlaceholderFmt = "unknown placeholder {%s} in %q"
	ManifestCyclicReferenceFmt    = "placeholder cycle detected: %s"
	ManifestExpansionTooDeepFmt   = "placeholder expansion exceeded depth %d at {%s}"
	ManifestReservedDefineFmt     = "defines.%s shadows a built-in placeholder"
)
