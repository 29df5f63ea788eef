package messages

// Planner, deployer, and session messages.
const (
	PlanRootRequired          = "install root is required"
	PlanSystemRequired        = "planner filesystem is required"
	PlanInvalidDeleteScopeFmt = "install_delete scope %q is invalid: %w"

	DeploySystemRequired     = "deploy system is required"
	DeployUnknownOpFmt       = "unsupported operation kind %q"
	DeployCreateDirFmt       = "failed to create directory %s: %w"
	DeployCopyFmt            = "failed to copy %s to %s: %w"
	DeployDeleteFmt          = "failed to delete %s: %w"
	DeployWriteVersionFmt    = "failed to write version metadata for %s: %w"
	DeployRollbackResetFmt   = "reset %s during rollback: %w"
	DeployRollbackRestoreFmt = "restore %s during rollback: %w"

	RecordStoreDirFmt     = "failed to resolve record store directory: %w"
	RecordAppIDRequired   = "app id is required"
	RecordInvalidAppIDFmt = "invalid app id %q: must not contain path separators"
	RecordNotFoundFmt     = "no install record for app id %q under %s"
	RecordDecodeFmt       = "decode install record %s: %w"
	RecordEncodeFmt       = "encode install record: %w"
	RecordWriteFmt        = "failed to write install record %s: %w"
	RecordDeleteFmt       = "failed to delete install record %s: %w"

	ShortcutWriteFmt          = "failed to write shortcut %s: %w"
	ShortcutSkippedForeignFmt = "shortcut %s was modified outside the engine; leaving it in place"

	TaskRunFailedFmt   = "post-install action %s exited with an error: %v"
	TaskStartFailedFmt = "failed to start post-install action %s: %w"

	EngineManifestRequired      = "manifest is required"
	EngineUnknownLanguageFmt    = "language %q is not declared in the manifest"
	EngineUnknownTaskFlagFmt    = "unknown task %q in --tasks"
	EngineInstallCancelled      = "install cancelled before completion"
	EngineUninstallLeftoversFmt = "uninstall completed with %d artifacts left in place"
)
