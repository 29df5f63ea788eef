package messages

// CLI surface messages.
const (
	RootUse   = "sf"
	RootShort = "setupforge packages a manifest of files, tasks, and shortcuts into a reversible install"

	InstallUse               = "install"
	InstallShort             = "Install an application from a manifest"
	InstallFlagManifest      = "path to the install manifest"
	InstallFlagLang          = "language code for this session (default: manifest's first language)"
	InstallFlagDir           = "install root override"
	InstallFlagTasks         = "comma-separated task names to select"
	InstallFlagMode          = "execution mode: atomic or best-effort"
	InstallFlagWorkers       = "parallel copy workers (1 = sequential)"
	InstallManifestRequired  = "--manifest is required"
	InstallInvalidModeFmt    = "invalid --mode %q: must be atomic or best-effort"
	InstallInvalidWorkersFmt = "invalid --workers %d: must be at least 1"
	InstallDoneFmt           = "Installed %s %s (%d files, %d shortcuts)\n"
	InstallPartialFmt        = "Partial install of %s: %d succeeded, %d failed\n"
	InstallFailedItemFmt     = "  failed: %s: %v\n"

	UninstallUse           = "uninstall"
	UninstallShort         = "Remove a previously installed application"
	UninstallFlagAppID     = "app id recorded at install time"
	UninstallAppIDRequired = "--app-id is required"
	UninstallDoneFmt       = "Uninstalled %s (%d artifacts removed)\n"
	UninstallLeftoverFmt   = "  could not remove %s: %v\n"

	PlanUse           = "plan"
	PlanShort         = "Preview the install plan without touching the filesystem"
	PlanFlagDiffLines = "maximum diff lines shown per overwritten file"
	PlanHeaderFmt     = "Plan for %s %s (%d operations):\n"
	PlanTaskLineFmt   = "  task %s: %s\n"
	PlanOpLineFmt     = "  %-10s %s\n"
	PlanDiffHeaderFmt = "--- overwrite diff for %s ---\n"
	PlanDiffTruncated = "  ... diff truncated; raise --diff-lines to see more\n"

	VerifyUse      = "verify"
	VerifyShort    = "Check a recorded install against the filesystem"
	VerifyCleanFmt = "Verified %s: %d artifacts intact\n"
	VerifyIssueFmt = "  %s: %s\n"
	VerifyDirtyFmt = "Verification of %s found %d problems\n"

	FlagQuiet   = "suppress warning output"
	FlagVerbose = "enable debug logging"

	VersionTemplate  = "{{.Version}}\n"
	VersionCommitFmt = "commit %s"
	VersionBuildFmt  = "built %s"
	VersionFullFmt   = "%s (%s)"
)
