package messages

// Verify check names and result messages.
const (
	VerifyCheckNameRecord    = "record"
	VerifyCheckNameFiles     = "files"
	VerifyCheckNameShortcuts = "shortcuts"

	VerifyRecordOKFmt         = "record for %s (version %s) is valid"
	VerifyRootMissingFmt      = "install root %s does not exist"
	VerifyFileOKFmt           = "%s matches its recorded hash"
	VerifyFileMissingFmt      = "%s is missing"
	VerifyFileUnreadableFmt   = "%s could not be read: %v"
	VerifyFileModifiedFmt     = "%s differs from its recorded hash"
	VerifyFileUnhashedFmt     = "%s exists (no recorded hash to compare)"
	VerifyShortcutOKFmt       = "shortcut %s matches its recorded hash"
	VerifyShortcutMissingFmt  = "shortcut %s is missing"
	VerifyShortcutModifiedFmt = "shortcut %s was modified outside the engine"

	VerifyRecommendReinstall = "re-run install to restore the recorded state"
)
