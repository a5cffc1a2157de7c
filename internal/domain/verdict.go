package domain

// Verdict is the gate's answer for one intercepted navigation.
type Verdict string

const (
	// VerdictAllow lets the navigation proceed, either because the URL is
	// not a watched site or because the tab holds an active session for it.
	VerdictAllow Verdict = "allow"

	// VerdictRequireJustification redirects the tab to the justification view.
	VerdictRequireJustification Verdict = "require_justification"

	// VerdictTemporaryBlocked redirects the tab to the cool-down view.
	VerdictTemporaryBlocked Verdict = "temporary_blocked"
)
