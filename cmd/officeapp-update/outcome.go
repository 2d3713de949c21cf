package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	appErrors "officeapp/internal/errors"
	"officeapp/internal/update"

	"github.com/dustin/go-humanize"
)

// handleOutcome prints the result of a run and returns the process exit code.
func handleOutcome(w io.Writer, out update.Outcome, elapsed time.Duration) int {
	if out.Succeeded() {
		_, _ = fmt.Fprint(w, formatSuccessMessage(out, elapsed))
		return exitOK
	}
	if out.Cancelled() {
		_, _ = fmt.Fprint(w, "Update cancelled. No partial download was kept.\n")
		return exitCancelled
	}
	if out.Err == nil {
		_, _ = fmt.Fprintln(w, out.Message())
		return exitOK
	}

	if appErrors.IsSecurityEvent(out.Err) {
		_, _ = fmt.Fprint(w, formatSecurityMessage(out))
		return exitSecurity
	}
	if out.Stage == update.StageVerifyFailed {
		_, _ = fmt.Fprint(w, formatVerifyFailureMessage(out))
		return exitFailure
	}

	switch out.Code() {
	case appErrors.CodeSizeLimitExceeded:
		_, _ = fmt.Fprint(w, formatSizeLimitMessage(out))
		return exitFailure
	case appErrors.CodeStoreFailed:
		_, _ = fmt.Fprint(w, formatStoreFailureMessage(out))
		return exitFailure
	case appErrors.CodeUpdateInProgress:
		_, _ = fmt.Fprintln(w, "Error: another update is already running. Try again when it finishes.")
		return exitFailure
	default:
		_, _ = fmt.Fprint(w, formatTransferFailureMessage(out))
		return exitFailure
	}
}

func formatSuccessMessage(out update.Outcome, elapsed time.Duration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Update %s downloaded in %s (%s)\n",
		out.Version, formatDuration(elapsed), humanize.IBytes(uint64(max(out.BytesTransferred, 0))))
	fmt.Fprintf(&b, "  File:    %s\n", out.ArtifactPath)
	fmt.Fprintf(&b, "  SHA-256: %s\n", out.Digest)
	if out.Verified {
		b.WriteString("  Integrity verified against the published checksum.\n")
	} else {
		b.WriteString("  Warning: no checksum was published for this release; integrity was not verified.\n")
	}
	return b.String()
}

func formatSecurityMessage(out update.Outcome) string {
	var reason string
	switch out.Code() {
	case appErrors.CodeInvalidVersionFormat:
		reason = "The release version recorded on the server is not a valid version string."
	case appErrors.CodeInsecureTransport:
		reason = "The update server URL does not use HTTPS."
	case appErrors.CodeIntegrityMismatch:
		reason = "The downloaded file does not match its published checksum and was deleted."
	}
	return fmt.Sprintf(`Error: update blocked for security reasons

%s
Details: %s

Nothing was installed. Contact your administrator if this keeps happening.

`, reason, errorText(out.Err))
}

func formatSizeLimitMessage(out update.Outcome) string {
	return fmt.Sprintf(`Error: update package too large

%s
Downloaded before abort: %s

The partial download was removed.

`, errorText(out.Err), humanize.IBytes(uint64(max(out.BytesTransferred, 0))))
}

func formatStoreFailureMessage(out update.Outcome) string {
	return fmt.Sprintf(`Warning: update downloaded but not recorded

The package for %s was downloaded and kept at:
  %s

Recording the installed version failed: %s

`, out.Version, out.ArtifactPath, errorText(out.Err))
}

func formatVerifyFailureMessage(out update.Outcome) string {
	return fmt.Sprintf(`Error: could not verify update %s

%s

The downloaded package was removed because its integrity could not be checked.
Re-run with -debug and inspect ~/.officeapp/debug.log

`, out.Version, errorText(out.Err))
}

func formatTransferFailureMessage(out update.Outcome) string {
	return fmt.Sprintf(`Error: could not download update %s

%s

Troubleshooting:
  - Check your network connection
  - Re-run with -debug and inspect ~/.officeapp/debug.log

`, out.Version, errorText(out.Err))
}

func errorText(err error) string {
	if err == nil {
		return "unknown error"
	}
	text := strings.TrimSpace(err.Error())
	if text == "" {
		return "unknown error"
	}
	return text
}

// formatDuration formats a duration into a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		if secs == 0 {
			return fmt.Sprintf("%dm", mins)
		}
		return fmt.Sprintf("%dm %ds", mins, secs)
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	if mins == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh %dm", hours, mins)
}
