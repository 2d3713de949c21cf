package update

import (
	"context"
	"fmt"
	"time"

	"officeapp/internal/debug"
)

// CheckResult contains the result of a version check.
type CheckResult struct {
	HasUpdate        bool
	CurrentVersion   string
	AvailableVersion string
	Success          bool
	ErrorMessage     string

	// LocalIsNewer is set when both versions parse and the running build
	// orders after the authoritative one. It is informational only and
	// never changes HasUpdate.
	LocalIsNewer bool
	CheckedAt    time.Time
}

// Check compares the local and authoritative versions by exact string
// equality. Any difference, including a newer local build, is reported as
// an available update.
func (u *Updater) Check(ctx context.Context) CheckResult {
	u.setStage(StageChecking)

	now := time.Now()
	if err := ctx.Err(); err != nil {
		return CheckResult{
			Success:      false,
			ErrorMessage: fmt.Sprintf("update check failed: %v", err),
			CheckedAt:    now,
		}
	}

	current := u.resolver.LocalVersion()
	available := u.resolver.AuthoritativeVersion(ctx)

	result := CheckResult{
		HasUpdate:        current != available,
		CurrentVersion:   current,
		AvailableVersion: available,
		Success:          true,
		CheckedAt:        now,
	}
	if result.HasUpdate {
		if c, err := CompareVersions(current, available); err == nil && c > 0 {
			result.LocalIsNewer = true
			debug.Warn("authoritative version is older than the running build", "local", current, "authoritative", available)
		}
	}
	debug.Event("update check", "local", current, "authoritative", available, "has_update", result.HasUpdate)
	return result
}
