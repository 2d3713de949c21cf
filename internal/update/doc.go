// Package update provides version checking and self-update functionality.
//
// This package handles:
//   - Resolving the local build version and the authoritative version recorded by the backend
//   - Validating and sanitizing version strings before they reach a file path or URL
//   - Refusing any artifact transfer that is not over https
//   - Streaming the artifact to disk with a size cap, progress, and cancellation
//   - Verifying the artifact's SHA-256 against a published digest
//
// The package is isolated from UI concerns. It returns structured data
// (CheckResult, Outcome) that the caller can present however it wants, and
// invokes progress callbacks on the download goroutine.
//
// Example usage:
//
//	u := update.NewUpdater(update.NewResolver(Version, store), store,
//	    update.WithDigestSource(store))
//	result := u.Check(ctx)
//	if result.HasUpdate && confirm(result) {
//	    out := u.Apply(ctx, result, true, func(pct int) { /* redispatch to UI */ })
//	    if !out.Succeeded() {
//	        // branch on out.Code()
//	    }
//	}
package update
