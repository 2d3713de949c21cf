package update

import (
	"context"
	"strings"

	"officeapp/internal/debug"
)

// VersionSource reads the authoritative release version recorded by the backend.
type VersionSource interface {
	AuthoritativeVersion(ctx context.Context) (string, error)
}

// VersionRecorder writes the authoritative version back after a verified update.
type VersionRecorder interface {
	RecordAppVersion(ctx context.Context, version string) error
}

// Resolver supplies the two versions an update check compares.
// Neither method fails: lookup problems resolve to BaselineVersion.
type Resolver interface {
	LocalVersion() string
	AuthoritativeVersion(ctx context.Context) string
}

// StoreResolver pairs the version embedded in the running build with the
// authoritative version held by a VersionSource.
type StoreResolver struct {
	local  string
	source VersionSource
}

// NewResolver creates a resolver for the given build version and source.
// source may be nil, in which case the authoritative version is always the baseline.
func NewResolver(buildVersion string, source VersionSource) *StoreResolver {
	return &StoreResolver{
		local:  strings.TrimSpace(buildVersion),
		source: source,
	}
}

// LocalVersion returns the build version, or BaselineVersion when none was embedded.
func (r *StoreResolver) LocalVersion() string {
	if r.local == "" {
		return BaselineVersion
	}
	return r.local
}

// AuthoritativeVersion returns the recorded release version.
// An unreachable store or a missing value is not fatal to the application;
// both degrade to BaselineVersion and are only logged.
func (r *StoreResolver) AuthoritativeVersion(ctx context.Context) string {
	if r.source == nil {
		return BaselineVersion
	}
	v, err := r.source.AuthoritativeVersion(ctx)
	if err != nil {
		debug.Warn("authoritative version lookup failed, using baseline", "baseline", BaselineVersion, "err", err)
		return BaselineVersion
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return BaselineVersion
	}
	return v
}
