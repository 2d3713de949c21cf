package update

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"officeapp/internal/debug"
	appErrors "officeapp/internal/errors"
)

// DefaultBaseURL is the server hosting update artifacts.
const DefaultBaseURL = "https://mwj-2v5.ru/officeApp"

// Stage is a state of a single update pass.
type Stage int

const (
	StageIdle Stage = iota
	StageChecking
	StageNoUpdate
	StageUpdateAvailable
	StageDeclined
	StageDownloading
	StageDownloadFailed
	StageCancelled
	StageDownloaded
	StageVerifyFailed
	StageVerified
	StageFinalized
)

// String returns the string representation of a Stage.
func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageChecking:
		return "checking"
	case StageNoUpdate:
		return "no_update"
	case StageUpdateAvailable:
		return "update_available"
	case StageDeclined:
		return "declined"
	case StageDownloading:
		return "downloading"
	case StageDownloadFailed:
		return "download_failed"
	case StageCancelled:
		return "cancelled"
	case StageDownloaded:
		return "downloaded"
	case StageVerifyFailed:
		return "verify_failed"
	case StageVerified:
		return "verified"
	case StageFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// Outcome is the terminal state of one Run.
type Outcome struct {
	Stage            Stage
	Check            CheckResult
	Version          string
	ArtifactPath     string // set only while the artifact is kept on disk
	BytesTransferred int64
	Digest           string
	Verified         bool // false when no expected digest was published
	Err              error
}

// Succeeded reports whether the update was downloaded, verified and recorded.
func (o Outcome) Succeeded() bool {
	return o.Stage == StageFinalized && o.Err == nil
}

// Cancelled reports whether the caller cancelled the pass.
func (o Outcome) Cancelled() bool {
	return o.Stage == StageCancelled
}

// Code returns the structured error code, or "" when there was no error.
func (o Outcome) Code() appErrors.Code {
	if o.Err == nil {
		return ""
	}
	return appErrors.CodeOf(o.Err)
}

// Message returns a human-readable summary suitable for the caller to present.
func (o Outcome) Message() string {
	if o.Err != nil {
		return o.Err.Error()
	}
	switch o.Stage {
	case StageNoUpdate:
		return fmt.Sprintf("You are running the latest version: %s", o.Check.CurrentVersion)
	case StageDeclined:
		return fmt.Sprintf("Update to %s was declined", o.Version)
	case StageFinalized:
		if !o.Verified {
			return fmt.Sprintf("Update %s downloaded to %s (no published checksum, integrity not verified)", o.Version, o.ArtifactPath)
		}
		return fmt.Sprintf("Update %s downloaded and verified: %s", o.Version, o.ArtifactPath)
	default:
		return o.Stage.String()
	}
}

// Updater sequences check, confirm, download, verify and finalize.
// At most one Run may be active per Updater.
type Updater struct {
	resolver   Resolver
	recorder   VersionRecorder
	downloader *Downloader
	digests    DigestSource
	baseURL    string
	tempDir    string
	onStage    func(Stage)

	running sync.Mutex
}

// UpdaterOption configures an Updater.
type UpdaterOption func(*Updater)

// WithDownloader sets the downloader used for artifact transfers.
func WithDownloader(d *Downloader) UpdaterOption {
	return func(u *Updater) {
		if d != nil {
			u.downloader = d
		}
	}
}

// WithDigestSource sets where expected artifact digests come from.
// Without one, integrity verification is skipped.
func WithDigestSource(src DigestSource) UpdaterOption {
	return func(u *Updater) {
		u.digests = src
	}
}

// WithBaseURL sets the artifact server base URL.
func WithBaseURL(baseURL string) UpdaterOption {
	return func(u *Updater) {
		if s := strings.TrimSpace(baseURL); s != "" {
			u.baseURL = s
		}
	}
}

// WithTempDir sets the directory artifacts are downloaded into.
func WithTempDir(dir string) UpdaterOption {
	return func(u *Updater) {
		if s := strings.TrimSpace(dir); s != "" {
			u.tempDir = s
		}
	}
}

// WithStageHook registers fn to be called on every stage transition.
func WithStageHook(fn func(Stage)) UpdaterOption {
	return func(u *Updater) {
		u.onStage = fn
	}
}

// NewUpdater creates an updater. recorder may be nil, in which case
// finalizing records nothing.
func NewUpdater(resolver Resolver, recorder VersionRecorder, opts ...UpdaterOption) *Updater {
	u := &Updater{
		resolver:   resolver,
		recorder:   recorder,
		downloader: NewDownloader(),
		baseURL:    DefaultBaseURL,
		tempDir:    os.TempDir(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// ArtifactName returns the update package file name for a sanitized version.
func ArtifactName(sanitizedVersion string) string {
	return "OfficeApp_" + sanitizedVersion + ".zip"
}

// Run performs one check and, if an update is available and confirmed is
// true, downloads, verifies and finalizes it. ctx cancels the transfer;
// onProgress may be nil.
func (u *Updater) Run(ctx context.Context, confirmed bool, onProgress ProgressFunc) Outcome {
	if !u.running.TryLock() {
		return inProgress()
	}
	defer u.running.Unlock()

	return u.apply(ctx, u.Check(ctx), confirmed, onProgress)
}

// Apply acts on a check the caller already presented, so the version that
// gets downloaded is exactly check.AvailableVersion even if the store has
// moved on since.
func (u *Updater) Apply(ctx context.Context, check CheckResult, confirmed bool, onProgress ProgressFunc) Outcome {
	if !u.running.TryLock() {
		return inProgress()
	}
	defer u.running.Unlock()

	return u.apply(ctx, check, confirmed, onProgress)
}

func inProgress() Outcome {
	return Outcome{
		Stage: StageIdle,
		Err:   fail(ErrUpdateInProgress, "an update is already in progress", nil),
	}
}

func (u *Updater) apply(ctx context.Context, check CheckResult, confirmed bool, onProgress ProgressFunc) Outcome {
	out := Outcome{Check: check, Version: check.AvailableVersion}
	if !check.Success {
		out.Stage = StageCancelled
		out.Err = fail(ErrCancelled, check.ErrorMessage, ctx.Err())
		return u.finish(out)
	}
	if !check.HasUpdate {
		out.Stage = StageNoUpdate
		return u.finish(out)
	}
	u.setStage(StageUpdateAvailable)
	if !confirmed {
		out.Stage = StageDeclined
		return u.finish(out)
	}

	u.setStage(StageDownloading)
	target, err := u.prepare(check.AvailableVersion)
	if err != nil {
		out.Stage = StageDownloadFailed
		out.Err = err
		return u.finish(out)
	}

	session, err := u.downloader.Download(ctx, target.url, target.path, onProgress)
	out.BytesTransferred = session.BytesTransferred
	if err != nil {
		out.Stage = StageDownloadFailed
		if appErrors.IsCode(err, appErrors.CodeCancelled) {
			out.Stage = StageCancelled
		}
		out.Err = err
		return u.finish(out)
	}
	out.ArtifactPath = target.path
	u.setStage(StageDownloaded)

	digest, verified, err := u.verify(ctx, check.AvailableVersion, target.path)
	out.Digest = digest
	if err != nil {
		removePartial(target.path)
		out.ArtifactPath = ""
		out.Stage = StageVerifyFailed
		out.Err = err
		return u.finish(out)
	}
	out.Verified = verified
	u.setStage(StageVerified)

	if u.recorder != nil {
		if err := u.recorder.RecordAppVersion(ctx, check.AvailableVersion); err != nil {
			out.Stage = StageVerified
			out.Err = appErrors.New(appErrors.CodeStoreFailed,
				fmt.Sprintf("update %s verified but writing back the release version failed: %v", check.AvailableVersion, err), err)
			return u.finish(out)
		}
	}
	out.Stage = StageFinalized
	return u.finish(out)
}

type downloadTarget struct {
	url  string
	path string
}

// prepare validates the version and builds the artifact URL and destination.
// Nothing touches the network or filesystem if it fails.
func (u *Updater) prepare(version string) (downloadTarget, error) {
	if !IsValidVersion(version) {
		return downloadTarget{}, fail(ErrInvalidVersion, fmt.Sprintf("invalid version format: %q", version), nil)
	}
	name := ArtifactName(SanitizeVersion(version))
	rawURL := strings.TrimRight(u.baseURL, "/") + "/" + name
	if !IsSecureURL(rawURL) {
		return downloadTarget{}, fail(ErrInsecureTransport,
			fmt.Sprintf("refusing to download update over an insecure connection: %s (https required)", rawURL), nil)
	}
	return downloadTarget{url: rawURL, path: filepath.Join(u.tempDir, name)}, nil
}

// verify hashes the artifact and compares it with the published digest.
func (u *Updater) verify(ctx context.Context, version, path string) (string, bool, error) {
	var expected string
	if u.digests != nil {
		d, err := u.digests.ExpectedDigest(ctx, version)
		if err != nil {
			return "", false, appErrors.New(appErrors.CodeStoreFailed,
				fmt.Sprintf("look up expected digest for %s: %v", version, err), err)
		}
		expected = strings.TrimSpace(d)
	}

	actual, err := FileDigest(path)
	if err != nil {
		return "", false, fail(ErrTransferFailed, fmt.Sprintf("hash artifact: %v", err), err)
	}
	if expected == "" {
		debug.Warn("no expected digest published, integrity not verified", "version", version, "sha256", actual)
		return actual, false, nil
	}
	if err := VerifyChecksum(path, expected); err != nil {
		debug.Warn("integrity mismatch", "version", version, "expected", expected, "actual", actual)
		return actual, false, err
	}
	return actual, true, nil
}

func (u *Updater) setStage(s Stage) {
	debug.Event("update stage", "stage", s.String())
	if u.onStage != nil {
		u.onStage(s)
	}
}

func (u *Updater) finish(out Outcome) Outcome {
	u.setStage(out.Stage)
	return out
}
