package update

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"officeapp/internal/debug"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// Default download limits.
const (
	DefaultMaxBytes        int64 = 100 * 1024 * 1024
	DefaultChunkSize             = 8 * 1024
	DefaultDownloadTimeout       = 10 * time.Minute
	defaultUserAgent             = "officeapp-updater"
)

// ProgressFunc receives download progress as a percentage in [0, 100].
// It runs synchronously on the goroutine driving the download; callers that
// own a UI thread must redispatch themselves.
type ProgressFunc func(percent int)

// DownloadSession describes one transfer attempt.
type DownloadSession struct {
	ID               string
	SourceURL        string
	DestinationPath  string
	MaxBytes         int64
	ExpectedBytes    int64 // -1 when the server did not advertise a length
	BytesTransferred int64
}

// Downloader streams a single artifact to disk with a hard size cap.
type Downloader struct {
	httpClient *http.Client
	maxBytes   int64
	chunkSize  int
	userAgent  string
}

// DownloaderOption configures a Downloader.
type DownloaderOption func(*Downloader)

// WithDownloaderHTTPClient sets a custom HTTP client for the downloader.
func WithDownloaderHTTPClient(client *http.Client) DownloaderOption {
	return func(d *Downloader) {
		if client != nil {
			d.httpClient = client
		}
	}
}

// WithMaxBytes caps the artifact size. Non-positive values are ignored.
func WithMaxBytes(n int64) DownloaderOption {
	return func(d *Downloader) {
		if n > 0 {
			d.maxBytes = n
		}
	}
}

// WithChunkSize sets the read buffer size. Non-positive values are ignored.
func WithChunkSize(n int) DownloaderOption {
	return func(d *Downloader) {
		if n > 0 {
			d.chunkSize = n
		}
	}
}

// WithDownloadTimeout sets the HTTP client timeout for the whole request.
// The client is copied first so a shared client is never modified.
func WithDownloadTimeout(timeout time.Duration) DownloaderOption {
	return func(d *Downloader) {
		if timeout > 0 {
			client := *d.httpClient
			client.Timeout = timeout
			d.httpClient = &client
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) DownloaderOption {
	return func(d *Downloader) {
		if ua != "" {
			d.userAgent = ua
		}
	}
}

// NewDownloader creates a downloader with a 10 minute timeout, a 100 MiB cap
// and 8 KiB chunks unless overridden.
func NewDownloader(opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		httpClient: &http.Client{
			Timeout: DefaultDownloadTimeout,
		},
		maxBytes:  DefaultMaxBytes,
		chunkSize: DefaultChunkSize,
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// MaxBytes returns the configured size cap.
func (d *Downloader) MaxBytes() int64 {
	return d.maxBytes
}

// Download streams url into dest. On any failure or cancellation dest is
// removed before returning, and the response body and file are closed on
// every path. Cancellation is observed between chunks and reported with
// ErrCancelled, distinct from transfer errors.
func (d *Downloader) Download(ctx context.Context, url, dest string, onProgress ProgressFunc) (DownloadSession, error) {
	session := DownloadSession{
		ID:              uuid.NewString(),
		SourceURL:       url,
		DestinationPath: dest,
		MaxBytes:        d.maxBytes,
		ExpectedBytes:   -1,
	}

	if err := ctx.Err(); err != nil {
		return session, fail(ErrCancelled, "download cancelled before start", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return session, fail(ErrTransferFailed, fmt.Sprintf("create request: %v", err), err)
	}
	req.Header.Set("Accept", "application/octet-stream")
	req.Header.Set("User-Agent", d.userAgent)

	debug.Event("download started", "session", session.ID, "url", url, "dest", dest)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return session, d.classifyTransferError(ctx, "request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return session, fail(ErrTransferFailed, fmt.Sprintf("download failed: status %d", resp.StatusCode), nil)
	}

	session.ExpectedBytes = resp.ContentLength
	if resp.ContentLength > d.maxBytes {
		return session, fail(ErrSizeLimitExceeded, fmt.Sprintf(
			"update artifact is %s, larger than the %s limit",
			humanize.IBytes(uint64(resp.ContentLength)), humanize.IBytes(uint64(d.maxBytes)),
		), nil)
	}

	//nolint:gosec // G304: dest is built from a validated, sanitized version
	f, err := os.Create(dest)
	if err != nil {
		return session, fail(ErrTransferFailed, fmt.Sprintf("create %s: %v", dest, err), err)
	}

	written, copyErr := d.copyChunks(ctx, f, resp.Body, resp.ContentLength, onProgress)
	session.BytesTransferred = written
	closeErr := f.Close()
	if copyErr == nil && closeErr != nil {
		copyErr = fail(ErrTransferFailed, fmt.Sprintf("close %s: %v", dest, closeErr), closeErr)
	}
	if copyErr == nil {
		copyErr = checkNonEmpty(dest)
	}
	if copyErr != nil {
		removePartial(dest)
		debug.Warn("download aborted", "session", session.ID, "bytes", written, "err", copyErr)
		return session, copyErr
	}

	debug.Event("download finished", "session", session.ID, "bytes", written)
	return session, nil
}

// copyChunks copies body into w one chunk at a time, enforcing maxBytes on
// the running total before each write.
func (d *Downloader) copyChunks(ctx context.Context, w io.Writer, body io.Reader, expected int64, onProgress ProgressFunc) (int64, error) {
	buf := make([]byte, d.chunkSize)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, fail(ErrCancelled, "download cancelled", err)
		}

		n, readErr := body.Read(buf)
		if n > 0 {
			total += int64(n)
			if total > d.maxBytes {
				return total, fail(ErrSizeLimitExceeded, fmt.Sprintf(
					"update artifact exceeded the %s limit during download",
					humanize.IBytes(uint64(d.maxBytes)),
				), nil)
			}
			if _, err := w.Write(buf[:n]); err != nil {
				return total, fail(ErrTransferFailed, fmt.Sprintf("write artifact: %v", err), err)
			}
			if onProgress != nil && expected > 0 {
				onProgress(percentOf(total, expected))
			}
		}

		if errors.Is(readErr, io.EOF) {
			return total, nil
		}
		if readErr != nil {
			return total, d.classifyTransferError(ctx, "read response body", readErr)
		}
	}
}

// classifyTransferError separates caller cancellation from network faults.
func (d *Downloader) classifyTransferError(ctx context.Context, action string, err error) error {
	if ctx.Err() != nil {
		return fail(ErrCancelled, "download cancelled", ctx.Err())
	}
	return fail(ErrTransferFailed, fmt.Sprintf("%s: %v", action, err), err)
}

func percentOf(done, total int64) int {
	if total <= 0 {
		return 0
	}
	p := int(done * 100 / total)
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}

func checkNonEmpty(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fail(ErrTransferFailed, fmt.Sprintf("downloaded file missing: %v", err), err)
	}
	if info.Size() == 0 {
		return fail(ErrTransferFailed, "downloaded file is empty", nil)
	}
	return nil
}

func removePartial(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		debug.Warn("remove partial artifact failed", "path", path, "err", err)
	}
}
