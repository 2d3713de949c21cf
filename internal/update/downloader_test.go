package update

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	appErrors "officeapp/internal/errors"
)

func assertNoFile(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected %s to be absent, stat err = %v", path, err)
	}
}

func TestNewDownloaderDefaults(t *testing.T) {
	d := NewDownloader()
	if d.maxBytes != DefaultMaxBytes {
		t.Errorf("maxBytes = %d, want %d", d.maxBytes, DefaultMaxBytes)
	}
	if d.chunkSize != DefaultChunkSize {
		t.Errorf("chunkSize = %d, want %d", d.chunkSize, DefaultChunkSize)
	}
	if d.httpClient == nil || d.httpClient.Timeout != DefaultDownloadTimeout {
		t.Errorf("httpClient timeout should default to %s", DefaultDownloadTimeout)
	}
}

func TestNewDownloaderWithOptions(t *testing.T) {
	client := &http.Client{}
	d := NewDownloader(
		WithDownloaderHTTPClient(client),
		WithMaxBytes(1024),
		WithChunkSize(16),
		WithDownloadTimeout(time.Second),
		WithMaxBytes(-5),
	)
	if d.httpClient != client {
		t.Error("custom HTTP client not applied")
	}
	if d.maxBytes != 1024 {
		t.Errorf("maxBytes = %d, want 1024 (non-positive override ignored)", d.maxBytes)
	}
	if d.chunkSize != 16 {
		t.Errorf("chunkSize = %d, want 16", d.chunkSize)
	}
	if client.Timeout != time.Second {
		t.Errorf("timeout = %s, want 1s", client.Timeout)
	}
}

func TestDownloadTimeoutLeavesSharedClientAlone(t *testing.T) {
	shared := &http.Client{}
	d := NewDownloader(WithDownloaderHTTPClient(shared), WithDownloadTimeout(3*time.Second))
	if shared.Timeout != 0 {
		t.Fatalf("shared client timeout changed to %s", shared.Timeout)
	}
	if d.httpClient.Timeout != 3*time.Second {
		t.Errorf("timeout = %s, want 3s", d.httpClient.Timeout)
	}

	def := NewDownloader(WithDownloaderHTTPClient(http.DefaultClient), WithDownloadTimeout(time.Second))
	if http.DefaultClient.Timeout != 0 {
		t.Fatalf("http.DefaultClient timeout changed to %s", http.DefaultClient.Timeout)
	}
	if def.httpClient == http.DefaultClient {
		t.Error("expected a copy of http.DefaultClient")
	}
}

func TestDownloadSuccessReportsProgress(t *testing.T) {
	content := bytes.Repeat([]byte("officeapp"), 5000) // 45000 bytes, several chunks
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != defaultUserAgent {
			t.Errorf("User-Agent = %q, want %q", got, defaultUserAgent)
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(content)))
		_, _ = w.Write(content)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "OfficeApp_1.1.0.0.zip")
	var reports []int
	session, err := NewDownloader().Download(context.Background(), server.URL+"/a.zip", dest, func(p int) {
		reports = append(reports, p)
	})
	if err != nil {
		t.Fatalf("Download() error: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("downloaded %d bytes, want %d matching bytes", len(got), len(content))
	}
	if session.BytesTransferred != int64(len(content)) {
		t.Errorf("BytesTransferred = %d, want %d", session.BytesTransferred, len(content))
	}
	if session.ExpectedBytes != int64(len(content)) {
		t.Errorf("ExpectedBytes = %d, want %d", session.ExpectedBytes, len(content))
	}
	if session.ID == "" {
		t.Error("session ID should be set")
	}

	if len(reports) < 2 {
		t.Fatalf("expected several progress reports, got %v", reports)
	}
	for i := 1; i < len(reports); i++ {
		if reports[i] < reports[i-1] {
			t.Fatalf("progress went backwards: %v", reports)
		}
	}
	if last := reports[len(reports)-1]; last != 100 {
		t.Fatalf("final progress = %d, want 100", last)
	}
}

func TestDownloadNoProgressWithoutLength(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.(http.Flusher).Flush() // forces chunked encoding, no Content-Length
		_, _ = w.Write([]byte("payload"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "artifact.zip")
	called := false
	if _, err := NewDownloader().Download(context.Background(), server.URL, dest, func(int) { called = true }); err != nil {
		t.Fatalf("Download() error: %v", err)
	}
	if called {
		t.Error("progress should not be reported when the total is unknown")
	}
}

func TestDownloadRejectsDeclaredOversize(t *testing.T) {
	const declared = 200 * 1024 * 1024
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(declared))
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "big.zip")
	progressCalled := false
	session, err := NewDownloader().Download(context.Background(), server.URL, dest, func(int) { progressCalled = true })
	if !appErrors.IsCode(err, appErrors.CodeSizeLimitExceeded) {
		t.Fatalf("expected size_limit_exceeded, got %v", err)
	}
	if !errors.Is(err, ErrSizeLimitExceeded) {
		t.Fatalf("expected ErrSizeLimitExceeded in chain, got %v", err)
	}
	if session.BytesTransferred != 0 {
		t.Errorf("BytesTransferred = %d, want 0", session.BytesTransferred)
	}
	if progressCalled {
		t.Error("no chunk should be processed for an oversize declared length")
	}
	assertNoFile(t, dest)
}

func TestDownloadAbortsWhenStreamExceedsLimit(t *testing.T) {
	const limit = 64 * 1024
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No Content-Length: the server never advertises how much it will send.
		w.(http.Flusher).Flush()
		chunk := bytes.Repeat([]byte{0xAB}, 16*1024)
		for i := 0; i < 16; i++ {
			if _, err := w.Write(chunk); err != nil {
				return
			}
			w.(http.Flusher).Flush()
		}
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "liar.zip")
	session, err := NewDownloader(WithMaxBytes(limit)).Download(context.Background(), server.URL, dest, nil)
	if !appErrors.IsCode(err, appErrors.CodeSizeLimitExceeded) {
		t.Fatalf("expected size_limit_exceeded, got %v", err)
	}
	if session.BytesTransferred <= limit {
		t.Errorf("BytesTransferred = %d, expected to pass the %d limit", session.BytesTransferred, limit)
	}
	assertNoFile(t, dest)
}

func TestDownloadCancelledMidTransfer(t *testing.T) {
	const chunk = DefaultChunkSize
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(10*chunk))
		w.WriteHeader(http.StatusOK)
		for i := 0; i < 3; i++ {
			_, _ = w.Write(bytes.Repeat([]byte{byte(i)}, chunk))
			w.(http.Flusher).Flush()
		}
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dest := filepath.Join(t.TempDir(), "cancel.zip")
	calls := 0
	_, err := NewDownloader().Download(ctx, server.URL, dest, func(int) {
		calls++
		if calls == 2 {
			cancel()
		}
	})
	if !appErrors.IsCode(err, appErrors.CodeCancelled) {
		t.Fatalf("expected cancelled, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled in chain, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected reading to stop right after cancel, got %d progress calls", calls)
	}
	assertNoFile(t, dest)
}

func TestDownloadCancelledBeforeStart(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dest := filepath.Join(t.TempDir(), "never.zip")
	if _, err := NewDownloader().Download(ctx, server.URL, dest, nil); !appErrors.IsCode(err, appErrors.CodeCancelled) {
		t.Fatalf("expected cancelled, got %v", err)
	}
	if hits != 0 {
		t.Errorf("expected no request, got %d", hits)
	}
	assertNoFile(t, dest)
}

func TestDownloadFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.NotFound(w, r)
			},
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name:    "empty body",
			handler: func(w http.ResponseWriter, r *http.Request) {},
		},
		{
			name: "truncated body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Length", "4096")
				_, _ = w.Write([]byte("short"))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			dest := filepath.Join(t.TempDir(), "fail.zip")
			_, err := NewDownloader().Download(context.Background(), server.URL, dest, nil)
			if !appErrors.IsCode(err, appErrors.CodeTransferFailed) {
				t.Fatalf("expected transfer_failed, got %v", err)
			}
			assertNoFile(t, dest)
		})
	}
}

func TestDownloadUnwritableDestination(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("payload"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "missing-dir", "a.zip")
	_, err := NewDownloader().Download(context.Background(), server.URL, dest, nil)
	if !appErrors.IsCode(err, appErrors.CodeTransferFailed) {
		t.Fatalf("expected transfer_failed, got %v", err)
	}
}

func TestPercentOf(t *testing.T) {
	tests := []struct {
		done, total int64
		want        int
	}{
		{done: 0, total: 100, want: 0},
		{done: 50, total: 200, want: 25},
		{done: 200, total: 200, want: 100},
		{done: 300, total: 200, want: 100},
		{done: 10, total: 0, want: 0},
	}
	for _, tt := range tests {
		if got := percentOf(tt.done, tt.total); got != tt.want {
			t.Errorf("percentOf(%d, %d) = %d, want %d", tt.done, tt.total, got, tt.want)
		}
	}
}
