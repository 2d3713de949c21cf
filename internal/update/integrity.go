package update

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileDigest streams path through SHA-256 and returns the lowercase hex digest.
func FileDigest(path string) (string, error) {
	//nolint:gosec // G304: Path comes from caller; this is intentional for checksum verification
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyFile reports whether path hashes to expected (hex, any case).
// An empty expected digest means nothing was published and is vacuously satisfied.
func VerifyFile(path, expected string) (bool, error) {
	expected = strings.TrimSpace(expected)
	if expected == "" {
		return true, nil
	}
	actual, err := FileDigest(path)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(actual, expected), nil
}

// VerifyChecksum verifies a file against an expected SHA-256 checksum and
// returns an integrity_mismatch error when they differ.
func VerifyChecksum(path, expected string) error {
	ok, err := VerifyFile(path, expected)
	if err != nil {
		return err
	}
	if !ok {
		actual, _ := FileDigest(path)
		return fail(ErrChecksumMismatch, fmt.Sprintf(
			"update artifact failed integrity check: expected %s, got %s",
			strings.ToLower(strings.TrimSpace(expected)), actual,
		), nil)
	}
	return nil
}

// ParseChecksumFile parses a checksums.txt file and returns a map of filename to checksum.
// Format: "sha256hash  filename" (two spaces between hash and filename)
func ParseChecksumFile(r io.Reader) (map[string]string, error) {
	checksums := make(map[string]string)
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		hash := fields[0]
		// sha256sum marks binary mode with a leading '*'
		filename := filepath.Base(strings.TrimPrefix(fields[1], "*"))

		if hash != "" && filename != "" {
			checksums[filename] = strings.ToLower(hash)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read checksums: %w", err)
	}

	return checksums, nil
}

// DigestSource looks up the expected SHA-256 for a version's artifact.
// It returns "" with a nil error when no digest is published.
type DigestSource interface {
	ExpectedDigest(ctx context.Context, version string) (string, error)
}

// DigestSources consults each source in order and returns the first non-empty digest.
type DigestSources []DigestSource

// ExpectedDigest implements DigestSource.
func (s DigestSources) ExpectedDigest(ctx context.Context, version string) (string, error) {
	for _, src := range s {
		if src == nil {
			continue
		}
		digest, err := src.ExpectedDigest(ctx, version)
		if err != nil {
			return "", err
		}
		if digest = strings.TrimSpace(digest); digest != "" {
			return digest, nil
		}
	}
	return "", nil
}

// ChecksumFileSource reads digests from a local sha256sum-format file,
// matching entries by artifact file name.
type ChecksumFileSource struct {
	Path string
}

// ExpectedDigest implements DigestSource. A missing file yields no digest.
func (s ChecksumFileSource) ExpectedDigest(_ context.Context, version string) (string, error) {
	if strings.TrimSpace(s.Path) == "" {
		return "", nil
	}
	//nolint:gosec // G304: checksum file path comes from user configuration
	f, err := os.Open(s.Path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("open checksum file: %w", err)
	}
	defer func() { _ = f.Close() }()

	sums, err := ParseChecksumFile(f)
	if err != nil {
		return "", err
	}
	return sums[ArtifactName(SanitizeVersion(version))], nil
}
