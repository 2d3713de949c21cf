package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	appErrors "officeapp/internal/errors"
	"officeapp/internal/update"
)

type releasePublisher interface {
	PublishVersion(ctx context.Context, version string) error
	SetExpectedDigest(ctx context.Context, version, digest string) error
}

// publishRelease records version (and optionally its artifact digest) as the
// authoritative release. Inputs are validated before anything is written.
func publishRelease(ctx context.Context, p releasePublisher, version, digest string) error {
	version = strings.TrimSpace(version)
	if !update.IsValidVersion(version) {
		return appErrors.New(appErrors.CodeInvalidVersionFormat,
			fmt.Sprintf("invalid version format: %q", version), update.ErrInvalidVersion)
	}
	digest = strings.TrimSpace(digest)
	if digest != "" {
		raw, err := hex.DecodeString(digest)
		if err != nil || len(raw) != 32 {
			return appErrors.New(appErrors.CodeConfigurationError,
				fmt.Sprintf("-publish-sha256 must be 64 hex characters, got %q", digest), err)
		}
	}

	if err := p.PublishVersion(ctx, version); err != nil {
		return fmt.Errorf("publish version: %w", err)
	}
	if digest != "" {
		if err := p.SetExpectedDigest(ctx, version, digest); err != nil {
			return fmt.Errorf("publish digest: %w", err)
		}
	}
	return nil
}

// promptYesNo asks question on w and reads one answer from r.
// Anything other than y/yes, including EOF, is a no.
func promptYesNo(r io.Reader, w io.Writer, question string) bool {
	_, _ = fmt.Fprintf(w, "%s [y/N] ", question)
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		_, _ = fmt.Fprintln(w)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
