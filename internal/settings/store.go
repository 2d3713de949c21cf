// Package settings persists application-wide key/value settings in SQLite.
//
// The store backs the self-update subsystem: it holds the authoritative
// release version published by the backend, written back after a verified
// update, and optional expected artifact digests keyed by version.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	appErrors "officeapp/internal/errors"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Setting keys understood by the update subsystem.
const (
	KeyAppVersion = "app_version"

	digestKeyPrefix = "artifact_sha256:"
)

// ErrNotFound indicates the requested setting has no row.
var ErrNotFound = errors.New("settings: key not found")

const schema = `
CREATE TABLE IF NOT EXISTS office_app_settings (
	setting_key   TEXT PRIMARY KEY,
	setting_value TEXT NOT NULL,
	updated_at    TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);`

// Store is a SQLite-backed settings table.
type Store struct {
	path string
	db   *sql.DB
}

// Open opens (creating if needed) the settings database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, appErrors.New(appErrors.CodeConfigurationError, "settings database path is empty", nil)
	}
	//nolint:gosec // G301: settings directory needs standard permissions
	if err := os.MkdirAll(filepath.Dir(trimmed), 0755); err != nil {
		return nil, storeError("create settings directory", err)
	}

	db, err := sql.Open("sqlite", buildDSN(trimmed))
	if err != nil {
		return nil, storeError("open settings db", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, storeError("ping settings db", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, storeError("create settings schema", err)
	}
	return &Store{path: trimmed, db: db}, nil
}

// buildDSN creates a read-write WAL DSN for the given path.
func buildDSN(dbPath string) string {
	u := url.URL{
		Scheme: "file",
		Path:   filepath.ToSlash(dbPath),
	}
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(3000)")
	q.Add("_pragma", "journal_mode(WAL)")
	u.RawQuery = q.Encode()
	return u.String()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the value stored under key, or an error coded not_found.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT setting_value FROM office_app_settings WHERE setting_key = ? LIMIT 1`, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", appErrors.New(appErrors.CodeNotFound, fmt.Sprintf("setting %q not found", key), ErrNotFound)
	}
	if err != nil {
		return "", storeError(fmt.Sprintf("read setting %q", key), err)
	}
	return value, nil
}

// Set upserts value under key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO office_app_settings (setting_key, setting_value)
		VALUES (?, ?)
		ON CONFLICT(setting_key) DO UPDATE SET
			setting_value = excluded.setting_value,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`,
		key, value,
	)
	if err != nil {
		return storeError(fmt.Sprintf("write setting %q", key), err)
	}
	return nil
}

// AuthoritativeVersion returns the release version published by the backend.
func (s *Store) AuthoritativeVersion(ctx context.Context) (string, error) {
	return s.Get(ctx, KeyAppVersion)
}

// PublishVersion records version as the authoritative release.
func (s *Store) PublishVersion(ctx context.Context, version string) error {
	return s.Set(ctx, KeyAppVersion, version)
}

// RecordAppVersion writes version back as the authoritative release once an
// update for it has been downloaded and verified.
func (s *Store) RecordAppVersion(ctx context.Context, version string) error {
	return s.Set(ctx, KeyAppVersion, strings.TrimSpace(version))
}

// ExpectedDigest returns the SHA-256 published for version, or "" when none is.
func (s *Store) ExpectedDigest(ctx context.Context, version string) (string, error) {
	digest, err := s.Get(ctx, digestKeyPrefix+version)
	if appErrors.IsCode(err, appErrors.CodeNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(digest), nil
}

// SetExpectedDigest publishes the SHA-256 for version's artifact.
func (s *Store) SetExpectedDigest(ctx context.Context, version, digest string) error {
	return s.Set(ctx, digestKeyPrefix+version, strings.ToLower(strings.TrimSpace(digest)))
}

func storeError(action string, err error) error {
	return appErrors.New(appErrors.CodeStoreFailed, fmt.Sprintf("%s: %v", action, err), err)
}
