package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestInitializeLoadsDefaults(t *testing.T) {
	reset()
	t.Cleanup(reset)

	tmp := t.TempDir()
	userCfg := filepath.Join(tmp, "user.yaml")

	if err := Initialize(WithWorkingDir(tmp), WithUserConfig(userCfg)); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}

	if got := GetString(KeyUpdateBaseURL); got != DefaultUpdateBaseURL {
		t.Fatalf("expected default %s, got %q", KeyUpdateBaseURL, got)
	}
	if got := GetInt64(KeyUpdateMaxBytes); got != DefaultUpdateMaxBytes {
		t.Fatalf("expected default %s = %d, got %d", KeyUpdateMaxBytes, DefaultUpdateMaxBytes, got)
	}
	if got := GetDuration(KeyUpdateTimeout); got != 10*time.Minute {
		t.Fatalf("expected default %s = 10m, got %s", KeyUpdateTimeout, got)
	}
	if GetBool(KeyUpdateAssumeYes) {
		t.Fatalf("expected default %s to be false", KeyUpdateAssumeYes)
	}
	if got := GetString(KeyOutputFormat); got != "rich" {
		t.Fatalf("expected default %s to be rich, got %q", KeyOutputFormat, got)
	}
}

func TestProjectConfigOverridesUser(t *testing.T) {
	reset()
	t.Cleanup(reset)

	tmp := t.TempDir()
	projectDir := filepath.Join(tmp, "repo")
	projectCfg := filepath.Join(projectDir, ".officeapp", "config.yaml")
	writeFile(t, projectCfg, `
update:
  base-url: https://project.example/officeApp
store:
  path: /project/settings.db
`)

	userCfg := filepath.Join(tmp, "user.yaml")
	writeFile(t, userCfg, `
update:
  base-url: https://user.example/officeApp
  max-bytes: 2048
store:
  path: /user/settings.db
`)

	// Discovery walks up from a nested working directory.
	nested := filepath.Join(projectDir, "a", "b")
	mustMkdir(t, nested)

	if err := Initialize(WithWorkingDir(nested), WithUserConfig(userCfg)); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}

	if got := GetString(KeyUpdateBaseURL); got != "https://project.example/officeApp" {
		t.Fatalf("expected project config to win for %s, got %q", KeyUpdateBaseURL, got)
	}
	if got := GetString(KeyStorePath); got != "/project/settings.db" {
		t.Fatalf("expected project store path, got %q", got)
	}
	if got := GetInt64(KeyUpdateMaxBytes); got != 2048 {
		t.Fatalf("expected user max-bytes to survive merge, got %d", got)
	}
}

func TestEnvironmentAndOverridesPrecedence(t *testing.T) {
	reset()
	t.Cleanup(reset)

	tmp := t.TempDir()
	projectCfg := filepath.Join(tmp, ".officeapp", "config.yaml")
	writeFile(t, projectCfg, `
update:
  assume-yes: false
output:
  format: rich
`)

	t.Setenv("OFFICEAPP_UPDATE_ASSUME_YES", "true")
	t.Setenv("OFFICEAPP_OUTPUT_FORMAT", "plain")

	if err := Initialize(
		WithWorkingDir(tmp),
		WithProjectConfig(projectCfg),
		WithUserConfig(filepath.Join(tmp, "missing.yaml")),
	); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}

	if !GetBool(KeyUpdateAssumeYes) {
		t.Fatalf("expected environment variable to override %s", KeyUpdateAssumeYes)
	}
	if got := GetString(KeyOutputFormat); got != "plain" {
		t.Fatalf("expected env override for %s, got %q", KeyOutputFormat, got)
	}

	if err := ApplyOverrides(map[string]any{KeyUpdateAssumeYes: false}); err != nil {
		t.Fatalf("ApplyOverrides returned error: %v", err)
	}
	if GetBool(KeyUpdateAssumeYes) {
		t.Fatalf("expected CLI override to set %s=false", KeyUpdateAssumeYes)
	}
}

func TestUpdateSettingsFallbacks(t *testing.T) {
	cleanup := ResetForTesting(t)
	t.Cleanup(cleanup)

	if err := ApplyOverrides(map[string]any{
		KeyUpdateMaxBytes: -1,
		KeyUpdateTimeout:  "0s",
		KeyUpdateBaseURL:  "  ",
		KeyUpdateTempDir:  "",
	}); err != nil {
		t.Fatalf("ApplyOverrides returned error: %v", err)
	}

	s := Update()
	if s.MaxBytes != DefaultUpdateMaxBytes {
		t.Fatalf("MaxBytes = %d, want default %d", s.MaxBytes, DefaultUpdateMaxBytes)
	}
	if s.Timeout != DefaultUpdateTimeout {
		t.Fatalf("Timeout = %s, want default %s", s.Timeout, DefaultUpdateTimeout)
	}
	if s.BaseURL != DefaultUpdateBaseURL {
		t.Fatalf("BaseURL = %q, want default", s.BaseURL)
	}
	if s.TempDir != os.TempDir() {
		t.Fatalf("TempDir = %q, want %q", s.TempDir, os.TempDir())
	}
}

func TestStorePathOverride(t *testing.T) {
	cleanup := ResetForTesting(t)
	t.Cleanup(cleanup)

	want := filepath.Join(t.TempDir(), "custom.db")
	if err := ApplyOverrides(map[string]any{KeyStorePath: want}); err != nil {
		t.Fatalf("ApplyOverrides returned error: %v", err)
	}
	got, err := StorePath()
	if err != nil {
		t.Fatalf("StorePath returned error: %v", err)
	}
	if got != want {
		t.Fatalf("StorePath = %q, want %q", got, want)
	}
}

func TestConfigDirectoryIsRejected(t *testing.T) {
	reset()
	t.Cleanup(reset)

	tmp := t.TempDir()
	mustMkdir(t, filepath.Join(tmp, ".officeapp", "config.yaml"))

	if err := Initialize(WithWorkingDir(tmp), WithUserConfig(filepath.Join(tmp, "user.yaml"))); err == nil {
		t.Fatalf("expected error when project config path is a directory")
	}
}

func mustMkdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	mustMkdir(t, filepath.Dir(path))
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write file %s: %v", path, err)
	}
}
