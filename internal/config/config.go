package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

const (
	KeyUpdateBaseURL      = "update.base-url"
	KeyUpdateMaxBytes     = "update.max-bytes"
	KeyUpdateTimeout      = "update.timeout"
	KeyUpdateTempDir      = "update.temp-dir"
	KeyUpdateChecksumFile = "update.checksum-file"
	KeyUpdateAssumeYes    = "update.assume-yes"

	KeyStorePath    = "store.path"
	KeyOutputFormat = "output.format"
	KeyDebug        = "debug"
)

const (
	// DefaultUpdateBaseURL is the server hosting OfficeApp_<version>.zip artifacts.
	DefaultUpdateBaseURL = "https://mwj-2v5.ru/officeApp"
	// DefaultUpdateMaxBytes caps the size of a single update artifact (100 MiB).
	DefaultUpdateMaxBytes int64 = 100 * 1024 * 1024
	// DefaultUpdateTimeout bounds a whole artifact request.
	DefaultUpdateTimeout = 10 * time.Minute

	configDirName  = ".officeapp"
	configFileName = "config.yaml"
	storeFileName  = "settings.db"
	envPrefix      = "OFFICEAPP"
)

type initSettings struct {
	workingDir        string
	projectConfigPath string
	userConfigPath    string
}

// Option configures Initialize behaviour. Useful for tests to override paths.
type Option func(*initSettings)

// WithWorkingDir overrides the directory used for project config discovery.
func WithWorkingDir(dir string) Option {
	return func(cfg *initSettings) {
		cfg.workingDir = dir
	}
}

// WithProjectConfig explicitly sets the project config path instead of discovery.
func WithProjectConfig(path string) Option {
	return func(cfg *initSettings) {
		cfg.projectConfigPath = path
	}
}

// WithUserConfig overrides the default user config path.
func WithUserConfig(path string) Option {
	return func(cfg *initSettings) {
		cfg.userConfigPath = path
	}
}

var (
	configOnce sync.Once
	configMu   sync.RWMutex
	configInst *viper.Viper
	initErr    error
)

// Initialize loads configuration using the precedence:
// defaults < user config < project config < environment variables < overrides.
func Initialize(opts ...Option) error {
	configOnce.Do(func() {
		settings := initSettings{}
		for _, opt := range opts {
			opt(&settings)
		}
		initErr = configure(&settings)
	})
	return initErr
}

// ApplyOverrides injects values typically coming from CLI flags.
func ApplyOverrides(overrides map[string]any) error {
	if len(overrides) == 0 {
		return nil
	}
	if err := Initialize(); err != nil {
		return err
	}
	configMu.Lock()
	defer configMu.Unlock()
	if configInst == nil {
		return fmt.Errorf("configuration not initialized")
	}
	for k, v := range overrides {
		configInst.Set(k, v)
	}
	return nil
}

// GetString fetches a string configuration value, initializing on demand.
func GetString(key string) string {
	v, err := getViper()
	if err != nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool fetches a bool configuration value, initializing on demand.
func GetBool(key string) bool {
	v, err := getViper()
	if err != nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt64 fetches an int64 configuration value, initializing on demand.
func GetInt64(key string) int64 {
	v, err := getViper()
	if err != nil {
		return 0
	}
	return v.GetInt64(key)
}

// GetDuration fetches a duration configuration value, initializing on demand.
func GetDuration(key string) time.Duration {
	v, err := getViper()
	if err != nil {
		return 0
	}
	return v.GetDuration(key)
}

// UpdateSettings is the read-only configuration shared by update runs.
type UpdateSettings struct {
	BaseURL      string
	MaxBytes     int64
	Timeout      time.Duration
	TempDir      string
	ChecksumFile string
}

// Update returns the effective update settings. Non-positive limits fall back
// to their defaults; an empty temp dir resolves to the OS temp directory.
func Update() UpdateSettings {
	s := UpdateSettings{
		BaseURL:      strings.TrimSpace(GetString(KeyUpdateBaseURL)),
		MaxBytes:     GetInt64(KeyUpdateMaxBytes),
		Timeout:      GetDuration(KeyUpdateTimeout),
		TempDir:      strings.TrimSpace(GetString(KeyUpdateTempDir)),
		ChecksumFile: strings.TrimSpace(GetString(KeyUpdateChecksumFile)),
	}
	if s.BaseURL == "" {
		s.BaseURL = DefaultUpdateBaseURL
	}
	if s.MaxBytes <= 0 {
		s.MaxBytes = DefaultUpdateMaxBytes
	}
	if s.Timeout <= 0 {
		s.Timeout = DefaultUpdateTimeout
	}
	if s.TempDir == "" {
		s.TempDir = os.TempDir()
	}
	return s
}

// StorePath returns the settings database path, defaulting to ~/.officeapp/settings.db.
func StorePath() (string, error) {
	if p := strings.TrimSpace(GetString(KeyStorePath)); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determine user home: %w", err)
	}
	return filepath.Join(home, configDirName, storeFileName), nil
}

func configure(settings *initSettings) error {
	workingDir := strings.TrimSpace(settings.workingDir)
	if workingDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("determine working directory: %w", err)
		}
		workingDir = wd
	}

	userConfigPath := strings.TrimSpace(settings.userConfigPath)
	if userConfigPath == "" {
		path, err := defaultUserConfigPath()
		if err != nil {
			return err
		}
		userConfigPath = path
	}

	projectConfigPath := strings.TrimSpace(settings.projectConfigPath)
	if projectConfigPath == "" {
		path, err := findProjectConfig(workingDir)
		if err != nil {
			return err
		}
		projectConfigPath = path
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := mergeConfigFile(v, userConfigPath); err != nil {
		return fmt.Errorf("load user config: %w", err)
	}
	// A project config that is the user config (e.g. run from $HOME) is merged once.
	if projectConfigPath != userConfigPath {
		if err := mergeConfigFile(v, projectConfigPath); err != nil {
			return fmt.Errorf("load project config: %w", err)
		}
	}

	configMu.Lock()
	defer configMu.Unlock()
	configInst = v
	return nil
}

func mergeConfigFile(v *viper.Viper, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config path %s is a directory", path)
	}
	//nolint:gosec // G304: Config loader intentionally reads user and project config files
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determine user home: %w", err)
	}
	return filepath.Join(home, configDirName, configFileName), nil
}

func findProjectConfig(startDir string) (string, error) {
	if strings.TrimSpace(startDir) == "" {
		return "", nil
	}
	dir := startDir
	for {
		candidate := filepath.Join(dir, configDirName, configFileName)
		info, err := os.Stat(candidate)
		if err == nil {
			if info.IsDir() {
				return "", fmt.Errorf("config path %s is a directory", candidate)
			}
			return candidate, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyUpdateBaseURL, DefaultUpdateBaseURL)
	v.SetDefault(KeyUpdateMaxBytes, DefaultUpdateMaxBytes)
	v.SetDefault(KeyUpdateTimeout, DefaultUpdateTimeout)
	v.SetDefault(KeyUpdateTempDir, "")
	v.SetDefault(KeyUpdateChecksumFile, "")
	v.SetDefault(KeyUpdateAssumeYes, false)
	v.SetDefault(KeyStorePath, "")
	v.SetDefault(KeyOutputFormat, "rich")
	v.SetDefault(KeyDebug, false)
}

func getViper() (*viper.Viper, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}
	configMu.RLock()
	defer configMu.RUnlock()
	if configInst == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}
	return configInst, nil
}

// reset clears package state for tests.
func reset() {
	configMu.Lock()
	defer configMu.Unlock()
	configInst = nil
	initErr = nil
	configOnce = sync.Once{}
}

// ResetForTesting clears package state for tests in other packages.
// Returns a cleanup function that should be deferred.
func ResetForTesting(t interface{ TempDir() string }) func() {
	reset()
	tmp := t.TempDir()
	_ = Initialize(WithWorkingDir(tmp), WithUserConfig(filepath.Join(tmp, "user.yaml")))
	return reset
}
