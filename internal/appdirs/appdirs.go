package appdirs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	envHomeOverride     = "PORTALPASS_HOME"
	envUserDataOverride = "PORTALPASS_USER_DATA_DIR"
	envLogsOverride     = "PORTALPASS_LOG_DIR"

	configFileName = "config.toml"
)

// Lookup lets tests substitute the environment and home resolution.
type Lookup struct {
	Getenv        func(string) string
	UserConfigDir func() (string, error)
	UserHomeDir   func() (string, error)
}

func (l Lookup) getenv(key string) string {
	if l.Getenv == nil {
		return os.Getenv(key)
	}
	return l.Getenv(key)
}

// BaseDir is the portalpass home: $PORTALPASS_HOME, else <config dir>/portalpass,
// else ~/.portalpass.
func (l Lookup) BaseDir() (string, error) {
	if dir := strings.TrimSpace(l.getenv(envHomeOverride)); dir != "" {
		return filepath.Clean(dir), nil
	}

	userConfigDir := l.UserConfigDir
	if userConfigDir == nil {
		userConfigDir = os.UserConfigDir
	}
	if cfgDir, err := userConfigDir(); err == nil && strings.TrimSpace(cfgDir) != "" {
		return filepath.Join(cfgDir, "portalpass"), nil
	}

	userHomeDir := l.UserHomeDir
	if userHomeDir == nil {
		userHomeDir = os.UserHomeDir
	}
	home, err := userHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		if err == nil {
			err = errors.New("empty home directory")
		}
		return "", fmt.Errorf("determine portalpass base dir: %w", err)
	}

	return filepath.Join(home, ".portalpass"), nil
}

func (l Lookup) ConfigFile() (string, error) {
	base, err := l.BaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, configFileName), nil
}

// UserDataDir holds the throwaway browser profiles created for each login.
func (l Lookup) UserDataDir() (string, error) {
	if dir := strings.TrimSpace(l.getenv(envUserDataOverride)); dir != "" {
		return filepath.Clean(dir), nil
	}

	base, err := l.BaseDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(base, "user_data"), nil
}

// LogsDir receives failure screenshots.
func (l Lookup) LogsDir() (string, error) {
	if dir := strings.TrimSpace(l.getenv(envLogsOverride)); dir != "" {
		return filepath.Clean(dir), nil
	}

	base, err := l.BaseDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(base, "logs"), nil
}

func BaseDir() (string, error)     { return Lookup{}.BaseDir() }
func ConfigFile() (string, error)  { return Lookup{}.ConfigFile() }
func UserDataDir() (string, error) { return Lookup{}.UserDataDir() }
func LogsDir() (string, error)     { return Lookup{}.LogsDir() }

func EnsureDir(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("ensure dir: empty path")
	}
	return os.MkdirAll(path, 0o755)
}
