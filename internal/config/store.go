package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	appName    = "ssdpd"
	configFile = "config.yaml"

	// PathEnvVar overrides the default config file location
	PathEnvVar = "SSDPD_CONFIG"
)

var (
	cached     *Config
	cachedErr  error
	cachedOnce sync.Once

	// fileMu serializes reads and writes of config files within the process
	fileMu sync.Mutex
)

// GetConfigDir returns the per-user directory holding config.yaml:
// $XDG_CONFIG_HOME/ssdpd or ~/.config/ssdpd on Unix and macOS, and
// %LOCALAPPDATA%\ssdpd on Windows.
func GetConfigDir() (string, error) {
	base, err := userConfigBase()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, appName), nil
}

func userConfigBase() (string, error) {
	if runtime.GOOS == "windows" {
		if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
			return dir, nil
		}
		if profile := os.Getenv("USERPROFILE"); profile != "" {
			return filepath.Join(profile, "AppData", "Local"), nil
		}
		return "", errors.New("neither LOCALAPPDATA nor USERPROFILE is set")
	}

	// macOS deliberately uses ~/.config rather than ~/Library/Application Support
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" && runtime.GOOS != "darwin" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config"), nil
}

// GetConfigPath returns $SSDPD_CONFIG if set, else config.yaml in GetConfigDir
func GetConfigPath() (string, error) {
	if p := os.Getenv(PathEnvVar); p != "" {
		return p, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// Load reads the default config file once per process and returns the cached
// result afterwards. A missing file yields the defaults.
func Load() (*Config, error) {
	cachedOnce.Do(func() {
		path, err := GetConfigPath()
		if err != nil {
			cachedErr = fmt.Errorf("failed to locate config: %w", err)
			return
		}
		cached, cachedErr = LoadFile(path)
	})
	return cached, cachedErr
}

// Reload drops the cached config and calls Load again
func Reload() (*Config, error) {
	fileMu.Lock()
	cachedOnce = sync.Once{}
	cached, cachedErr = nil, nil
	fileMu.Unlock()
	return Load()
}

// LoadFile reads and validates the config at path. A missing file yields the
// defaults so a fresh install works without one.
func LoadFile(path string) (*Config, error) {
	fileMu.Lock()
	data, err := os.ReadFile(path)
	fileMu.Unlock()

	switch {
	case errors.Is(err, os.ErrNotExist):
		return NewConfig(), nil
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML, fills defaults and validates the result
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	cfg.fillDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save writes c to GetConfigPath
func (c *Config) Save() error {
	path, err := GetConfigPath()
	if err != nil {
		return fmt.Errorf("failed to locate config: %w", err)
	}
	return c.SaveFile(path)
}

const fileBanner = `# ssdpd configuration
#
#   engine           multicast group, timeouts and retry limits
#   advertisements   services answered in M-SEARCH responses
#   mdns             optional DNS-SD browsing
#   preferences      CLI defaults
`

// SaveFile writes c to path. The file is written to a temporary sibling,
// synced and renamed over path, so readers never see a partial config.
func (c *Config) SaveFile(path string) error {
	body, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	fileMu.Lock()
	defer fileMu.Unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+configFile+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary config: %w", err)
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.WriteString(fileBanner + "\n")
	if err == nil {
		_, err = tmp.Write(body)
	}
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("failed to set config permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace config: %w", err)
	}
	return nil
}
