package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DirName is the per-workspace directory holding config, settings, logs and the packet database.
const DirName = ".pktcloud"

// DefaultCloudURL is the packet sharing endpoint.
const DefaultCloudURL = "https://cloud.packetsender.com/"

// Config holds all pktcloud configuration.
type Config struct {
	Cloud    CloudConfig    `yaml:"cloud"`
	Store    StoreConfig    `yaml:"store"`
	Settings SettingsConfig `yaml:"settings"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// CloudConfig configures the cloud endpoint.
type CloudConfig struct {
	URL       string `yaml:"url"`
	Timeout   string `yaml:"timeout"` // empty or "0" waits indefinitely
	UserAgent string `yaml:"user_agent"`
}

// StoreConfig configures the local packet database.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"` // relative paths resolve under .pktcloud/
}

// SettingsConfig configures the persisted credentials file.
type SettingsConfig struct {
	Path string `yaml:"path"` // relative paths resolve under .pktcloud/
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Cloud: CloudConfig{
			URL:       DefaultCloudURL,
			UserAgent: "pktcloud/1.0",
		},
		Store: StoreConfig{
			DatabasePath: "packets.db",
		},
		Settings: SettingsConfig{
			Path: "settings.json",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Path returns the config file location for a workspace.
func Path(workspace string) string {
	return filepath.Join(workspace, DirName, "config.yaml")
}

// Load loads configuration from a YAML file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// EnsureFile writes the default configuration to path when no file exists
// there, so first-run users get an editable config. It reports whether it wrote.
func EnsureFile(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to stat config: %w", err)
	}
	if err := DefaultConfig().Save(path); err != nil {
		return false, err
	}
	return true, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if u := os.Getenv("PKTCLOUD_URL"); u != "" {
		c.Cloud.URL = u
	}
	if t := os.Getenv("PKTCLOUD_TIMEOUT"); t != "" {
		c.Cloud.Timeout = t
	}
	if v := os.Getenv("PKTCLOUD_DEBUG"); v != "" {
		if on, err := strconv.ParseBool(v); err == nil {
			c.Logging.DebugMode = on
		}
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Cloud.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid cloud url %q", c.Cloud.URL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("cloud url must be http or https, got %q", u.Scheme)
	}
	if _, err := c.GetCloudTimeout(); err != nil {
		return err
	}
	if c.Store.DatabasePath == "" {
		return fmt.Errorf("store.database_path is empty")
	}
	if c.Settings.Path == "" {
		return fmt.Errorf("settings.path is empty")
	}
	return nil
}

// GetCloudTimeout returns the request timeout; zero means none.
func (c *Config) GetCloudTimeout() (time.Duration, error) {
	if c.Cloud.Timeout == "" || c.Cloud.Timeout == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Cloud.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid cloud timeout %q: %w", c.Cloud.Timeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("cloud timeout must not be negative")
	}
	return d, nil
}

// DatabasePath resolves the packet database location for a workspace.
func (c *Config) DatabasePath(workspace string) string {
	return resolve(workspace, c.Store.DatabasePath)
}

// SettingsPath resolves the settings file location for a workspace.
func (c *Config) SettingsPath(workspace string) string {
	return resolve(workspace, c.Settings.Path)
}

func resolve(workspace, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(workspace, DirName, p)
}
