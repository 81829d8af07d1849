package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	catppuccin "github.com/catppuccin/go"
	"gopkg.in/yaml.v3"
)

// AppName names the config directory and the default state root.
const AppName = "wtctl"

type Config struct {
	Root     string         `yaml:"root"`
	Theme    string         `yaml:"theme"`
	LogLevel string         `yaml:"log_level"`
	Git      GitConfig      `yaml:"git"`
	Watch    WatchConfig    `yaml:"watch"`
	Status   StatusConfig   `yaml:"status"`
	Agents   AgentsConfig   `yaml:"agents"`
	Metadata MetadataConfig `yaml:"metadata"`
}

type GitConfig struct {
	Binary                 string `yaml:"binary"`
	TimeoutSeconds         int    `yaml:"timeout_seconds"`
	ProgressTimeoutSeconds int    `yaml:"progress_timeout_seconds"`
}

type WatchConfig struct {
	DebounceMS int `yaml:"debounce_ms"`
}

type StatusConfig struct {
	Enabled                bool `yaml:"enabled"`
	Concurrency            int  `yaml:"concurrency"`
	RefreshIntervalSeconds int  `yaml:"refresh_interval_seconds"`
}

type AgentsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	SessionThresholdMinutes int  `yaml:"session_threshold_minutes"`
}

type MetadataConfig struct {
	AutoExportOnSwitch bool `yaml:"auto_export_on_switch"`
}

func DefaultConfig() Config {
	return Config{
		Root:     "~/.wt",
		Theme:    "mocha",
		LogLevel: "info",
		Git: GitConfig{
			Binary:                 "git",
			TimeoutSeconds:         60,
			ProgressTimeoutSeconds: 300,
		},
		Watch: WatchConfig{DebounceMS: 500},
		Status: StatusConfig{
			Enabled:     true,
			Concurrency: 8,
		},
		Agents: AgentsConfig{
			Enabled:                 true,
			SessionThresholdMinutes: 30,
		},
	}
}

func Load() (Config, error) {
	return LoadFrom(getConfigPath())
}

// LoadDir loads config.yaml from dir, or from the default location when dir
// is empty.
func LoadDir(dir string) (Config, error) {
	if dir == "" {
		return Load()
	}
	return LoadFrom(filepath.Join(dir, "config.yaml"))
}

func LoadFrom(configPath string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), err
	}

	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults restores defaults for keys that were set to zero values.
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Root == "" {
		c.Root = def.Root
	}
	if c.Theme == "" {
		c.Theme = def.Theme
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Git.Binary == "" {
		c.Git.Binary = def.Git.Binary
	}
	if c.Git.TimeoutSeconds <= 0 {
		c.Git.TimeoutSeconds = def.Git.TimeoutSeconds
	}
	if c.Git.ProgressTimeoutSeconds <= 0 {
		c.Git.ProgressTimeoutSeconds = def.Git.ProgressTimeoutSeconds
	}
	if c.Watch.DebounceMS <= 0 {
		c.Watch.DebounceMS = def.Watch.DebounceMS
	}
	if c.Status.Concurrency <= 0 {
		c.Status.Concurrency = def.Status.Concurrency
	}
	if c.Agents.SessionThresholdMinutes <= 0 {
		c.Agents.SessionThresholdMinutes = def.Agents.SessionThresholdMinutes
	}
}

// Validate reports settings that cannot be used.
func (c *Config) Validate() error {
	if c.Status.RefreshIntervalSeconds < 0 {
		return fmt.Errorf("status.refresh_interval_seconds must not be negative")
	}
	if _, ok := flavorNames[strings.ToLower(c.Theme)]; !ok {
		return fmt.Errorf("unknown theme %q: expected latte, frappe, macchiato or mocha", c.Theme)
	}
	return nil
}

var flavorNames = map[string]catppuccin.Flavor{
	"latte":     catppuccin.Latte,
	"frappe":    catppuccin.Frappe,
	"macchiato": catppuccin.Macchiato,
	"mocha":     catppuccin.Mocha,
}

// Flavor returns the catppuccin flavour for the theme, defaulting to mocha.
func (c *Config) Flavor() catppuccin.Flavor {
	if f, ok := flavorNames[strings.ToLower(c.Theme)]; ok {
		return f
	}
	return catppuccin.Mocha
}

// RootDir returns the context-store root with "~" expanded.
func (c *Config) RootDir() string {
	return ExpandHome(c.Root)
}

func (c *Config) GitTimeout() time.Duration {
	return time.Duration(c.Git.TimeoutSeconds) * time.Second
}

func (c *Config) GitProgressTimeout() time.Duration {
	return time.Duration(c.Git.ProgressTimeoutSeconds) * time.Second
}

func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Watch.DebounceMS) * time.Millisecond
}

func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Status.RefreshIntervalSeconds) * time.Second
}

func (c *Config) SessionThreshold() time.Duration {
	return time.Duration(c.Agents.SessionThresholdMinutes) * time.Minute
}

// ExpandHome replaces a leading "~" or "~/" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}

func getConfigPath() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, AppName, "config.yaml")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", AppName, "config.yaml")
	}

	return filepath.Join(home, ".config", AppName, "config.yaml")
}
