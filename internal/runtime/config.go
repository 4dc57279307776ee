package runtime

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lexcodex/codebase/framework"
)

// Config captures every setting shared by the CLI, the watcher and the
// status server. It is read from YAML; fields left out keep their defaults.
type Config struct {
	Interval      time.Duration       `yaml:"interval"`
	Workers       int                 `yaml:"workers"`
	ProgressStep  int                 `yaml:"progress_step"`
	DataPath      string              `yaml:"data_path"`
	HistoryPath   string              `yaml:"history_path"`
	HistoryKeep   int                 `yaml:"history_keep"`
	LogPath       string              `yaml:"log_path"`
	TelemetryPath string              `yaml:"telemetry_path"`
	ReceiverURL   string              `yaml:"receiver_url"`
	ClientName    string              `yaml:"client_name"`
	SendData      bool                `yaml:"send_data"`
	PushTimeout   time.Duration       `yaml:"push_timeout"`
	ServerAddr    string              `yaml:"server_addr"`
	Watch         bool                `yaml:"watch"`
	WatchDebounce time.Duration       `yaml:"watch_debounce"`
	Rules         framework.ScanRules `yaml:"rules"`

	// Home is the directory relative paths resolve against.
	Home string `yaml:"-"`
	// ConfigPath is where the config was loaded from.
	ConfigPath string `yaml:"-"`
}

const (
	defaultInterval      = 30 * time.Minute
	defaultWorkers       = 4
	defaultProgressStep  = 16
	defaultServerAddr    = ":8081"
	defaultWatchDebounce = 5 * time.Second
	defaultPushTimeout   = 30 * time.Second
	defaultHistoryKeep   = 500
)

// DefaultHome returns ~/.codebase, or .codebase in the working directory
// when the home directory is unknown.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".codebase"
	}
	return filepath.Join(home, ".codebase")
}

// DefaultConfigPath returns the config file location under DefaultHome.
func DefaultConfigPath() string {
	return filepath.Join(DefaultHome(), "config.yaml")
}

// DefaultConfig returns the settings used when no config file exists.
func DefaultConfig() Config {
	home := DefaultHome()
	return Config{
		Interval:      defaultInterval,
		Workers:       defaultWorkers,
		ProgressStep:  defaultProgressStep,
		DataPath:      "projects.json",
		HistoryPath:   "history.db",
		HistoryKeep:   defaultHistoryKeep,
		LogPath:       "codebase.log",
		PushTimeout:   defaultPushTimeout,
		ServerAddr:    defaultServerAddr,
		WatchDebounce: defaultWatchDebounce,
		Rules:         framework.DefaultScanRules(),
		Home:          home,
		ConfigPath:    filepath.Join(home, "config.yaml"),
	}
}

// Normalize fills missing defaults and makes every path absolute.
func (c *Config) Normalize() error {
	if c.Home == "" {
		c.Home = DefaultHome()
	}
	home, err := filepath.Abs(c.Home)
	if err != nil {
		return fmt.Errorf("resolve home: %w", err)
	}
	c.Home = home
	if c.Interval < 0 {
		c.Interval = 0
	}
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.ProgressStep <= 0 {
		c.ProgressStep = defaultProgressStep
	}
	if c.PushTimeout <= 0 {
		c.PushTimeout = defaultPushTimeout
	}
	if c.WatchDebounce <= 0 {
		c.WatchDebounce = defaultWatchDebounce
	}
	if c.ServerAddr == "" {
		c.ServerAddr = defaultServerAddr
	}
	if c.HistoryKeep < 0 {
		c.HistoryKeep = 0
	}
	if c.ClientName == "" {
		if host, err := os.Hostname(); err == nil {
			c.ClientName = host
		} else {
			c.ClientName = "codebase"
		}
	}
	if c.DataPath == "" {
		c.DataPath = "projects.json"
	}
	if c.HistoryPath == "" {
		c.HistoryPath = "history.db"
	}
	c.DataPath = c.resolve(c.DataPath)
	c.HistoryPath = c.resolve(c.HistoryPath)
	c.LogPath = c.resolve(c.LogPath)
	c.TelemetryPath = c.resolve(c.TelemetryPath)
	if c.ConfigPath == "" {
		c.ConfigPath = filepath.Join(c.Home, "config.yaml")
	}
	defaults := framework.DefaultScanRules()
	if c.Rules.IgnoreDirs == nil {
		c.Rules.IgnoreDirs = defaults.IgnoreDirs
	}
	if c.Rules.IgnoreExtensions == nil {
		c.Rules.IgnoreExtensions = defaults.IgnoreExtensions
	}
	if c.Rules.MaxFileSize < 0 {
		c.Rules.MaxFileSize = 0
	}
	if c.Rules.MaxDepth < 0 {
		c.Rules.MaxDepth = 0
	}
	if c.SendData && c.ReceiverURL == "" {
		return errors.New("send_data requires receiver_url")
	}
	return nil
}

// resolve anchors relative paths at Home. Empty and in-memory paths are kept.
func (c *Config) resolve(path string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Home, path)
}

// LoadConfig reads path over DefaultConfig. A missing file yields the
// defaults. The directory holding the file becomes Home.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}
	cfg := DefaultConfig()
	cfg.Home = filepath.Dir(path)
	cfg.ConfigPath = path
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg as YAML to path.
func SaveConfig(path string, cfg Config) error {
	if path == "" {
		return fmt.Errorf("config path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
