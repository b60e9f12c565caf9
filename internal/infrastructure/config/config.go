// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigDir is the directory name for confhist configuration.
	DefaultConfigDir = ".confhist"
	// DefaultConfigFile is the default config file name.
	DefaultConfigFile = "config.yaml"
)

// Storage backends.
const (
	BackendSQLite     = "sqlite"
	BackendBadger     = "badger"
	BackendFilesystem = "filesystem"
)

// Backends lists the supported storage backends.
var Backends = []string{BackendSQLite, BackendBadger, BackendFilesystem}

// Config holds static configuration (read-only after init).
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	History HistoryConfig `yaml:"history"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
}

// StorageConfig selects and configures the snapshot store.
type StorageConfig struct {
	Backend string       `yaml:"backend"`
	SQLite  SQLiteConfig `yaml:"sqlite,omitempty"`
	Badger  BadgerConfig `yaml:"badger,omitempty"`
	// FilesystemPath is the root directory of the filesystem backend.
	FilesystemPath string `yaml:"filesystem_path,omitempty"`
}

// SQLiteConfig holds configuration for the SQLite snapshot store.
type SQLiteConfig struct {
	// Path is the file path to the SQLite database, or ":memory:".
	Path string `yaml:"path,omitempty"`
	// BusyTimeoutMS bounds how long a writer waits on a locked database.
	BusyTimeoutMS int `yaml:"busy_timeout_ms,omitempty"`
}

// BadgerConfig holds configuration for the Badger snapshot store.
type BadgerConfig struct {
	Path     string `yaml:"path,omitempty"`
	InMemory bool   `yaml:"in_memory,omitempty"`
	// GCIntervalMinutes controls value log garbage collection; 0 disables it.
	GCIntervalMinutes int `yaml:"gc_interval_minutes,omitempty"`
}

// HistoryConfig controls which changes are recorded and how long they are kept.
type HistoryConfig struct {
	SkipDuplicates bool `yaml:"skip_duplicates"`
	// MaxEntries caps revisions per entity; 0 keeps everything.
	MaxEntries int `yaml:"max_entries,omitempty"`
	// MaxAgeDays is the retention window used by purge; 0 disables it.
	MaxAgeDays int `yaml:"max_age_days,omitempty"`
	// ExcludePattern is a regular expression of entity ids never recorded.
	ExcludePattern string `yaml:"exclude_pattern,omitempty"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// MetricsConfig holds metrics export configuration.
type MetricsConfig struct {
	// Textfile is written in Prometheus text format after each command when set.
	Textfile string `yaml:"textfile,omitempty"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: BackendSQLite,
			SQLite: SQLiteConfig{
				Path:          filepath.Join(DefaultConfigDir, "history.db"),
				BusyTimeoutMS: 5000,
			},
			Badger: BadgerConfig{
				Path:              filepath.Join(DefaultConfigDir, "badger"),
				GCIntervalMinutes: 10,
			},
			FilesystemPath: filepath.Join(DefaultConfigDir, "history"),
		},
		History: HistoryConfig{
			SkipDuplicates: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

// Load loads configuration from the .confhist directory in the given path.
func Load(basePath string) (*Config, error) {
	configFile := ConfigFilePath(basePath)

	data, err := os.ReadFile(configFile)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s (run 'confhist init' first)", configFile)
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Start with defaults
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CONFHIST_STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("CONFHIST_STORAGE_PATH"); v != "" {
		switch c.Storage.Backend {
		case BackendBadger:
			c.Storage.Badger.Path = v
		case BackendFilesystem:
			c.Storage.FilesystemPath = v
		default:
			c.Storage.SQLite.Path = v
		}
	}
	if v := os.Getenv("CONFHIST_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CONFHIST_METRICS_TEXTFILE"); v != "" {
		c.Metrics.Textfile = v
	}
}

// Validate checks the configuration for values no component can use.
func (c *Config) Validate() error {
	known := false
	for _, b := range Backends {
		if c.Storage.Backend == b {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown storage backend %q (want one of %s)", c.Storage.Backend, strings.Join(Backends, ", "))
	}
	if c.History.MaxEntries < 0 {
		return fmt.Errorf("history.max_entries must not be negative")
	}
	if c.History.MaxAgeDays < 0 {
		return fmt.Errorf("history.max_age_days must not be negative")
	}
	if _, err := c.History.Exclude(); err != nil {
		return err
	}
	return nil
}

// Exclude compiles ExcludePattern, returning nil when it is empty.
func (h HistoryConfig) Exclude() (*regexp.Regexp, error) {
	if h.ExcludePattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(h.ExcludePattern)
	if err != nil {
		return nil, fmt.Errorf("compiling history.exclude_pattern: %w", err)
	}
	return re, nil
}

// MaxAge returns MaxAgeDays as a duration.
func (h HistoryConfig) MaxAge() time.Duration {
	return time.Duration(h.MaxAgeDays) * 24 * time.Hour
}

// ConfigDir returns the path to the .confhist config directory.
func ConfigDir(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir)
}

// ConfigFilePath returns the path to the config file.
func ConfigFilePath(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir, DefaultConfigFile)
}

// ResolvePath makes a configured path absolute relative to basePath.
// ":memory:" and absolute paths are returned unchanged.
func ResolvePath(basePath, p string) string {
	if p == "" || p == ":memory:" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(basePath, p)
}
