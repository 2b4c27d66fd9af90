package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// LogLevel specifies the logging verbosity.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogFormat specifies the log output format.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

// PersistenceDriver selects where store snapshots are kept between runs.
type PersistenceDriver string

const (
	PersistenceYAML   PersistenceDriver = "yaml"
	PersistenceSQLite PersistenceDriver = "sqlite"
)

// PathsConfig holds path configuration.
type PathsConfig struct {
	StateDir string `toml:"state_dir"`
	LogsDir  string `toml:"logs_dir"`
}

// BackendConfig holds settings for the remote plan service.
type BackendConfig struct {
	BaseURL string        `toml:"base_url"`
	Timeout time.Duration `toml:"timeout"`
}

// WatcherConfig holds background poller settings.
type WatcherConfig struct {
	// InitialDelay is slept once before the first poll tick.
	InitialDelay time.Duration `toml:"initial_delay"`
	PollInterval time.Duration `toml:"poll_interval"`
	// PlanMaxAge bounds how long a WaitForPlanStatus caller can be kept waiting.
	PlanMaxAge time.Duration `toml:"plan_max_age"`
}

// UpdaterConfig holds active plan refresh settings.
type UpdaterConfig struct {
	Interval time.Duration `toml:"interval"`
}

// PersistenceConfig holds snapshot persistence settings.
type PersistenceConfig struct {
	Driver PersistenceDriver `toml:"driver"`
	// Path is the YAML file or SQLite database, relative to the state dir.
	Path string `toml:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  LogLevel  `toml:"level"`
	Format LogFormat `toml:"format"`
	File   string    `toml:"file"`
}

// Config is the main configuration struct for chainplan.
type Config struct {
	Version     string            `toml:"version"`
	Paths       PathsConfig       `toml:"paths"`
	Backend     BackendConfig     `toml:"backend"`
	Watcher     WatcherConfig     `toml:"watcher"`
	Updater     UpdaterConfig     `toml:"updater"`
	Persistence PersistenceConfig `toml:"persistence"`
	Logging     LoggingConfig     `toml:"logging"`
	Flags       map[string]bool   `toml:"flags"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Version: "1",
		Paths: PathsConfig{
			StateDir: ".chainplan/state",
			LogsDir:  ".chainplan/logs",
		},
		Backend: BackendConfig{
			BaseURL: "http://127.0.0.1:8787",
			Timeout: 10 * time.Second,
		},
		Watcher: WatcherConfig{
			InitialDelay: time.Second,
			PollInterval: 5 * time.Second,
			PlanMaxAge:   10 * time.Minute,
		},
		Updater: UpdaterConfig{
			Interval: 3 * time.Second,
		},
		Persistence: PersistenceConfig{
			Driver: PersistenceYAML,
			Path:   "store.yaml",
		},
		Logging: LoggingConfig{
			Level:  LogLevelInfo,
			Format: LogFormatJSON,
			File:   "",
		},
		Flags: map[string]bool{
			"chained_actions": true,
		},
	}
}

// Load loads configuration from file, merging with defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Use defaults if no config file
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// LoadFromDir loads configuration from the standard locations in a directory.
// Applies in order: defaults -> ~/.chainplan/config.toml -> .chainplan/config.toml
func LoadFromDir(dir string) (*Config, error) {
	cfg := Default()

	home, err := os.UserHomeDir()
	if err == nil {
		globalConfig := filepath.Join(home, ".chainplan", "config.toml")
		if data, err := os.ReadFile(globalConfig); err == nil {
			if _, err := toml.Decode(string(data), cfg); err != nil {
				return nil, fmt.Errorf("parsing global config: %w", err)
			}
		}
	}

	projectConfig := filepath.Join(dir, ".chainplan", "config.toml")
	if data, err := os.ReadFile(projectConfig); err == nil {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parsing project config: %w", err)
		}
	}

	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("config version is required")
	}
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend base_url is required")
	}
	if c.Watcher.PollInterval <= 0 {
		return fmt.Errorf("watcher poll_interval must be positive")
	}
	if c.Watcher.PlanMaxAge <= 0 {
		return fmt.Errorf("watcher plan_max_age must be positive")
	}
	if c.Updater.Interval < time.Second {
		// cron @every schedules round down to whole seconds
		return fmt.Errorf("updater interval must be at least 1s")
	}
	switch c.Persistence.Driver {
	case PersistenceYAML, PersistenceSQLite:
	default:
		return fmt.Errorf("unknown persistence driver %q", c.Persistence.Driver)
	}
	return nil
}

// FlagEnabled reports the configured value of a feature flag.
func (c *Config) FlagEnabled(name string) bool {
	return c.Flags[name]
}

// StateDir returns the absolute state directory path.
func (c *Config) StateDir(baseDir string) string {
	if filepath.IsAbs(c.Paths.StateDir) {
		return c.Paths.StateDir
	}
	return filepath.Join(baseDir, c.Paths.StateDir)
}

// LogsDir returns the absolute logs directory path.
func (c *Config) LogsDir(baseDir string) string {
	if filepath.IsAbs(c.Paths.LogsDir) {
		return c.Paths.LogsDir
	}
	return filepath.Join(baseDir, c.Paths.LogsDir)
}

// LogFile returns the absolute log file path.
func (c *Config) LogFile(baseDir string) string {
	if filepath.IsAbs(c.Logging.File) {
		return c.Logging.File
	}
	return filepath.Join(c.LogsDir(baseDir), c.Logging.File)
}

// PersistencePath returns the absolute snapshot path.
func (c *Config) PersistencePath(baseDir string) string {
	if filepath.IsAbs(c.Persistence.Path) {
		return c.Persistence.Path
	}
	return filepath.Join(c.StateDir(baseDir), c.Persistence.Path)
}
