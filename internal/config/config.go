// Package config loads the board server configuration from file, environment
// and flags via viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete board server configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Paths   PathsConfig   `mapstructure:"paths"`
	Locks   LockConfig    `mapstructure:"locks"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls the HTTP and websocket listener.
type ServerConfig struct {
	// Listen is the host:port the server binds to
	Listen string `mapstructure:"listen"`
	// AllowedOrigin is the origin accepted for websocket upgrades ("*" allows any)
	AllowedOrigin string `mapstructure:"allowed_origin"`
}

// PathsConfig controls where the board stores data.
type PathsConfig struct {
	// DataDir is the directory holding the sqlite database.
	// Supports ~ for home directory expansion.
	DataDir string `mapstructure:"data_dir"`
}

// LockConfig controls edit lease behavior.
type LockConfig struct {
	// TTLMinutes is how long an edit lease stays live without a refresh (default: 5)
	TTLMinutes int `mapstructure:"ttl_minutes"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
}

// LockTTL returns the edit lease TTL as a time.Duration.
func (l *LockConfig) LockTTL() time.Duration {
	return time.Duration(l.TTLMinutes) * time.Minute
}

// ResolveDataDir returns the data directory with ~ expanded.
func (p *PathsConfig) ResolveDataDir() string {
	path := p.DataDir
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return path
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:        ":5000",
			AllowedOrigin: "*",
		},
		Paths: PathsConfig{
			DataDir: "~/.taskboard",
		},
		Locks: LockConfig{
			TTLMinutes: 5,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// SetDefaults registers default values with viper.
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("server.listen", defaults.Server.Listen)
	viper.SetDefault("server.allowed_origin", defaults.Server.AllowedOrigin)

	viper.SetDefault("paths.data_dir", defaults.Paths.DataDir)

	viper.SetDefault("locks.ttl_minutes", defaults.Locks.TTLMinutes)

	viper.SetDefault("logging.level", defaults.Logging.Level)
}

// Load reads the configuration from viper into a Config struct and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Validate returns every problem with the configuration, not just the first.
func (c *Config) Validate() []error {
	var errs []error

	if c.Server.Listen == "" {
		errs = append(errs, fmt.Errorf("server.listen must not be empty"))
	}
	if c.Locks.TTLMinutes <= 0 {
		errs = append(errs, fmt.Errorf("locks.ttl_minutes must be positive, got %d", c.Locks.TTLMinutes))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level))
	}

	return errs
}

// ValidationErrors aggregates config validation failures into one error.
type ValidationErrors []error

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, err := range v {
		msgs[i] = err.Error()
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

// ConfigDir returns the path to the user's config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "taskboard")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".taskboard"
	}
	return filepath.Join(home, ".config", "taskboard")
}

// ConfigFile returns the path to the config file.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
