package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// APIConfig points the remote client at the backend.
type APIConfig struct {
	// BaseURL is the root URL of the REST API (e.g. https://api.example.com/v1).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds a single HTTP exchange. A timeout is reported as a
	// transport error and retried by the queue like any other.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// UserConfig identifies the signed-in user whose data is cached.
type UserConfig struct {
	ID string `mapstructure:"id" yaml:"id"`
}

// StoreConfig locates the on-device cache.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// SyncConfig tunes the drain scheduler.
type SyncConfig struct {
	// IntervalSec, when positive, drains periodically while online in
	// addition to draining on every reconnect.
	IntervalSec int `mapstructure:"interval_sec" yaml:"interval_sec"`

	// BackoffMs is the base delay before a failed operation is retried.
	// Zero retries on the next drain.
	BackoffMs int `mapstructure:"backoff_ms" yaml:"backoff_ms"`
}

// ConnectivityConfig configures reachability probing.
type ConnectivityConfig struct {
	// ProbeURL is requested with HEAD; any HTTP response counts as online.
	// Empty means probe the API base URL.
	ProbeURL         string `mapstructure:"probe_url" yaml:"probe_url"`
	ProbeIntervalSec int    `mapstructure:"probe_interval_sec" yaml:"probe_interval_sec"`
}

// LogConfig controls the zerolog output.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API          APIConfig          `mapstructure:"api" yaml:"api"`
	User         UserConfig         `mapstructure:"user" yaml:"user"`
	Store        StoreConfig        `mapstructure:"store" yaml:"store"`
	Sync         SyncConfig         `mapstructure:"sync" yaml:"sync"`
	Connectivity ConnectivityConfig `mapstructure:"connectivity" yaml:"connectivity"`
	Log          LogConfig          `mapstructure:"log" yaml:"log"`
}

// Timeout returns the API timeout as a duration.
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// Interval returns the periodic drain interval (zero when disabled).
func (c SyncConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSec) * time.Second
}

// Backoff returns the retry backoff base.
func (c SyncConfig) Backoff() time.Duration {
	return time.Duration(c.BackoffMs) * time.Millisecond
}

// ProbeInterval returns the reachability probe interval.
func (c ConnectivityConfig) ProbeInterval() time.Duration {
	return time.Duration(c.ProbeIntervalSec) * time.Second
}

// DefaultConfigDir returns ~/.config/todosync.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "todosync")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/todosync/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultAppConfig returns a sensible default configuration.
func DefaultAppConfig() *AppConfig {
	dir := DefaultConfigDir()
	return &AppConfig{
		API: APIConfig{
			BaseURL:    "http://localhost:8080/api",
			TimeoutSec: 15,
		},
		Store: StoreConfig{
			Path: filepath.Join(dir, "cache.db"),
		},
		Sync: SyncConfig{
			IntervalSec: 0,
			BackoffMs:   2000,
		},
		Connectivity: ConnectivityConfig{
			ProbeIntervalSec: 10,
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(dir, "todosync.log"),
		},
	}
}

func setDefaults(v *viper.Viper, cfg *AppConfig) {
	v.SetDefault("api.base_url", cfg.API.BaseURL)
	v.SetDefault("api.timeout_sec", cfg.API.TimeoutSec)
	v.SetDefault("user.id", cfg.User.ID)
	v.SetDefault("store.path", cfg.Store.Path)
	v.SetDefault("sync.interval_sec", cfg.Sync.IntervalSec)
	v.SetDefault("sync.backoff_ms", cfg.Sync.BackoffMs)
	v.SetDefault("connectivity.probe_url", cfg.Connectivity.ProbeURL)
	v.SetDefault("connectivity.probe_interval_sec", cfg.Connectivity.ProbeIntervalSec)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.file", cfg.Log.File)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Values may be overridden with TODOSYNC_* environment variables
// (e.g. TODOSYNC_USER_ID). A missing file yields the defaults.
func LoadConfig(path string) (*AppConfig, error) {
	cfg := DefaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("todosync")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Connectivity.ProbeURL == "" {
		cfg.Connectivity.ProbeURL = cfg.API.BaseURL
	}
	if cfg.Connectivity.ProbeIntervalSec <= 0 {
		cfg.Connectivity.ProbeIntervalSec = 10
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("user", cfg.User)
	v.Set("store", cfg.Store)
	v.Set("sync", cfg.Sync)
	v.Set("connectivity", cfg.Connectivity)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
