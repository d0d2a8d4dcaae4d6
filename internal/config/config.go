// Package config handles configuration loading and management for Concord.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for Concord.
type Config struct {
	Comms       CommsConfig       `mapstructure:"comms"`
	Monitor     MonitorConfig     `mapstructure:"monitor"`
	Checkpoints CheckpointsConfig `mapstructure:"checkpoints"`
	TUI         TUIConfig         `mapstructure:"tui"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// CommsConfig holds message substrate settings.
type CommsConfig struct {
	// ChannelCapacity caps the per-recipient queue on every channel.
	ChannelCapacity int `mapstructure:"channel_capacity"`
	// RequestTimeout bounds blocking request/response exchanges.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// MonitorConfig holds progress-monitor detection thresholds.
type MonitorConfig struct {
	// Stagnation is the minimum progress delta expected per update.
	Stagnation float64 `mapstructure:"stagnation"`
	// ProgressCeiling disables stagnation/delay checks near completion.
	ProgressCeiling float64 `mapstructure:"progress_ceiling"`
	// FallbackFloor is the progress floor for the weak delay signal.
	FallbackFloor float64 `mapstructure:"fallback_floor"`
	// MaxFailureRate is the failed/total ratio that flags the run.
	MaxFailureRate float64 `mapstructure:"max_failure_rate"`
	// ReportInterval is how often the run loop publishes progress reports.
	ReportInterval time.Duration `mapstructure:"report_interval"`
}

// CheckpointsConfig holds checkpoint persistence settings.
type CheckpointsConfig struct {
	// Enabled toggles SQLite checkpointing of the tactical state.
	Enabled bool `mapstructure:"enabled"`
	// Dir overrides the default .concord directory for the database.
	Dir string `mapstructure:"dir"`
	// Keep is how many checkpoints `concord status` lists.
	Keep int `mapstructure:"keep"`
}

// TUIConfig holds dashboard display settings.
type TUIConfig struct {
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
}

// LoggingConfig holds debug log settings.
type LoggingConfig struct {
	// Enabled toggles the coordination debug log.
	Enabled bool `mapstructure:"enabled"`
	// Dir overrides the default .concord/logs directory.
	Dir string `mapstructure:"dir"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (CONCORD_*)
// 2. Project config (.concord.yaml in current directory or parent)
// 3. User config (~/.config/concord/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Load user config from XDG path
	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Load project config if present
	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			// Merge project config (takes precedence)
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	// Environment variable overrides
	v.SetEnvPrefix("CONCORD")
	v.AutomaticEnv()
	v.BindEnv("checkpoints.dir", "CONCORD_CHECKPOINT_DIR")
	v.BindEnv("logging.dir", "CONCORD_LOG_DIR")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Checkpoints.Dir = os.ExpandEnv(cfg.Checkpoints.Dir)
	cfg.Logging.Dir = os.ExpandEnv(cfg.Logging.Dir)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("comms.channel_capacity", cfg.Comms.ChannelCapacity)
	v.Set("comms.request_timeout", cfg.Comms.RequestTimeout.String())
	v.Set("monitor.stagnation", cfg.Monitor.Stagnation)
	v.Set("monitor.progress_ceiling", cfg.Monitor.ProgressCeiling)
	v.Set("monitor.fallback_floor", cfg.Monitor.FallbackFloor)
	v.Set("monitor.max_failure_rate", cfg.Monitor.MaxFailureRate)
	v.Set("monitor.report_interval", cfg.Monitor.ReportInterval.String())
	v.Set("checkpoints.enabled", cfg.Checkpoints.Enabled)
	v.Set("checkpoints.dir", cfg.Checkpoints.Dir)
	v.Set("checkpoints.keep", cfg.Checkpoints.Keep)
	v.Set("tui.refresh_rate", cfg.TUI.RefreshRate.String())
	v.Set("logging.enabled", cfg.Logging.Enabled)
	v.Set("logging.dir", cfg.Logging.Dir)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("comms.channel_capacity", 100)
	v.SetDefault("comms.request_timeout", "30s")

	v.SetDefault("monitor.stagnation", 0.1)
	v.SetDefault("monitor.progress_ceiling", 0.9)
	v.SetDefault("monitor.fallback_floor", 0.1)
	v.SetDefault("monitor.max_failure_rate", 0.2)
	v.SetDefault("monitor.report_interval", "30s")

	v.SetDefault("checkpoints.enabled", true)
	v.SetDefault("checkpoints.dir", "")
	v.SetDefault("checkpoints.keep", 20)

	v.SetDefault("tui.refresh_rate", "100ms")

	v.SetDefault("logging.enabled", false)
	v.SetDefault("logging.dir", "")
}

// getUserConfigDir returns the XDG config directory for Concord.
func getUserConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "concord")
	}

	// Fall back to ~/.config/concord
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "concord")
	}
	return filepath.Join(home, ".config", "concord")
}

// findProjectConfig searches for .concord.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".concord.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Comms: CommsConfig{
			ChannelCapacity: 100,
			RequestTimeout:  30 * time.Second,
		},
		Monitor: MonitorConfig{
			Stagnation:      0.1,
			ProgressCeiling: 0.9,
			FallbackFloor:   0.1,
			MaxFailureRate:  0.2,
			ReportInterval:  30 * time.Second,
		},
		Checkpoints: CheckpointsConfig{
			Enabled: true,
			Keep:    20,
		},
		TUI: TUIConfig{
			RefreshRate: 100 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Enabled: false,
		},
	}
}
