package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for kidtube
type Config struct {
	Source   SourceConfig   `mapstructure:"source"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Player   PlayerConfig   `mapstructure:"player"`
	Parental ParentalConfig `mapstructure:"parental"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Advanced AdvancedConfig `mapstructure:"advanced"`
}

// SourceConfig configures the video search adapter
type SourceConfig struct {
	// Mirrors are interchangeable search endpoints tried in order on failure
	Mirrors        []string      `mapstructure:"mirrors"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxResults     int           `mapstructure:"max_results"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// FeedConfig configures feed assembly
type FeedConfig struct {
	// InitialCategories is how many enabled categories are mixed on first load
	InitialCategories int `mapstructure:"initial_categories"`
	// RefillThreshold triggers a refill when the cursor is within this many
	// positions of the end of the feed
	RefillThreshold int `mapstructure:"refill_threshold"`
}

// PlayerConfig configures the playback engine
type PlayerConfig struct {
	// MaxPreload is the number of upcoming videos kept buffered off-screen
	MaxPreload         int           `mapstructure:"max_preload"`
	TransitionDuration time.Duration `mapstructure:"transition_duration"`
	AutoAdvanceDelay   time.Duration `mapstructure:"auto_advance_delay"`
	StartMuted         bool          `mapstructure:"start_muted"`
	CommandRetries     int           `mapstructure:"command_retries"`
}

// ParentalConfig carries defaults applied when no stored settings exist yet
type ParentalConfig struct {
	DefaultCategories []string `mapstructure:"default_categories"`
	DefaultLanguages  []string `mapstructure:"default_languages"`
	TimeLimitMinutes  int      `mapstructure:"time_limit_minutes"`
	BedtimeHour       int      `mapstructure:"bedtime_hour"`
	HistoryLimit      int      `mapstructure:"history_limit"`
}

// DatabaseConfig configures the sqlite store
type DatabaseConfig struct {
	Path           string `mapstructure:"path"`
	MaxConnections int    `mapstructure:"max_connections"`
	WALMode        bool   `mapstructure:"wal_mode"`
}

// LoggingConfig configures the slog logger
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // "text" or "json"
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
	Color      bool   `mapstructure:"color"`
}

// AdvancedConfig holds debugging knobs
type AdvancedConfig struct {
	Debug bool `mapstructure:"debug"`
}

// GetConfigDir returns the kidtube configuration directory
func GetConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "kidtube")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "kidtube")
}

// GetDataDir returns the directory for the database and other state
func GetDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "kidtube")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "kidtube")
}

// GetStateDir returns the directory for logs
func GetStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "kidtube")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "state", "kidtube")
}

// InitializeDirs creates the config and data directories if missing
func InitializeDirs() error {
	for _, dir := range []string{GetConfigDir(), GetDataDir(), GetStateDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// SetDefaults registers default values on a viper instance
func SetDefaults(v *viper.Viper) {
	v.SetDefault("source.mirrors", []string{
		"https://watch.kidtube.app/api/v1",
		"https://mirror1.kidtube.app/api/v1",
		"https://mirror2.kidtube.app/api/v1",
	})
	v.SetDefault("source.request_timeout", 8*time.Second)
	v.SetDefault("source.max_results", 15)
	v.SetDefault("source.user_agent", "kidtube/1.0")

	v.SetDefault("feed.initial_categories", 3)
	v.SetDefault("feed.refill_threshold", 3)

	v.SetDefault("player.max_preload", 2)
	v.SetDefault("player.transition_duration", 400*time.Millisecond)
	v.SetDefault("player.auto_advance_delay", 500*time.Millisecond)
	v.SetDefault("player.start_muted", true)
	v.SetDefault("player.command_retries", 5)

	v.SetDefault("parental.default_categories", []string{
		"indian-kids", "devotional", "good-habits", "kids-arts", "kids-knowledge",
	})
	v.SetDefault("parental.default_languages", []string{"english", "hindi"})
	v.SetDefault("parental.time_limit_minutes", 30)
	v.SetDefault("parental.bedtime_hour", 21)
	v.SetDefault("parental.history_limit", 100)

	v.SetDefault("database.path", filepath.Join(GetDataDir(), "kidtube.db"))
	v.SetDefault("database.max_connections", 4)
	v.SetDefault("database.wal_mode", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 14)
	v.SetDefault("logging.compress", true)
	v.SetDefault("logging.color", true)

	v.SetDefault("advanced.debug", false)
}

// Load reads configuration from the given file, or from the default
// location when path is empty. The returned viper instance can be used for
// hot reload via WatchConfig.
func Load(path string) (*Config, *viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(GetConfigDir())
	}

	v.SetEnvPrefix("KIDTUBE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults apply
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	return &cfg, v, nil
}

// Validate checks configuration invariants
func (c *Config) Validate() error {
	if len(c.Source.Mirrors) == 0 {
		return fmt.Errorf("source.mirrors must list at least one endpoint")
	}
	if c.Feed.InitialCategories < 1 {
		return fmt.Errorf("feed.initial_categories must be at least 1")
	}
	if c.Player.MaxPreload < 0 {
		return fmt.Errorf("player.max_preload must not be negative")
	}
	if c.Parental.BedtimeHour < 0 || c.Parental.BedtimeHour > 23 {
		return fmt.Errorf("parental.bedtime_hour must be between 0 and 23")
	}
	return nil
}

// SaveDefaultConfig writes a config file populated with defaults
func SaveDefaultConfig(path string) error {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
