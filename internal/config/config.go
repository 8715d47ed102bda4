// Package config provides configuration loading, validation, and management
// for the todobot processes. It reads defaults, an optional YAML file, a
// .env file and TODOBOT_* environment variables, then validates the result.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrConfiguration wraps every error returned by Load.
var ErrConfiguration = errors.New("configuration error")

// EnvPrefix is the prefix of environment variables overriding config keys,
// e.g. TODOBOT_DATABASE_PATH for database.path.
const EnvPrefix = "TODOBOT"

// Config defines the configuration shared by the server, bot and manage
// binaries. Each binary only reads the sections it needs.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	Notifier  NotifierConfig  `mapstructure:"notifier"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	API       APIConfig       `mapstructure:"api"`
}

// LoggerConfig controls the slog handler. File enables an additional
// rotating log file.
type LoggerConfig struct {
	Level      string `mapstructure:"level"        validate:"oneof=debug info warn error"`
	JSON       bool   `mapstructure:"json"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"  validate:"min=1"`
	MaxBackups int    `mapstructure:"max_backups"  validate:"min=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"min=0"`
}

// DatabaseConfig points at the SQLite database file.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// ServerConfig configures the HTTP API listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"             validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"     validate:"min=1s"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"    validate:"min=1s"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=1s"`
}

// NotifierConfig configures due-date notification delivery. An empty
// BotToken is allowed at load time; notification runs then abort with a
// configuration error.
type NotifierConfig struct {
	BotToken      string        `mapstructure:"bot_token"`
	SendTimeout   time.Duration `mapstructure:"send_timeout"    validate:"min=1s,max=2m"`
	RatePerSecond int           `mapstructure:"rate_per_second" validate:"min=1,max=30"`
	Location      string        `mapstructure:"location"        validate:"required"`
}

// SchedulerConfig configures the periodic task scheduler.
// FallbackInterval schedules check_due_tasks when no trigger has been
// registered in the database; zero disables the fallback.
type SchedulerConfig struct {
	FallbackInterval time.Duration `mapstructure:"fallback_interval" validate:"min=0"`
}

// TelegramConfig configures the bot front-end.
type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

// APIConfig tells the bot front-end where the backend API lives.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout"  validate:"min=1s"`
}

var defaults = map[string]any{
	"logger.level":        "info",
	"logger.json":         false,
	"logger.file":         "",
	"logger.max_size_mb":  50,
	"logger.max_backups":  3,
	"logger.max_age_days": 28,

	"database.path": "storage.db",

	"server.addr":             ":8000",
	"server.read_timeout":     15 * time.Second,
	"server.write_timeout":    30 * time.Second,
	"server.shutdown_timeout": 10 * time.Second,

	"notifier.bot_token":       "",
	"notifier.send_timeout":    10 * time.Second,
	"notifier.rate_per_second": 20,
	"notifier.location":        "UTC",

	"scheduler.fallback_interval": time.Minute,

	"telegram.token": "",

	"api.base_url": "http://localhost:8000/api/v1",
	"api.timeout":  30 * time.Second,
}

// envAliases lets deployments keep the conventional variable names.
var envAliases = map[string][]string{
	"notifier.bot_token": {"TELEGRAM_BOT_TOKEN"},
	"telegram.token":     {"TELEGRAM_BOT_TOKEN"},
	"api.base_url":       {"API_BASE_URL"},
	"database.path":      {"DATABASE_PATH"},
}

// Load reads configuration from defaults, the YAML file at path (optional,
// a missing file is not an error), a .env file in the working directory and
// the environment, in increasing order of precedence.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: failed to load .env: %v", ErrConfiguration, err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, aliases := range envAliases {
		names := append([]string{EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, aliases...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("%w: failed to bind env for %s: %v", ErrConfiguration, key, err)
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("%w: failed to read config file %s: %v", ErrConfiguration, path, err)
			}
			slog.Debug("configuration file loaded", "path", path)
		} else if errors.Is(err, os.ErrNotExist) {
			slog.Info("configuration file not found, using defaults and environment", "path", path)
		} else {
			return nil, fmt.Errorf("%w: failed to stat config file %s: %v", ErrConfiguration, path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	return cfg, nil
}

// Validate checks struct constraints and values the tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if _, err := time.LoadLocation(c.Notifier.Location); err != nil {
		return fmt.Errorf("invalid notifier.location %q: %w", c.Notifier.Location, err)
	}
	return nil
}

// NotifierLocation returns the location due dates are rendered in.
// Validate guarantees it loads.
func (c *Config) NotifierLocation() *time.Location {
	loc, err := time.LoadLocation(c.Notifier.Location)
	if err != nil {
		return time.UTC
	}
	return loc
}
