package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds everything the bot needs at startup
type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	AI       AIConfig       `mapstructure:"ai"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Practice PracticeConfig `mapstructure:"practice"`
	Reminder ReminderConfig `mapstructure:"reminder"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type TelegramConfig struct {
	Token        string `mapstructure:"token"`
	AdminUserIDs string `mapstructure:"admin_user_ids"` // comma separated
}

type AIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
	// Requests per second allowed towards the model endpoint
	RateLimit float64 `mapstructure:"rate_limit"`
}

type DatabaseConfig struct {
	Type string `mapstructure:"type"` // sqlite or postgres
	Path string `mapstructure:"path"`
	URL  string `mapstructure:"url"`
}

type StorageConfig struct {
	Type         string `mapstructure:"type"` // database, file or memory
	ProgressDir  string `mapstructure:"progress_dir"`
}

type PracticeConfig struct {
	Timezone string `mapstructure:"timezone"`
}

type ReminderConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Hour    int  `mapstructure:"hour"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ai.base_url", "https://api.openai.com/v1")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.timeout", 30*time.Second)
	v.SetDefault("ai.rate_limit", 2.0)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.path", "data/practice.db")

	v.SetDefault("storage.type", "database")
	v.SetDefault("storage.progress_dir", "data/progress")

	v.SetDefault("practice.timezone", "Local")

	v.SetDefault("reminder.enabled", true)
	v.SetDefault("reminder.hour", 7)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "logs/app.log")
}

func bindEnv(v *viper.Viper) {
	v.BindEnv("telegram.token", "TELEGRAM_BOT_TOKEN")
	v.BindEnv("telegram.admin_user_ids", "ADMIN_USER_IDS")

	v.BindEnv("ai.base_url", "AI_BASE_URL")
	v.BindEnv("ai.api_key", "OPENAI_API_KEY")
	v.BindEnv("ai.model", "AI_MODEL")
	v.BindEnv("ai.timeout", "AI_TIMEOUT")
	v.BindEnv("ai.rate_limit", "AI_RATE_LIMIT")

	v.BindEnv("database.type", "DB_TYPE")
	v.BindEnv("database.path", "DB_PATH")
	v.BindEnv("database.url", "DATABASE_URL")

	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.progress_dir", "PROGRESS_DIR")

	v.BindEnv("practice.timezone", "PRACTICE_TIMEZONE")

	v.BindEnv("reminder.enabled", "ENABLE_SCHEDULER")
	v.BindEnv("reminder.hour", "REMINDER_HOUR")

	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.file", "LOG_FILE")

	v.BindEnv("metrics.addr", "METRICS_ADDR")
}

// Load reads .env (if present), an optional config.yaml under path and the
// environment, in increasing order of precedence.
func Load(path string) (*Config, error) {
	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail much later at runtime
func (c *Config) Validate() error {
	if c.Reminder.Hour < 0 || c.Reminder.Hour > 23 {
		return fmt.Errorf("reminder hour must be between 0 and 23, got %d", c.Reminder.Hour)
	}
	switch c.Database.Type {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database type %q", c.Database.Type)
	}
	switch c.Storage.Type {
	case "database", "file", "memory":
	default:
		return fmt.Errorf("unsupported storage type %q", c.Storage.Type)
	}
	if c.Database.Type == "postgres" && c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required for postgres")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the practice time zone used for every calendar date
func (c *Config) Location() (*time.Location, error) {
	tz := c.Practice.Timezone
	if tz == "" || tz == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid practice timezone %q: %w", tz, err)
	}
	return loc, nil
}

// AdminIDs parses the admin user id list, skipping malformed entries
func (c *Config) AdminIDs() (map[int64]bool, []string) {
	ids := make(map[int64]bool)
	var invalid []string
	if c.Telegram.AdminUserIDs == "" {
		return ids, nil
	}
	for _, idStr := range strings.Split(c.Telegram.AdminUserIDs, ",") {
		idStr = strings.TrimSpace(idStr)
		if idStr == "" {
			continue
		}
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			invalid = append(invalid, idStr)
			continue
		}
		ids[id] = true
	}
	return ids, invalid
}
