// Package config loads runtime settings from an optional YAML file, a .env
// file and POLLS_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/vncsmyrnk/timedpolls/internal/core/domain"
)

const EnvPrefix = "POLLS"

type StorageType string

const (
	StorageFile     StorageType = "file"
	StorageSQLite   StorageType = "sqlite"
	StoragePostgres StorageType = "postgres"
	StorageMySQL    StorageType = "mysql"
)

type Config struct {
	HTTPAddr string
	LogLevel string

	Storage  StorageConfig
	Polls    PollsConfig
	Sessions SessionsConfig
	Slack    SlackConfig
}

type StorageConfig struct {
	Type        StorageType
	FilePath    string
	SQLitePath  string
	PostgresURL string
	MySQLDSN    string
	Timeout     time.Duration
}

type PollsConfig struct {
	DefaultDuration       time.Duration
	CloseRetryMaxInterval time.Duration
	SweepTimeout          time.Duration
}

type SessionsConfig struct {
	RepromptEnabled      bool
	RepromptInterval     time.Duration
	RepromptOnlyWhenIdle bool
}

type SlackConfig struct {
	WebhookURL    string
	SigningSecret string
}

var keys = []string{
	"http.addr",
	"log.level",
	"storage.type",
	"storage.file.path",
	"storage.sqlite.path",
	"storage.postgres.url",
	"storage.mysql.dsn",
	"storage.timeout",
	"polls.default_duration",
	"polls.close_retry_max_interval",
	"polls.sweep_timeout",
	"sessions.reprompt.enabled",
	"sessions.reprompt.interval",
	"sessions.reprompt.only_when_idle",
	"slack.webhook_url",
	"slack.signing_secret",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", "0.0.0.0:8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("storage.type", string(StorageFile))
	v.SetDefault("storage.file.path", "data/polls.json")
	v.SetDefault("storage.sqlite.path", "data/polls.db")
	v.SetDefault("storage.timeout", 5*time.Second)
	v.SetDefault("polls.default_duration", domain.DefaultDuration)
	v.SetDefault("polls.close_retry_max_interval", 5*time.Minute)
	v.SetDefault("polls.sweep_timeout", 5*time.Minute)
	v.SetDefault("sessions.reprompt.enabled", false)
	v.SetDefault("sessions.reprompt.interval", time.Hour)
	v.SetDefault("sessions.reprompt.only_when_idle", true)
}

// EnvName returns the variable that overrides key, e.g. POLLS_STORAGE_TYPE
// for storage.type.
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Load reads configuration. file may be empty; a missing .env is not an
// error.
func Load(file string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	for _, key := range keys {
		_ = v.BindEnv(key, EnvName(key))
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	cfg := &Config{
		HTTPAddr: v.GetString("http.addr"),
		LogLevel: v.GetString("log.level"),
		Storage: StorageConfig{
			Type:        StorageType(strings.ToLower(strings.TrimSpace(v.GetString("storage.type")))),
			FilePath:    v.GetString("storage.file.path"),
			SQLitePath:  v.GetString("storage.sqlite.path"),
			PostgresURL: v.GetString("storage.postgres.url"),
			MySQLDSN:    v.GetString("storage.mysql.dsn"),
			Timeout:     v.GetDuration("storage.timeout"),
		},
		Polls: PollsConfig{
			DefaultDuration:       v.GetDuration("polls.default_duration"),
			CloseRetryMaxInterval: v.GetDuration("polls.close_retry_max_interval"),
			SweepTimeout:          v.GetDuration("polls.sweep_timeout"),
		},
		Sessions: SessionsConfig{
			RepromptEnabled:      v.GetBool("sessions.reprompt.enabled"),
			RepromptInterval:     v.GetDuration("sessions.reprompt.interval"),
			RepromptOnlyWhenIdle: v.GetBool("sessions.reprompt.only_when_idle"),
		},
		Slack: SlackConfig{
			WebhookURL:    v.GetString("slack.webhook_url"),
			SigningSecret: v.GetString("slack.signing_secret"),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Type {
	case StorageFile:
		if c.Storage.FilePath == "" {
			return errors.New("storage.file.path is required for file storage")
		}
	case StorageSQLite:
		if c.Storage.SQLitePath == "" {
			return errors.New("storage.sqlite.path is required for sqlite storage")
		}
	case StoragePostgres:
		if c.Storage.PostgresURL == "" {
			return errors.New("storage.postgres.url is required for postgres storage")
		}
	case StorageMySQL:
		if c.Storage.MySQLDSN == "" {
			return errors.New("storage.mysql.dsn is required for mysql storage")
		}
	default:
		return fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}
	if c.Polls.DefaultDuration <= 0 {
		return fmt.Errorf("polls.default_duration must be positive, got %s", c.Polls.DefaultDuration)
	}
	if c.Sessions.RepromptEnabled && c.Sessions.RepromptInterval <= 0 {
		return fmt.Errorf("sessions.reprompt.interval must be positive, got %s", c.Sessions.RepromptInterval)
	}
	return nil
}

// RepromptInterval is zero when reprompting is disabled.
func (c *Config) RepromptInterval() time.Duration {
	if !c.Sessions.RepromptEnabled {
		return 0
	}
	return c.Sessions.RepromptInterval
}

// DSN returns the connection string for the SQL backends.
func (s StorageConfig) DSN() string {
	switch s.Type {
	case StorageSQLite:
		return s.SQLitePath
	case StoragePostgres:
		return s.PostgresURL
	case StorageMySQL:
		return s.MySQLDSN
	default:
		return ""
	}
}
