package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/docsync/core/pkg/schedule"
	"github.com/docsync/core/pkg/utils"
)

// Store drivers accepted by STORE_DRIVER
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Store     StoreConfig
	Scheduler SchedulerConfig
}

type ServerConfig struct {
	Port           string
	Host           string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type StoreConfig struct {
	Driver     string
	RedisURL   string
	SQLitePath string
}

type SchedulerConfig struct {
	PollInterval    time.Duration
	Location        *time.Location
	ConfigFile      string
	PipelineTimeout time.Duration
	TriggerInterval time.Duration
	TriggerBurst    int
	Definitions     []Definition
}

// Definition declares one scheduler: its persisted key, display name, the
// pipeline endpoint it triggers and the settings used the first time the key
// is seen.
type Definition struct {
	Key      string          `yaml:"key"`
	Name     string          `yaml:"name"`
	Endpoint string          `yaml:"endpoint"`
	Defaults DefaultSettings `yaml:"defaults"`
}

type DefaultSettings struct {
	Enabled    bool    `yaml:"enabled"`
	Frequency  string  `yaml:"frequency"`
	SyncTime   string  `yaml:"sync_time"`
	Weekdays   *string `yaml:"weekdays"`
	DayOfMonth *int    `yaml:"day_of_month"`
	TimeFormat *string `yaml:"time_format"`
}

// Settings validates the declared defaults.
func (d Definition) Settings() (schedule.Settings, error) {
	settings, err := schedule.Update{
		Enabled:    d.Defaults.Enabled,
		Frequency:  d.Defaults.Frequency,
		TimeOfDay:  d.Defaults.SyncTime,
		Weekdays:   d.Defaults.Weekdays,
		DayOfMonth: d.Defaults.DayOfMonth,
		TimeFormat: d.Defaults.TimeFormat,
	}.Apply(schedule.Settings{})
	if err != nil {
		return schedule.Settings{}, fmt.Errorf("scheduler %s defaults: %w", d.Key, err)
	}
	return settings, nil
}

// BuiltinDefinitions returns the two pipelines every deployment runs. Both
// start disabled until an operator turns them on.
func BuiltinDefinitions() []Definition {
	monday := "MON"
	return []Definition{
		{
			Key:      "comprehensive-sync",
			Name:     "Comprehensive sync",
			Endpoint: getEnv("COMPREHENSIVE_SYNC_URL", ""),
			Defaults: DefaultSettings{Frequency: "DAILY", SyncTime: "03:00"},
		},
		{
			Key:      "language-sync",
			Name:     "Language sync",
			Endpoint: getEnv("LANGUAGE_SYNC_URL", ""),
			Defaults: DefaultSettings{Frequency: "WEEKLY", SyncTime: "04:00", Weekdays: &monday},
		},
	}
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Host:           getEnv("HOST", ""),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "docsync"),
			Password: getEnv("DB_PASSWORD", "docsync"),
			DBName:   getEnv("DB_NAME", "docsync"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Store: StoreConfig{
			Driver:     strings.ToLower(getEnv("STORE_DRIVER", DriverPostgres)),
			RedisURL:   getEnv("REDIS_URL", "redis://localhost:6379/0"),
			SQLitePath: getEnv("SQLITE_PATH", "data/scheduler.db"),
		},
		Scheduler: SchedulerConfig{
			PollInterval:    getEnvAsDuration("SCHEDULER_POLL_INTERVAL", time.Minute),
			ConfigFile:      getEnv("SCHEDULER_CONFIG", ""),
			PipelineTimeout: getEnvAsDuration("PIPELINE_TIMEOUT", 0),
			TriggerInterval: getEnvAsDuration("TRIGGER_RATE_INTERVAL", 10*time.Second),
			TriggerBurst:    getEnvAsInt("TRIGGER_BURST", 3),
		},
	}

	loc, err := time.LoadLocation(getEnv("SCHEDULER_TIMEZONE", "Local"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_TIMEZONE: %w", err)
	}
	cfg.Scheduler.Location = loc

	switch cfg.Store.Driver {
	case DriverMemory, DriverPostgres, DriverRedis, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.Store.Driver)
	}
	if cfg.Scheduler.PollInterval <= 0 {
		return nil, errors.New("SCHEDULER_POLL_INTERVAL must be positive")
	}

	definitions := BuiltinDefinitions()
	if cfg.Scheduler.ConfigFile != "" {
		fromFile, err := LoadDefinitions(cfg.Scheduler.ConfigFile)
		if err != nil {
			return nil, err
		}
		definitions = MergeDefinitions(definitions, fromFile)
	}
	if err := validateDefinitions(definitions); err != nil {
		return nil, err
	}
	cfg.Scheduler.Definitions = definitions

	return cfg, nil
}

func validateDefinitions(defs []Definition) error {
	seen := make(map[string]bool, len(defs))
	var errs []error
	for _, d := range defs {
		if !utils.IsSchedulerKey(d.Key) {
			errs = append(errs, fmt.Errorf("invalid scheduler key %q", d.Key))
			continue
		}
		if seen[d.Key] {
			errs = append(errs, fmt.Errorf("duplicate scheduler key %q", d.Key))
		}
		seen[d.Key] = true
		if _, err := d.Settings(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90s") or a bare number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) DatabaseURL() string {
	// If DATABASE_URL is set, use it directly
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		return databaseURL
	}

	// Otherwise, construct from individual components
	return "postgres://" + c.Database.User + ":" + c.Database.Password +
		"@" + c.Database.Host + ":" + c.Database.Port +
		"/" + c.Database.DBName + "?sslmode=" + c.Database.SSLMode
}
