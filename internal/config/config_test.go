package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/docsync/core/pkg/schedule"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("SCHEDULER_CONFIG", "")
	t.Setenv("SCHEDULER_POLL_INTERVAL", "")
	t.Setenv("SCHEDULER_TIMEZONE", "UTC")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Driver != DriverPostgres {
		t.Errorf("Driver = %q", cfg.Store.Driver)
	}
	if cfg.Scheduler.PollInterval != time.Minute {
		t.Errorf("PollInterval = %s", cfg.Scheduler.PollInterval)
	}
	if cfg.Scheduler.TriggerBurst != 3 || cfg.Scheduler.TriggerInterval != 10*time.Second {
		t.Errorf("trigger limits = %d / %s", cfg.Scheduler.TriggerBurst, cfg.Scheduler.TriggerInterval)
	}
	if len(cfg.Scheduler.Definitions) != 2 {
		t.Fatalf("expected 2 built-in definitions, got %d", len(cfg.Scheduler.Definitions))
	}

	comprehensive, err := cfg.Scheduler.Definitions[0].Settings()
	if err != nil {
		t.Fatalf("comprehensive defaults: %v", err)
	}
	if comprehensive.Enabled || comprehensive.Description() != "Daily at 03:00" || comprehensive.Weekdays != schedule.AllWeekdays {
		t.Errorf("unexpected comprehensive defaults %+v", comprehensive)
	}

	language, err := cfg.Scheduler.Definitions[1].Settings()
	if err != nil {
		t.Fatalf("language defaults: %v", err)
	}
	if language.Enabled || language.Description() != "Weekly on MON at 04:00" {
		t.Errorf("unexpected language defaults %+v", language)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("SQLITE_PATH", "/var/lib/docsync/s.db")
	t.Setenv("SCHEDULER_POLL_INTERVAL", "30")
	t.Setenv("PIPELINE_TIMEOUT", "15m")
	t.Setenv("ALLOWED_ORIGINS", "http://a.local, http://b.local")
	t.Setenv("SCHEDULER_TIMEZONE", "Europe/Berlin")
	t.Setenv("SCHEDULER_CONFIG", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Driver != DriverSQLite || cfg.Store.SQLitePath != "/var/lib/docsync/s.db" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Scheduler.PollInterval != 30*time.Second || cfg.Scheduler.PipelineTimeout != 15*time.Minute {
		t.Errorf("durations = %s / %s", cfg.Scheduler.PollInterval, cfg.Scheduler.PipelineTimeout)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "http://b.local" {
		t.Errorf("AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Scheduler.Location.String() != "Europe/Berlin" {
		t.Errorf("Location = %s", cfg.Scheduler.Location)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown driver", "STORE_DRIVER", "mongo"},
		{"bad timezone", "SCHEDULER_TIMEZONE", "Mars/Olympus"},
		{"missing config file", "SCHEDULER_CONFIG", "/nonexistent/schedulers.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("STORE_DRIVER", "memory")
			t.Setenv("SCHEDULER_TIMEZONE", "UTC")
			t.Setenv("SCHEDULER_CONFIG", "")
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad_DefinitionsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedulers.yaml")
	content := `
schedulers:
  - key: language-sync
    defaults:
      enabled: true
      frequency: MONTHLY
      sync_time: "05:30"
      day_of_month: 31
  - name: Search Reindex
    endpoint: http://indexer.local/run
    defaults:
      frequency: WEEKLY
      sync_time: "22:00"
      weekdays: SAT,SUN
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("SCHEDULER_TIMEZONE", "UTC")
	t.Setenv("SCHEDULER_CONFIG", path)
	t.Setenv("LANGUAGE_SYNC_URL", "http://pipeline.local/language")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	defs := cfg.Scheduler.Definitions
	if len(defs) != 3 {
		t.Fatalf("expected 3 definitions, got %d", len(defs))
	}

	language := defs[1]
	if language.Key != "language-sync" || language.Endpoint != "http://pipeline.local/language" {
		t.Errorf("override lost the built-in endpoint: %+v", language)
	}
	settings, err := language.Settings()
	if err != nil || !settings.Enabled || settings.Description() != "Monthly on day 31 at 05:30" {
		t.Errorf("language settings = %+v, %v", settings, err)
	}

	reindex := defs[2]
	if reindex.Key != "search-reindex" || reindex.Name != "Search Reindex" {
		t.Errorf("derived key = %+v", reindex)
	}
}

func TestDecodeDefinitions_Strict(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown field",
			yaml:    "schedulers:\n  - key: x\n    cron: '* * * * *'\n",
			wantErr: "field cron not found",
		},
		{
			name: "empty file",
			yaml: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeDefinitions(strings.NewReader(tt.yaml))
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDefinitions(t *testing.T) {
	daily := DefaultSettings{Frequency: "DAILY", SyncTime: "03:00"}

	tests := []struct {
		name    string
		defs    []Definition
		wantErr bool
	}{
		{"valid", []Definition{{Key: "a", Defaults: daily}, {Key: "b", Defaults: daily}}, false},
		{"duplicate", []Definition{{Key: "a", Defaults: daily}, {Key: "a", Defaults: daily}}, true},
		{"bad key", []Definition{{Key: "Not A Key", Defaults: daily}}, true},
		{"bad defaults", []Definition{{Key: "a", Defaults: DefaultSettings{Frequency: "HOURLY", SyncTime: "03:00"}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := validateDefinitions(tt.defs); (err != nil) != tt.wantErr {
				t.Errorf("validateDefinitions() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDatabaseURL(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{
		Host: "db", Port: "5432", User: "u", Password: "p", DBName: "n", SSLMode: "disable",
	}}

	t.Setenv("DATABASE_URL", "")
	if got := cfg.DatabaseURL(); got != "postgres://u:p@db:5432/n?sslmode=disable" {
		t.Errorf("DatabaseURL() = %q", got)
	}

	t.Setenv("DATABASE_URL", "postgres://override")
	if got := cfg.DatabaseURL(); got != "postgres://override" {
		t.Errorf("DatabaseURL() = %q", got)
	}
}
