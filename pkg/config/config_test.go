package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromMap(t *testing.T) {
	input := map[string]any{
		"storage": map[string]any{
			"driver": "sqlite",
			"dsn":    "file:vault.db",
		},
		"rate_limit": map[string]any{
			"limit": 5,
		},
		"notifications": map[string]any{
			"max_workers": 2,
		},
	}

	cfg, err := Load(input)
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Fatalf("expected sqlite driver, got %s", cfg.Storage.Driver)
	}
	if cfg.RateLimit.Limit != 5 {
		t.Fatalf("expected limit 5, got %d", cfg.RateLimit.Limit)
	}
	if cfg.RateLimit.Window != time.Minute {
		t.Fatalf("expected default window, got %s", cfg.RateLimit.Window)
	}
	if cfg.Notifications.MaxWorkers != 2 {
		t.Fatalf("expected workers 2, got %d", cfg.Notifications.MaxWorkers)
	}
}

func TestLoadFromStruct(t *testing.T) {
	input := Config{
		Storage:   StorageConfig{Driver: "memory"},
		RateLimit: RateLimitConfig{Limit: 3, Window: 30 * time.Second},
	}

	cfg, err := Load(input)
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}
	if cfg.RateLimit.Window != 30*time.Second {
		t.Fatalf("expected window 30s, got %s", cfg.RateLimit.Window)
	}
	if cfg.Crypto.ParamKey != "access_vault.master_key" {
		t.Fatalf("expected default param key, got %q", cfg.Crypto.ParamKey)
	}
	if cfg.Reminders.Loc() != time.UTC {
		t.Fatalf("expected UTC reminders location")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"driver":        func(c *Config) { c.Storage.Driver = "mongo" },
		"postgres dsn":  func(c *Config) { c.Storage.Driver = "postgres" },
		"limit":         func(c *Config) { c.RateLimit.Limit = -1 },
		"redis addr":    func(c *Config) { c.RateLimit.Backend = "redis" },
		"location":      func(c *Config) { c.Reminders.Location = "Mars/Olympus" },
		"webhook url":   func(c *Config) { c.Notifications.Channels = []string{"webhook"} },
		"ses sender":    func(c *Config) { c.Notifications.Channels = []string{"ses"} },
		"channel":       func(c *Config) { c.Notifications.Channels = []string{"pigeon"} },
		"param store":   func(c *Config) { c.Crypto.ParamStore = "vault" },
		"short window":  func(c *Config) { c.RateLimit.Window = time.Millisecond },
		"send timeout":  func(c *Config) { c.Notifications.SendTimeout = -time.Second },
		"sweep batch":   func(c *Config) { c.Shares.SweepBatchSize = -5 },
		"share max dur": func(c *Config) { c.Shares.MaxDuration = -time.Hour },
	}
	for name, mutate := range cases {
		cfg := Defaults()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestLoadFileLayersEnvOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.toml")
	body := `
[storage]
driver = "sqlite"
dsn = "file:vault.db"

[rate_limit]
limit = 4
window = "90s"

[notifications]
channels = ["console", "webhook"]
webhook_url = "https://hooks.example.com/vault"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("ACCESS_VAULT_RATE__LIMIT_LIMIT", "7")
	t.Setenv("ACCESS_VAULT_LOGGING_LEVEL", "debug")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Fatalf("expected sqlite from file, got %s", cfg.Storage.Driver)
	}
	if cfg.RateLimit.Limit != 7 {
		t.Fatalf("expected env override 7, got %d", cfg.RateLimit.Limit)
	}
	if cfg.RateLimit.Window != 90*time.Second {
		t.Fatalf("expected 90s window, got %s", cfg.RateLimit.Window)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected debug level, got %s", cfg.Logging.Level)
	}
	if len(cfg.Notifications.Channels) != 2 {
		t.Fatalf("expected two channels, got %v", cfg.Notifications.Channels)
	}
}

func TestLoadFileMissingPathUsesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	if cfg.Storage.Driver != "memory" || cfg.RateLimit.Limit != 10 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestEnvKeyMapping(t *testing.T) {
	cases := map[string]string{
		"ACCESS_VAULT_STORAGE_DRIVER":       "storage.driver",
		"ACCESS_VAULT_RATE__LIMIT_LIMIT":    "rate_limit.limit",
		"ACCESS_VAULT_CRYPTO_MASTER__KEY":   "crypto.master_key",
		"ACCESS_VAULT_REMINDERS_BATCH__SIZE": "reminders.batch_size",
	}
	for in, want := range cases {
		if got := envKey(in); got != want {
			t.Fatalf("envKey(%s) = %s, want %s", in, got, want)
		}
	}
}
