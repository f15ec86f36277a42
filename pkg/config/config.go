package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
)

// Config captures module-level configuration knobs. Feature packages (keys,
// ratelimit, shares, reminders, dispatcher) pull from these nested structs.
type Config struct {
	Crypto        CryptoConfig        `mapstructure:"crypto" json:"crypto" koanf:"crypto"`
	Storage       StorageConfig       `mapstructure:"storage" json:"storage" koanf:"storage"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit" json:"rate_limit" koanf:"rate_limit"`
	Shares        SharesConfig        `mapstructure:"shares" json:"shares" koanf:"shares"`
	Reminders     RemindersConfig     `mapstructure:"reminders" json:"reminders" koanf:"reminders"`
	Notifications NotificationsConfig `mapstructure:"notifications" json:"notifications" koanf:"notifications"`
	Logging       LoggingConfig       `mapstructure:"logging" json:"logging" koanf:"logging"`
	Metrics       MetricsConfig       `mapstructure:"metrics" json:"metrics" koanf:"metrics"`
}

// CryptoConfig controls master key sourcing. The environment variable wins
// over MasterKey, which wins over the parameter store.
type CryptoConfig struct {
	MasterKey           string `mapstructure:"master_key" json:"master_key" koanf:"master_key"`
	ParamKey            string `mapstructure:"param_key" json:"param_key" koanf:"param_key"`
	DisableAutoGenerate bool   `mapstructure:"disable_auto_generate" json:"disable_auto_generate" koanf:"disable_auto_generate"`
	// ParamStore selects where the generated key is persisted: "db" or "aws".
	ParamStore string `mapstructure:"param_store" json:"param_store" koanf:"param_store"`
	AWSRegion  string `mapstructure:"aws_region" json:"aws_region" koanf:"aws_region"`
	AWSPrefix  string `mapstructure:"aws_prefix" json:"aws_prefix" koanf:"aws_prefix"`
}

// StorageConfig selects the repository backend.
type StorageConfig struct {
	// Driver is one of "memory", "sqlite" or "postgres".
	Driver string `mapstructure:"driver" json:"driver" koanf:"driver"`
	DSN    string `mapstructure:"dsn" json:"dsn" koanf:"dsn"`
	Debug  bool   `mapstructure:"debug" json:"debug" koanf:"debug"`
}

// RateLimitConfig bounds plaintext disclosures per actor and credential.
type RateLimitConfig struct {
	Limit  int           `mapstructure:"limit" json:"limit" koanf:"limit"`
	Window time.Duration `mapstructure:"window" json:"window" koanf:"window"`
	// Backend is one of "memory", "db" or "redis".
	Backend   string `mapstructure:"backend" json:"backend" koanf:"backend"`
	RedisAddr string `mapstructure:"redis_addr" json:"redis_addr" koanf:"redis_addr"`
	RedisDB   int    `mapstructure:"redis_db" json:"redis_db" koanf:"redis_db"`
	Prefix    string `mapstructure:"prefix" json:"prefix" koanf:"prefix"`
}

type SharesConfig struct {
	SweepBatchSize int           `mapstructure:"sweep_batch_size" json:"sweep_batch_size" koanf:"sweep_batch_size"`
	MaxDuration    time.Duration `mapstructure:"max_duration" json:"max_duration" koanf:"max_duration"`
}

type RemindersConfig struct {
	BatchSize int `mapstructure:"batch_size" json:"batch_size" koanf:"batch_size"`
	// Location names the IANA zone used to decide the current calendar date.
	Location string `mapstructure:"location" json:"location" koanf:"location"`
}

// NotificationsConfig toggles the delivery worker pool and the channels it uses.
type NotificationsConfig struct {
	Enabled     bool          `mapstructure:"enabled" json:"enabled" koanf:"enabled"`
	MaxRetries  int           `mapstructure:"max_retries" json:"max_retries" koanf:"max_retries"`
	MaxWorkers  int           `mapstructure:"max_workers" json:"max_workers" koanf:"max_workers"`
	SendTimeout time.Duration `mapstructure:"send_timeout" json:"send_timeout" koanf:"send_timeout"`
	Channels    []string      `mapstructure:"channels" json:"channels" koanf:"channels"`
	WebhookURL  string        `mapstructure:"webhook_url" json:"webhook_url" koanf:"webhook_url"`
	SESFrom     string        `mapstructure:"ses_from" json:"ses_from" koanf:"ses_from"`
	SESRegion   string        `mapstructure:"ses_region" json:"ses_region" koanf:"ses_region"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level" json:"level" koanf:"level"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled" json:"enabled" koanf:"enabled"`
	Namespace string `mapstructure:"namespace" json:"namespace" koanf:"namespace"`
}

// Defaults returns the baseline configuration.
func Defaults() Config {
	return Config{
		Crypto: CryptoConfig{
			ParamKey:   "access_vault.master_key",
			ParamStore: "db",
		},
		Storage: StorageConfig{
			Driver: "memory",
		},
		RateLimit: RateLimitConfig{
			Limit:   10,
			Window:  time.Minute,
			Backend: "memory",
			Prefix:  "vault:disclose",
		},
		Shares: SharesConfig{
			SweepBatchSize: 500,
		},
		Reminders: RemindersConfig{
			BatchSize: 200,
			Location:  "UTC",
		},
		Notifications: NotificationsConfig{
			Enabled:     true,
			MaxRetries:  3,
			MaxWorkers:  4,
			SendTimeout: 10 * time.Second,
			Channels:    []string{"console"},
		},
		Logging: LoggingConfig{Level: "info"},
		Metrics: MetricsConfig{Enabled: true, Namespace: "vault"},
	}
}

// Validate ensures required fields are present and sane.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver)
	}
	if c.Storage.Driver == "postgres" && c.Storage.DSN == "" {
		return errors.New("storage.dsn is required for postgres")
	}
	switch c.Crypto.ParamStore {
	case "db", "aws":
	default:
		return fmt.Errorf("crypto.param_store %q is not supported", c.Crypto.ParamStore)
	}
	if c.RateLimit.Limit <= 0 {
		return errors.New("rate_limit.limit must be > 0")
	}
	if c.RateLimit.Window < time.Second {
		return errors.New("rate_limit.window must be at least 1s")
	}
	switch c.RateLimit.Backend {
	case "memory", "db":
	case "redis":
		if c.RateLimit.RedisAddr == "" {
			return errors.New("rate_limit.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("rate_limit.backend %q is not supported", c.RateLimit.Backend)
	}
	if c.Shares.SweepBatchSize <= 0 {
		return errors.New("shares.sweep_batch_size must be > 0")
	}
	if c.Shares.MaxDuration < 0 {
		return errors.New("shares.max_duration must be >= 0")
	}
	if c.Reminders.BatchSize <= 0 {
		return errors.New("reminders.batch_size must be > 0")
	}
	if _, err := time.LoadLocation(c.Reminders.Location); err != nil {
		return fmt.Errorf("reminders.location: %w", err)
	}
	if c.Notifications.MaxRetries < 0 {
		return errors.New("notifications.max_retries must be >= 0")
	}
	if c.Notifications.MaxWorkers <= 0 {
		return errors.New("notifications.max_workers must be > 0")
	}
	if c.Notifications.SendTimeout <= 0 {
		return errors.New("notifications.send_timeout must be > 0")
	}
	for _, ch := range c.Notifications.Channels {
		switch strings.ToLower(strings.TrimSpace(ch)) {
		case "console":
		case "webhook":
			if c.Notifications.WebhookURL == "" {
				return errors.New("notifications.webhook_url is required for the webhook channel")
			}
		case "ses":
			if c.Notifications.SESFrom == "" {
				return errors.New("notifications.ses_from is required for the ses channel")
			}
		default:
			return fmt.Errorf("notifications channel %q is not supported", ch)
		}
	}
	return nil
}

// Loc resolves the reminder calendar zone, UTC when unset.
func (c RemindersConfig) Loc() *time.Location {
	if c.Location == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Location)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load decodes arbitrary input (struct, map, cfg struct) using cfgx helpers.
// When cfgx returns a zero value we fall back to a JSON round trip.
func Load(input any, opts ...LoadOption) (Config, error) {
	settings := loadOptions{}
	for _, opt := range opts {
		opt(&settings)
	}

	cfg, err := cfgx.Build(input, settings.buildOpts...)
	if err != nil {
		return Config{}, err
	}

	if isZero(cfg) {
		if err := decodeFallback(input, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg = cfg.withDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadOption lets callers amend cfgx build options.
type LoadOption func(*loadOptions)

type loadOptions struct {
	buildOpts []cfgx.Option[Config]
}

// WithBuildOptions forwards cfgx options (duration hooks, preprocessors, etc.).
func WithBuildOptions(opts ...cfgx.Option[Config]) LoadOption {
	return func(lo *loadOptions) {
		lo.buildOpts = append(lo.buildOpts, opts...)
	}
}

func (c Config) withDefaults() Config {
	d := Defaults()

	if c.Crypto.ParamKey == "" {
		c.Crypto.ParamKey = d.Crypto.ParamKey
	}
	if c.Crypto.ParamStore == "" {
		c.Crypto.ParamStore = d.Crypto.ParamStore
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = d.Storage.Driver
	}
	if c.RateLimit.Limit == 0 {
		c.RateLimit.Limit = d.RateLimit.Limit
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = d.RateLimit.Window
	}
	if c.RateLimit.Backend == "" {
		c.RateLimit.Backend = d.RateLimit.Backend
	}
	if c.RateLimit.Prefix == "" {
		c.RateLimit.Prefix = d.RateLimit.Prefix
	}
	if c.Shares.SweepBatchSize == 0 {
		c.Shares.SweepBatchSize = d.Shares.SweepBatchSize
	}
	if c.Reminders.BatchSize == 0 {
		c.Reminders.BatchSize = d.Reminders.BatchSize
	}
	if c.Reminders.Location == "" {
		c.Reminders.Location = d.Reminders.Location
	}
	if c.Notifications.MaxWorkers == 0 {
		c.Notifications.MaxWorkers = d.Notifications.MaxWorkers
	}
	if c.Notifications.MaxRetries == 0 {
		c.Notifications.MaxRetries = d.Notifications.MaxRetries
	}
	if c.Notifications.SendTimeout == 0 {
		c.Notifications.SendTimeout = d.Notifications.SendTimeout
	}
	if len(c.Notifications.Channels) == 0 {
		c.Notifications.Channels = d.Notifications.Channels
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = d.Metrics.Namespace
	}
	return c
}

func isZero(cfg Config) bool {
	return reflect.DeepEqual(cfg, Config{})
}

func decodeFallback(input any, cfg *Config) error {
	switch v := input.(type) {
	case nil:
		return nil
	case Config:
		*cfg = v
		return nil
	case *Config:
		if v != nil {
			*cfg = *v
		}
		return nil
	case map[string]any:
		return decodeMap(v, cfg)
	default:
		return fmt.Errorf("unsupported config input type: %T", input)
	}
}

func decodeMap(input map[string]any, cfg *Config) error {
	if input == nil {
		return nil
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, cfg)
}
