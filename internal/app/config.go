package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	appValidator "github.com/charlesng35/waitlist/pkg/validator"
)

// Lead store backends selectable through leads.backend.
const (
	BackendSQL       = "sql"
	BackendFirestore = "firestore"
	BackendCSV       = "csv"
)

// Config represents the runtime configuration for the waitlist backend.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Leads       LeadsConfig       `mapstructure:"leads"`
	Relay       RelayConfig       `mapstructure:"relay"`
	Email       EmailConfig       `mapstructure:"email"`
	Sentry      SentryConfig      `mapstructure:"sentry"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int             `mapstructure:"port" validate:"min=1,max=65535"`
	LogLevel        string          `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogFormat       string          `mapstructure:"log_format" validate:"oneof=json console"`
	Environment     string          `mapstructure:"environment"`
	MaxBodyBytes    int64           `mapstructure:"max_body_bytes" validate:"min=1"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	TrustedProxies  []string        `mapstructure:"trusted_proxies"`
	CORS            CORSConfig      `mapstructure:"cors"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

// CORSConfig lists origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RateLimitConfig bounds requests per client and route. Zero requests disables it.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests" validate:"min=0"`
	Window   time.Duration `mapstructure:"window"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver" validate:"oneof=sqlite postgres postgresql mysql"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// CacheConfig describes cache backends.
type CacheConfig struct {
	Redis RedisCacheConfig `mapstructure:"redis"`
}

// RedisCacheConfig holds Redis connection options.
type RedisCacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Address  string        `mapstructure:"address"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TLS      bool          `mapstructure:"tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// LeadsConfig selects where submissions are stored.
type LeadsConfig struct {
	Backend   string          `mapstructure:"backend" validate:"oneof=sql firestore csv"`
	CSV       CSVConfig       `mapstructure:"csv"`
	Firestore FirestoreConfig `mapstructure:"firestore"`
}

// CSVConfig locates the append-only leads file.
type CSVConfig struct {
	Path string `mapstructure:"path"`
}

// FirestoreConfig identifies the Firestore database holding the leads collections.
type FirestoreConfig struct {
	ProjectID   string `mapstructure:"project_id"`
	DatabaseID  string `mapstructure:"database_id"`
	MaxAttempts int    `mapstructure:"max_attempts" validate:"min=0"`
}

// RelayConfig controls where accepted leads are forwarded.
type RelayConfig struct {
	Timeout time.Duration      `mapstructure:"timeout"`
	Sync    bool               `mapstructure:"sync"`
	Webhook WebhookRelayConfig `mapstructure:"webhook"`
	Kafka   KafkaRelayConfig   `mapstructure:"kafka"`
	Email   EmailRelayConfig   `mapstructure:"email"`
}

// WebhookRelayConfig posts each lead to URL. An empty URL disables the relay.
type WebhookRelayConfig struct {
	URL     string        `mapstructure:"url" validate:"omitempty,url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// KafkaRelayConfig publishes each lead to a topic.
type KafkaRelayConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

// EmailRelayConfig notifies the listed recipients about each lead.
type EmailRelayConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	To      []string `mapstructure:"to"`
}

// EmailConfig captures outbound email settings.
type EmailConfig struct {
	Mailgun MailgunConfig `mapstructure:"mailgun"`
}

// MailgunConfig defines the Mailgun API credentials.
type MailgunConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Domain  string        `mapstructure:"domain"`
	APIKey  string        `mapstructure:"api_key"`
	APIBase string        `mapstructure:"api_base"`
	From    string        `mapstructure:"from"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SentryConfig enables error reporting when DSN is set.
type SentryConfig struct {
	DSN              string  `mapstructure:"dsn"`
	Environment      string  `mapstructure:"environment"`
	Release          string  `mapstructure:"release"`
	TracesSampleRate float64 `mapstructure:"traces_sample_rate" validate:"min=0,max=1"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles health endpoints.
type HealthConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// MaintenanceConfig schedules background cleanup.
type MaintenanceConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	CacheSchedule string `mapstructure:"cache_schedule"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("WAITLIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindLegacyEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks field rules and the settings that depend on each other.
func (c *Config) Validate() error {
	if err := appValidator.ValidateStruct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	switch c.Leads.Backend {
	case BackendCSV:
		if strings.TrimSpace(c.Leads.CSV.Path) == "" {
			return errors.New("config: leads.csv.path is required for the csv backend")
		}
	case BackendFirestore:
		if strings.TrimSpace(c.Leads.Firestore.ProjectID) == "" {
			return errors.New("config: leads.firestore.project_id is required for the firestore backend")
		}
	}

	if c.Relay.Kafka.Enabled {
		if len(c.Relay.Kafka.Brokers) == 0 || strings.TrimSpace(c.Relay.Kafka.Topic) == "" {
			return errors.New("config: relay.kafka requires brokers and topic")
		}
	}
	if c.Relay.Email.Enabled {
		if !c.Email.Mailgun.Enabled {
			return errors.New("config: relay.email requires email.mailgun.enabled")
		}
		if len(c.Relay.Email.To) == 0 {
			return errors.New("config: relay.email.to must list at least one recipient")
		}
	}
	return nil
}

// bindLegacyEnv maps the unprefixed variables used by existing deployments.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"relay.webhook.url":          {"WAITLIST_RELAY_WEBHOOK_URL", "LEADS_WEBHOOK_URL"},
		"leads.firestore.project_id": {"WAITLIST_LEADS_FIRESTORE_PROJECT_ID", "GOOGLE_CLOUD_PROJECT"},
		"sentry.dsn":                 {"WAITLIST_SENTRY_DSN", "SENTRY_DSN"},
		"server.port":                {"WAITLIST_SERVER_PORT", "PORT"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("config: bind %s: %w", key, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.environment", "production")
	v.SetDefault("server.max_body_bytes", 64*1024)
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("server.rate_limit.requests", 30)
	v.SetDefault("server.rate_limit.window", "1m")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/waitlist.sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.postgres.host", "")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.database", "")
	v.SetDefault("database.postgres.username", "")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.mysql.host", "")
	v.SetDefault("database.mysql.port", 3306)
	v.SetDefault("database.mysql.database", "")
	v.SetDefault("database.mysql.username", "")
	v.SetDefault("database.mysql.password", "")

	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.address", "127.0.0.1:6379")
	v.SetDefault("cache.redis.username", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.tls", false)
	v.SetDefault("cache.redis.timeout", "5s")

	v.SetDefault("leads.backend", BackendSQL)
	v.SetDefault("leads.csv.path", "./data/leads.csv")
	v.SetDefault("leads.firestore.project_id", "")
	v.SetDefault("leads.firestore.database_id", "")
	v.SetDefault("leads.firestore.max_attempts", 5)

	v.SetDefault("relay.timeout", "10s")
	v.SetDefault("relay.sync", false)
	v.SetDefault("relay.webhook.url", "")
	v.SetDefault("relay.webhook.timeout", "5s")
	v.SetDefault("relay.kafka.enabled", false)
	v.SetDefault("relay.kafka.brokers", []string{})
	v.SetDefault("relay.kafka.topic", "waitlist.leads")
	v.SetDefault("relay.kafka.batch_timeout", "50ms")
	v.SetDefault("relay.email.enabled", false)
	v.SetDefault("relay.email.to", []string{})

	v.SetDefault("email.mailgun.enabled", false)
	v.SetDefault("email.mailgun.domain", "")
	v.SetDefault("email.mailgun.api_key", "")
	v.SetDefault("email.mailgun.api_base", "")
	v.SetDefault("email.mailgun.from", "")
	v.SetDefault("email.mailgun.timeout", "10s")

	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "")
	v.SetDefault("sentry.release", "")
	v.SetDefault("sentry.traces_sample_rate", 0.0)

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)
	v.SetDefault("monitoring.health_check.timeout", "2s")

	v.SetDefault("maintenance.enabled", true)
	v.SetDefault("maintenance.cache_schedule", "@every 15m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
