package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/waitlist/internal/database"
)

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("testdata"))
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, "console", cfg.Server.LogFormat)
	require.EqualValues(t, 32768, cfg.Server.MaxBodyBytes)
	require.Equal(t, []string{"10.0.0.0/8"}, cfg.Server.TrustedProxies)
	require.Equal(t, []string{"https://waitlist.example.com"}, cfg.Server.CORS.AllowedOrigins)
	require.Equal(t, 5, cfg.Server.RateLimit.Requests)
	require.Equal(t, 30*time.Second, cfg.Server.RateLimit.Window)
	require.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, 5433, cfg.Database.Postgres.Port)

	require.True(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, 3*time.Second, cfg.Cache.Redis.Timeout)

	require.Equal(t, BackendCSV, cfg.Leads.Backend)
	require.Equal(t, "/var/lib/waitlist/leads.csv", cfg.Leads.CSV.Path)

	require.Equal(t, 8*time.Second, cfg.Relay.Timeout)
	require.False(t, cfg.Relay.Sync)
	require.Equal(t, "https://hooks.example.com/leads", cfg.Relay.Webhook.URL)
	require.Equal(t, 5*time.Second, cfg.Relay.Webhook.Timeout)
	require.True(t, cfg.Relay.Kafka.Enabled)
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Relay.Kafka.Brokers)
	require.Equal(t, "leads.accepted", cfg.Relay.Kafka.Topic)
	require.Equal(t, []string{"sales@example.com"}, cfg.Relay.Email.To)

	require.True(t, cfg.Email.Mailgun.Enabled)
	require.Equal(t, 15*time.Second, cfg.Email.Mailgun.Timeout)

	require.Equal(t, "https://public@sentry.example.com/1", cfg.Sentry.DSN)
	require.InDelta(t, 0.25, cfg.Sentry.TracesSampleRate, 1e-9)

	require.True(t, cfg.Maintenance.Enabled)
	require.Equal(t, "@hourly", cfg.Maintenance.CacheSchedule)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.EqualValues(t, 64*1024, cfg.Server.MaxBodyBytes)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, BackendSQL, cfg.Leads.Backend)
	require.Empty(t, cfg.Relay.Webhook.URL)
	require.False(t, cfg.Relay.Kafka.Enabled)
	require.True(t, cfg.Monitoring.Health.Enabled)
}

func TestLoadConfigLeadsWebhookEnv(t *testing.T) {
	t.Setenv("LEADS_WEBHOOK_URL", "https://hooks.example.com/from-env")
	t.Setenv("WAITLIST_LEADS_BACKEND", "csv")
	t.Setenv("WAITLIST_LEADS_CSV_PATH", filepath.Join(t.TempDir(), "leads.csv"))

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, "https://hooks.example.com/from-env", cfg.Relay.Webhook.URL)
	require.Equal(t, BackendCSV, cfg.Leads.Backend)
}

func TestLoadConfigPrefixedEnvWins(t *testing.T) {
	t.Setenv("LEADS_WEBHOOK_URL", "https://hooks.example.com/legacy")
	t.Setenv("WAITLIST_RELAY_WEBHOOK_URL", "https://hooks.example.com/prefixed")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, "https://hooks.example.com/prefixed", cfg.Relay.Webhook.URL)
}

func TestLoadConfigRejectsUnknownBackend(t *testing.T) {
	t.Setenv("WAITLIST_LEADS_BACKEND", "mongo")

	_, err := LoadConfig(t.TempDir())
	require.Error(t, err)
	require.Contains(t, err.Error(), "backend")
}

func TestConfigValidateCrossFieldRules(t *testing.T) {
	base := func() Config {
		cfg, err := LoadConfig(t.TempDir())
		require.NoError(t, err)
		return *cfg
	}

	cfg := base()
	cfg.Leads.Backend = BackendFirestore
	require.ErrorContains(t, cfg.Validate(), "project_id")

	cfg = base()
	cfg.Leads.Backend = BackendCSV
	cfg.Leads.CSV.Path = " "
	require.ErrorContains(t, cfg.Validate(), "leads.csv.path")

	cfg = base()
	cfg.Relay.Kafka.Enabled = true
	require.ErrorContains(t, cfg.Validate(), "relay.kafka")

	cfg = base()
	cfg.Relay.Email.Enabled = true
	cfg.Relay.Email.To = []string{"ops@example.com"}
	require.ErrorContains(t, cfg.Validate(), "mailgun")

	cfg = base()
	cfg.Relay.Webhook.URL = "not a url"
	require.Error(t, cfg.Validate())
}

func TestDatabaseSettings(t *testing.T) {
	cfg := DatabaseConfig{
		Driver: " PostgreSQL ",
		Postgres: DBAuthConfig{
			Host:     "db",
			Port:     5432,
			Database: "waitlist",
			Username: "app",
			Password: " pass ",
		},
	}
	require.Equal(t, database.Config{
		Driver:   "postgres",
		Host:     "db",
		Port:     5432,
		Name:     "waitlist",
		User:     "app",
		Password: " pass ",
	}, cfg.DatabaseSettings())

	require.Equal(t, "sqlite", DatabaseConfig{Path: "./x.db"}.DatabaseSettings().Driver)
}

func TestMailgunSettingsAdapter(t *testing.T) {
	cfg := EmailConfig{Mailgun: MailgunConfig{
		Enabled: true,
		Domain:  " mg.example.com ",
		APIKey:  "key",
		From:    "no-reply@example.com",
		Timeout: 10 * time.Second,
	}}

	settings := cfg.MailgunSettings()
	require.True(t, settings.Enabled)
	require.Equal(t, "mg.example.com", settings.Domain)
	require.Equal(t, "key", settings.APIKey)
	require.Equal(t, 10*time.Second, settings.Timeout)
}

func TestConfigureSentryWithoutDSN(t *testing.T) {
	enabled, err := ConfigureSentry(SentryConfig{}, ServerConfig{})
	require.NoError(t, err)
	require.False(t, enabled)
}
