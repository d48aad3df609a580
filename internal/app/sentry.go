package app

import (
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
)

// ConfigureSentry initialises the global Sentry client. It reports false without error
// when no DSN is configured.
func ConfigureSentry(cfg SentryConfig, server ServerConfig) (bool, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return false, nil
	}

	env := strings.TrimSpace(cfg.Environment)
	if env == "" {
		env = strings.TrimSpace(server.Environment)
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      env,
		Release:          strings.TrimSpace(cfg.Release),
		EnableTracing:    cfg.TracesSampleRate > 0,
		TracesSampleRate: cfg.TracesSampleRate,
		AttachStacktrace: true,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// FlushSentry waits up to timeout for buffered events to be delivered.
func FlushSentry(timeout time.Duration) {
	if sentry.CurrentHub().Client() == nil {
		return
	}
	sentry.Flush(timeout)
}
