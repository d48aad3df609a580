package maintenance

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/waitlist/internal/monitoring"
	"github.com/charlesng35/waitlist/pkg/logger"
)

const (
	defaultCacheSpec = "@every 15m"
	cacheCleanupJob  = "cache_cleanup"
)

// ExpiredPurger removes cache rows whose expiry is before cutoff.
type ExpiredPurger interface {
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// Cleaner coordinates background maintenance tasks, currently purging expired rate-limit
// counters from the SQL cache table.
type Cleaner struct {
	cache ExpiredPurger
	cron  *cron.Cron
	now   func() time.Time
	log   *zap.Logger

	cacheSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithCacheSchedule overrides the cron specification for cache cleanup.
func WithCacheSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.cacheSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner. A nil purger disables the cache job.
func NewCleaner(cache ExpiredPurger, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		cache:         cache,
		now:           time.Now,
		cacheSchedule: defaultCacheSpec,
		log:           logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it if at least one
// cleanup is enabled.
func (c *Cleaner) Start() error {
	if c.cache == nil {
		return nil
	}

	if _, err := c.cron.AddFunc(c.cacheSchedule, func() {
		if err := c.cleanupCache(context.Background()); err != nil {
			c.log.Warn("cache cleanup failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler. The returned context is done once running jobs
// have completed.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially. Used in tests and during
// graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	if c.cache != nil {
		errs = multierr.Append(errs, c.cleanupCache(ctx))
	}
	return errs
}

func (c *Cleaner) cleanupCache(ctx context.Context) error {
	if c.cache == nil {
		return errors.New("cache cleanup: store is required")
	}

	start := time.Now()
	removed, err := c.cache.PurgeExpired(ctx, c.now())
	if err != nil {
		monitoring.RecordMaintenanceRun(cacheCleanupJob, "failure", err.Error(), time.Since(start))
		return err
	}

	monitoring.RecordMaintenanceRun(cacheCleanupJob, "success", "", time.Since(start))
	if removed > 0 {
		c.log.Debug("expired cache entries removed", zap.Int64("count", removed))
	}
	return nil
}
