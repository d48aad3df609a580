// Package bootstrap assembles the long-lived services behind the lead endpoint.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/waitlist/internal/api"
	"github.com/charlesng35/waitlist/internal/app"
	"github.com/charlesng35/waitlist/internal/app/maintenance"
	"github.com/charlesng35/waitlist/internal/cache"
	"github.com/charlesng35/waitlist/internal/database"
	"github.com/charlesng35/waitlist/internal/leadstore"
	"github.com/charlesng35/waitlist/internal/middleware"
	"github.com/charlesng35/waitlist/internal/monitoring"
	"github.com/charlesng35/waitlist/internal/monitoring/checks"
	"github.com/charlesng35/waitlist/internal/relay"
	"github.com/charlesng35/waitlist/internal/services"
	"github.com/charlesng35/waitlist/pkg/logger"
	"github.com/charlesng35/waitlist/pkg/mail"
)

// Stack bundles long-lived services used by the HTTP entrypoints.
type Stack struct {
	Config     *app.Config
	DB         *gorm.DB
	Redis      *cache.RedisClient
	Firestore  *firestore.Client
	Store      leadstore.Store
	Kafka      *relay.Kafka
	Leads      *services.LeadService
	Monitoring *monitoring.Module
	Cleaner    *maintenance.Cleaner
	RateStore  middleware.RateStore

	log *zap.Logger
}

// New initialises storage, relays and the lead service for cfg. On failure every resource
// opened so far is released.
func New(ctx context.Context, cfg *app.Config) (stack *Stack, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	stack = &Stack{Config: cfg, log: logger.WithModule("bootstrap")}
	defer func() {
		if err != nil {
			stack.Shutdown(context.Background())
			stack = nil
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.Cache.Redis.Enabled {
		client, redisErr := cache.NewRedisClient(cfg.Cache.RedisClientConfig())
		if redisErr != nil {
			stack.log.Warn("redis unavailable; falling back to local rate limiting", zap.Error(redisErr))
		} else {
			stack.Redis = client
			stack.log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	if cfg.Leads.Backend == app.BackendSQL || cfg.Leads.Backend == "" {
		if stack.DB, err = initialiseDatabase(cfg); err != nil {
			return stack, err
		}
	}

	if stack.Store, err = stack.openLeadStore(ctx); err != nil {
		return stack, err
	}

	var dbStore *cache.DatabaseStore
	if stack.DB != nil {
		dbStore = cache.NewDatabaseStore(stack.DB)
	}

	switch {
	case stack.Redis != nil:
		stack.RateStore = middleware.NewCacheRateStore(stack.Redis)
	case dbStore != nil:
		stack.RateStore = middleware.NewCacheRateStore(dbStore)
	default:
		stack.RateStore = middleware.NewMemoryRateStore()
	}

	leadRelay, err := stack.buildRelay()
	if err != nil {
		return stack, err
	}

	opts := []services.LeadOption{
		services.WithLeadRelayTimeout(cfg.Relay.Timeout),
		services.WithLeadSyncRelay(cfg.Relay.Sync),
	}
	if leadRelay != nil {
		opts = append(opts, services.WithLeadRelay(leadRelay))
	}
	if stack.Leads, err = services.NewLeadService(stack.Store, opts...); err != nil {
		return stack, fmt.Errorf("initialise lead service: %w", err)
	}

	if stack.Monitoring, err = stack.buildMonitoring(); err != nil {
		return stack, err
	}

	if cfg.Maintenance.Enabled && dbStore != nil {
		stack.Cleaner = maintenance.NewCleaner(dbStore, maintenance.WithCacheSchedule(cfg.Maintenance.CacheSchedule))
		if err = stack.Cleaner.Start(); err != nil {
			return stack, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	stack.log.Info("lead stack ready",
		zap.String("backend", cfg.Leads.Backend),
		zap.Bool("relay", leadRelay != nil),
		zap.Bool("redis", stack.Redis != nil),
	)
	return stack, nil
}

// Router builds the full HTTP router for the stack.
func (s *Stack) Router() (*gin.Engine, error) {
	router, err := api.NewRouter(s.Config, s.Leads, s.Monitoring, s.RateStore)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}
	return router, nil
}

// LeadEngine builds an engine answering every path with the lead handler.
func (s *Stack) LeadEngine() (*gin.Engine, error) {
	engine, err := api.NewLeadEngine(s.Config, s.Leads)
	if err != nil {
		return nil, fmt.Errorf("build lead engine: %w", err)
	}
	return engine, nil
}

func (s *Stack) openLeadStore(ctx context.Context) (leadstore.Store, error) {
	cfg := s.Config.Leads
	switch cfg.Backend {
	case app.BackendSQL, "":
		if s.DB == nil {
			return nil, fmt.Errorf("sql lead store requires a database")
		}
		return leadstore.NewSQLStore(s.DB)
	case app.BackendCSV:
		return leadstore.NewCSVStore(cfg.CSV.Path)
	case app.BackendFirestore:
		client, err := openFirestore(ctx, cfg.Firestore)
		if err != nil {
			return nil, err
		}
		s.Firestore = client
		return leadstore.NewFirestoreStore(client, leadstore.WithFirestoreMaxAttempts(cfg.Firestore.MaxAttempts))
	default:
		return nil, fmt.Errorf("unsupported lead backend %q", cfg.Backend)
	}
}

func openFirestore(ctx context.Context, cfg app.FirestoreConfig) (*firestore.Client, error) {
	projectID := strings.TrimSpace(cfg.ProjectID)
	databaseID := strings.TrimSpace(cfg.DatabaseID)

	var (
		client *firestore.Client
		err    error
	)
	if databaseID != "" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("open firestore: %w", err)
	}
	return client, nil
}

// buildRelay returns nil when no relay is configured.
func (s *Stack) buildRelay() (relay.Relay, error) {
	cfg := s.Config.Relay
	var relays []relay.Relay

	if hook := relay.NewWebhook(strings.TrimSpace(cfg.Webhook.URL), cfg.Webhook.Timeout); hook != nil {
		relays = append(relays, hook)
	}

	if cfg.Kafka.Enabled {
		producer, err := relay.NewKafka(relay.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			BatchTimeout: cfg.Kafka.BatchTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("initialise kafka relay: %w", err)
		}
		s.Kafka = producer
		relays = append(relays, producer)
	}

	if cfg.Email.Enabled {
		settings := s.Config.Email.MailgunSettings()
		mailer, err := mail.NewMailgunMailer(settings)
		if err != nil {
			return nil, fmt.Errorf("initialise email relay: %w", err)
		}
		if notify := relay.NewEmail(mailer, settings.From, cfg.Email.To); notify != nil {
			relays = append(relays, notify)
		}
	}

	if len(relays) == 0 {
		return nil, nil
	}
	return relay.NewFanout(relays...), nil
}

func (s *Stack) buildMonitoring() (*monitoring.Module, error) {
	mon, err := monitoring.NewModule(monitoring.Options{})
	if err != nil {
		return nil, fmt.Errorf("initialise monitoring: %w", err)
	}
	monitoring.SetModule(mon)

	timeout := s.Config.Monitoring.Health.Timeout
	health := mon.Health()

	if s.Config.Maintenance.Enabled && s.DB != nil {
		health.RegisterLiveness(checks.Maintenance(0))
	}
	if s.DB != nil {
		health.RegisterReadiness(checks.Database(s.DB, timeout))
	}
	if s.Config.Cache.Redis.Enabled {
		var pinger checks.RedisPinger
		if s.Redis != nil {
			pinger = s.Redis
		}
		health.RegisterReadiness(checks.Redis(pinger, true, timeout))
	}
	if pinger, ok := s.Store.(checks.Pinger); ok {
		health.RegisterReadiness(checks.LeadStore(s.Config.Leads.Backend, pinger, timeout))
	}
	return mon, nil
}

// Shutdown drains pending relays and releases resources. It is safe on a partially built
// stack.
func (s *Stack) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	log := s.log
	if log == nil {
		log = logger.WithModule("bootstrap")
	}

	var errs error

	if s.Leads != nil {
		if err := s.Leads.Wait(ctx); err != nil {
			log.Warn("lead relays still running at shutdown", zap.Error(err))
			errs = multierr.Append(errs, err)
		}
	}

	if s.Cleaner != nil {
		select {
		case <-s.Cleaner.Stop().Done():
		case <-ctx.Done():
		}
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if s.Kafka != nil {
		if err := s.Kafka.Close(); err != nil {
			log.Warn("kafka shutdown", zap.Error(err))
			errs = multierr.Append(errs, err)
		}
	}

	if s.Firestore != nil {
		if err := s.Firestore.Close(); err != nil {
			log.Warn("firestore shutdown", zap.Error(err))
			errs = multierr.Append(errs, err)
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
			errs = multierr.Append(errs, err)
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}

	app.FlushSentry(2 * time.Second)
	return errs
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.DatabaseSettings()
	db, err := database.OpenAndMigrate(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", dbCfg.Driver))

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if err := database.Close(db); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
