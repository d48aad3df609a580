package api

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/waitlist/internal/app"
	"github.com/charlesng35/waitlist/internal/handlers"
	"github.com/charlesng35/waitlist/internal/middleware"
	"github.com/charlesng35/waitlist/internal/monitoring"
)

// LeadRoute is where the landing page posts waitlist submissions.
const LeadRoute = "/api/lead"

// NewRouter builds the Gin engine, wires middleware and registers the lead, health and
// metrics routes. rateStore may be nil, in which case counters stay in process memory.
func NewRouter(cfg *app.Config, leads handlers.LeadSubmitter, mon *monitoring.Module, rateStore middleware.RateStore) (*gin.Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	leadHandler, err := handlers.NewLeadHandler(leads, cfg.Server.MaxBodyBytes)
	if err != nil {
		return nil, err
	}

	r := gin.New()
	if err := r.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Sentry())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowedOrigins...))

	limiter := middleware.RateLimit(middleware.RateLimitConfig{
		Store:    rateStore,
		Requests: cfg.Server.RateLimit.Requests,
		Window:   cfg.Server.RateLimit.Window,
	})
	registerLeadRoutes(r, leadHandler, limiter)

	if err := registerHealthRoutes(r, cfg, mon); err != nil {
		return nil, err
	}
	registerMetricsRoute(r, cfg, mon)

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

// NewLeadEngine returns an engine that sends every path to the lead handler, for runtimes
// that assign the route themselves.
func NewLeadEngine(cfg *app.Config, leads handlers.LeadSubmitter) (*gin.Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	leadHandler, err := handlers.NewLeadHandler(leads, cfg.Server.MaxBodyBytes)
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(middleware.Recovery())
	r.Use(middleware.Sentry())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowedOrigins...))
	r.NoRoute(leadHandler.Submit)

	return r, nil
}
