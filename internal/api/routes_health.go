package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/waitlist/internal/app"
	"github.com/charlesng35/waitlist/internal/handlers"
	"github.com/charlesng35/waitlist/internal/monitoring"
)

func registerHealthRoutes(r *gin.Engine, cfg *app.Config, mon *monitoring.Module) error {
	if !cfg.Monitoring.Health.Enabled || mon == nil || mon.Health() == nil {
		r.GET("/health", handlers.Disabled)
		r.GET("/health/live", handlers.Disabled)
		r.GET("/health/ready", handlers.Disabled)
		return nil
	}

	handler, err := handlers.NewHealthHandler(mon.Health(), cfg.Monitoring.Health.Timeout)
	if err != nil {
		return err
	}

	registerHealthEndpoints(r, handler)
	registerHealthEndpoints(r.Group("/api"), handler)
	r.GET("/api/monitoring/summary", handler.Summary)
	return nil
}

func registerHealthEndpoints(router gin.IRouter, handler *handlers.HealthHandler) {
	router.GET("/health", handler.Status)
	router.GET("/health/live", handler.Live)
	router.GET("/health/ready", handler.Ready)
}
