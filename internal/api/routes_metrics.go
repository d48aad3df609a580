package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/charlesng35/waitlist/internal/app"
	"github.com/charlesng35/waitlist/internal/monitoring"
)

func registerMetricsRoute(r *gin.Engine, cfg *app.Config, mon *monitoring.Module) {
	prom := cfg.Monitoring.Prometheus
	if !prom.Enabled {
		return
	}

	endpoint := prom.Endpoint
	if endpoint == "" {
		endpoint = "/metrics"
	}

	if mon != nil {
		r.GET(endpoint, gin.WrapH(mon.Handler()))
		return
	}
	r.GET(endpoint, gin.WrapH(promhttp.Handler()))
}
