package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/waitlist/internal/handlers"
)

func registerLeadRoutes(r *gin.Engine, handler *handlers.LeadHandler, limiter gin.HandlerFunc) {
	r.Any(LeadRoute, limiter, handler.Submit)
}
