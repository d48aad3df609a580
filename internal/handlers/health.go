package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/waitlist/internal/monitoring"
)

// HealthHandler renders liveness and readiness reports.
type HealthHandler struct {
	manager *monitoring.HealthManager
	timeout time.Duration
}

// NewHealthHandler constructs a HealthHandler. Each evaluation is bounded by timeout when
// it is positive.
func NewHealthHandler(manager *monitoring.HealthManager, timeout time.Duration) (*HealthHandler, error) {
	if manager == nil {
		return nil, errors.New("health handler: manager is required")
	}
	return &HealthHandler{manager: manager, timeout: timeout}, nil
}

// Status returns the overall readiness without per-check details.
func (h *HealthHandler) Status(c *gin.Context) {
	ctx, cancel := h.context(c)
	defer cancel()

	report := h.manager.EvaluateReadiness(ctx)
	c.JSON(reportStatus(report), gin.H{
		"success":    report.Success,
		"status":     report.Status,
		"checked_at": time.Now().UTC(),
	})
}

// Live reports liveness checks.
func (h *HealthHandler) Live(c *gin.Context) {
	ctx, cancel := h.context(c)
	defer cancel()
	writeHealthReport(c, h.manager.EvaluateLiveness(ctx))
}

// Ready reports readiness checks.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := h.context(c)
	defer cancel()
	writeHealthReport(c, h.manager.EvaluateReadiness(ctx))
}

// Summary returns maintenance statistics for operators.
func (h *HealthHandler) Summary(c *gin.Context) {
	c.JSON(http.StatusOK, monitoring.Snapshot())
}

// Disabled answers health routes when health checks are switched off.
func Disabled(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"success": false,
		"status":  "disabled",
	})
}

func (h *HealthHandler) context(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

func writeHealthReport(c *gin.Context, report monitoring.HealthReport) {
	c.JSON(reportStatus(report), gin.H{
		"success":    report.Success,
		"status":     report.Status,
		"checks":     report.Checks,
		"checked_at": time.Now().UTC(),
	})
}

func reportStatus(report monitoring.HealthReport) int {
	if !report.Success {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}
