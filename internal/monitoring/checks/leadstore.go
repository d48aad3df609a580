package checks

import (
	"context"
	"time"

	"github.com/charlesng35/waitlist/internal/monitoring"
)

const defaultLeadStoreTimeout = 3 * time.Second

// Pinger is implemented by lead stores that can verify their backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// LeadStore returns a readiness probe for the configured lead store backend.
func LeadStore(backend string, store Pinger, timeout time.Duration) monitoring.Check {
	return monitoring.NewCheck("leadstore", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if store == nil {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDown,
				Details:  backend + " store not configured",
				Duration: time.Since(start),
			}
		}

		probeCtx, cancel := context.WithTimeout(ctx, chooseTimeout(timeout, defaultLeadStoreTimeout))
		defer cancel()

		if err := store.Ping(probeCtx); err != nil {
			return monitoring.ResultFromError("leadstore", err, time.Since(start))
		}
		return monitoring.ProbeResult{
			Status:   monitoring.StatusUp,
			Details:  backend,
			Duration: time.Since(start),
		}
	})
}
