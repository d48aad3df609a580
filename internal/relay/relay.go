// Package relay forwards stored leads to external systems after the primary write has
// committed. Relays never affect the outcome of a submission.
package relay

import (
	"context"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/charlesng35/waitlist/internal/models"
	"github.com/charlesng35/waitlist/pkg/metrics"
)

// Relay delivers a stored lead to one destination.
type Relay interface {
	Deliver(ctx context.Context, lead models.Lead) error
}

// Named is implemented by relays that report a metrics label.
type Named interface {
	Name() string
}

// Fanout delivers every lead to all wrapped relays in parallel.
type Fanout struct {
	relays []Relay
}

// NewFanout drops nil relays. It returns nil when nothing remains so callers can treat
// "no relay configured" uniformly.
func NewFanout(relays ...Relay) *Fanout {
	kept := make([]Relay, 0, len(relays))
	for _, r := range relays {
		if r != nil {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return &Fanout{relays: kept}
}

// Len reports how many relays receive each lead.
func (f *Fanout) Len() int {
	if f == nil {
		return 0
	}
	return len(f.relays)
}

// Deliver waits for every relay and combines their failures.
func (f *Fanout) Deliver(ctx context.Context, lead models.Lead) error {
	if f == nil {
		return nil
	}

	var g errgroup.Group
	errs := make([]error, len(f.relays))
	for i, r := range f.relays {
		g.Go(func() error {
			errs[i] = r.Deliver(ctx, lead)
			record(r, errs[i])
			return nil
		})
	}
	_ = g.Wait()
	return multierr.Combine(errs...)
}

func record(r Relay, err error) {
	name := "unknown"
	if n, ok := r.(Named); ok {
		name = n.Name()
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	metrics.RelayDeliveries.WithLabelValues(name, result).Inc()
}
