package monitoring

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options control monitoring module configuration.
type Options struct {
	// Namespace configures the Prometheus namespace. Defaults to "waitlist".
	Namespace string
	// Gatherers are merged into the /metrics output next to the module registry.
	// Defaults to prometheus.DefaultGatherer, which holds the pkg/metrics collectors.
	Gatherers []prometheus.Gatherer
}

// Module coordinates the maintenance collectors, runtime health probes, and summary state.
type Module struct {
	registry  *prometheus.Registry
	gatherers prometheus.Gatherers
	metrics   *collectors
	stats     *statStore
	health    *HealthManager
}

// NewModule constructs a monitoring module with its own Prometheus registry.
func NewModule(opts Options) (*Module, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "waitlist"
	}

	registry := prometheus.NewRegistry()
	metrics := newCollectors(namespace)
	for _, collector := range metrics.all() {
		if err := registry.Register(collector); err != nil {
			return nil, err
		}
	}

	extra := opts.Gatherers
	if extra == nil {
		extra = []prometheus.Gatherer{prometheus.DefaultGatherer}
	}
	gatherers := append(prometheus.Gatherers{registry}, extra...)

	module := &Module{
		registry:  registry,
		gatherers: gatherers,
		metrics:   metrics,
		stats:     newStatStore(),
		health:    NewHealthManager(),
	}
	module.health.owner = module
	return module, nil
}

// Registry exposes the underlying Prometheus registry.
func (m *Module) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an http.Handler serving the module registry merged with the configured
// gatherers.
func (m *Module) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.gatherers, promhttp.HandlerOpts{})
}

// Health exposes the health manager responsible for liveness and readiness probes.
func (m *Module) Health() *HealthManager {
	if m == nil {
		return nil
	}
	return m.health
}

var globalModule atomic.Pointer[Module]

// SetModule configures the process-wide monitoring module used by instrumentation helpers.
func SetModule(module *Module) {
	if module == nil {
		return
	}
	globalModule.Store(module)
}

// CurrentModule returns the process-wide monitoring module, or nil when unset.
func CurrentModule() *Module {
	return globalModule.Load()
}

func ensureModule() *Module {
	return globalModule.Load()
}
