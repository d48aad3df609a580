package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/waitlist/internal/api"
	"github.com/charlesng35/waitlist/internal/app"
	sharedtestutil "github.com/charlesng35/waitlist/internal/database/testutil"
	"github.com/charlesng35/waitlist/internal/leadstore"
	"github.com/charlesng35/waitlist/internal/middleware"
	"github.com/charlesng35/waitlist/internal/monitoring"
	"github.com/charlesng35/waitlist/internal/monitoring/checks"
	"github.com/charlesng35/waitlist/internal/services"
	"github.com/charlesng35/waitlist/pkg/response"
)

// RemoteAddr is the client address attached to every request sent through Env.
const RemoteAddr = "203.0.113.7:52100"

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T          *testing.T
	DB         *gorm.DB
	Router     *gin.Engine
	Config     *app.Config
	Leads      *services.LeadService
	Monitoring *monitoring.Module
}

// EnvOption adjusts the environment before the router is built.
type EnvOption func(*envSettings)

type envSettings struct {
	cfg        *app.Config
	leadOpts   []services.LeadOption
	rateStore  middleware.RateStore
	extraReady []monitoring.Check
}

// WithConfig mutates the default test configuration.
func WithConfig(fn func(cfg *app.Config)) EnvOption {
	return func(s *envSettings) {
		fn(s.cfg)
	}
}

// WithLeadOptions forwards options to the lead service.
func WithLeadOptions(opts ...services.LeadOption) EnvOption {
	return func(s *envSettings) {
		s.leadOpts = append(s.leadOpts, opts...)
	}
}

// WithReadinessCheck registers an additional readiness probe.
func WithReadinessCheck(check monitoring.Check) EnvOption {
	return func(s *envSettings) {
		s.extraReady = append(s.extraReady, check)
	}
}

// DefaultConfig returns the configuration used by NewEnv before options apply.
func DefaultConfig() *app.Config {
	return &app.Config{
		Server: app.ServerConfig{
			Port:         8080,
			MaxBodyBytes: 64 * 1024,
		},
		Leads: app.LeadsConfig{Backend: app.BackendSQL},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true, Timeout: time.Second},
		},
	}
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	settings := &envSettings{cfg: DefaultConfig(), rateStore: middleware.NewMemoryRateStore()}
	for _, opt := range opts {
		opt(settings)
	}

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	store, err := leadstore.NewSQLStore(db)
	require.NoError(t, err)

	leads, err := services.NewLeadService(store, settings.leadOpts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = leads.Wait(ctx)
	})

	mon, err := monitoring.NewModule(monitoring.Options{Gatherers: []prometheus.Gatherer{}})
	require.NoError(t, err)
	monitoring.SetModule(mon)
	mon.Health().RegisterLiveness(monitoring.NewCheck("process", func(context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	}))
	mon.Health().RegisterReadiness(checks.Database(db, time.Second))
	mon.Health().RegisterReadiness(checks.LeadStore(app.BackendSQL, store, time.Second))
	for _, check := range settings.extraReady {
		mon.Health().RegisterReadiness(check)
	}

	router, err := api.NewRouter(settings.cfg, leads, mon, settings.rateStore)
	require.NoError(t, err)

	return &Env{
		T:          t,
		DB:         db,
		Router:     router,
		Config:     settings.cfg,
		Leads:      leads,
		Monitoring: mon,
	}
}

// DecodeResponse parses the lead API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// Request executes an HTTP request against the test router. Strings and byte slices are sent
// verbatim; any other non-nil body is JSON encoded.
func (e *Env) Request(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	switch v := body.(type) {
	case nil:
		buf = bytes.NewBuffer(nil)
	case string:
		buf = bytes.NewBufferString(v)
	case []byte:
		buf = bytes.NewBuffer(v)
	default:
		data, err := json.Marshal(v)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)
	req.RemoteAddr = RemoteAddr

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
