package bootstrap

import (
	"context"
	"encoding/csv"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/waitlist/internal/app"
	"github.com/charlesng35/waitlist/internal/leadstore"
	"github.com/charlesng35/waitlist/internal/models"
)

func testConfig(t *testing.T) *app.Config {
	t.Helper()

	cfg, err := app.LoadConfig(t.TempDir())
	require.NoError(t, err)
	cfg.Database.Path = filepath.Join(t.TempDir(), "waitlist.sqlite")
	cfg.Server.RateLimit.Requests = 0
	return cfg
}

func shutdown(t *testing.T, stack *Stack) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, stack.Shutdown(ctx))
}

func postLead(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(rec, req)
	return rec
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(context.Background(), nil)
	require.Error(t, err)
}

func TestNewSQLBackendServesLeads(t *testing.T) {
	cfg := testConfig(t)

	stack, err := New(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, stack.DB)
	require.IsType(t, &leadstore.SQLStore{}, stack.Store)
	require.NotNil(t, stack.Cleaner)

	router, err := stack.Router()
	require.NoError(t, err)

	rec := postLead(t, router, "/api/lead", `{"email":"boot@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var count int64
	require.NoError(t, stack.DB.Model(&models.Lead{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"component":"database"`)
	require.Contains(t, rec.Body.String(), `"component":"leadstore"`)

	shutdown(t, stack)
}

func TestNewCSVBackendSkipsDatabase(t *testing.T) {
	cfg := testConfig(t)
	cfg.Leads.Backend = app.BackendCSV
	cfg.Leads.CSV.Path = filepath.Join(t.TempDir(), "leads.csv")

	stack, err := New(context.Background(), cfg)
	require.NoError(t, err)
	require.Nil(t, stack.DB)
	require.Nil(t, stack.Cleaner)
	require.NotNil(t, stack.RateStore)

	engine, err := stack.LeadEngine()
	require.NoError(t, err)

	rec := postLead(t, engine, "/", `{"email":"csv@example.com","company":"Acme, Inc."}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	shutdown(t, stack)

	f, err := os.Open(cfg.Leads.CSV.Path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Contains(t, rows[1], "csv@example.com")
	require.Contains(t, rows[1], "Acme, Inc.")
}

func TestNewWiresWebhookRelay(t *testing.T) {
	var hits atomic.Int32
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(hook.Close)

	cfg := testConfig(t)
	cfg.Relay.Webhook.URL = hook.URL

	stack, err := New(context.Background(), cfg)
	require.NoError(t, err)

	router, err := stack.Router()
	require.NoError(t, err)

	rec := postLead(t, router, "/api/lead", `{"email":"relay@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	shutdown(t, stack)
	require.EqualValues(t, 1, hits.Load())
}

func TestNewRejectsKafkaWithoutBrokers(t *testing.T) {
	cfg := testConfig(t)
	cfg.Relay.Kafka.Enabled = true
	cfg.Relay.Kafka.Brokers = nil

	stack, err := New(context.Background(), cfg)
	require.Error(t, err)
	require.Nil(t, stack)
}

func TestNewBuildsKafkaRelayLazily(t *testing.T) {
	cfg := testConfig(t)
	cfg.Relay.Kafka.Enabled = true
	cfg.Relay.Kafka.Brokers = []string{"127.0.0.1:1"}

	stack, err := New(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, stack.Kafka)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = stack.Shutdown(ctx)
}

func TestShutdownNilStack(t *testing.T) {
	var stack *Stack
	require.NoError(t, stack.Shutdown(context.Background()))
}
