package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/waitlist/internal/app"
	"github.com/charlesng35/waitlist/internal/handlers/testutil"
	"github.com/charlesng35/waitlist/internal/monitoring"
)

type healthPayload struct {
	Success bool                     `json:"success"`
	Status  string                   `json:"status"`
	Checks  []monitoring.ProbeResult `json:"checks"`
}

func decodeHealth(t *testing.T, body []byte) healthPayload {
	t.Helper()
	var payload healthPayload
	require.NoError(t, json.Unmarshal(body, &payload), string(body))
	return payload
}

func TestHealthEndpointsReportUp(t *testing.T) {
	env := testutil.NewEnv(t)

	for _, path := range []string{"/health", "/api/health"} {
		resp := env.Request(http.MethodGet, path, nil, nil)
		require.Equal(t, http.StatusOK, resp.Code, path)
		payload := decodeHealth(t, resp.Body.Bytes())
		require.True(t, payload.Success)
		require.Equal(t, "up", payload.Status)
		require.Empty(t, payload.Checks)
	}

	resp := env.Request(http.MethodGet, "/health/ready", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	payload := decodeHealth(t, resp.Body.Bytes())
	require.Len(t, payload.Checks, 2)
	require.Equal(t, "database", payload.Checks[0].Component)
	require.Equal(t, "leadstore", payload.Checks[1].Component)

	resp = env.Request(http.MethodGet, "/health/live", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.Len(t, decodeHealth(t, resp.Body.Bytes()).Checks, 1)
}

func TestHealthReadyFailsWhenProbeIsDown(t *testing.T) {
	env := testutil.NewEnv(t, testutil.WithReadinessCheck(monitoring.NewCheck("kafka", func(context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "no brokers"}
	})))

	resp := env.Request(http.MethodGet, "/health/ready", nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
	payload := decodeHealth(t, resp.Body.Bytes())
	require.False(t, payload.Success)
	require.Equal(t, "down", payload.Status)
	require.Equal(t, "no brokers", payload.Checks[2].Details)

	resp = env.Request(http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestHealthDisabled(t *testing.T) {
	env := testutil.NewEnv(t, testutil.WithConfig(func(cfg *app.Config) {
		cfg.Monitoring.Health.Enabled = false
	}))

	resp := env.Request(http.MethodGet, "/health/ready", nil, nil)
	require.Equal(t, http.StatusNotFound, resp.Code)
	require.Equal(t, "disabled", decodeHealth(t, resp.Body.Bytes()).Status)
}

func TestMonitoringSummary(t *testing.T) {
	env := testutil.NewEnv(t)

	resp := env.Request(http.MethodGet, "/api/monitoring/summary", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var summary monitoring.Summary
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &summary))
}
