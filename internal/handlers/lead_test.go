package handlers_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/waitlist/internal/app"
	"github.com/charlesng35/waitlist/internal/handlers/testutil"
	"github.com/charlesng35/waitlist/internal/models"
	"github.com/charlesng35/waitlist/internal/relay"
	"github.com/charlesng35/waitlist/internal/services"
)

const leadPath = "/api/lead"

func TestLeadRejectsNonPostMethods(t *testing.T) {
	env := testutil.NewEnv(t)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodPatch} {
		resp := env.Request(method, leadPath, nil, nil)
		require.Equal(t, http.StatusMethodNotAllowed, resp.Code, method)
		require.Equal(t, http.MethodPost, resp.Header().Get("Allow"), method)
		require.Equal(t, "Method not allowed", testutil.DecodeResponse(t, resp).Error)
	}
}

func TestLeadPreflightReturnsNoContent(t *testing.T) {
	env := testutil.NewEnv(t)

	resp := env.Request(http.MethodOptions, leadPath, nil, map[string]string{
		"Origin":                        "https://landing.example.com",
		"Access-Control-Request-Method": http.MethodPost,
	})
	require.Equal(t, http.StatusNoContent, resp.Code)
	require.Empty(t, resp.Body.String())
	require.Equal(t, "POST, OPTIONS", resp.Header().Get("Access-Control-Allow-Methods"))
	require.NotEmpty(t, resp.Header().Get("Access-Control-Allow-Origin"))
}

func TestLeadAcceptsSubmission(t *testing.T) {
	env := testutil.NewEnv(t)

	resp := env.Request(http.MethodPost, leadPath, map[string]any{
		"email":   "  Ada@Example.COM ",
		"role":    "CTO",
		"useCase": "Onboarding",
		"count":   12,
		"meta":    map[string]any{"utm_source": "newsletter", "drop": nil},
		"plan":    "pro",
	}, map[string]string{"User-Agent": "landing-test/1.0"})

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.JSONEq(t, `{"ok":true}`, resp.Body.String())

	var leads []models.Lead
	require.NoError(t, env.DB.Find(&leads).Error)
	require.Len(t, leads, 1)

	lead := leads[0]
	require.Equal(t, "ada@example.com", lead.Email)
	require.Equal(t, "CTO", lead.Role)
	require.Equal(t, "Onboarding", lead.UseCase)
	require.Equal(t, "12", lead.Count)
	require.Equal(t, "landing-test/1.0", lead.UserAgent)
	require.Equal(t, "203.0.113.7", lead.IP)
	require.Equal(t, "newsletter", lead.Meta["utm_source"])
	require.Equal(t, "pro", lead.Meta["plan"])
	require.NotContains(t, lead.Meta, "drop")
}

func TestLeadEnforcesPerEmailLimit(t *testing.T) {
	env := testutil.NewEnv(t)
	body := map[string]any{"email": "repeat@example.com"}

	for i := 0; i < models.MaxSubmissionsPerEmail; i++ {
		resp := env.Request(http.MethodPost, leadPath, body, nil)
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	}

	resp := env.Request(http.MethodPost, leadPath, map[string]any{"email": "REPEAT@example.com"}, nil)
	require.Equal(t, http.StatusTooManyRequests, resp.Code)
	require.Equal(t, "You’ve already joined twice with this email.", testutil.DecodeResponse(t, resp).Error)

	var count int64
	require.NoError(t, env.DB.Model(&models.Lead{}).Where("email = ?", "repeat@example.com").Count(&count).Error)
	require.EqualValues(t, models.MaxSubmissionsPerEmail, count)
}

func TestLeadRejectsInvalidEmail(t *testing.T) {
	env := testutil.NewEnv(t)

	cases := map[string]any{
		"missing email": map[string]any{"role": "CTO"},
		"malformed":     map[string]any{"email": "not-an-email"},
		"array body":    `[{"email":"a@b.co"}]`,
		"broken json":   `{"email":`,
		"empty body":    "",
	}
	for name, body := range cases {
		resp := env.Request(http.MethodPost, leadPath, body, nil)
		require.Equal(t, http.StatusBadRequest, resp.Code, name)
		require.Equal(t, "Valid email is required", testutil.DecodeResponse(t, resp).Error, name)
	}

	var count int64
	require.NoError(t, env.DB.Model(&models.Lead{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestLeadDecodesDoubleEncodedBody(t *testing.T) {
	env := testutil.NewEnv(t)

	inner, err := json.Marshal(map[string]any{"email": "twice@example.com", "company": "Acme"})
	require.NoError(t, err)
	outer, err := json.Marshal(string(inner))
	require.NoError(t, err)

	resp := env.Request(http.MethodPost, leadPath, outer, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var lead models.Lead
	require.NoError(t, env.DB.Where("email = ?", "twice@example.com").First(&lead).Error)
	require.Equal(t, "Acme", lead.Company)
}

func TestLeadRejectsOversizedBody(t *testing.T) {
	env := testutil.NewEnv(t, testutil.WithConfig(func(cfg *app.Config) {
		cfg.Server.MaxBodyBytes = 64
	}))

	body := `{"email":"big@example.com","challenge":"` + strings.Repeat("x", 256) + `"}`
	resp := env.Request(http.MethodPost, leadPath, body, nil)
	require.Equal(t, http.StatusRequestEntityTooLarge, resp.Code)
	require.Equal(t, "Request body too large", testutil.DecodeResponse(t, resp).Error)
}

func TestLeadReferralUpdateAlwaysSucceeds(t *testing.T) {
	env := testutil.NewEnv(t)

	for i := 0; i < 3; i++ {
		resp := env.Request(http.MethodPost, leadPath, map[string]any{
			"type":           services.ReferralUpdateType,
			"email":          "ref@example.com",
			"referralSource": "podcast",
		}, nil)
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	}

	var refs []models.LeadReferral
	require.NoError(t, env.DB.Find(&refs).Error)
	require.Len(t, refs, 1)
	require.Equal(t, "podcast", refs[0].ReferralSource)

	var count int64
	require.NoError(t, env.DB.Model(&models.Lead{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestLeadRelaysToWebhook(t *testing.T) {
	var (
		mu       sync.Mutex
		received []map[string]any
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		var payload map[string]any
		_ = json.Unmarshal(data, &payload)
		mu.Lock()
		received = append(received, payload)
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(hook.Close)

	env := testutil.NewEnv(t, testutil.WithLeadOptions(
		services.WithLeadRelay(relay.NewFanout(relay.NewWebhook(hook.URL, time.Second))),
	))

	resp := env.Request(http.MethodPost, leadPath, map[string]any{"email": "hooked@example.com"}, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.NoError(t, env.Leads.Wait(t.Context()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	require.Equal(t, "hooked@example.com", received[0]["email"])
}

func TestLeadSucceedsWithoutRelay(t *testing.T) {
	env := testutil.NewEnv(t)

	resp := env.Request(http.MethodPost, leadPath, map[string]any{"email": "quiet@example.com"}, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.NoError(t, env.Leads.Wait(t.Context()))
}
