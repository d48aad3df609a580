// Package function exposes the lead endpoint as a Cloud Functions style HTTP entrypoint.
//
// The instance may be throttled as soon as a response is written, so relays always run
// before the handler returns here, whatever relay.sync says.
package function

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/charlesng35/waitlist/internal/app"
	"github.com/charlesng35/waitlist/internal/bootstrap"
	appErrors "github.com/charlesng35/waitlist/pkg/errors"
	"github.com/charlesng35/waitlist/pkg/logger"
	"github.com/charlesng35/waitlist/pkg/response"
)

var (
	initOnce sync.Once
	handler  http.Handler
	initErr  error

	// buildHandler is replaced in tests.
	buildHandler = buildLeadHandler
)

// Lead handles one request on whatever route the runtime assigns. The stack is built on the
// first call and reused by every later invocation in the same instance.
func Lead(w http.ResponseWriter, r *http.Request) {
	initOnce.Do(func() {
		handler, initErr = buildHandler(context.Background())
		if initErr != nil {
			logger.WithModule("function").Error("lead function init failed", zap.Error(initErr))
		}
	})

	if initErr != nil {
		writeError(w, appErrors.ErrSaveFailed)
		return
	}
	handler.ServeHTTP(w, r)
}

func buildLeadHandler(ctx context.Context) (http.Handler, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, err
	}
	if err := app.ConfigureLogging(cfg.Server); err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	if _, err := app.ConfigureSentry(cfg.Sentry, cfg.Server); err != nil {
		logger.WithModule("function").Warn("sentry disabled", zap.Error(err))
	}

	return buildEngine(ctx, cfg)
}

func buildEngine(ctx context.Context, cfg *app.Config) (http.Handler, error) {
	cfg.Relay.Sync = true
	stack, err := bootstrap.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return stack.LeadEngine()
}

func writeError(w http.ResponseWriter, appErr *appErrors.AppError) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.StatusCode)
	_ = json.NewEncoder(w).Encode(response.Response{Error: appErr.Message})
}
