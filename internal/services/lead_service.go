package services

import (
	"context"
	"errors"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/charlesng35/waitlist/internal/leadstore"
	"github.com/charlesng35/waitlist/internal/models"
	"github.com/charlesng35/waitlist/internal/relay"
	"github.com/charlesng35/waitlist/pkg/crypto"
	appErrors "github.com/charlesng35/waitlist/pkg/errors"
	"github.com/charlesng35/waitlist/pkg/logger"
	"github.com/charlesng35/waitlist/pkg/metrics"
)

const defaultRelayTimeout = 10 * time.Second

// LeadOption customises LeadService behaviour.
type LeadOption func(*LeadService)

// WithLeadClock injects a custom clock primarily for testing.
func WithLeadClock(clock func() time.Time) LeadOption {
	return func(s *LeadService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithLeadHasher overrides the function deriving referral keys from a normalized email.
func WithLeadHasher(hash func(string) string) LeadOption {
	return func(s *LeadService) {
		if hash != nil {
			s.hash = hash
		}
	}
}

// WithLeadIDGenerator overrides lead id generation.
func WithLeadIDGenerator(gen func() string) LeadOption {
	return func(s *LeadService) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithLeadRelay forwards every stored lead to r.
func WithLeadRelay(r relay.Relay) LeadOption {
	return func(s *LeadService) {
		s.relay = r
	}
}

// WithLeadRelayTimeout bounds each relay delivery.
func WithLeadRelayTimeout(d time.Duration) LeadOption {
	return func(s *LeadService) {
		if d > 0 {
			s.relayTimeout = d
		}
	}
}

// WithLeadSyncRelay makes Submit wait for the relay before returning. Runtimes that
// suspend the instance once the response is written need this to avoid losing deliveries.
func WithLeadSyncRelay(enabled bool) LeadOption {
	return func(s *LeadService) {
		s.syncRelay = enabled
	}
}

// WithLeadLogger replaces the module logger.
func WithLeadLogger(l *zap.Logger) LeadOption {
	return func(s *LeadService) {
		if l != nil {
			s.log = l
		}
	}
}

// LeadService validates waitlist submissions, stores them under the per-email cap and
// relays accepted leads.
type LeadService struct {
	store        leadstore.Store
	relay        relay.Relay
	now          func() time.Time
	hash         func(string) string
	newID        func() string
	relayTimeout time.Duration
	syncRelay    bool
	log          *zap.Logger

	inflight errgroup.Group
}

// NewLeadService constructs a LeadService with the provided dependencies.
func NewLeadService(store leadstore.Store, opts ...LeadOption) (*LeadService, error) {
	if store == nil {
		return nil, errors.New("lead service: store is required")
	}

	svc := &LeadService{
		store:        store,
		now:          time.Now,
		hash:         crypto.HashString,
		newID:        uuid.NewString,
		relayTimeout: defaultRelayTimeout,
		log:          logger.WithModule("leads"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// Submit handles one submission. Referral updates always succeed from the caller's point of
// view; new leads fail with ErrInvalidEmail, ErrSubmissionLimit or ErrSaveFailed.
func (s *LeadService) Submit(ctx context.Context, sub Submission, prov Provenance) error {
	email := NormalizeEmail(sub.Email)
	if !IsValidEmail(email) {
		metrics.LeadSubmissions.WithLabelValues("invalid").Inc()
		return appErrors.ErrInvalidEmail
	}

	if sub.Type == ReferralUpdateType {
		s.updateReferral(ctx, email, sub.ReferralSource)
		return nil
	}

	meta := datatypes.JSONMap(sub.Meta)
	if meta == nil {
		meta = datatypes.JSONMap{}
	}

	lead := models.Lead{
		BaseModel:   models.BaseModel{ID: s.newID()},
		Email:       email,
		Role:        sub.Role,
		UseCase:     sub.UseCase,
		Challenge:   sub.Challenge,
		Count:       sub.Count,
		Company:     sub.Company,
		Meta:        meta,
		UserAgent:   prov.UserAgent,
		IP:          prov.IP,
		SubmittedAt: s.now().UTC(),
	}

	err := s.store.CreateLead(ctx, &lead, models.MaxSubmissionsPerEmail)
	switch {
	case errors.Is(err, leadstore.ErrLimitReached):
		metrics.LeadSubmissions.WithLabelValues("limited").Inc()
		s.log.Info("lead rejected: submission limit reached", zap.String("email_hash", s.hash(email)))
		return appErrors.ErrSubmissionLimit
	case err != nil:
		metrics.LeadSubmissions.WithLabelValues("failed").Inc()
		s.log.Error("failed to save lead", zap.String("lead_id", lead.ID), zap.Error(err))
		captureException(ctx, err)
		return appErrors.ErrSaveFailed.WithInternal(err)
	}

	metrics.LeadSubmissions.WithLabelValues("accepted").Inc()
	s.log.Info("new lead", zap.String("lead_id", lead.ID), zap.String("role", lead.Role))

	s.dispatch(ctx, lead)
	return nil
}

// Wait blocks until in-flight relay deliveries finish or ctx is done.
func (s *LeadService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		_ = s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *LeadService) updateReferral(ctx context.Context, email, source string) {
	ref := &models.LeadReferral{
		EmailHash:      s.hash(email),
		ReferralSource: source,
		UpdatedAt:      s.now().UTC(),
	}
	if err := s.store.UpsertReferral(ctx, ref); err != nil {
		metrics.ReferralUpdates.WithLabelValues("failure").Inc()
		s.log.Warn("referral update failed", zap.String("email_hash", ref.EmailHash), zap.Error(err))
		return
	}
	metrics.ReferralUpdates.WithLabelValues("success").Inc()
}

// dispatch relays the lead, in the background unless syncRelay is set. The delivery keeps
// ctx values but not its cancellation.
func (s *LeadService) dispatch(ctx context.Context, lead models.Lead) {
	if s.relay == nil {
		return
	}

	relayCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.relayTimeout)
	metrics.RelayInFlight.Inc()

	deliver := func() error {
		defer metrics.RelayInFlight.Dec()
		defer cancel()

		if err := s.relay.Deliver(relayCtx, lead); err != nil {
			s.log.Warn("lead relay failed", zap.String("lead_id", lead.ID), zap.Error(err))
		}
		return nil
	}

	if s.syncRelay {
		_ = deliver()
		return
	}
	s.inflight.Go(deliver)
}

func captureException(ctx context.Context, err error) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.CaptureException(err)
}
