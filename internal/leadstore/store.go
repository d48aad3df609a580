// Package leadstore persists waitlist leads and referral updates. Every backend enforces
// the per-email cap inside its own atomic unit so the check and the insert cannot be split
// by a concurrent submission.
package leadstore

import (
	"context"
	"errors"
	"time"

	"github.com/charlesng35/waitlist/internal/models"
	"github.com/charlesng35/waitlist/pkg/metrics"
)

// Supported backend names.
const (
	BackendSQL       = "sql"
	BackendFirestore = "firestore"
	BackendCSV       = "csv"
)

var (
	// ErrLimitReached reports that the email already owns the maximum number of leads.
	ErrLimitReached = errors.New("leadstore: submission limit reached")
	// ErrDuplicateLead reports that a lead with the same identifier already exists.
	ErrDuplicateLead = errors.New("leadstore: duplicate lead")
)

// Store is implemented by every lead persistence backend.
type Store interface {
	// CreateLead inserts lead unless limit or more leads already exist for lead.Email, in
	// which case it returns ErrLimitReached. A limit of zero or less disables the cap.
	CreateLead(ctx context.Context, lead *models.Lead, limit int) error
	// UpsertReferral creates or merges the referral row keyed by ref.EmailHash.
	UpsertReferral(ctx context.Context, ref *models.LeadReferral) error
}

func observe(backend, operation string, start time.Time) {
	metrics.StoreLatency.WithLabelValues(backend, operation).Observe(time.Since(start).Seconds())
}
