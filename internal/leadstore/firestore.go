package leadstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/charlesng35/waitlist/internal/models"
	"github.com/charlesng35/waitlist/pkg/crypto"
)

// Firestore collection names.
const (
	LeadsCollection     = "leads"
	ReferralsCollection = "lead_referrals"
	GuardsCollection    = "lead_guards"
)

const defaultFirestoreMaxAttempts = 5

// FirestoreOption customises FirestoreStore behaviour.
type FirestoreOption func(*FirestoreStore)

// WithFirestoreMaxAttempts bounds how many times a contended transaction is retried.
func WithFirestoreMaxAttempts(n int) FirestoreOption {
	return func(s *FirestoreStore) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// FirestoreStore persists leads as Firestore documents.
//
// A query inside a transaction locks the documents it returns but not the absence of
// further matches, so two transactions could both see one lead and both insert. Each
// transaction therefore also reads and rewrites a per-email guard document, which makes
// concurrent submissions for one email contend on a single document and retry. The cap
// itself is checked against the query result, so deleting a lead frees a slot again; the
// guard's count is informational.
type FirestoreStore struct {
	client      *firestore.Client
	maxAttempts int
}

// NewFirestoreStore wraps an existing Firestore client.
func NewFirestoreStore(client *firestore.Client, opts ...FirestoreOption) (*FirestoreStore, error) {
	if client == nil {
		return nil, errors.New("leadstore: firestore store requires a client")
	}
	s := &FirestoreStore{client: client, maxAttempts: defaultFirestoreMaxAttempts}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// CreateLead checks the cap and creates the lead document in one transaction.
func (s *FirestoreStore) CreateLead(ctx context.Context, lead *models.Lead, limit int) error {
	if lead == nil {
		return errors.New("leadstore: lead is required")
	}
	if lead.ID == "" {
		return errors.New("leadstore: lead id is required")
	}
	defer observe(BackendFirestore, "create_lead", time.Now())

	leads := s.client.Collection(LeadsCollection)
	guardRef := s.client.Collection(GuardsCollection).Doc(crypto.HashString(lead.Email))
	leadRef := leads.Doc(lead.ID)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		guard, err := tx.Get(guardRef)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		existing := guardCount(guard)

		if limit > 0 {
			snaps, err := tx.Documents(leads.Where("email", "==", lead.Email).Limit(limit)).GetAll()
			if err != nil {
				return err
			}
			existing = len(snaps)
			if existing >= limit {
				return ErrLimitReached
			}
		}

		if err := tx.Create(leadRef, leadDocument(lead)); err != nil {
			return err
		}
		return tx.Set(guardRef, map[string]any{
			"count":     int64(existing + 1),
			"updatedAt": lead.SubmittedAt,
		})
	}, firestore.MaxAttempts(s.maxAttempts))

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrLimitReached):
		return ErrLimitReached
	case status.Code(err) == codes.AlreadyExists:
		return fmt.Errorf("%w: %v", ErrDuplicateLead, err)
	default:
		return fmt.Errorf("leadstore: firestore create lead: %w", err)
	}
}

// UpsertReferral merges the referral document keyed by ref.EmailHash.
func (s *FirestoreStore) UpsertReferral(ctx context.Context, ref *models.LeadReferral) error {
	if ref == nil || ref.EmailHash == "" {
		return errors.New("leadstore: referral email hash is required")
	}
	defer observe(BackendFirestore, "upsert_referral", time.Now())

	_, err := s.client.Collection(ReferralsCollection).Doc(ref.EmailHash).Set(ctx, map[string]any{
		"referralSource": ref.ReferralSource,
		"updatedAt":      ref.UpdatedAt,
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("leadstore: firestore upsert referral: %w", err)
	}
	return nil
}

func guardCount(snap *firestore.DocumentSnapshot) int {
	if snap == nil || !snap.Exists() {
		return 0
	}
	value, err := snap.DataAt("count")
	if err != nil {
		return 0
	}
	switch n := value.(type) {
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func leadDocument(lead *models.Lead) map[string]any {
	meta := map[string]any(lead.Meta)
	if meta == nil {
		meta = map[string]any{}
	}
	return map[string]any{
		"ts":        lead.SubmittedAt,
		"role":      lead.Role,
		"useCase":   lead.UseCase,
		"challenge": lead.Challenge,
		"count":     lead.Count,
		"email":     lead.Email,
		"company":   lead.Company,
		"meta":      meta,
		"ua":        lead.UserAgent,
		"ip":        lead.IP,
	}
}

// Ping reads at most one guard document to confirm the backend answers.
func (s *FirestoreStore) Ping(ctx context.Context) error {
	iter := s.client.Collection(GuardsCollection).Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return fmt.Errorf("leadstore: firestore ping: %w", err)
	}
	return nil
}
