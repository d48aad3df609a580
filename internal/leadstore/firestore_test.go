package leadstore

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/waitlist/internal/models"
)

func TestNewFirestoreStoreRequiresClient(t *testing.T) {
	_, err := NewFirestoreStore(nil)
	require.Error(t, err)
}

func TestLeadDocumentUsesWireKeys(t *testing.T) {
	lead := newLead("a@b.co")
	lead.Meta = nil

	doc := leadDocument(lead)
	require.Equal(t, "a@b.co", doc["email"])
	require.Equal(t, "Creator", doc["role"])
	require.Equal(t, "", doc["useCase"])
	require.Equal(t, map[string]any{}, doc["meta"])
	require.Equal(t, lead.SubmittedAt, doc["ts"])
	require.NotContains(t, doc, "id")
}

func TestGuardCountWithoutSnapshot(t *testing.T) {
	require.Equal(t, 0, guardCount(nil))
}

// newEmulatorStore connects to the Firestore emulator; tests using it are skipped unless
// FIRESTORE_EMULATOR_HOST is set.
func newEmulatorStore(t *testing.T) *FirestoreStore {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	client, err := firestore.NewClient(context.Background(), "waitlist-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := NewFirestoreStore(client, WithFirestoreMaxAttempts(20))
	require.NoError(t, err)
	return store
}

func TestFirestoreStoreEnforcesLimit(t *testing.T) {
	store := newEmulatorStore(t)
	ctx := context.Background()
	email := uuid.NewString() + "@b.co"

	require.NoError(t, store.CreateLead(ctx, newLead(email), models.MaxSubmissionsPerEmail))
	require.NoError(t, store.CreateLead(ctx, newLead(email), models.MaxSubmissionsPerEmail))
	require.ErrorIs(t, store.CreateLead(ctx, newLead(email), models.MaxSubmissionsPerEmail), ErrLimitReached)
}

func TestFirestoreStoreDeletedLeadFreesSlot(t *testing.T) {
	store := newEmulatorStore(t)
	ctx := context.Background()
	email := uuid.NewString() + "@b.co"

	first := newLead(email)
	require.NoError(t, store.CreateLead(ctx, first, models.MaxSubmissionsPerEmail))
	require.NoError(t, store.CreateLead(ctx, newLead(email), models.MaxSubmissionsPerEmail))
	require.ErrorIs(t, store.CreateLead(ctx, newLead(email), models.MaxSubmissionsPerEmail), ErrLimitReached)

	_, err := store.client.Collection(LeadsCollection).Doc(first.ID).Delete(ctx)
	require.NoError(t, err)

	require.NoError(t, store.CreateLead(ctx, newLead(email), models.MaxSubmissionsPerEmail))
	require.ErrorIs(t, store.CreateLead(ctx, newLead(email), models.MaxSubmissionsPerEmail), ErrLimitReached)
}

func TestFirestoreStoreConcurrentSubmissions(t *testing.T) {
	store := newEmulatorStore(t)
	email := uuid.NewString() + "@b.co"

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.CreateLead(context.Background(), newLead(email), models.MaxSubmissionsPerEmail)
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
				return
			}
			if !errors.Is(err, ErrLimitReached) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.LessOrEqual(t, accepted, models.MaxSubmissionsPerEmail)

	snaps, err := store.client.Collection(LeadsCollection).Where("email", "==", email).Documents(context.Background()).GetAll()
	require.NoError(t, err)
	require.LessOrEqual(t, len(snaps), models.MaxSubmissionsPerEmail)
}

func TestFirestoreStoreUpsertReferralMerges(t *testing.T) {
	store := newEmulatorStore(t)
	ctx := context.Background()
	hash := uuid.NewString()

	require.NoError(t, store.UpsertReferral(ctx, &models.LeadReferral{EmailHash: hash, ReferralSource: "tiktok"}))
	require.NoError(t, store.UpsertReferral(ctx, &models.LeadReferral{EmailHash: hash, ReferralSource: "friend"}))

	snap, err := store.client.Collection(ReferralsCollection).Doc(hash).Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "friend", snap.Data()["referralSource"])
	require.NotContains(t, snap.Data(), "email")
}
