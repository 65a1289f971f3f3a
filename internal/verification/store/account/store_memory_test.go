package account

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendorkyc/internal/verification/models"
	id "vendorkyc/pkg/domain"
	"vendorkyc/pkg/platform/sentinel"
)

func newAccount(t *testing.T, s *InMemoryStore) id.VendorID {
	t.Helper()
	vendor := id.VendorID(uuid.New())
	require.NoError(t, s.Upsert(context.Background(), &models.Account{
		ID: vendor, Email: "ama@example.com", DisplayName: "Ama's Fabrics",
	}))
	return vendor
}

func TestUpsertDefaultsTier(t *testing.T) {
	s := NewInMemory()
	vendor := newAccount(t, s)

	got, err := s.Get(context.Background(), vendor)
	require.NoError(t, err)
	assert.Equal(t, models.TierFree, got.Tier)
	assert.False(t, got.IsVerified)
}

func TestPromotionalGrantIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	vendor := newAccount(t, s)
	recordID := id.NewRecordID()
	expires := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	changed, err := s.SetPromotionalTier(ctx, vendor, models.PromotionalGrant{
		RecordID: recordID, Tier: "pro", ExpiresAt: expires,
	})
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.SetPromotionalTier(ctx, vendor, models.PromotionalGrant{
		RecordID: recordID, Tier: "pro", ExpiresAt: expires.AddDate(0, 0, 30),
	})
	require.NoError(t, err)
	assert.False(t, changed, "replaying the grant must not extend the trial")

	got, err := s.Get(ctx, vendor)
	require.NoError(t, err)
	require.NotNil(t, got.PromotionalExpiresAt)
	assert.True(t, expires.Equal(*got.PromotionalExpiresAt))
	assert.Equal(t, "pro", got.Tier)
}

func TestListTrialsEnding(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	soon := newAccount(t, s)
	later := newAccount(t, s)
	sooner := newAccount(t, s)
	expired := newAccount(t, s)
	grant := func(v id.VendorID, at time.Time) {
		_, err := s.SetPromotionalTier(ctx, v, models.PromotionalGrant{RecordID: id.NewRecordID(), Tier: "pro", ExpiresAt: at})
		require.NoError(t, err)
	}
	grant(soon, now.Add(48*time.Hour))
	grant(sooner, now.Add(2*time.Hour))
	grant(later, now.Add(10*24*time.Hour))
	grant(expired, now.Add(-time.Hour))

	ending, err := s.ListTrialsEnding(ctx, now, 72*time.Hour)
	require.NoError(t, err)
	require.Len(t, ending, 2)
	assert.Equal(t, sooner, ending[0].ID)
	assert.Equal(t, soon, ending[1].ID)

	require.NoError(t, s.MarkReminderSent(ctx, sooner))
	ending, err = s.ListTrialsEnding(ctx, now, 72*time.Hour)
	require.NoError(t, err)
	require.Len(t, ending, 1)
	assert.Equal(t, soon, ending[0].ID)
}

func TestUnknownAccount(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	missing := id.VendorID(uuid.New())

	_, err := s.Get(ctx, missing)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.ErrorIs(t, s.SetVerified(ctx, missing, true), sentinel.ErrNotFound)
	assert.ErrorIs(t, s.MarkReminderSent(ctx, missing), sentinel.ErrNotFound)
	_, err = s.SetPromotionalTier(ctx, missing, models.PromotionalGrant{RecordID: id.NewRecordID()})
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
