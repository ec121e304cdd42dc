package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anjiri1684/referral_payments/database"
	"github.com/anjiri1684/referral_payments/database/dbtest"
	"github.com/anjiri1684/referral_payments/models"
	"github.com/anjiri1684/referral_payments/services"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newUser(t *testing.T, users *database.UserStore, email string, code *string) *models.User {
	t.Helper()
	u := &models.User{FullName: "Test " + email, Email: email, Password: "x", ReferralCode: code}
	require.NoError(t, users.Create(context.Background(), u))
	return u
}

func strPtr(s string) *string { return &s }

func TestUserStoreFindAndUpdate(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	users := database.NewUserStore(db)

	u := newUser(t, users, "a@example.com", strPtr("ABC123"))
	require.NotEqual(t, uuid.Nil, u.ID)

	got, err := users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "a@example.com", got.Email)
	require.True(t, got.ReferralRewards.IsZero())
	require.Equal(t, models.RoleUser, got.Role)

	owners, err := users.FindByField(ctx, services.FieldReferralCode, "ABC123")
	require.NoError(t, err)
	require.Len(t, owners, 1)
	require.Equal(t, u.ID, owners[0].ID)

	require.NoError(t, users.Update(ctx, u.ID, map[string]interface{}{
		"total_referrals":  2,
		"referral_rewards": decimal.RequireFromString("12.50"),
	}))
	got, err = users.FindByIDForUpdate(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.TotalReferrals)
	require.True(t, decimal.RequireFromString("12.5").Equal(got.ReferralRewards))

	_, err = users.FindByID(ctx, uuid.New())
	require.ErrorIs(t, err, services.ErrRecordNotFound)
	require.ErrorIs(t, users.Update(ctx, uuid.New(), map[string]interface{}{"role": "user"}), services.ErrRecordNotFound)
}

func TestUserStoreRejectsUnknownColumns(t *testing.T) {
	ctx := context.Background()
	users := database.NewUserStore(dbtest.Open(t))

	_, err := users.FindByField(ctx, "password", "x")
	require.Error(t, err)
	require.Error(t, users.Update(ctx, uuid.New(), map[string]interface{}{"password": "x"}))
}

func TestUserStoreDuplicateReferralCode(t *testing.T) {
	ctx := context.Background()
	users := database.NewUserStore(dbtest.Open(t))

	newUser(t, users, "a@example.com", strPtr("TAKEN1"))
	b := newUser(t, users, "b@example.com", nil)

	err := users.Update(ctx, b.ID, map[string]interface{}{"referral_code": "TAKEN1"})
	require.ErrorIs(t, err, services.ErrDuplicateKey)

	err = users.Create(ctx, &models.User{FullName: "dup", Email: "a@example.com", Password: "x"})
	require.ErrorIs(t, err, services.ErrDuplicateKey)
}

func TestReferralStoreUniqueReferred(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	users := database.NewUserStore(db)
	referrals := database.NewReferralStore(db)

	a := newUser(t, users, "a@example.com", strPtr("AAAAAA"))
	b := newUser(t, users, "b@example.com", nil)

	rec := &models.Referral{
		ReferrerID: a.ID, ReferredUserID: b.ID, ReferralCode: "AAAAAA",
		Status: models.ReferralStatusCompleted, RewardAmount: decimal.NewFromInt(10), CompletedAt: time.Now(),
	}
	require.NoError(t, referrals.Create(ctx, rec))

	again := *rec
	again.ID = uuid.Nil
	require.ErrorIs(t, referrals.Create(ctx, &again), services.ErrDuplicateKey)

	made, err := referrals.FindByField(ctx, services.FieldReferrerID, a.ID)
	require.NoError(t, err)
	require.Len(t, made, 1)
	require.True(t, decimal.NewFromInt(10).Equal(made[0].RewardAmount))

	list, total, err := referrals.List(ctx, 10, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Len(t, list, 1)
}

func TestLedgerStoreWithinTxRollsBack(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	store := database.NewLedgerStore(db)
	u := newUser(t, database.NewUserStore(db), "a@example.com", nil)

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(tx services.LedgerStore) error {
		require.NoError(t, tx.Users().Update(ctx, u.ID, map[string]interface{}{"total_referrals": 5}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := store.Users().FindByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, 0, got.TotalReferrals)
}

func TestCounterDrift(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	users := database.NewUserStore(db)
	referrals := database.NewReferralStore(db)

	a := newUser(t, users, "a@example.com", strPtr("AAAAAA"))
	b := newUser(t, users, "b@example.com", nil)
	require.NoError(t, referrals.Create(ctx, &models.Referral{
		ReferrerID: a.ID, ReferredUserID: b.ID, ReferralCode: "AAAAAA",
		Status: models.ReferralStatusCompleted, RewardAmount: decimal.NewFromInt(10), CompletedAt: time.Now(),
	}))

	drift, err := referrals.CounterDrift(ctx)
	require.NoError(t, err)
	require.Len(t, drift, 1)
	require.Equal(t, a.ID.String(), drift[0].UserID)
	require.Equal(t, 0, drift[0].TotalReferrals)
	require.Equal(t, 1, drift[0].ReferralRows)

	require.NoError(t, users.Update(ctx, a.ID, map[string]interface{}{"total_referrals": 1}))
	drift, err = referrals.CounterDrift(ctx)
	require.NoError(t, err)
	require.Empty(t, drift)
}

func TestWebhookEventStoreRecordIsUpsert(t *testing.T) {
	ctx := context.Background()
	events := database.NewWebhookEventStore(dbtest.Open(t))
	now := time.Now().UTC()

	require.NoError(t, events.Record(ctx, &models.WebhookEvent{
		ID: "evt_1", Type: "payment_intent.succeeded", Status: models.WebhookStatusFailed,
		Error: "decode failed", ReceivedAt: now, ProcessedAt: now,
	}))
	require.NoError(t, events.Record(ctx, &models.WebhookEvent{
		ID: "evt_1", Type: "payment_intent.succeeded", Status: models.WebhookStatusHandled,
		ReceivedAt: now, ProcessedAt: now,
	}))

	got, err := events.Find(ctx, "evt_1")
	require.NoError(t, err)
	require.Equal(t, models.WebhookStatusHandled, got.Status)
	require.Empty(t, got.Error)

	_, err = events.Find(ctx, "evt_missing")
	require.ErrorIs(t, err, services.ErrRecordNotFound)
}

func TestWebhookEventStoreListAndPrune(t *testing.T) {
	ctx := context.Background()
	events := database.NewWebhookEventStore(dbtest.Open(t))
	now := time.Now().UTC()

	require.NoError(t, events.Record(ctx, &models.WebhookEvent{ID: "evt_old", Type: "x", Status: models.WebhookStatusIgnored, ReceivedAt: now.AddDate(0, 0, -40)}))
	require.NoError(t, events.Record(ctx, &models.WebhookEvent{ID: "evt_new", Type: "x", Status: models.WebhookStatusHandled, ReceivedAt: now}))

	handled, total, err := events.List(ctx, models.WebhookStatusHandled, 10, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Len(t, handled, 1)
	require.Equal(t, "evt_new", handled[0].ID)

	deleted, err := events.DeleteOlderThan(ctx, now.AddDate(0, 0, -30))
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)

	all, total, err := events.List(ctx, "", 10, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Len(t, all, 1)
}
