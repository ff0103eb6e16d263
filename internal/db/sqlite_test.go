package rewards

import (
	"context"
	"sync"
	"testing"
	"time"

	interf "github.com/glkeru/loyalty/rewards/internal/interfaces"
	model "github.com/glkeru/loyalty/rewards/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSQLite(t *testing.T) *SQLiteDB {
	t.Helper()
	store, err := NewSQLiteDB(context.Background(), ":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store
}

func TestClockMonotonic(t *testing.T) {
	c := &clock{}
	prev := c.Now()
	for i := 0; i < 1000; i++ {
		next := c.Now()
		require.True(t, next.After(prev))
		require.Equal(t, next, next.Truncate(time.Microsecond))
		prev = next
	}
}

func TestListLimit(t *testing.T) {
	tests := []struct {
		limit    int
		expected uint64
	}{
		{0, defaultListLimit},
		{-3, defaultListLimit},
		{10, 10},
		{201, 201},
		{5000, maxListLimit + 1},
	}
	for _, ts := range tests {
		require.Equal(t, ts.expected, listLimit(ts.limit), "limit=%d", ts.limit)
	}
}

func TestSQLiteLedger(t *testing.T) {
	store := newSQLite(t)
	ctx := context.Background()

	for _, amount := range []string{"10.5", "0.25", "100"} {
		_, err := store.Append(ctx, model.LedgerEntry{BrandID: "b", UserID: "u", Type: model.MINT, Amount: decimal.RequireFromString(amount)})
		require.NoError(t, err)
	}
	_, err := store.Append(ctx, model.LedgerEntry{BrandID: "b", UserID: "u", Type: model.BURN, Amount: decimal.RequireFromString("0.75"), Reason: "manual"})
	require.NoError(t, err)

	summary, err := store.Summary(ctx, "b", "u")
	require.NoError(t, err)
	require.True(t, summary.Minted.Equal(decimal.RequireFromString("110.75")))
	require.True(t, summary.Burned.Equal(decimal.RequireFromString("0.75")))
	require.True(t, summary.Net().Equal(decimal.NewFromInt(110)))

	count, err := store.CountMints(ctx, "b", "u", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.Equal(t, 3, count)
	count, err = store.CountMints(ctx, "b", "u", time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Zero(t, count)

	entries, err := store.History(ctx, model.HistoryQuery{BrandID: "b", Reason: "manual"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, model.BURN, entries[0].Type)

	_, err = store.Append(ctx, model.LedgerEntry{BrandID: "b", UserID: "u", Type: model.MINT, Amount: decimal.Zero})
	require.ErrorIs(t, err, model.ErrValidation)
	_, err = store.Append(ctx, model.LedgerEntry{BrandID: "b", UserID: "u", Type: "GIFT", Amount: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, model.ErrValidation)
}

func TestSQLiteIdempotencyKey(t *testing.T) {
	store := newSQLite(t)
	ctx := context.Background()

	entry, err := store.Append(ctx, model.LedgerEntry{BrandID: "b", UserID: "u", Type: model.MINT, Amount: decimal.NewFromInt(5), IdempotencyKey: "k1"})
	require.NoError(t, err)

	found, err := store.FindByIdempotencyKey(ctx, "b", "k1")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, entry.ID, found.ID)

	// ключ уникален в рамках бренда
	_, err = store.Append(ctx, model.LedgerEntry{BrandID: "b", UserID: "u2", Type: model.MINT, Amount: decimal.NewFromInt(5), IdempotencyKey: "k1"})
	require.ErrorIs(t, err, model.ErrValidation)
	_, err = store.Append(ctx, model.LedgerEntry{BrandID: "b2", UserID: "u", Type: model.MINT, Amount: decimal.NewFromInt(5), IdempotencyKey: "k1"})
	require.NoError(t, err)

	missing, err := store.FindByIdempotencyKey(ctx, "b", "k2")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestSQLiteAccountTxRollback(t *testing.T) {
	store := newSQLite(t)
	ctx := context.Background()

	err := store.InAccountTx(ctx, "b", "u", func(ctx context.Context, tx interf.AccountTx) error {
		_, err := tx.Append(ctx, model.LedgerEntry{Type: model.MINT, Amount: decimal.NewFromInt(5)})
		require.NoError(t, err)
		summary, err := tx.Summary(ctx)
		require.NoError(t, err)
		require.True(t, summary.Net().Equal(decimal.NewFromInt(5)))
		return model.NewValidationError("x", "abort")
	})
	require.ErrorIs(t, err, model.ErrValidation)

	summary, err := store.Summary(ctx, "b", "u")
	require.NoError(t, err)
	require.True(t, summary.Net().IsZero())
}

func TestSQLiteRedemptions(t *testing.T) {
	store := newSQLite(t)
	ctx := context.Background()

	var created model.Redemption
	err := store.InAccountTx(ctx, "b", "u", func(ctx context.Context, tx interf.AccountTx) error {
		var err error
		created, err = tx.CreateRedemption(ctx, model.Redemption{
			CampaignID: "c",
			PointsUsed: decimal.NewFromInt(7),
			Status:     model.RedemptionPending,
			Metadata:   model.Metadata{"k": "v"},
		})
		if err != nil {
			return err
		}
		locked, err := tx.GetRedemption(ctx, created.ID)
		require.NoError(t, err)
		require.Equal(t, model.RedemptionPending, locked.Status)
		_, err = tx.SetRedemptionStatus(ctx, created.ID, model.RedemptionCompleted)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, "b", created.BrandID)
	require.Equal(t, "u", created.UserID)

	got, err := store.GetRedemption(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, model.RedemptionCompleted, got.Status)
	require.Equal(t, "v", got.Metadata["k"])
	require.True(t, got.PointsUsed.Equal(decimal.NewFromInt(7)))

	list, err := store.ListRedemptions(ctx, model.RedemptionFilter{BrandID: "b", Status: model.RedemptionCompleted})
	require.NoError(t, err)
	require.Len(t, list, 1)
	list, err = store.ListRedemptions(ctx, model.RedemptionFilter{BrandID: "b", Offset: 1})
	require.NoError(t, err)
	require.Empty(t, list)

	_, err = store.GetRedemption(ctx, uuid.New())
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestSQLiteExternalUsersConcurrent(t *testing.T) {
	store := newSQLite(t)
	ctx := context.Background()

	ids := make([]string, 8)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user, err := store.FindOrCreateExternalUser(ctx, "b", "ext")
			if err == nil {
				ids[i] = user.ID
			}
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		require.Equal(t, ids[0], id)
	}
	require.NotEmpty(t, ids[0])

	other, err := store.FindOrCreateExternalUser(ctx, "b2", "ext")
	require.NoError(t, err)
	require.NotEqual(t, ids[0], other.ID)
}

func TestSQLiteBrandsAndKeys(t *testing.T) {
	store := newSQLite(t)
	ctx := context.Background()

	_, err := store.CreateBrand(ctx, model.Brand{ID: "b", Name: "B", IsActive: true})
	require.NoError(t, err)
	_, err = store.CreateBrand(ctx, model.Brand{ID: "b", Name: "B"})
	require.ErrorIs(t, err, model.ErrValidation)
	_, err = store.GetBrand(ctx, "nope")
	require.ErrorIs(t, err, model.ErrNotFound)
	require.ErrorIs(t, store.SetBrandStatus(ctx, "nope", true, false), model.ErrNotFound)

	key, err := store.CreateAPIKey(ctx, model.BrandAPIKey{BrandID: "b", Name: "n", KeyHash: "h1"})
	require.NoError(t, err)
	got, err := store.GetAPIKeyByHash(ctx, "h1")
	require.NoError(t, err)
	require.Equal(t, key.ID, got.ID)
	require.Nil(t, got.LastUsedAt)

	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.TouchAPIKey(ctx, key.ID, at))
	got, err = store.GetAPIKeyByHash(ctx, "h1")
	require.NoError(t, err)
	require.NotNil(t, got.LastUsedAt)
	require.True(t, at.Equal(*got.LastUsedAt))

	require.ErrorIs(t, store.DisableAPIKey(ctx, "other", key.ID), model.ErrNotFound)
	require.NoError(t, store.DisableAPIKey(ctx, "b", key.ID))
	keys, err := store.ListAPIKeys(ctx, "b")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	require.False(t, keys[0].IsActive)

	_, err = store.GetAPIKeyByHash(ctx, "h2")
	require.ErrorIs(t, err, model.ErrNotFound)
}
