package rewards

import (
	"context"
	"errors"
	"testing"

	model "github.com/glkeru/loyalty/rewards/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

func TestBalanceFromCache(t *testing.T) {
	cont := gomock.NewController(t)
	defer cont.Finish()

	ledger := NewMockLedgerStorage(cont)
	cache := NewMockCacheStorage(cont)
	cache.EXPECT().GetBalance(gomock.Any(), "b", "u").Return(decimal.NewFromInt(42), nil)

	serv := NewLedgerService(zap.NewNop(), ledger, nil, cache, nil, LedgerOptions{})
	balance, err := serv.GetUserBalance(context.Background(), "b", "u")
	require.NoError(t, err)
	require.True(t, balance.Equal(decimal.NewFromInt(42)))
}

func TestBalanceCacheMiss(t *testing.T) {
	tests := []struct {
		name     string
		cacheErr error
	}{
		{"miss", model.ErrCacheMiss},
		{"redis down", errors.New("dial tcp: connection refused")},
	}
	for _, ts := range tests {
		t.Run(ts.name, func(t *testing.T) {
			cont := gomock.NewController(t)
			defer cont.Finish()

			ledger := NewMockLedgerStorage(cont)
			cache := NewMockCacheStorage(cont)
			summary := model.BalanceSummary{}
			summary.Add(model.MINT, decimal.NewFromInt(30))
			summary.Add(model.BURN, decimal.NewFromInt(12))

			gomock.InOrder(
				cache.EXPECT().GetBalance(gomock.Any(), "b", "u").Return(decimal.Zero, ts.cacheErr),
				ledger.EXPECT().Summary(gomock.Any(), "b", "u").Return(summary, nil),
				cache.EXPECT().SetBalance(gomock.Any(), "b", "u", summary).Return(nil),
			)

			serv := NewLedgerService(zap.NewNop(), ledger, nil, cache, nil, LedgerOptions{})
			balance, err := serv.GetUserBalance(context.Background(), "b", "u")
			require.NoError(t, err)
			require.True(t, balance.Equal(decimal.NewFromInt(18)))
		})
	}
}

// Отрицательное значение в кэше тоже не отдается наружу
func TestCachedNegativeBalanceClamped(t *testing.T) {
	cont := gomock.NewController(t)
	defer cont.Finish()

	cache := NewMockCacheStorage(cont)
	cache.EXPECT().GetBalance(gomock.Any(), "b", "u").Return(decimal.NewFromInt(-5), nil)

	serv := NewLedgerService(zap.NewNop(), NewMockLedgerStorage(cont), nil, cache, nil, LedgerOptions{})
	balance, err := serv.GetUserBalance(context.Background(), "b", "u")
	require.NoError(t, err)
	require.True(t, balance.IsZero())
}

func TestMintWritesThroughCache(t *testing.T) {
	env := newTestEnv(t)
	cont := gomock.NewController(t)
	defer cont.Finish()

	cache := NewMockCacheStorage(cont)
	var written model.BalanceSummary
	cache.EXPECT().SetBalance(gomock.Any(), testBrand, "u", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, _ string, summary model.BalanceSummary) error {
			written = summary
			return nil
		}).Times(2)

	serv := NewLedgerService(zap.NewNop(), env.store, env.store, cache, nil, LedgerOptions{})
	_, err := serv.MintPoints(context.Background(), MintRequest{BrandID: testBrand, UserID: "u", Amount: dec(15)})
	require.NoError(t, err)
	require.True(t, written.Net().Equal(dec(15)))

	_, err = serv.BurnPoints(context.Background(), BurnRequest{BrandID: testBrand, UserID: "u", Amount: dec(5)})
	require.NoError(t, err)
	require.True(t, written.Net().Equal(dec(10)))
	require.True(t, written.Volume().Equal(dec(20)))
}

// кэш пишется только после коммита: в момент записи проводка уже видна в базе
func TestCacheWrittenAfterCommit(t *testing.T) {
	env := newTestEnv(t)
	cont := gomock.NewController(t)
	defer cont.Finish()

	cache := NewMockCacheStorage(cont)
	cache.EXPECT().SetBalance(gomock.Any(), testBrand, "u", gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ string, _ string, summary model.BalanceSummary) error {
			committed, err := env.store.Summary(ctx, testBrand, "u")
			require.NoError(t, err)
			require.True(t, committed.Net().Equal(summary.Net()))
			return nil
		}).Times(3)

	serv := NewLedgerService(zap.NewNop(), env.store, env.store, cache, nil, LedgerOptions{})
	redemptions := NewRedemptionService(zap.NewNop(), serv, env.store)
	ctx := context.Background()
	_, err := serv.MintPoints(ctx, MintRequest{BrandID: testBrand, UserID: "u", Amount: dec(30)})
	require.NoError(t, err)
	red, err := redemptions.CreateRedemption(ctx, RedemptionRequest{BrandID: testBrand, UserID: "u", PointsUsed: dec(10), Hold: true})
	require.NoError(t, err)
	_, err = redemptions.CancelRedemption(ctx, red.ID)
	require.NoError(t, err)
}

func TestCacheWriteFailureInvalidates(t *testing.T) {
	env := newTestEnv(t)
	cont := gomock.NewController(t)
	defer cont.Finish()

	cache := NewMockCacheStorage(cont)
	gomock.InOrder(
		cache.EXPECT().SetBalance(gomock.Any(), testBrand, "u", gomock.Any()).Return(errors.New("timeout")),
		cache.EXPECT().InvalidateBalance(gomock.Any(), testBrand, "u").Return(nil),
	)

	serv := NewLedgerService(zap.NewNop(), env.store, env.store, cache, nil, LedgerOptions{})
	res, err := serv.MintPoints(context.Background(), MintRequest{BrandID: testBrand, UserID: "u", Amount: dec(15)})
	require.NoError(t, err)
	require.True(t, res.NewBalance.Equal(dec(15)))
}

func TestFailedBurnKeepsCache(t *testing.T) {
	env := newTestEnv(t)
	cont := gomock.NewController(t)
	defer cont.Finish()

	// недостаточно баллов: кэш не трогаем
	cache := NewMockCacheStorage(cont)
	serv := NewLedgerService(zap.NewNop(), env.store, env.store, cache, nil, LedgerOptions{})
	_, err := serv.BurnPoints(context.Background(), BurnRequest{BrandID: testBrand, UserID: "u", Amount: dec(1)})
	require.ErrorIs(t, err, model.ErrInsufficientBalance)
}
