package rewards

import (
	"context"
	"errors"
	"sync"
	"testing"

	db "github.com/glkeru/loyalty/rewards/internal/db"
	model "github.com/glkeru/loyalty/rewards/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testBrand = "brand-1"

type testEnv struct {
	store       *db.SQLiteDB
	fraud       *FraudService
	ledger      *LedgerService
	redemptions *RedemptionService
	identity    *IdentityService
	keys        *APIKeyService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()
	store, err := db.NewSQLiteDB(ctx, ":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	_, err = store.CreateBrand(ctx, model.Brand{ID: testBrand, Name: "Brand", IsActive: true})
	require.NoError(t, err)

	env := &testEnv{store: store}
	env.fraud = NewFraudService(logger, store, store, DefaultFraudConfig())
	env.ledger = NewLedgerService(logger, store, store, nil, env.fraud, LedgerOptions{})
	env.redemptions = NewRedemptionService(logger, env.ledger, store)
	env.identity = NewIdentityService(logger, store, env.ledger, env.redemptions)
	env.keys = NewAPIKeyService(logger, store)
	return env
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func (e *testEnv) mint(t *testing.T, user string, amount int64) MintResult {
	t.Helper()
	res, err := e.ledger.MintPoints(context.Background(), MintRequest{BrandID: testBrand, UserID: user, Amount: dec(amount), Reason: "purchase"})
	require.NoError(t, err)
	return res
}

func (e *testEnv) balance(t *testing.T, user string) decimal.Decimal {
	t.Helper()
	b, err := e.ledger.GetUserBalance(context.Background(), testBrand, user)
	require.NoError(t, err)
	return b
}

func TestMintValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  MintRequest
		want error
	}{
		{"zero amount", MintRequest{BrandID: testBrand, UserID: "u", Amount: decimal.Zero}, model.ErrValidation},
		{"negative amount", MintRequest{BrandID: testBrand, UserID: "u", Amount: dec(-5)}, model.ErrValidation},
		{"no user", MintRequest{BrandID: testBrand, Amount: dec(5)}, model.ErrValidation},
		{"no brand", MintRequest{UserID: "u", Amount: dec(5)}, model.ErrValidation},
		{"unknown brand", MintRequest{BrandID: "nope", UserID: "u", Amount: dec(5)}, model.ErrNotFound},
	}
	for _, ts := range tests {
		t.Run(ts.name, func(t *testing.T) {
			_, err := env.ledger.MintPoints(ctx, ts.req)
			require.ErrorIs(t, err, ts.want)
		})
	}

	big := model.Metadata{"blob": string(make([]byte, model.DefaultMaxMetadataBytes))}
	_, err := env.ledger.MintPoints(ctx, MintRequest{BrandID: testBrand, UserID: "u", Amount: dec(1), Metadata: big})
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "metadata", verr.Field)
	require.True(t, env.balance(t, "u").IsZero())
}

func TestMintAndBurn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.mint(t, "alice", 100)
	require.Equal(t, model.MINT, res.Entry.Type)
	require.True(t, res.NewBalance.Equal(dec(100)))

	burn, err := env.ledger.BurnPoints(ctx, BurnRequest{BrandID: testBrand, UserID: "alice", Amount: dec(30), Reason: "manual"})
	require.NoError(t, err)
	require.Equal(t, model.BURN, burn.Entry.Type)
	require.True(t, burn.NewBalance.Equal(dec(70)))

	_, err = env.ledger.BurnPoints(ctx, BurnRequest{BrandID: testBrand, UserID: "alice", Amount: dec(71)})
	var ierr *model.InsufficientBalanceError
	require.ErrorAs(t, err, &ierr)
	require.True(t, ierr.Required.Equal(dec(71)))
	require.True(t, ierr.Available.Equal(dec(70)))
	require.True(t, env.balance(t, "alice").Equal(dec(70)))

	ok, err := env.ledger.HasSufficientBalance(ctx, testBrand, "alice", dec(70))
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = env.ledger.HasSufficientBalance(ctx, testBrand, "alice", dec(71))
	require.NoError(t, err)
	require.False(t, ok)
}

// Сумма начислений минус сумма списаний равна балансу
func TestConservation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	mints := []int64{10, 250, 3, 40}
	burns := []int64{5, 100, 3}
	var minted, burned int64
	for _, m := range mints {
		env.mint(t, "bob", m)
		minted += m
	}
	for _, b := range burns {
		_, err := env.ledger.BurnPoints(ctx, BurnRequest{BrandID: testBrand, UserID: "bob", Amount: dec(b)})
		require.NoError(t, err)
		burned += b
	}
	summary, err := env.ledger.GetBalanceSummary(ctx, testBrand, "bob")
	require.NoError(t, err)
	require.True(t, summary.Minted.Equal(dec(minted)))
	require.True(t, summary.Burned.Equal(dec(burned)))
	require.True(t, summary.Net().Equal(dec(minted-burned)))
	require.True(t, env.balance(t, "bob").Equal(dec(minted-burned)))

	// другой бренд не влияет
	_, err = env.store.CreateBrand(ctx, model.Brand{ID: "brand-2", Name: "Other", IsActive: true})
	require.NoError(t, err)
	_, err = env.ledger.MintPoints(ctx, MintRequest{BrandID: "brand-2", UserID: "bob", Amount: dec(1000)})
	require.NoError(t, err)
	require.True(t, env.balance(t, "bob").Equal(dec(minted-burned)))
}

func TestNegativeBalanceExposure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// запись в обход проверок: списаний больше, чем начислений
	_, err := env.store.Append(ctx, model.LedgerEntry{BrandID: testBrand, UserID: "neg", Type: model.MINT, Amount: dec(10)})
	require.NoError(t, err)
	_, err = env.store.Append(ctx, model.LedgerEntry{BrandID: testBrand, UserID: "neg", Type: model.BURN, Amount: dec(25)})
	require.NoError(t, err)

	require.True(t, env.balance(t, "neg").IsZero())
	summary, err := env.ledger.GetBalanceSummary(ctx, testBrand, "neg")
	require.NoError(t, err)
	require.True(t, summary.Net().Equal(dec(-15)))

	strict := NewLedgerService(zap.NewNop(), env.store, env.store, nil, nil, LedgerOptions{StrictBalance: true})
	_, err = strict.GetUserBalance(ctx, testBrand, "neg")
	require.ErrorIs(t, err, model.ErrNegativeBalance)
}

func TestConcurrentBurnsNeverOverdraw(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.mint(t, "carol", 100)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.ledger.BurnPoints(ctx, BurnRequest{BrandID: testBrand, UserID: "carol", Amount: dec(30)})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			if !errors.Is(err, model.ErrInsufficientBalance) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 3, succeeded)
	require.True(t, env.balance(t, "carol").Equal(dec(10)))
}

func TestIdempotentMint(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	req := MintRequest{BrandID: testBrand, UserID: "dave", Amount: dec(50), IdempotencyKey: "evt-1"}

	first, err := env.ledger.MintPoints(ctx, req)
	require.NoError(t, err)
	require.False(t, first.Replayed)

	second, err := env.ledger.MintPoints(ctx, req)
	require.NoError(t, err)
	require.True(t, second.Replayed)
	require.Equal(t, first.Entry.ID, second.Entry.ID)
	require.True(t, env.balance(t, "dave").Equal(dec(50)))

	// тот же ключ для другой суммы
	req.Amount = dec(60)
	_, err = env.ledger.MintPoints(ctx, req)
	require.ErrorIs(t, err, model.ErrValidation)
}

func TestIdempotentMintConcurrent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	req := MintRequest{BrandID: testBrand, UserID: "erin", Amount: dec(20), IdempotencyKey: "evt-concurrent"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.ledger.MintPoints(ctx, req)
			if err != nil {
				t.Errorf("mint: %v", err)
			}
		}()
	}
	wg.Wait()
	require.True(t, env.balance(t, "erin").Equal(dec(20)))
}

func TestHistoryPagination(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		env.mint(t, "frank", int64(i))
	}
	_, err := env.ledger.BurnPoints(ctx, BurnRequest{BrandID: testBrand, UserID: "frank", Amount: dec(1)})
	require.NoError(t, err)

	page, err := env.ledger.ListLedgerHistory(ctx, HistoryRequest{BrandID: testBrand, UserID: "frank", Limit: 4})
	require.NoError(t, err)
	require.Len(t, page.Items, 4)
	require.True(t, page.HasMore)
	require.NotEmpty(t, page.NextCursor)
	require.Equal(t, model.BURN, page.Items[0].Type)

	rest, err := env.ledger.ListLedgerHistory(ctx, HistoryRequest{BrandID: testBrand, UserID: "frank", Limit: 4, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest.Items, 2)
	require.False(t, rest.HasMore)
	require.Empty(t, rest.NextCursor)

	seen := map[string]bool{}
	for _, e := range append(page.Items, rest.Items...) {
		require.False(t, seen[e.ID.String()])
		seen[e.ID.String()] = true
	}

	mints, err := env.ledger.ListLedgerHistory(ctx, HistoryRequest{BrandID: testBrand, UserID: "frank", Type: model.MINT})
	require.NoError(t, err)
	require.Len(t, mints.Items, 5)

	_, err = env.ledger.ListLedgerHistory(ctx, HistoryRequest{BrandID: testBrand, Cursor: "yesterday"})
	require.ErrorIs(t, err, model.ErrValidation)
	_, err = env.ledger.ListLedgerHistory(ctx, HistoryRequest{BrandID: testBrand, Type: "REFUND"})
	require.ErrorIs(t, err, model.ErrValidation)
}
