package rewards

import (
	"context"
	"errors"
	"testing"
	"time"

	model "github.com/glkeru/loyalty/rewards/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

// Крупное начисление проходит и дает ровно один флаг HIGH
func TestLargeMintRaisesSingleHighFlag(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.mint(t, "whale", 10001)
	require.True(t, res.Fraud.LargeAmountFlagged)
	require.False(t, res.Fraud.VelocityFlagged)
	require.True(t, env.balance(t, "whale").Equal(dec(10001)))

	flags, err := env.fraud.ListFlags(ctx, model.FlagFilter{BrandID: testBrand, UserID: "whale"})
	require.NoError(t, err)
	require.Len(t, flags, 1)
	require.Equal(t, model.SeverityHigh, flags[0].Severity)
	require.Equal(t, model.FlagReasonLargeAmount, flags[0].Reason)
	require.Equal(t, model.FlagPending, flags[0].Status)

	// порог не превышен
	env.mint(t, "whale", 10000)
	flags, err = env.fraud.ListFlags(ctx, model.FlagFilter{BrandID: testBrand, UserID: "whale"})
	require.NoError(t, err)
	require.Len(t, flags, 1)
}

func TestVelocityFlag(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cfg := DefaultFraudConfig()
	cfg.MaxMintsPerWindow = 2
	env.fraud = NewFraudService(zap.NewNop(), env.store, env.store, cfg)
	env.ledger = NewLedgerService(zap.NewNop(), env.store, env.store, nil, env.fraud, LedgerOptions{})

	for i := 0; i < 3; i++ {
		res := env.mint(t, "fast", 1)
		require.False(t, res.Fraud.VelocityFlagged)
	}
	res := env.mint(t, "fast", 1)
	require.True(t, res.Fraud.VelocityFlagged)
	require.True(t, env.balance(t, "fast").Equal(dec(4)))

	flags, err := env.fraud.ListFlags(ctx, model.FlagFilter{UserID: "fast"})
	require.NoError(t, err)
	require.Len(t, flags, 1)
	require.Equal(t, model.SeverityMedium, flags[0].Severity)
	require.Equal(t, model.FlagReasonVelocity, flags[0].Reason)
}

func TestIdempotentReplaySkipsFraud(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	req := MintRequest{BrandID: testBrand, UserID: "whale", Amount: dec(20000), IdempotencyKey: "big-1"}

	_, err := env.ledger.MintPoints(ctx, req)
	require.NoError(t, err)
	again, err := env.ledger.MintPoints(ctx, req)
	require.NoError(t, err)
	require.True(t, again.Replayed)

	flags, err := env.fraud.ListFlags(ctx, model.FlagFilter{UserID: "whale"})
	require.NoError(t, err)
	require.Len(t, flags, 1)
}

// Ошибки хранилищ не прерывают проверки
func TestFraudChecksSwallowErrors(t *testing.T) {
	cont := gomock.NewController(t)
	defer cont.Finish()

	ledger := NewMockLedgerStorage(cont)
	flags := NewMockFlagStorage(cont)
	ledger.EXPECT().
		CountMints(gomock.Any(), "b", "u", gomock.Any()).
		Return(0, errors.New("connection reset"))
	flags.EXPECT().
		CreateFlag(gomock.Any(), gomock.Any()).
		Return(model.FraudFlag{}, errors.New("mongo down"))

	fraud := NewFraudService(zap.NewNop(), ledger, flags, DefaultFraudConfig())
	result := fraud.RunChecks(context.Background(), "b", "u", decimal.NewFromInt(50000))
	require.False(t, result.VelocityFlagged)
	require.True(t, result.LargeAmountFlagged)
}

func TestFraudVelocityWindow(t *testing.T) {
	cont := gomock.NewController(t)
	defer cont.Finish()

	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	ledger := NewMockLedgerStorage(cont)
	flags := NewMockFlagStorage(cont)
	ledger.EXPECT().
		CountMints(gomock.Any(), "b", "u", now.Add(-60*time.Minute)).
		Return(11, nil)
	flags.EXPECT().
		CreateFlag(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, flag model.FraudFlag) (model.FraudFlag, error) {
			require.Equal(t, model.SeverityMedium, flag.Severity)
			require.Equal(t, model.FlagPending, flag.Status)
			require.Equal(t, 11, flag.Details["mintCount"])
			flag.ID = uuid.New()
			return flag, nil
		})

	fraud := NewFraudService(zap.NewNop(), ledger, flags, DefaultFraudConfig())
	fraud.now = func() time.Time { return now }
	result := fraud.RunChecks(context.Background(), "b", "u", decimal.NewFromInt(5))
	require.True(t, result.VelocityFlagged)
	require.False(t, result.LargeAmountFlagged)
}

func TestReviewFlag(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.mint(t, "whale", 50000)

	flags, err := env.fraud.ListFlags(ctx, model.FlagFilter{Status: model.FlagPending})
	require.NoError(t, err)
	require.Len(t, flags, 1)
	id := flags[0].ID

	_, err = env.fraud.ReviewFlag(ctx, id, "", model.FlagDismissed)
	require.ErrorIs(t, err, model.ErrValidation)
	_, err = env.fraud.ReviewFlag(ctx, id, "admin", model.FlagPending)
	require.ErrorIs(t, err, model.ErrValidation)
	_, err = env.fraud.ReviewFlag(ctx, uuid.New(), "admin", model.FlagDismissed)
	require.ErrorIs(t, err, model.ErrNotFound)

	reviewed, err := env.fraud.ReviewFlag(ctx, id, "admin", model.FlagConfirmed)
	require.NoError(t, err)
	require.Equal(t, model.FlagConfirmed, reviewed.Status)
	require.Equal(t, "admin", reviewed.ReviewedBy)
	require.NotNil(t, reviewed.ReviewedAt)

	again, err := env.fraud.ReviewFlag(ctx, id, "other", model.FlagConfirmed)
	require.NoError(t, err)
	require.Equal(t, "admin", again.ReviewedBy)

	pending, err := env.fraud.ListFlags(ctx, model.FlagFilter{Status: model.FlagPending})
	require.NoError(t, err)
	require.Empty(t, pending)

	_, err = env.fraud.ListFlags(ctx, model.FlagFilter{Status: "OPEN"})
	require.ErrorIs(t, err, model.ErrValidation)
}
